package obsintegration

import (
	"context"
	"fmt"

	"zhatMod/internal/usecase/effects"
)

const (
	actionToggle = "toggle"
)

// Init registra los efectos de OBS.
func (i *Integration) Init(reg *effects.Registry) error {
	defs := []effects.Effect{
		{
			ID:          "obs:change-scene",
			Name:        "Change OBS Scene",
			Description: "Cambia la escena de programa de OBS.",
			Params:      []string{"sceneName"},
			Run:         i.changeScene,
		},
		{
			ID:          "obs:change-scene-collection",
			Name:        "Change OBS Scene Collection",
			Description: "Cambia la colección de escenas activa.",
			Params:      []string{"sceneCollectionName"},
			Run:         i.changeSceneCollection,
		},
		{
			ID:          "obs:toggle-source-visibility",
			Name:        "Toggle OBS Source Visibility",
			Description: "Muestra, oculta o alterna una fuente dentro de una escena.",
			Params:      []string{"sceneName", "sourceName", "action"},
			Run:         i.toggleSourceVisibility,
		},
		{
			ID:          "obs:toggle-source-filter",
			Name:        "Toggle OBS Source Filter",
			Description: "Activa, desactiva o alterna un filtro de una fuente.",
			Params:      []string{"sourceName", "filterName", "action"},
			Run:         i.toggleSourceFilter,
		},
		{
			ID:          "obs:toggle-source-muted",
			Name:        "Toggle OBS Source Muted",
			Description: "Silencia, activa o alterna el audio de una fuente.",
			Params:      []string{"sourceName", "action"},
			Run:         i.toggleSourceMuted,
		},
		{
			ID:          "obs:start-stream",
			Name:        "Start Stream",
			Description: "Inicia la transmisión en OBS.",
			Run:         i.simple(Conn.StartStream),
		},
		{
			ID:          "obs:stop-stream",
			Name:        "Stop Stream",
			Description: "Detiene la transmisión en OBS.",
			Run:         i.simple(Conn.StopStream),
		},
		{
			ID:          "obs:start-virtual-cam",
			Name:        "Start Virtual Camera",
			Description: "Inicia la cámara virtual de OBS.",
			Run:         i.simple(Conn.StartVirtualCam),
		},
		{
			ID:          "obs:stop-virtual-cam",
			Name:        "Stop Virtual Camera",
			Description: "Detiene la cámara virtual de OBS.",
			Run:         i.simple(Conn.StopVirtualCam),
		},
	}

	for _, e := range defs {
		if err := reg.Register(e); err != nil {
			return fmt.Errorf("obsintegration: %w", err)
		}
	}
	return nil
}

func (i *Integration) simple(request func(Conn, context.Context) error) effects.RunFunc {
	return func(ctx context.Context, _ effects.Params) error {
		conn, err := i.current()
		if err != nil {
			return err
		}
		return request(conn, ctx)
	}
}

func (i *Integration) changeScene(ctx context.Context, p effects.Params) error {
	scene, err := p.Require("sceneName")
	if err != nil {
		return err
	}
	conn, err := i.current()
	if err != nil {
		return err
	}
	return conn.SetCurrentProgramScene(ctx, scene)
}

func (i *Integration) changeSceneCollection(ctx context.Context, p effects.Params) error {
	name, err := p.Require("sceneCollectionName")
	if err != nil {
		return err
	}
	conn, err := i.current()
	if err != nil {
		return err
	}
	return conn.SetCurrentSceneCollection(ctx, name)
}

func (i *Integration) toggleSourceVisibility(ctx context.Context, p effects.Params) error {
	scene, err := p.Require("sceneName")
	if err != nil {
		return err
	}
	source, err := p.Require("sourceName")
	if err != nil {
		return err
	}
	want, err := parseAction(p.String("action"), "show", "hide")
	if err != nil {
		return err
	}
	conn, err := i.current()
	if err != nil {
		return err
	}

	itemID, err := conn.SceneItemID(ctx, scene, source)
	if err != nil {
		return err
	}

	enabled, err := resolve(want, func() (bool, error) {
		return conn.SceneItemEnabled(ctx, scene, itemID)
	})
	if err != nil {
		return err
	}
	return conn.SetSceneItemEnabled(ctx, scene, itemID, enabled)
}

func (i *Integration) toggleSourceFilter(ctx context.Context, p effects.Params) error {
	source, err := p.Require("sourceName")
	if err != nil {
		return err
	}
	filter, err := p.Require("filterName")
	if err != nil {
		return err
	}
	want, err := parseAction(p.String("action"), "enable", "disable")
	if err != nil {
		return err
	}
	conn, err := i.current()
	if err != nil {
		return err
	}

	enabled, err := resolve(want, func() (bool, error) {
		return conn.SourceFilterEnabled(ctx, source, filter)
	})
	if err != nil {
		return err
	}
	return conn.SetSourceFilterEnabled(ctx, source, filter, enabled)
}

func (i *Integration) toggleSourceMuted(ctx context.Context, p effects.Params) error {
	source, err := p.Require("sourceName")
	if err != nil {
		return err
	}
	want, err := parseAction(p.String("action"), "mute", "unmute")
	if err != nil {
		return err
	}
	conn, err := i.current()
	if err != nil {
		return err
	}

	if want == nil {
		return conn.ToggleInputMute(ctx, source)
	}
	return conn.SetInputMute(ctx, source, *want)
}

// resolve devuelve want, o el inverso del estado actual cuando want es nil (toggle).
func resolve(want *bool, current func() (bool, error)) (bool, error) {
	if want != nil {
		return *want, nil
	}
	cur, err := current()
	if err != nil {
		return false, err
	}
	return !cur, nil
}

// parseAction: on → true, off → false, "toggle" o vacío → nil.
func parseAction(action, on, off string) (*bool, error) {
	switch action {
	case "", actionToggle:
		return nil, nil
	case on:
		v := true
		return &v, nil
	case off:
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: action %q (want %s, %s or %s)", effects.ErrInvalidParams, action, on, off, actionToggle)
	}
}
