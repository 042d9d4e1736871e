// Package obsintegration conecta el bot con OBS: efectos disparables, eventos
// reenviados al bus y el estado de escena actual.
package obsintegration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"zhatMod/internal/app/events"
	"zhatMod/internal/domain"
	"zhatMod/internal/infrastructure/obs"
)

const SettingsKey = "integration.obs"

const defaultReconnectEvery = 5 * time.Second

var ErrNotConnected = errors.New("obs: not connected")

// Conn es la parte del cliente obs que usa la integración.
type Conn interface {
	CurrentProgramScene(ctx context.Context) (string, error)
	SetCurrentProgramScene(ctx context.Context, scene string) error
	SceneCollections(ctx context.Context) (string, []string, error)
	SetCurrentSceneCollection(ctx context.Context, name string) error
	Scenes(ctx context.Context) ([]obs.Scene, error)
	Inputs(ctx context.Context) ([]obs.Input, error)

	SceneItemID(ctx context.Context, scene, source string) (int, error)
	SceneItemEnabled(ctx context.Context, scene string, itemID int) (bool, error)
	SetSceneItemEnabled(ctx context.Context, scene string, itemID int, enabled bool) error
	SourceFilterEnabled(ctx context.Context, source, filter string) (bool, error)
	SetSourceFilterEnabled(ctx context.Context, source, filter string, enabled bool) error
	ToggleInputMute(ctx context.Context, input string) error
	SetInputMute(ctx context.Context, input string, muted bool) error

	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	StartVirtualCam(ctx context.Context) error
	StopVirtualCam(ctx context.Context) error

	Done() <-chan struct{}
	Close() error
}

type DialFunc func(ctx context.Context, cfg obs.Config, onEvent obs.EventHandler) (Conn, error)

type Publisher interface {
	Publish(topic string, payload any)
}

type ConnectionGauge interface {
	SetOBSConnected(connected bool)
}

type Status struct {
	Connected       bool   `json:"connected"`
	SceneName       string `json:"scene_name"`
	SceneCollection string `json:"scene_collection"`
}

type Options struct {
	Settings  domain.SettingsRepository
	Defaults  domain.OBSSettings
	Dial      DialFunc
	Publisher Publisher
	Gauge     ConnectionGauge
	Logger    *zap.Logger
	// ReconnectEvery separa los intentos de conexión. 5s si es cero.
	ReconnectEvery time.Duration
}

type Integration struct {
	repo      domain.SettingsRepository
	dial      DialFunc
	publisher Publisher
	gauge     ConnectionGauge
	logger    *zap.Logger
	limiter   *rate.Limiter
	reconnect chan struct{}

	mu              sync.RWMutex
	settings        domain.OBSSettings
	conn            Conn
	sceneName       string
	sceneCollection string
}

func New(opts Options) *Integration {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	every := opts.ReconnectEvery
	if every <= 0 {
		every = defaultReconnectEvery
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(ctx context.Context, cfg obs.Config, onEvent obs.EventHandler) (Conn, error) {
			c, err := obs.Dial(ctx, cfg, onEvent, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	return &Integration{
		repo:      opts.Settings,
		dial:      dial,
		publisher: opts.Publisher,
		gauge:     opts.Gauge,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(every), 1),
		reconnect: make(chan struct{}, 1),
		settings:  opts.Defaults.WithDefaults(),
	}
}

// LoadSettings lee los ajustes guardados; si no hay, se quedan los de arranque.
func (i *Integration) LoadSettings(ctx context.Context) error {
	if i.repo == nil {
		return nil
	}
	raw, ok, err := i.repo.GetSetting(ctx, SettingsKey)
	if err != nil {
		return fmt.Errorf("obsintegration: load settings: %w", err)
	}
	if !ok {
		return nil
	}

	var s domain.OBSSettings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return fmt.Errorf("obsintegration: decode settings: %w", err)
	}

	i.mu.Lock()
	i.settings = s.WithDefaults()
	i.mu.Unlock()
	return nil
}

func (i *Integration) Settings() domain.OBSSettings {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.settings
}

// UpdateSettings guarda los ajustes y fuerza una reconexión.
func (i *Integration) UpdateSettings(ctx context.Context, s domain.OBSSettings) error {
	s = s.WithDefaults()

	if i.repo != nil {
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("obsintegration: encode settings: %w", err)
		}
		if err := i.repo.SetSetting(ctx, SettingsKey, string(raw)); err != nil {
			return fmt.Errorf("obsintegration: save settings: %w", err)
		}
	}

	i.mu.Lock()
	i.settings = s
	i.mu.Unlock()

	select {
	case i.reconnect <- struct{}{}:
	default:
	}
	return nil
}

func (i *Integration) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Status{
		Connected:       i.conn != nil,
		SceneName:       i.sceneName,
		SceneCollection: i.sceneCollection,
	}
}

// Run mantiene la conexión con OBS hasta que ctx termina.
func (i *Integration) Run(ctx context.Context) error {
	for {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil
		}

		s := i.Settings()
		conn, err := i.dial(ctx, obs.Config{
			Address:  s.Address,
			Port:     s.Port,
			Password: s.Password,
			Logging:  s.Logging,
		}, i.handleEvent)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			i.logger.Debug("obs: connect failed", zap.String("address", s.Address), zap.Int("port", s.Port), zap.Error(err))
			continue
		}

		i.logger.Info("obs: connected", zap.String("address", s.Address), zap.Int("port", s.Port))
		i.setConn(conn)
		i.refreshState(ctx, conn)

		select {
		case <-ctx.Done():
			_ = conn.Close()
			i.setConn(nil)
			return nil
		case <-conn.Done():
			i.logger.Warn("obs: connection lost")
			_ = conn.Close()
		case <-i.reconnect:
			i.logger.Info("obs: settings changed, reconnecting")
			_ = conn.Close()
		}
		i.setConn(nil)
	}
}

func (i *Integration) setConn(conn Conn) {
	i.mu.Lock()
	i.conn = conn
	if conn == nil {
		i.sceneName = ""
		i.sceneCollection = ""
	}
	i.mu.Unlock()

	if i.gauge != nil {
		i.gauge.SetOBSConnected(conn != nil)
	}
}

func (i *Integration) refreshState(ctx context.Context, conn Conn) {
	if scene, err := conn.CurrentProgramScene(ctx); err == nil {
		i.mu.Lock()
		i.sceneName = scene
		i.mu.Unlock()
	}

	if current, _, err := conn.SceneCollections(ctx); err == nil {
		i.mu.Lock()
		i.sceneCollection = current
		i.mu.Unlock()
	}
}

func (i *Integration) handleEvent(ev obs.Event) {
	switch ev.Type {
	case "CurrentProgramSceneChanged":
		var data struct {
			SceneName string `json:"sceneName"`
		}
		if json.Unmarshal(ev.Data, &data) == nil {
			i.mu.Lock()
			i.sceneName = data.SceneName
			i.mu.Unlock()
		}
	case "CurrentSceneCollectionChanged":
		var data struct {
			Name string `json:"sceneCollectionName"`
		}
		if json.Unmarshal(ev.Data, &data) == nil {
			i.mu.Lock()
			i.sceneCollection = data.Name
			i.mu.Unlock()
		}
	}

	if i.publisher != nil {
		i.publisher.Publish(events.TopicOBSEvent, events.NewOBSEventDTO(ev.Type, ev.Data))
	}
}

func (i *Integration) current() (Conn, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.conn == nil {
		return nil, ErrNotConnected
	}
	return i.conn, nil
}

// SceneList lista las escenas de la colección activa.
func (i *Integration) SceneList(ctx context.Context) ([]obs.Scene, error) {
	conn, err := i.current()
	if err != nil {
		return nil, err
	}
	return conn.Scenes(ctx)
}

// InputList lista las fuentes de entrada (audio, cámaras, capturas).
func (i *Integration) InputList(ctx context.Context) ([]obs.Input, error) {
	conn, err := i.current()
	if err != nil {
		return nil, err
	}
	return conn.Inputs(ctx)
}

func (i *Integration) SceneCollectionList(ctx context.Context) ([]string, error) {
	conn, err := i.current()
	if err != nil {
		return nil, err
	}
	_, all, err := conn.SceneCollections(ctx)
	return all, err
}
