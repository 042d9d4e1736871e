package effects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownEffect   = errors.New("effects: unknown effect")
	ErrDuplicateEffect = errors.New("effects: duplicate effect id")
	ErrInvalidParams   = errors.New("effects: invalid params")
)

// Params son los parámetros de un disparo, tal cual llegan del dashboard.
type Params map[string]string

// String devuelve el valor de key sin espacios alrededor.
func (p Params) String(key string) string {
	return strings.TrimSpace(p[key])
}

// Require devuelve el valor de key o ErrInvalidParams si falta.
func (p Params) Require(key string) (string, error) {
	v := p.String(key)
	if v == "" {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
	}
	return v, nil
}

type RunFunc func(ctx context.Context, params Params) error

type Effect struct {
	ID          string
	Name        string
	Description string
	// Params lista los parámetros que acepta, para la UI.
	Params []string
	Run    RunFunc
}

type Descriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
}

type Registry struct {
	mu      sync.RWMutex
	effects map[string]Effect
}

func NewRegistry() *Registry {
	return &Registry{effects: make(map[string]Effect)}
}

func (r *Registry) Register(e Effect) error {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return fmt.Errorf("effects: empty effect id")
	}
	if e.Run == nil {
		return fmt.Errorf("effects: %s: nil run func", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.effects[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEffect, id)
	}
	e.ID = id
	r.effects[id] = e
	return nil
}

func (r *Registry) Get(id string) (Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effects[id]
	return e, ok
}

// List devuelve los efectos ordenados por id.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.effects))
	for _, e := range r.effects {
		out = append(out, Descriptor{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Params:      e.Params,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Trigger(ctx context.Context, id string, params Params) error {
	e, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEffect, id)
	}
	if params == nil {
		params = Params{}
	}
	return e.Run(ctx, params)
}
