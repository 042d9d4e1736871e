package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/andreykaipov/goobs"
	obsconfig "github.com/andreykaipov/goobs/api/requests/config"
	"github.com/andreykaipov/goobs/api/requests/filters"
	"github.com/andreykaipov/goobs/api/requests/inputs"
	"github.com/andreykaipov/goobs/api/requests/sceneitems"
	"github.com/andreykaipov/goobs/api/requests/scenes"
	"go.uber.org/zap"
)

var (
	ErrClosed        = errors.New("obs: connection closed")
	ErrRequestFailed = errors.New("obs: request failed")
)

const defaultKeepAlive = 10 * time.Second

type Config struct {
	Address  string
	Port     int
	Password string
	// Logging activa logs de errores de OBS a nivel warn.
	Logging bool
	// KeepAlive separa los GetVersion que detectan una conexión caída. 10s si es cero.
	KeepAlive time.Duration
}

func (c Config) host() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Event es un evento emitido por OBS, con los datos en el mismo JSON que manda obs-websocket.
type Event struct {
	Type string          `json:"eventType"`
	Data json.RawMessage `json:"eventData"`
}

type EventHandler func(Event)

type Scene struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type Input struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Client envuelve una conexión goobs con llamadas tipadas y cancelables.
type Client struct {
	obs     *goobs.Client
	logger  *zap.Logger
	onEvent EventHandler
	logErrs bool

	mu         sync.Mutex
	closed     bool
	done       chan struct{}
	disconnect sync.Once
}

// Dial conecta e identifica contra obs-websocket y empieza a escuchar eventos.
func Dial(ctx context.Context, cfg Config, onEvent EventHandler, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	type result struct {
		client *goobs.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		opts := []goobs.Option{goobs.WithLogger(zap.NewStdLog(logger.Named("goobs")))}
		if cfg.Password != "" {
			opts = append(opts, goobs.WithPassword(cfg.Password))
		}
		c, err := goobs.New(cfg.host(), opts...)
		ch <- result{client: c, err: err}
	}()

	var conn *goobs.Client
	select {
	case <-ctx.Done():
		go func() {
			// el dial sigue en curso; si termina bien hay que soltarlo
			if res := <-ch; res.err == nil {
				_ = res.client.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("obs: connect %s: %w", cfg.host(), res.err)
		}
		conn = res.client
	}

	c := &Client{
		obs:     conn,
		logger:  logger,
		onEvent: onEvent,
		logErrs: cfg.Logging,
		done:    make(chan struct{}),
	}

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	go c.listen()
	go c.keepAlive(keepAlive)

	return c, nil
}

func (c *Client) listen() {
	c.obs.Listen(func(raw any) {
		ev, ok := toEvent(raw)
		if !ok || c.onEvent == nil {
			return
		}
		c.onEvent(ev)
	})
	c.shutdown()
}

func (c *Client) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if _, err := c.obs.General.GetVersion(); err != nil {
				c.logger.Debug("obs: keepalive failed", zap.Error(err))
				_ = c.Close()
				return
			}
		}
	}
}

func toEvent(raw any) (Event, bool) {
	t := reflect.TypeOf(raw)
	if t == nil {
		return Event{}, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Event{}, false
	}
	return Event{Type: t.Name(), Data: data}, true
}

// call corre fn salvo que la conexión esté cerrada; deja de esperar si ctx termina.
// Lo que fn escribe solo se puede leer cuando call devuelve nil.
func (c *Client) call(ctx context.Context, request string, fn func() error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case err := <-errc:
		if err == nil {
			return nil
		}
		if c.logErrs {
			c.logger.Warn("obs request failed", zap.String("request", request), zap.Error(err))
		}
		return fmt.Errorf("%w: %s: %v", ErrRequestFailed, request, err)
	}
}

func (c *Client) CurrentProgramScene(ctx context.Context) (string, error) {
	var name string
	err := c.call(ctx, "GetCurrentProgramScene", func() error {
		resp, err := c.obs.Scenes.GetCurrentProgramScene()
		if err == nil {
			name = resp.CurrentProgramSceneName
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (c *Client) SetCurrentProgramScene(ctx context.Context, scene string) error {
	return c.call(ctx, "SetCurrentProgramScene", func() error {
		_, err := c.obs.Scenes.SetCurrentProgramScene(scenes.NewSetCurrentProgramSceneParams().WithSceneName(scene))
		return err
	})
}

// SceneCollections devuelve la colección activa y todas las disponibles.
func (c *Client) SceneCollections(ctx context.Context) (string, []string, error) {
	var (
		current string
		all     []string
	)
	err := c.call(ctx, "GetSceneCollectionList", func() error {
		resp, err := c.obs.Config.GetSceneCollectionList()
		if err == nil {
			current, all = resp.CurrentSceneCollectionName, resp.SceneCollections
		}
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return current, all, nil
}

func (c *Client) SetCurrentSceneCollection(ctx context.Context, name string) error {
	return c.call(ctx, "SetCurrentSceneCollection", func() error {
		_, err := c.obs.Config.SetCurrentSceneCollection(obsconfig.NewSetCurrentSceneCollectionParams().WithSceneCollectionName(name))
		return err
	})
}

func (c *Client) Scenes(ctx context.Context) ([]Scene, error) {
	var out []Scene
	err := c.call(ctx, "GetSceneList", func() error {
		resp, err := c.obs.Scenes.GetSceneList()
		if err != nil {
			return err
		}
		out = make([]Scene, 0, len(resp.Scenes))
		for _, s := range resp.Scenes {
			if s == nil {
				continue
			}
			out = append(out, Scene{Name: s.SceneName, Index: s.SceneIndex})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Inputs(ctx context.Context) ([]Input, error) {
	var out []Input
	err := c.call(ctx, "GetInputList", func() error {
		resp, err := c.obs.Inputs.GetInputList()
		if err != nil {
			return err
		}
		out = make([]Input, 0, len(resp.Inputs))
		for _, in := range resp.Inputs {
			if in == nil {
				continue
			}
			out = append(out, Input{Name: in.InputName, Kind: in.InputKind})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SceneItemID(ctx context.Context, scene, source string) (int, error) {
	var id int
	err := c.call(ctx, "GetSceneItemId", func() error {
		resp, err := c.obs.SceneItems.GetSceneItemId(sceneitems.NewGetSceneItemIdParams().
			WithSceneName(scene).
			WithSourceName(source))
		if err == nil {
			id = resp.SceneItemId
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) SceneItemEnabled(ctx context.Context, scene string, itemID int) (bool, error) {
	var enabled bool
	err := c.call(ctx, "GetSceneItemEnabled", func() error {
		resp, err := c.obs.SceneItems.GetSceneItemEnabled(sceneitems.NewGetSceneItemEnabledParams().
			WithSceneName(scene).
			WithSceneItemId(itemID))
		if err == nil {
			enabled = resp.SceneItemEnabled
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func (c *Client) SetSceneItemEnabled(ctx context.Context, scene string, itemID int, enabled bool) error {
	return c.call(ctx, "SetSceneItemEnabled", func() error {
		_, err := c.obs.SceneItems.SetSceneItemEnabled(sceneitems.NewSetSceneItemEnabledParams().
			WithSceneName(scene).
			WithSceneItemId(itemID).
			WithSceneItemEnabled(enabled))
		return err
	})
}

func (c *Client) SourceFilterEnabled(ctx context.Context, source, filter string) (bool, error) {
	var enabled bool
	err := c.call(ctx, "GetSourceFilter", func() error {
		resp, err := c.obs.Filters.GetSourceFilter(filters.NewGetSourceFilterParams().
			WithSourceName(source).
			WithFilterName(filter))
		if err == nil {
			enabled = resp.FilterEnabled
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func (c *Client) SetSourceFilterEnabled(ctx context.Context, source, filter string, enabled bool) error {
	return c.call(ctx, "SetSourceFilterEnabled", func() error {
		_, err := c.obs.Filters.SetSourceFilterEnabled(filters.NewSetSourceFilterEnabledParams().
			WithSourceName(source).
			WithFilterName(filter).
			WithFilterEnabled(enabled))
		return err
	})
}

func (c *Client) ToggleInputMute(ctx context.Context, input string) error {
	return c.call(ctx, "ToggleInputMute", func() error {
		_, err := c.obs.Inputs.ToggleInputMute(inputs.NewToggleInputMuteParams().WithInputName(input))
		return err
	})
}

func (c *Client) SetInputMute(ctx context.Context, input string, muted bool) error {
	return c.call(ctx, "SetInputMute", func() error {
		_, err := c.obs.Inputs.SetInputMute(inputs.NewSetInputMuteParams().
			WithInputName(input).
			WithInputMuted(muted))
		return err
	})
}

func (c *Client) StartStream(ctx context.Context) error {
	return c.call(ctx, "StartStream", func() error {
		_, err := c.obs.Stream.StartStream()
		return err
	})
}

func (c *Client) StopStream(ctx context.Context) error {
	return c.call(ctx, "StopStream", func() error {
		_, err := c.obs.Stream.StopStream()
		return err
	})
}

func (c *Client) StartVirtualCam(ctx context.Context) error {
	return c.call(ctx, "StartVirtualCam", func() error {
		_, err := c.obs.Outputs.StartVirtualCam()
		return err
	})
}

func (c *Client) StopVirtualCam(ctx context.Context) error {
	return c.call(ctx, "StopVirtualCam", func() error {
		_, err := c.obs.Outputs.StopVirtualCam()
		return err
	})
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Done se cierra cuando la conexión termina.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	c.shutdown()
	var err error
	c.disconnect.Do(func() { err = c.obs.Disconnect() })
	if err != nil {
		return fmt.Errorf("obs: disconnect: %w", err)
	}
	return nil
}
