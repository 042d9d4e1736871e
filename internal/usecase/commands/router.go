package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"zhatMod/internal/domain"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeInvalid Outcome = "invalid"
)

// Result describes one routed invocation, after validation and (maybe) execution.
type Result struct {
	Command  string
	Trigger  string
	Args     []string
	Invoker  string
	Platform domain.Platform
	Outcome  Outcome
	Message  string
}

type ResultRecorder interface {
	RecordResult(ctx context.Context, res Result)
}

type RouterConfig struct {
	Handlers  []Handler
	Recorders []ResultRecorder
	Logger    *zap.Logger
}

type Router struct {
	cmdIndex  map[string]Handler
	handlers  []Handler
	recorders []ResultRecorder
	logger    *zap.Logger
}

// NewRouter indexes every handler by its trigger tokens. The table is never mutated afterwards.
func NewRouter(cfg RouterConfig) (*Router, error) {
	r := &Router{
		cmdIndex:  make(map[string]Handler),
		handlers:  append([]Handler(nil), cfg.Handlers...),
		recorders: append([]ResultRecorder(nil), cfg.Recorders...),
		logger:    orNop(cfg.Logger),
	}

	for _, h := range r.handlers {
		if h == nil {
			return nil, errors.New("commands: nil handler")
		}
		triggers := h.Triggers()
		if len(triggers) == 0 {
			return nil, fmt.Errorf("commands: %s has no triggers", h.Name())
		}
		for _, trigger := range triggers {
			if !strings.HasPrefix(trigger, "/") || strings.ContainsFunc(trigger, unicode.IsSpace) {
				return nil, fmt.Errorf("commands: invalid trigger %q", trigger)
			}
			if prev, ok := r.cmdIndex[trigger]; ok {
				return nil, fmt.Errorf("commands: trigger %s already used by %s", trigger, prev.Name())
			}
			r.cmdIndex[trigger] = h
		}
	}

	return r, nil
}

// Lookup matches trigger tokens exactly; "/Ban" is not "/ban".
func (r *Router) Lookup(trigger string) (Handler, bool) {
	h, ok := r.cmdIndex[trigger]
	return h, ok
}

func (r *Router) Handle(ctx context.Context, msg domain.Message, out domain.OutgoingMessagePort) error {
	parts := strings.Fields(msg.Text)
	if len(parts) == 0 {
		return nil
	}

	trigger := parts[0]
	h, ok := r.cmdIndex[trigger]
	if !ok {
		return nil
	}

	if !msg.IsPlatformAdmin && msg.Platform != domain.PlatformDashboard {
		r.logger.Debug("ignoring moderation command from non-moderator",
			zap.String("trigger", trigger),
			zap.String("user", msg.Username))
		return nil
	}

	res := Result{
		Command:  h.Name(),
		Trigger:  trigger,
		Args:     parts[1:],
		Invoker:  msg.Username,
		Platform: msg.Platform,
	}

	ok, err := h.Handle(ctx, res.Args)

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		res.Outcome = OutcomeInvalid
		res.Message = verr.Message
	case err != nil:
		// Handle solo devuelve errores de validación; cualquier otro cuenta como fallo.
		res.Outcome = OutcomeFailed
		res.Message = fmt.Sprintf("⚠️ %s failed", trigger)
		r.logger.Error("command handler error", zap.String("trigger", trigger), zap.Error(err))
	case ok:
		res.Outcome = OutcomeOK
		res.Message = fmt.Sprintf("✅ %s ok", trigger)
	default:
		res.Outcome = OutcomeFailed
		res.Message = fmt.Sprintf("⚠️ %s failed", trigger)
	}

	r.logger.Info("moderation command",
		zap.String("command", res.Command),
		zap.String("trigger", trigger),
		zap.Strings("args", res.Args),
		zap.String("invoker", res.Invoker),
		zap.String("outcome", string(res.Outcome)))

	for _, rec := range r.recorders {
		rec.RecordResult(ctx, res)
	}

	if out == nil {
		return nil
	}
	return out.SendMessage(ctx, msg.Platform, msg.ChannelID, res.Message)
}
