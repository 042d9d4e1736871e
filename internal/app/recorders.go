package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"zhatMod/internal/app/events"
	"zhatMod/internal/domain"
	"zhatMod/internal/usecase/commands"
)

// AuditRecorder guarda en el log de moderación cada comando que llegó a ejecutarse.
type AuditRecorder struct {
	repo   domain.ModerationLogRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditRecorder(repo domain.ModerationLogRepository, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{repo: repo, logger: logger, now: time.Now}
}

func (a *AuditRecorder) RecordResult(ctx context.Context, res commands.Result) {
	if a.repo == nil || res.Outcome == commands.OutcomeInvalid {
		return
	}
	rec := &domain.ModerationRecord{
		Command:   res.Command,
		Trigger:   res.Trigger,
		Args:      strings.Join(res.Args, " "),
		Invoker:   res.Invoker,
		Platform:  res.Platform,
		Success:   res.Outcome == commands.OutcomeOK,
		CreatedAt: a.now().UTC(),
	}
	if err := a.repo.RecordModerationAction(ctx, rec); err != nil {
		a.logger.Error("audit: no se pudo guardar la acción", zap.String("command", res.Command), zap.Error(err))
	}
}

type Publisher interface {
	Publish(topic string, payload any)
}

// BusRecorder publica los resultados en moderation:result para el dashboard.
type BusRecorder struct {
	bus Publisher
}

func NewBusRecorder(bus Publisher) *BusRecorder {
	return &BusRecorder{bus: bus}
}

func (b *BusRecorder) RecordResult(_ context.Context, res commands.Result) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.TopicModerationResult, events.ModerationResultDTO{
		Command:   res.Command,
		Trigger:   res.Trigger,
		Args:      append([]string{}, res.Args...),
		Invoker:   res.Invoker,
		Platform:  string(res.Platform),
		Outcome:   string(res.Outcome),
		Message:   res.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type CommandCounter interface {
	CommandResult(command, outcome string)
}

// MetricsRecorder cuenta invocaciones por comando y resultado.
type MetricsRecorder struct {
	counter CommandCounter
}

func NewMetricsRecorder(counter CommandCounter) *MetricsRecorder {
	return &MetricsRecorder{counter: counter}
}

func (m *MetricsRecorder) RecordResult(_ context.Context, res commands.Result) {
	if m.counter == nil {
		return
	}
	m.counter.CommandResult(res.Command, string(res.Outcome))
}
