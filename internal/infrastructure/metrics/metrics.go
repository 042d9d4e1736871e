package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zhatmod"

type Metrics struct {
	registry *prometheus.Registry

	CommandInvocations *prometheus.CounterVec
	EffectTriggers     *prometheus.CounterVec
	OBSConnected       prometheus.Gauge
	ChatMessages       *prometheus.CounterVec
}

// New creates a registry with Go runtime and process collectors plus the bot's own series.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		CommandInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_invocations_total",
			Help:      "Slash command invocations by command and outcome (ok, failed, invalid).",
		}, []string{"command", "outcome"}),
		EffectTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_triggers_total",
			Help:      "Effect triggers by effect id and result.",
		}, []string{"effect", "result"}),
		OBSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "obs_connected",
			Help:      "1 while the OBS websocket is identified.",
		}),
		ChatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages received by platform.",
		}, []string{"platform"}),
	}

	reg.MustRegister(m.CommandInvocations, m.EffectTriggers, m.OBSConnected, m.ChatMessages)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetOBSConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.OBSConnected.Set(1)
		return
	}
	m.OBSConnected.Set(0)
}

func (m *Metrics) EffectTriggered(id string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EffectTriggers.WithLabelValues(id, result).Inc()
}

func (m *Metrics) CommandResult(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandInvocations.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ChatMessage(platform string) {
	if m == nil {
		return
	}
	m.ChatMessages.WithLabelValues(platform).Inc()
}
