package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectTriggered(t *testing.T) {
	m := New()

	m.EffectTriggered("obs:start-stream", nil)
	m.EffectTriggered("obs:start-stream", errors.New("boom"))
	m.EffectTriggered("obs:start-stream", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EffectTriggers.WithLabelValues("obs:start-stream", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EffectTriggers.WithLabelValues("obs:start-stream", "error")))
}

func TestSetOBSConnected(t *testing.T) {
	m := New()
	m.SetOBSConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OBSConnected))
	m.SetOBSConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OBSConnected))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.SetOBSConnected(true) })
}

func TestHandlerServesSeries(t *testing.T) {
	m := New()
	m.CommandResult("ban", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zhatmod_command_invocations_total{command="ban",outcome="ok"} 1`)
}

func TestChatMessageAndNilSafety(t *testing.T) {
	m := New()
	m.ChatMessage("twitch")
	m.ChatMessage("twitch")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChatMessages.WithLabelValues("twitch")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ChatMessage("twitch")
		nilMetrics.CommandResult("ban", "ok")
		nilMetrics.EffectTriggered("x", nil)
	})
}
