package ws

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhatMod/internal/domain"
)

func (e *testEnv) doWithOrigin(t *testing.T, method, path, origin string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDefaultAddrIsLoopback(t *testing.T) {
	assert.Equal(t, "127.0.0.1:7472", (&Config{}).addr())
	assert.Equal(t, ":9000", (&Config{Addr: ":9000"}).addr())
}

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{"http://192.168.1.5:7472", "not a url"})

	for _, origin := range []string{"", "http://localhost:5173", "http://127.0.0.1:7472", "http://[::1]:7472", "http://192.168.1.5:7472"} {
		assert.True(t, p.allowOrigin(origin), origin)
	}
	for _, origin := range []string{"https://evil.example", "null", "file://", "http://192.168.1.5:8080", "http://localhost.evil.example"} {
		assert.False(t, p.allowOrigin(origin), origin)
	}

	assert.True(t, p.allowHost("127.0.0.1:7472"))
	assert.True(t, p.allowHost("localhost"))
	assert.True(t, p.allowHost("192.168.1.5:7472"))
	assert.False(t, p.allowHost("evil.example:7472"))
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	called := make(chan struct{}, 1)
	env.srv.SetHandler(func(_ context.Context, _ domain.Message) error {
		called <- struct{}{}
		return nil
	})

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/chat"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.srv.ClientCount())

	select {
	case <-called:
		t.Fatal("foreign origin reached the command handler")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebsocketAcceptsLoopbackOrigin(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/chat"
	header := http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return env.srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAPIRejectsForeignOriginWrites(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doWithOrigin(t, http.MethodPost, "/api/effects/test:ok", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doWithOrigin(t, http.MethodPut, "/api/integrations/obs", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doWithOrigin(t, http.MethodOptions, "/api/effects/test:ok", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doWithOrigin(t, http.MethodGet, "/api/commands", "https://evil.example")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPIEchoesLoopbackOrigin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doWithOrigin(t, http.MethodPost, "/api/effects/test:ok", "http://127.0.0.1:3000")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = env.doWithOrigin(t, http.MethodOptions, "/api/effects/test:ok", "http://127.0.0.1:3000")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRejectsForeignHostHeader(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.http.URL+"/api/commands", nil)
	require.NoError(t, err)
	req.Host = "evil.example:7472"
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
