package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

// Opcodes de obs-websocket v5 que habla el servidor falso.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type request struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	RequestData json.RawMessage `json:"requestData"`
}

type fakeEvent struct {
	Type string          `json:"eventType"`
	Data json.RawMessage `json:"eventData"`
}

func expectedAuth(password string) string {
	secret := sha256.Sum256([]byte(password + testSalt))
	auth := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(secret[:]) + testChallenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

type fakeOBS struct {
	t        *testing.T
	password string
	// respuestas por requestType; GetVersion siempre responde
	results map[string]json.RawMessage
	events  []fakeEvent

	identify chan identify
	requests chan request
}

func newFakeOBS(t *testing.T, password string) *fakeOBS {
	return &fakeOBS{
		t:        t,
		password: password,
		results:  map[string]json.RawMessage{"GetVersion": json.RawMessage(`{"obsWebSocketVersion":"5.0.0","rpcVersion":1}`)},
		identify: make(chan identify, 4),
		requests: make(chan request, 32),
	}
}

func writeFrame(conn *websocket.Conn, op int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Op: op, D: data})
}

func (f *fakeOBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{"obswebsocket.json"}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hello := map[string]any{"obsWebSocketVersion": "5.0.0", "rpcVersion": 1}
	if f.password != "" {
		hello["authentication"] = map[string]string{"challenge": testChallenge, "salt": testSalt}
	}
	if err := writeFrame(conn, opHello, hello); err != nil {
		return
	}

	var msg frame
	if err := conn.ReadJSON(&msg); err != nil || msg.Op != opIdentify {
		return
	}
	var id identify
	_ = json.Unmarshal(msg.D, &id)
	f.identify <- id

	if f.password != "" && id.Authentication != expectedAuth(f.password) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4009, "Authentication failed."), time.Now().Add(time.Second))
		return
	}

	if err := writeFrame(conn, opIdentified, map[string]int{"negotiatedRpcVersion": 1}); err != nil {
		return
	}

	for _, ev := range f.events {
		if err := writeFrame(conn, opEvent, ev); err != nil {
			return
		}
	}

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Op != opRequest {
			continue
		}
		var req request
		_ = json.Unmarshal(msg.D, &req)
		if req.RequestType != "GetVersion" {
			f.requests <- req
		}

		resp := map[string]any{
			"requestType": req.RequestType,
			"requestId":   req.RequestID,
		}
		if data, ok := f.results[req.RequestType]; ok {
			resp["requestStatus"] = map[string]any{"result": true, "code": 100}
			resp["responseData"] = data
		} else {
			resp["requestStatus"] = map[string]any{"result": false, "code": 600, "comment": "No source was found"}
		}
		if err := writeFrame(conn, opRequestResponse, resp); err != nil {
			return
		}
	}
}

func startFake(t *testing.T, f *fakeOBS) (Config, *httptest.Server) {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return Config{Address: host, Port: p, Password: f.password}, srv
}

func dial(t *testing.T, cfg Config, onEvent EventHandler) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, cfg, onEvent, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialWithoutAuth(t *testing.T) {
	f := newFakeOBS(t, "")
	cfg, _ := startFake(t, f)

	dial(t, cfg, nil)

	id := <-f.identify
	assert.Empty(t, id.Authentication)
	assert.Equal(t, 1, id.RPCVersion)
	assert.NotZero(t, id.EventSubscriptions)
}

func TestDialWithAuth(t *testing.T) {
	f := newFakeOBS(t, "hunter2")
	cfg, _ := startFake(t, f)

	dial(t, cfg, nil)

	id := <-f.identify
	assert.Equal(t, expectedAuth("hunter2"), id.Authentication)
}

func TestDialWrongPassword(t *testing.T) {
	f := newFakeOBS(t, "hunter2")
	cfg, _ := startFake(t, f)

	for _, pw := range []string{"", "nope"} {
		cfg.Password = pw
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := Dial(ctx, cfg, nil, zap.NewNop())
		cancel()
		assert.Error(t, err, "password %q", pw)
	}
}

func TestDialHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, Config{Address: "127.0.0.1", Port: 1}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCurrentProgramScene(t *testing.T) {
	f := newFakeOBS(t, "")
	f.results["GetCurrentProgramScene"] = json.RawMessage(`{"currentProgramSceneName":"Main"}`)
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	scene, err := c.CurrentProgramScene(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Main", scene)

	req := <-f.requests
	assert.Equal(t, "GetCurrentProgramScene", req.RequestType)
	assert.NotEmpty(t, req.RequestID)
}

func TestSetSceneItemEnabledSendsParams(t *testing.T) {
	f := newFakeOBS(t, "")
	f.results["SetSceneItemEnabled"] = json.RawMessage(`{}`)
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	require.NoError(t, c.SetSceneItemEnabled(context.Background(), "Main", 7, true))

	req := <-f.requests
	assert.Equal(t, "SetSceneItemEnabled", req.RequestType)
	assert.JSONEq(t, `{"sceneName":"Main","sceneItemId":7,"sceneItemEnabled":true}`, string(req.RequestData))
}

func TestSceneAndInputLists(t *testing.T) {
	f := newFakeOBS(t, "")
	f.results["GetSceneList"] = json.RawMessage(`{"currentProgramSceneName":"Main","scenes":[{"sceneName":"BRB","sceneIndex":1},{"sceneName":"Main","sceneIndex":0}]}`)
	f.results["GetInputList"] = json.RawMessage(`{"inputs":[{"inputName":"Mic","inputKind":"wasapi_input_capture"}]}`)
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	scenes, err := c.Scenes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Name: "BRB", Index: 1}, {Name: "Main", Index: 0}}, scenes)

	inputs, err := c.Inputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Input{{Name: "Mic", Kind: "wasapi_input_capture"}}, inputs)
}

func TestRequestFailureStatus(t *testing.T) {
	f := newFakeOBS(t, "")
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	err := c.SetCurrentProgramScene(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestEventsAreDelivered(t *testing.T) {
	f := newFakeOBS(t, "")
	f.events = []fakeEvent{{
		Type: "CurrentProgramSceneChanged",
		Data: json.RawMessage(`{"sceneName":"BRB"}`),
	}}
	cfg, _ := startFake(t, f)

	got := make(chan Event, 1)
	dial(t, cfg, func(ev Event) {
		select {
		case got <- ev:
		default:
		}
	})

	select {
	case ev := <-got:
		assert.Equal(t, "CurrentProgramSceneChanged", ev.Type)
		var data struct {
			SceneName string `json:"sceneName"`
		}
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, "BRB", data.SceneName)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestCallAfterClose(t *testing.T) {
	f := newFakeOBS(t, "")
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	require.NoError(t, c.Close())
	<-c.Done()
	assert.ErrorIs(t, c.StartStream(context.Background()), ErrClosed)
}

func TestCallHonoursCancelledContext(t *testing.T) {
	f := newFakeOBS(t, "")
	cfg, _ := startFake(t, f)
	c := dial(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.StopStream(ctx), context.Canceled)
}

func TestKeepAliveDetectsLostServer(t *testing.T) {
	f := newFakeOBS(t, "")
	cfg, srv := startFake(t, f)
	cfg.KeepAlive = 20 * time.Millisecond
	c := dial(t, cfg, nil)

	srv.CloseClientConnections()

	select {
	case <-c.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("connection loss not detected")
	}
}
