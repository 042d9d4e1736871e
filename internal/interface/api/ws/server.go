package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"zhatMod/internal/app/events"
	"zhatMod/internal/domain"
	"zhatMod/internal/usecase/obsintegration"
)

// TopicChatReply lleva las respuestas de comandos escritos desde el panel.
const TopicChatReply = "chat:reply"

// Server sirve la API HTTP y el websocket del panel local.
type Server struct {
	addr     string
	logger   *zap.Logger
	upgrader websocket.Upgrader
	policy   originPolicy

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	handler MessageHandler

	api   *apiHandlers
	oauth *oauthHandlers
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type Subscriber interface {
	Subscribe(topic string) (<-chan any, func())
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	// sceneFilter decide qué obs:event de escena recibe este cliente.
	sceneFilter obsintegration.SceneNameFilter
}

func (c *wsClient) wants(topic string, payload any) bool {
	if topic != events.TopicOBSEvent {
		return true
	}
	ev, ok := payload.(events.OBSEventDTO)
	if !ok {
		return true
	}
	return c.sceneFilter.Matches(ev)
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	policy := newOriginPolicy(cfg.AllowedOrigins)

	return &Server{
		addr:     cfg.addr(),
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: policy.checkOrigin},
		policy:   policy,
		clients:  make(map[*wsClient]struct{}),
		api:      newAPIHandlers(cfg, logger),
		oauth:    newOAuthHandlers(cfg, logger),
	}
}

// Routes arma el router; ctx acota la vida de las conexiones websocket.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.policy.middleware)

	r.Get("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	s.api.register(r)
	s.oauth.register(r)

	return r
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("shutdown error", zap.Error(err))
		}
		s.closeClients()
	}()

	s.logger.Info("escuchando", zap.String("addr", s.addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := obsintegration.NewSceneNameFilter(q.Get("obs_scene"), q.Get("obs_scene_comparison"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade error", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, sceneFilter: filter}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("nueva conexión", zap.String("remote", r.RemoteAddr), zap.Int("clients", clientCount))

	go s.handleClient(ctx, client)
}

func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	defer func() {
		s.removeClient(client)
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				s.logger.Debug("read error", zap.Error(err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		if err := s.dispatchIncoming(ctx, data); err != nil {
			s.logger.Warn("incoming dispatch error", zap.Error(err))
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	if ok {
		client.conn.Close()
		s.logger.Info("conexión cerrada", zap.Int("clients", clientCount))
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}

type incomingPayload struct {
	Text      string `json:"text"`
	ChannelID string `json:"channel_id"`
	Username  string `json:"username"`
}

// dispatchIncoming convierte lo que escribe el panel en un domain.Message del dashboard.
func (s *Server) dispatchIncoming(ctx context.Context, data []byte) error {
	handler := s.getHandler()
	if handler == nil {
		return nil
	}

	payload := incomingPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		payload.Text = string(data)
	}
	payload.Text = strings.TrimSpace(payload.Text)

	if payload.Text == "" {
		return fmt.Errorf("ws: empty incoming text")
	}

	msg := domain.Message{
		Platform:        domain.PlatformDashboard,
		ChannelID:       strings.TrimSpace(payload.ChannelID),
		UserID:          "web",
		Username:        strings.TrimSpace(payload.Username),
		Text:            payload.Text,
		IsPlatformOwner: true,
		IsPlatformAdmin: true,
		IsPlatformMod:   true,
	}

	return handler(ctx, msg)
}

func (s *Server) getHandler() MessageHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

func (s *Server) SetHandler(h MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast envía {topic, payload} a los clientes conectados. Los obs:event de
// escena solo llegan a los clientes cuyo filtro de escena los acepta.
func (s *Server) Broadcast(topic string, payload any) error {
	data, err := json.Marshal(events.Envelope{Topic: topic, Payload: payload})
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if !c.wants(topic, payload) {
			continue
		}
		if err := c.write(data); err != nil {
			s.logger.Debug("removing client due to write error", zap.Error(err))
			s.removeClient(c)
		}
	}

	return nil
}

// Forward reenvía al panel los tópicos del bus hasta que ctx termina.
func (s *Server) Forward(ctx context.Context, bus Subscriber, topics ...string) {
	for _, topic := range topics {
		ch, unsubscribe := bus.Subscribe(topic)
		go func(topic string) {
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					if err := s.Broadcast(topic, payload); err != nil {
						s.logger.Warn("broadcast error", zap.String("topic", topic), zap.Error(err))
					}
				}
			}
		}(topic)
	}
}

type replyPayload struct {
	ChannelID string `json:"channel_id,omitempty"`
	Text      string `json:"text"`
}

// SendMessage cumple outs.Sender para las respuestas a comandos del panel.
func (s *Server) SendMessage(_ context.Context, platform domain.Platform, channelID, text string) error {
	if platform != domain.PlatformDashboard {
		return fmt.Errorf("ws: plataforma %s no soportada", platform)
	}
	return s.Broadcast(TopicChatReply, replyPayload{ChannelID: channelID, Text: text})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
