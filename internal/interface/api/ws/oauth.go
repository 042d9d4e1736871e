package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nicklaw5/helix/v2"
	"go.uber.org/zap"

	"zhatMod/internal/domain"
	twitchinfra "zhatMod/internal/infrastructure/platform/twitch"
)

const stateTTL = 10 * time.Minute

// TwitchOAuth es el flujo authorization code de Twitch (twitchinfra.OAuthClient).
type TwitchOAuth interface {
	AuthorizationURL(state string, scopes []string) string
	ExchangeCode(ctx context.Context, code string) (helix.AccessCredentials, error)
	FetchUser(ctx context.Context, accessToken, login string) (twitchinfra.User, error)
}

type oauthHandlers struct {
	logger   *zap.Logger
	credRepo domain.CredentialRepository
	hook     func(ctx context.Context, cred *domain.Credential)
	twitch   TwitchOAuth
	state    *oauthStateStore
	now      func() time.Time
}

func newOAuthHandlers(cfg Config, logger *zap.Logger) *oauthHandlers {
	return &oauthHandlers{
		logger:   logger,
		credRepo: cfg.CredentialRepo,
		hook:     cfg.CredentialHook,
		twitch:   cfg.TwitchOAuth,
		state:    newOAuthStateStore(),
		now:      time.Now,
	}
}

func (a *oauthHandlers) register(r chi.Router) {
	if a.credRepo == nil {
		return
	}

	r.Get("/api/oauth/status", a.handleStatus)
	r.Post("/api/oauth/logout", a.handleLogout)

	if a.twitch != nil {
		r.Post("/api/oauth/twitch/start", a.handleTwitchStart)
		r.Get("/api/oauth/twitch/callback", a.handleTwitchCallback)
	}
}

type oauthStartRequest struct {
	Role string `json:"role"`
}

type oauthStartResponse struct {
	URL string `json:"url"`
}

type oauthLogoutRequest struct {
	Platform string `json:"platform"`
	Role     string `json:"role"`
}

type credentialStatus struct {
	HasAccessToken  bool      `json:"has_access_token"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	Login           string    `json:"login,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type statusResponse struct {
	Credentials map[string]map[string]credentialStatus `json:"credentials"`
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "streamer" {
		return role
	}
	return "bot"
}

func (a *oauthHandlers) handleTwitchStart(w http.ResponseWriter, r *http.Request) {
	var req oauthStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role := normalizeRole(req.Role)
	state := a.state.Add(domain.PlatformTwitch, role)
	authURL := a.twitch.AuthorizationURL(state, twitchinfra.ScopesForRole(role))

	writeJSON(w, http.StatusOK, oauthStartResponse{URL: authURL})
}

func (a *oauthHandlers) handleTwitchCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		writeHTML(w, http.StatusBadRequest, "Missing code or state.")
		return
	}

	entry, ok := a.state.Consume(state)
	if !ok || entry.Platform != domain.PlatformTwitch {
		writeHTML(w, http.StatusBadRequest, "Invalid state.")
		return
	}

	token, err := a.twitch.ExchangeCode(r.Context(), code)
	if err != nil {
		a.logger.Error("twitch oauth: token exchange error", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, "Token exchange failed.")
		return
	}

	metadata := make(map[string]string)
	if user, err := a.twitch.FetchUser(r.Context(), token.AccessToken, ""); err == nil {
		metadata["user_id"] = user.ID
		metadata["login"] = user.Login
	} else {
		a.logger.Warn("twitch oauth: no pude obtener el perfil", zap.Error(err))
	}

	now := a.now()
	cred := &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         entry.Role,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(token.ExpiresIn) * time.Second),
		UpdatedAt:    now,
		Metadata:     metadata,
	}

	if err := a.credRepo.Save(r.Context(), cred); err != nil {
		a.logger.Error("twitch oauth: saving credential failed", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, "Could not store credentials.")
		return
	}
	if a.hook != nil {
		a.hook(r.Context(), cred)
	}

	writeHTML(w, http.StatusOK, fmt.Sprintf("✅ Tokens guardados para Twitch (%s). Ya puedes cerrar esta ventana.", entry.Role))
}

func (a *oauthHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	list, err := a.credRepo.List(r.Context())
	if err != nil {
		a.logger.Error("oauth status: list error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load credentials")
		return
	}

	resp := statusResponse{
		Credentials: make(map[string]map[string]credentialStatus),
	}

	for _, cred := range list {
		if cred == nil || cred.Platform == "" {
			continue
		}
		plat := string(cred.Platform)
		if _, ok := resp.Credentials[plat]; !ok {
			resp.Credentials[plat] = make(map[string]credentialStatus)
		}

		resp.Credentials[plat][cred.Role] = credentialStatus{
			HasAccessToken:  cred.AccessToken != "",
			HasRefreshToken: cred.RefreshToken != "",
			Login:           cred.Metadata["login"],
			UpdatedAt:       cred.UpdatedAt,
			ExpiresAt:       cred.ExpiresAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *oauthHandlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req oauthLogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !strings.EqualFold(strings.TrimSpace(req.Platform), string(domain.PlatformTwitch)) {
		writeError(w, http.StatusBadRequest, "invalid platform")
		return
	}
	role := normalizeRole(req.Role)

	if err := a.credRepo.Delete(r.Context(), domain.PlatformTwitch, role); err != nil {
		a.logger.Error("oauth logout: delete failed", zap.String("role", role), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete credentials")
		return
	}

	a.logger.Info("oauth logout: credenciales eliminadas", zap.String("role", role))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type oauthStateStore struct {
	mu     sync.Mutex
	values map[string]oauthStateEntry
	now    func() time.Time
}

type oauthStateEntry struct {
	Platform  domain.Platform
	Role      string
	CreatedAt time.Time
}

func newOAuthStateStore() *oauthStateStore {
	return &oauthStateStore{
		values: make(map[string]oauthStateEntry),
		now:    time.Now,
	}
}

func (s *oauthStateStore) Add(platform domain.Platform, role string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = oauthStateEntry{
		Platform:  platform,
		Role:      role,
		CreatedAt: s.now(),
	}
	return id
}

// Consume devuelve la entrada una sola vez; las de más de 10 minutos se descartan.
func (s *oauthStateStore) Consume(state string) (oauthStateEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[state]
	if !ok {
		return oauthStateEntry{}, false
	}
	delete(s.values, state)

	if s.now().Sub(entry.CreatedAt) > stateTTL {
		return oauthStateEntry{}, false
	}

	return entry, true
}
