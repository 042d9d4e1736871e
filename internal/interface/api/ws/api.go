package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"zhatMod/internal/domain"
	"zhatMod/internal/infrastructure/obs"
	"zhatMod/internal/usecase/commands"
	"zhatMod/internal/usecase/effects"
	"zhatMod/internal/usecase/obsintegration"
	"zhatMod/internal/usecase/overlay"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type Config struct {
	// Addr por defecto solo escucha en loopback.
	Addr   string
	Logger *zap.Logger

	// AllowedOrigins suma orígenes (scheme://host:port) al loopback, p. ej. el panel abierto desde la LAN.
	AllowedOrigins []string

	Commands      CommandCatalog
	ModerationLog domain.ModerationLogRepository
	Effects       EffectRunner
	EffectMetrics EffectObserver
	OBS           OBSController
	Metrics       http.Handler

	UserDataDir   string
	WebServerPort int

	CredentialRepo domain.CredentialRepository
	CredentialHook func(ctx context.Context, cred *domain.Credential)
	TwitchOAuth    TwitchOAuth
}

func (c *Config) addr() string {
	if c == nil || c.Addr == "" {
		return "127.0.0.1:7472"
	}
	return c.Addr
}

type CommandCatalog interface {
	Catalog() []commands.CommandDescriptor
}

type EffectRunner interface {
	List() []effects.Descriptor
	Trigger(ctx context.Context, id string, params effects.Params) error
}

type EffectObserver interface {
	EffectTriggered(id string, err error)
}

type OBSController interface {
	Settings() domain.OBSSettings
	Status() obsintegration.Status
	UpdateSettings(ctx context.Context, s domain.OBSSettings) error
	SceneList(ctx context.Context) ([]obs.Scene, error)
	InputList(ctx context.Context) ([]obs.Input, error)
	SceneCollectionList(ctx context.Context) ([]string, error)
}

type apiHandlers struct {
	logger *zap.Logger

	commands      CommandCatalog
	moderationLog domain.ModerationLogRepository
	effects       EffectRunner
	effectMetrics EffectObserver
	obs           OBSController
	metrics       http.Handler

	userDataDir   string
	webServerPort int
}

func newAPIHandlers(cfg Config, logger *zap.Logger) *apiHandlers {
	return &apiHandlers{
		logger:        logger,
		commands:      cfg.Commands,
		moderationLog: cfg.ModerationLog,
		effects:       cfg.Effects,
		effectMetrics: cfg.EffectMetrics,
		obs:           cfg.OBS,
		metrics:       cfg.Metrics,
		userDataDir:   cfg.UserDataDir,
		webServerPort: cfg.WebServerPort,
	}
}

func (a *apiHandlers) register(r chi.Router) {
	r.Get("/api/overlay-url", a.handleOverlayURL)

	if a.commands != nil {
		r.Get("/api/commands", a.handleCommands)
	}
	if a.moderationLog != nil {
		r.Get("/api/moderation/log", a.handleModerationLog)
	}
	if a.effects != nil {
		r.Get("/api/effects", a.handleEffects)
		r.Post("/api/effects/{id}", a.handleTriggerEffect)
	}
	if a.obs != nil {
		r.Get("/api/integrations/obs", a.handleOBSStatus)
		r.Put("/api/integrations/obs", a.handleOBSUpdate)
		r.Get("/api/integrations/obs/scenes", a.handleOBSScenes)
		r.Get("/api/integrations/obs/sources", a.handleOBSSources)
		r.Get("/api/integrations/obs/scene-collections", a.handleOBSSceneCollections)
	}
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}
}

func (a *apiHandlers) handleCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.commands.Catalog())
}

type moderationRecordResponse struct {
	ID        int64     `json:"id"`
	Command   string    `json:"command"`
	Trigger   string    `json:"trigger"`
	Args      string    `json:"args"`
	Invoker   string    `json:"invoker"`
	Platform  string    `json:"platform"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *apiHandlers) handleModerationLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	records, err := a.moderationLog.ListModerationActions(r.Context(), limit)
	if err != nil {
		a.logger.Error("moderation log: list error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load moderation log")
		return
	}

	out := make([]moderationRecordResponse, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out = append(out, moderationRecordResponse{
			ID:        rec.ID,
			Command:   rec.Command,
			Trigger:   rec.Trigger,
			Args:      rec.Args,
			Invoker:   rec.Invoker,
			Platform:  string(rec.Platform),
			Success:   rec.Success,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiHandlers) handleEffects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.effects.List())
}

func (a *apiHandlers) handleTriggerEffect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	params := effects.Params{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.effects.Trigger(r.Context(), id, params)
	if a.effectMetrics != nil && !errors.Is(err, effects.ErrUnknownEffect) {
		a.effectMetrics.EffectTriggered(id, err)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, effects.ErrUnknownEffect):
		writeError(w, http.StatusNotFound, "unknown effect")
	case errors.Is(err, effects.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, obsintegration.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.logger.Warn("effect failed", zap.String("effect", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

type obsSettingsResponse struct {
	Address     string                `json:"address"`
	Port        int                   `json:"port"`
	HasPassword bool                  `json:"has_password"`
	Logging     bool                  `json:"logging"`
	Status      obsintegration.Status `json:"status"`
}

// Password nil conserva la contraseña guardada.
type obsSettingsRequest struct {
	Address  string  `json:"address"`
	Port     int     `json:"port"`
	Password *string `json:"password"`
	Logging  bool    `json:"logging"`
}

func (a *apiHandlers) handleOBSStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.obsResponse())
}

func (a *apiHandlers) obsResponse() obsSettingsResponse {
	s := a.obs.Settings()
	return obsSettingsResponse{
		Address:     s.Address,
		Port:        s.Port,
		HasPassword: s.Password != "",
		Logging:     s.Logging,
		Status:      a.obs.Status(),
	}
}

func (a *apiHandlers) handleOBSUpdate(w http.ResponseWriter, r *http.Request) {
	var req obsSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Port < 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}

	settings := domain.OBSSettings{
		Address: strings.TrimSpace(req.Address),
		Port:    req.Port,
		Logging: req.Logging,
	}
	if req.Password != nil {
		settings.Password = *req.Password
	} else {
		settings.Password = a.obs.Settings().Password
	}

	if err := a.obs.UpdateSettings(r.Context(), settings); err != nil {
		a.logger.Error("obs settings: update error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}

	writeJSON(w, http.StatusOK, a.obsResponse())
}

func (a *apiHandlers) handleOBSScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := a.obs.SceneList(r.Context())
	if err != nil {
		a.writeOBSError(w, "scenes", err)
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (a *apiHandlers) handleOBSSources(w http.ResponseWriter, r *http.Request) {
	inputs, err := a.obs.InputList(r.Context())
	if err != nil {
		a.writeOBSError(w, "sources", err)
		return
	}
	writeJSON(w, http.StatusOK, inputs)
}

func (a *apiHandlers) handleOBSSceneCollections(w http.ResponseWriter, r *http.Request) {
	names, err := a.obs.SceneCollectionList(r.Context())
	if err != nil {
		a.writeOBSError(w, "scene collections", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (a *apiHandlers) writeOBSError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, obsintegration.ErrNotConnected) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	a.logger.Warn("obs: list failed", zap.String("list", what), zap.Error(err))
	writeError(w, http.StatusBadGateway, err.Error())
}

func (a *apiHandlers) handleOverlayURL(w http.ResponseWriter, r *http.Request) {
	instance := strings.TrimSpace(r.URL.Query().Get("instance"))
	writeJSON(w, http.StatusOK, map[string]string{
		"path": overlay.Path(a.userDataDir, a.webServerPort, instance),
	})
}
