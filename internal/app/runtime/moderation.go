package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nicklaw5/helix/v2"
	"go.uber.org/zap"

	"zhatMod/internal/domain"
	"zhatMod/internal/infrastructure/config"
	twitchinfra "zhatMod/internal/infrastructure/platform/twitch"
)

var errModerationUnavailable = errors.New("twitch: moderación no configurada")

// switchableModeration es lo que ven los comandos y el refresher. Sin servicio
// todo falla con errModerationUnavailable; el login del streamer lo instala en caliente.
type switchableModeration struct {
	mu  sync.RWMutex
	svc *twitchinfra.ModerationService
}

func (m *switchableModeration) current() *twitchinfra.ModerationService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.svc
}

// setIfEmpty instala svc solo si no había uno; devuelve false si ya existía.
func (m *switchableModeration) setIfEmpty(svc *twitchinfra.ModerationService) bool {
	if svc == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.svc != nil {
		return false
	}
	m.svc = svc
	return true
}

func (m *switchableModeration) LookupUserID(ctx context.Context, login string) (string, error) {
	svc := m.current()
	if svc == nil {
		return "", errModerationUnavailable
	}
	return svc.LookupUserID(ctx, login)
}

func (m *switchableModeration) TimeoutUser(ctx context.Context, userID string, seconds int, reason domain.Reason) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.TimeoutUser(ctx, userID, seconds, reason)
}

func (m *switchableModeration) BanUser(ctx context.Context, userID string, reason domain.Reason) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.BanUser(ctx, userID, reason)
}

func (m *switchableModeration) UnbanUser(ctx context.Context, userID string) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.UnbanUser(ctx, userID)
}

func (m *switchableModeration) AddChannelVIP(ctx context.Context, userID string) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.AddChannelVIP(ctx, userID)
}

func (m *switchableModeration) RemoveChannelVIP(ctx context.Context, userID string) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.RemoveChannelVIP(ctx, userID)
}

func (m *switchableModeration) AddChannelModerator(ctx context.Context, userID string) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.AddChannelModerator(ctx, userID)
}

func (m *switchableModeration) RemoveChannelModerator(ctx context.Context, userID string) error {
	svc := m.current()
	if svc == nil {
		return errModerationUnavailable
	}
	return svc.RemoveChannelModerator(ctx, userID)
}

func (m *switchableModeration) RefreshUserAccessToken(ctx context.Context, refreshToken string) (helix.AccessCredentials, error) {
	svc := m.current()
	if svc == nil {
		return helix.AccessCredentials{}, errModerationUnavailable
	}
	return svc.RefreshUserAccessToken(ctx, refreshToken)
}

// newModerationService devuelve nil si falta config; los comandos responden "failed" hasta entonces.
func newModerationService(ctx context.Context, cfg *config.Config, apiBaseURL string, logger *zap.Logger) *twitchinfra.ModerationService {
	if cfg.TwitchClientId == "" || cfg.TwitchApiToken == "" {
		logger.Warn("twitch: sin TWITCH_CLIENT_ID o token del streamer, moderación deshabilitada")
		return nil
	}

	broadcasterID := strings.TrimSpace(cfg.TwitchBroadcasterId)
	if broadcasterID == "" {
		user, err := twitchinfra.FetchUser(ctx, cfg.TwitchClientId, cfg.TwitchApiToken, "", apiBaseURL)
		if err != nil {
			logger.Warn("no pude resolver el ID de Twitch del streamer", zap.Error(err))
			return nil
		}
		broadcasterID = user.ID
		cfg.TwitchBroadcasterId = user.ID
	}

	svc, err := twitchinfra.NewModerationService(twitchinfra.Config{
		ClientID:        cfg.TwitchClientId,
		ClientSecret:    cfg.TwitchClientSecret,
		UserAccessToken: cfg.TwitchApiToken,
		BroadcasterID:   broadcasterID,
		ModeratorID:     cfg.ModeratorID(),
		APIBaseURL:      apiBaseURL,
	})
	if err != nil {
		logger.Warn("no se pudo iniciar el servicio de moderación", zap.Error(err))
		return nil
	}
	return svc
}

// applyStreamerCredential renueva el token de Helix o, si el streamer no había
// iniciado sesión al arrancar, crea el servicio con esta credencial.
func (r *Runtime) applyStreamerCredential(cred *domain.Credential) {
	token := strings.TrimPrefix(strings.TrimSpace(cred.AccessToken), "oauth:")
	if token == "" {
		return
	}
	if svc := r.moderation.current(); svc != nil {
		svc.UpdateAccessToken(token)
		return
	}

	cfg := *r.cfg
	cfg.TwitchApiToken = token
	if cfg.TwitchBroadcasterId == "" {
		cfg.TwitchBroadcasterId = strings.TrimSpace(cred.Metadata["user_id"])
	}

	if r.moderation.setIfEmpty(newModerationService(r.ctx, &cfg, r.helixURL, r.logger)) {
		r.logger.Info("twitch: moderación habilitada", zap.String("broadcaster_id", cfg.TwitchBroadcasterId))
	}
}
