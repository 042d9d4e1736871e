package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nicklaw5/helix/v2"
	"go.uber.org/zap"

	"zhatMod/internal/domain"
)

const (
	defaultInterval = 30 * time.Minute
	refreshWindow   = 10 * time.Minute
)

// TokenRefresher intercambia un refresh token por credenciales nuevas.
type TokenRefresher interface {
	RefreshUserAccessToken(ctx context.Context, refreshToken string) (helix.AccessCredentials, error)
}

type Refresher struct {
	repo    domain.CredentialRepository
	twitch  TokenRefresher
	logger  *zap.Logger
	nowFunc func() time.Time

	hooksMu sync.RWMutex
	hooks   []CredentialHook
}

type CredentialHook func(ctx context.Context, cred *domain.Credential)

func NewRefresher(repo domain.CredentialRepository, twitch TokenRefresher, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		repo:    repo,
		twitch:  twitch,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (r *Refresher) RegisterHook(h CredentialHook) {
	if h == nil {
		return
	}
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *Refresher) notifyHooks(ctx context.Context, cred *domain.Credential) {
	if cred == nil {
		return
	}
	r.hooksMu.RLock()
	hooks := append([]CredentialHook(nil), r.hooks...)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, cred)
	}
}

func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.RefreshAll(ctx); err != nil {
					r.logger.Warn("token refresher", zap.Error(err))
				}
			}
		}
	}()
}

func (r *Refresher) RefreshAll(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	creds, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("refresher: list credentials: %w", err)
	}

	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return err
		}

		if cred == nil || cred.RefreshToken == "" {
			continue
		}

		if !r.needsRefresh(cred) {
			continue
		}

		if cred.Platform == domain.PlatformTwitch {
			if err := r.refreshTwitch(ctx, cred); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Refresher) needsRefresh(cred *domain.Credential) bool {
	if cred == nil {
		return false
	}
	if cred.ExpiresAt.IsZero() {
		return true
	}
	return cred.ExpiresAt.Sub(r.nowFunc()) < refreshWindow
}

func (r *Refresher) refreshTwitch(ctx context.Context, cred *domain.Credential) error {
	if r.twitch == nil {
		return fmt.Errorf("refresher: twitch config incompleta")
	}

	payload, err := r.twitch.RefreshUserAccessToken(ctx, cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresher: twitch refresh: %w", err)
	}

	now := r.nowFunc()
	cred.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		cred.RefreshToken = payload.RefreshToken
	}
	cred.ExpiresAt = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	cred.UpdatedAt = now

	if err := r.repo.Save(ctx, cred); err != nil {
		return err
	}
	r.logger.Info("twitch token refreshed", zap.String("role", cred.Role), zap.Time("expires_at", cred.ExpiresAt))
	r.notifyHooks(ctx, cred)
	return nil
}
