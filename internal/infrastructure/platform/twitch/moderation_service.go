package twitchinfra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nicklaw5/helix/v2"

	"zhatMod/internal/domain"
)

type Config struct {
	ClientID        string
	ClientSecret    string
	UserAccessToken string
	// BroadcasterID: ID numérico del canal (tu cuenta de streamer)
	BroadcasterID string
	// ModeratorID: cuenta dueña del token; para el propio streamer es igual a BroadcasterID
	ModeratorID string
	// APIBaseURL solo se usa en tests.
	APIBaseURL string
}

// ModerationService implementa domain.ModerationService y domain.UserLookup sobre Helix.
type ModerationService struct {
	client        *helix.Client
	broadcasterID string
	moderatorID   string
	mu            sync.RWMutex
}

// El token del streamer necesita moderator:manage:banned_users, channel:manage:moderators y channel:manage:vips.
func NewModerationService(cfg Config) (*ModerationService, error) {
	if strings.TrimSpace(cfg.BroadcasterID) == "" {
		return nil, fmt.Errorf("helix: broadcaster id vacío")
	}

	opts := &helix.Options{
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		UserAccessToken: cfg.UserAccessToken,
	}
	if cfg.APIBaseURL != "" {
		opts.APIBaseURL = cfg.APIBaseURL
	}

	client, err := helix.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	moderatorID := strings.TrimSpace(cfg.ModeratorID)
	if moderatorID == "" {
		moderatorID = strings.TrimSpace(cfg.BroadcasterID)
	}

	return &ModerationService{
		client:        client,
		broadcasterID: strings.TrimSpace(cfg.BroadcasterID),
		moderatorID:   moderatorID,
	}, nil
}

func (s *ModerationService) LookupUserID(ctx context.Context, login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", domain.ErrUserNotFound
	}

	resp, err := s.getClient().GetUsers(&helix.UsersParams{
		Logins: []string{login},
	})
	if err != nil {
		return "", fmt.Errorf("helix: GetUsers: %w", err)
	}
	if err := checkStatus("GetUsers", resp.StatusCode, resp.Error, resp.ErrorMessage); err != nil {
		return "", err
	}

	for _, u := range resp.Data.Users {
		if strings.EqualFold(u.Login, login) && u.ID != "" {
			return u.ID, nil
		}
	}
	return "", domain.ErrUserNotFound
}

var ErrInvalidTimeout = errors.New("helix: timeout debe durar al menos 1 segundo")

// TimeoutUser nunca manda duration 0: helix la omite del body y Twitch lo toma como ban permanente.
func (s *ModerationService) TimeoutUser(ctx context.Context, userID string, seconds int, reason domain.Reason) error {
	if seconds < 1 {
		return ErrInvalidTimeout
	}
	return s.ban(userID, seconds, reason)
}

func (s *ModerationService) BanUser(ctx context.Context, userID string, reason domain.Reason) error {
	return s.ban(userID, 0, reason)
}

// ban sirve para timeout (duration > 0) y ban permanente (duration == 0).
// Helix no distingue razón nula de razón vacía; sin razón se manda "".
func (s *ModerationService) ban(userID string, duration int, reason domain.Reason) error {
	text, _ := reason.Get()

	resp, err := s.getClient().BanUser(&helix.BanUserParams{
		BroadcasterID: s.broadcasterID,
		ModeratorId:   s.moderatorID,
		Body: helix.BanUserRequestBody{
			Duration: duration,
			Reason:   text,
			UserId:   userID,
		},
	})
	if err != nil {
		return fmt.Errorf("helix: BanUser: %w", err)
	}
	return checkStatus("BanUser", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

func (s *ModerationService) UnbanUser(ctx context.Context, userID string) error {
	resp, err := s.getClient().UnbanUser(&helix.UnbanUserParams{
		BroadcasterID: s.broadcasterID,
		ModeratorID:   s.moderatorID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("helix: UnbanUser: %w", err)
	}
	return checkStatus("UnbanUser", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

func (s *ModerationService) AddChannelVIP(ctx context.Context, userID string) error {
	resp, err := s.getClient().AddChannelVip(&helix.AddChannelVipParams{
		BroadcasterID: s.broadcasterID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("helix: AddChannelVip: %w", err)
	}
	return checkStatus("AddChannelVip", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

func (s *ModerationService) RemoveChannelVIP(ctx context.Context, userID string) error {
	resp, err := s.getClient().RemoveChannelVip(&helix.RemoveChannelVipParams{
		BroadcasterID: s.broadcasterID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("helix: RemoveChannelVip: %w", err)
	}
	return checkStatus("RemoveChannelVip", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

func (s *ModerationService) AddChannelModerator(ctx context.Context, userID string) error {
	resp, err := s.getClient().AddChannelModerator(&helix.AddChannelModeratorParams{
		BroadcasterID: s.broadcasterID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("helix: AddChannelModerator: %w", err)
	}
	return checkStatus("AddChannelModerator", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

func (s *ModerationService) RemoveChannelModerator(ctx context.Context, userID string) error {
	resp, err := s.getClient().RemoveChannelModerator(&helix.RemoveChannelModeratorParams{
		BroadcasterID: s.broadcasterID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("helix: RemoveChannelModerator: %w", err)
	}
	return checkStatus("RemoveChannelModerator", resp.StatusCode, resp.Error, resp.ErrorMessage)
}

// RefreshUserAccessToken canjea un refresh token usando el client secret configurado.
func (s *ModerationService) RefreshUserAccessToken(ctx context.Context, refreshToken string) (helix.AccessCredentials, error) {
	resp, err := s.getClient().RefreshUserAccessToken(refreshToken)
	if err != nil {
		return helix.AccessCredentials{}, fmt.Errorf("helix: RefreshUserAccessToken: %w", err)
	}
	if err := checkStatus("RefreshUserAccessToken", resp.StatusCode, resp.Error, resp.ErrorMessage); err != nil {
		return helix.AccessCredentials{}, err
	}
	return resp.Data, nil
}

func (s *ModerationService) UpdateAccessToken(token string) {
	if s == nil || s.client == nil {
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetUserAccessToken(token)
}

func (s *ModerationService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Los endpoints de moderación devuelven 200 o 204 No Content en éxito.
func checkStatus(op string, status int, errText, errMessage string) error {
	if status == http.StatusOK || status == http.StatusNoContent {
		return nil
	}
	return fmt.Errorf("helix: %s failed (%d: %s) %s", op, status, errText, errMessage)
}

var (
	_ domain.ModerationService = (*ModerationService)(nil)
	_ domain.UserLookup        = (*ModerationService)(nil)
)
