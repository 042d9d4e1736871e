package twitchinfra

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicklaw5/helix/v2"
)

// Scopes por rol. El bot solo habla en el chat; el streamer modera.
var (
	BotScopes      = []string{"chat:read", "chat:edit"}
	StreamerScopes = []string{
		"moderator:manage:banned_users",
		"channel:manage:moderators",
		"channel:manage:vips",
	}
)

func ScopesForRole(role string) []string {
	if strings.EqualFold(strings.TrimSpace(role), "streamer") {
		return StreamerScopes
	}
	return BotScopes
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// APIBaseURL solo se usa en tests.
	APIBaseURL string
}

func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// OAuthClient cubre el flujo authorization code de Twitch.
type OAuthClient struct {
	cfg    OAuthConfig
	client *helix.Client
}

func NewOAuthClient(cfg OAuthConfig) (*OAuthClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("helix: oauth config incompleta")
	}
	client, err := helix.NewClient(&helix.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		APIBaseURL:   cfg.APIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}
	return &OAuthClient{cfg: cfg, client: client}, nil
}

func (o *OAuthClient) AuthorizationURL(state string, scopes []string) string {
	return o.client.GetAuthorizationURL(&helix.AuthorizationURLParams{
		ResponseType: "code",
		Scopes:       scopes,
		State:        state,
		ForceVerify:  true,
	})
}

func (o *OAuthClient) ExchangeCode(ctx context.Context, code string) (helix.AccessCredentials, error) {
	resp, err := o.client.RequestUserAccessToken(code)
	if err != nil {
		return helix.AccessCredentials{}, fmt.Errorf("helix: RequestUserAccessToken: %w", err)
	}
	if err := checkStatus("RequestUserAccessToken", resp.StatusCode, resp.Error, resp.ErrorMessage); err != nil {
		return helix.AccessCredentials{}, err
	}
	return resp.Data, nil
}

type User struct {
	ID    string
	Login string
}

// FetchUser devuelve el usuario dueño de accessToken, o el de login si no está vacío.
func (o *OAuthClient) FetchUser(ctx context.Context, accessToken, login string) (User, error) {
	return FetchUser(ctx, o.cfg.ClientID, accessToken, login, o.cfg.APIBaseURL)
}

func FetchUser(ctx context.Context, clientID, accessToken, login, apiBaseURL string) (User, error) {
	if strings.TrimSpace(clientID) == "" {
		return User{}, fmt.Errorf("twitch client id vacío")
	}
	if strings.TrimSpace(accessToken) == "" {
		return User{}, fmt.Errorf("twitch access token vacío")
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: strings.TrimPrefix(strings.TrimSpace(accessToken), "oauth:"),
		APIBaseURL:      apiBaseURL,
	})
	if err != nil {
		return User{}, fmt.Errorf("helix: NewClient: %w", err)
	}

	params := &helix.UsersParams{}
	if login = strings.TrimSpace(login); login != "" {
		params.Logins = []string{login}
	}

	resp, err := client.GetUsers(params)
	if err != nil {
		return User{}, fmt.Errorf("helix: GetUsers: %w", err)
	}
	if err := checkStatus("GetUsers", resp.StatusCode, resp.Error, resp.ErrorMessage); err != nil {
		return User{}, err
	}
	if len(resp.Data.Users) == 0 {
		return User{}, fmt.Errorf("usuario de Twitch no encontrado: %s", login)
	}

	u := resp.Data.Users[0]
	return User{ID: u.ID, Login: u.Login}, nil
}
