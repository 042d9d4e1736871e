package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TwitchUsername        string   `env:"TWITCH_BOT_USERNAME"`
	TwitchToken           string   `env:"TWITCH_BOT_ACCESS_TOKEN"`
	TwitchChannels        []string `env:"TWITCH_BOT_CHANNELS" envSeparator:","`
	TwitchApiToken        string   `env:"TWITCH_API_ACCESS_TOKEN"`
	TwitchApiRefreshToken string   `env:"TWITCH_API_REFRESH_TOKEN"`
	TwitchClientId        string   `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret    string   `env:"TWITCH_CLIENT_SECRET"`
	TwitchRedirectURI     string   `env:"TWITCH_REDIRECT_URI"`
	TwitchBroadcasterId   string   `env:"TWITCH_BROADCASTER_ID"`
	// si está vacío se usa el broadcaster
	TwitchModeratorId string `env:"TWITCH_MODERATOR_ID"`

	WebServerHost string `env:"WEB_SERVER_HOST" envDefault:"127.0.0.1"`
	WebServerPort int    `env:"WEB_SERVER_PORT" envDefault:"7472"`
	UserDataDir   string `env:"USER_DATA_DIR" envDefault:"data"`
	DatabasePath  string `env:"DATABASE_PATH"`
	// orígenes extra del panel (scheme://host:port); loopback siempre vale
	WebAllowedOrigins []string `env:"WEB_ALLOWED_ORIGINS" envSeparator:","`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"LOG_FILE" envDefault:"zhatmod.log"`
	LogConsole bool   `env:"LOG_CONSOLE" envDefault:"true"`

	OBSAddress  string `env:"OBS_WS_ADDRESS" envDefault:"localhost"`
	OBSPort     int    `env:"OBS_WS_PORT" envDefault:"4455"`
	OBSPassword string `env:"OBS_WS_PASSWORD"`
	OBSLogging  bool   `env:"OBS_WS_LOGGING"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.TwitchChannels = normalizeChannels(cfg.TwitchChannels)
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		cfg.DatabasePath = filepath.Join(cfg.UserDataDir, "zhatmod.db")
	}
	if cfg.WebServerPort <= 0 || cfg.WebServerPort > 65535 {
		return nil, fmt.Errorf("config: WEB_SERVER_PORT fuera de rango: %d", cfg.WebServerPort)
	}

	return cfg, nil
}

// WebServerAddr es host:puerto del panel; por defecto solo loopback.
func (c *Config) WebServerAddr() string {
	return net.JoinHostPort(c.WebServerHost, strconv.Itoa(c.WebServerPort))
}

func (c *Config) ModeratorID() string {
	if strings.TrimSpace(c.TwitchModeratorId) != "" {
		return strings.TrimSpace(c.TwitchModeratorId)
	}
	return strings.TrimSpace(c.TwitchBroadcasterId)
}

// HasTwitchChat indica si hay credenciales para conectarse al chat por IRC.
func (c *Config) HasTwitchChat() bool {
	return c.TwitchUsername != "" && c.TwitchToken != "" && len(c.TwitchChannels) > 0
}

func normalizeChannels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ch := range in {
		ch = strings.ToLower(strings.TrimSpace(ch))
		ch = strings.TrimPrefix(ch, "#")
		if ch == "" {
			continue
		}
		out = append(out, ch)
	}
	return out
}
