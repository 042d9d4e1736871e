package domain

import "context"

const (
	DefaultOBSAddress = "localhost"
	DefaultOBSPort    = 4455
)

// OBSSettings son los ajustes del websocket de OBS (obs-websocket v5).
type OBSSettings struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	Logging  bool   `json:"logging"`
}

func (s OBSSettings) WithDefaults() OBSSettings {
	if s.Address == "" {
		s.Address = DefaultOBSAddress
	}
	if s.Port <= 0 {
		s.Port = DefaultOBSPort
	}
	return s
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
