package events

import (
	"encoding/json"
	"time"

	"zhatMod/internal/domain"
)

// ChatMessageDTO describe el payload que se envía al frontend a través del bus/eventos.
type ChatMessageDTO struct {
	Platform        string `json:"platform"`
	ChannelID       string `json:"channel_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	IsPrivate       bool   `json:"is_private"`
	IsPlatformOwner bool   `json:"is_platform_owner"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	IsPlatformMod   bool   `json:"is_platform_mod"`
	IsPlatformVip   bool   `json:"is_platform_vip"`
	Timestamp       string `json:"timestamp"`
}

// NewChatMessageDTO crea un DTO serializable a partir de domain.Message.
func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	return ChatMessageDTO{
		Platform:        string(msg.Platform),
		ChannelID:       msg.ChannelID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		Text:            msg.Text,
		IsPrivate:       msg.IsPrivate,
		IsPlatformOwner: msg.IsPlatformOwner,
		IsPlatformAdmin: msg.IsPlatformAdmin,
		IsPlatformMod:   msg.IsPlatformMod,
		IsPlatformVip:   msg.IsPlatformVip,
		Timestamp:       now(),
	}
}

// ModerationResultDTO es el resultado de un comando de moderación.
type ModerationResultDTO struct {
	Command   string   `json:"command"`
	Trigger   string   `json:"trigger"`
	Args      []string `json:"args"`
	Invoker   string   `json:"invoker"`
	Platform  string   `json:"platform"`
	Outcome   string   `json:"outcome"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp"`
}

type OBSEventDTO struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewOBSEventDTO(eventType string, data json.RawMessage) OBSEventDTO {
	return OBSEventDTO{
		Type:      eventType,
		Data:      data,
		Timestamp: now(),
	}
}

type AppErrorDTO struct {
	Source    string `json:"source"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func NewAppErrorDTO(source string, err error) AppErrorDTO {
	return AppErrorDTO{
		Source:    source,
		Error:     err.Error(),
		Timestamp: now(),
	}
}

// Envelope es lo que viaja por el websocket del dashboard.
type Envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
