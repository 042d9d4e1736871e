package domain

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// Reason is the optional free-text reason of a timeout or ban.
// The zero value means no reason was given, which is not the same as an empty one.
type Reason struct {
	text string
	set  bool
}

func NoReason() Reason {
	return Reason{}
}

func ReasonOf(text string) Reason {
	return Reason{text: text, set: true}
}

func (r Reason) Get() (string, bool) {
	return r.text, r.set
}

func (r Reason) IsSet() bool {
	return r.set
}

func (r Reason) String() string {
	if !r.set {
		return "<none>"
	}
	return r.text
}

// UserLookup resuelve un login de Twitch a su ID numérico.
type UserLookup interface {
	// LookupUserID returns ErrUserNotFound (or an empty id) for unknown or deleted accounts.
	LookupUserID(ctx context.Context, login string) (string, error)
}

// ModerationService ejecuta acciones de moderación sobre el canal del broadcaster.
type ModerationService interface {
	TimeoutUser(ctx context.Context, userID string, seconds int, reason Reason) error
	BanUser(ctx context.Context, userID string, reason Reason) error
	UnbanUser(ctx context.Context, userID string) error
	AddChannelVIP(ctx context.Context, userID string) error
	RemoveChannelVIP(ctx context.Context, userID string) error
	AddChannelModerator(ctx context.Context, userID string) error
	RemoveChannelModerator(ctx context.Context, userID string) error
}

type ModerationRecord struct {
	ID        int64
	Command   string
	Trigger   string
	Args      string
	Invoker   string
	Platform  Platform
	Success   bool
	CreatedAt time.Time
}

type ModerationLogRepository interface {
	RecordModerationAction(ctx context.Context, rec *ModerationRecord) error
	ListModerationActions(ctx context.Context, limit int) ([]*ModerationRecord, error)
}
