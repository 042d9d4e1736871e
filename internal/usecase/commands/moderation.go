package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"zhatMod/internal/domain"
)

type TimeoutArgs struct {
	Username string
	Seconds  int
	Reason   domain.Reason
}

type BanArgs struct {
	Username string
	Reason   domain.Reason
}

type UserArgs struct {
	Username string
}

// executor resuelve el login a un ID y luego corre una sola acción de moderación.
type executor struct {
	users  domain.UserLookup
	logger *zap.Logger
}

func (e executor) run(ctx context.Context, command, username string, action func(ctx context.Context, userID string) error) bool {
	userID, err := e.users.LookupUserID(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			e.logger.Warn("user lookup failed",
				zap.String("command", command),
				zap.String("username", username),
				zap.Error(err))
		}
		return false
	}
	if strings.TrimSpace(userID) == "" {
		return false
	}

	if err := action(ctx, userID); err != nil {
		e.logger.Warn("moderation action failed",
			zap.String("command", command),
			zap.String("username", username),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return true
}

type TimeoutCommand struct {
	exec       executor
	moderation domain.ModerationService
}

func NewTimeoutCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *TimeoutCommand {
	return &TimeoutCommand{
		exec:       executor{users: users, logger: orNop(logger)},
		moderation: moderation,
	}
}

func (c *TimeoutCommand) Name() string       { return "timeout" }
func (c *TimeoutCommand) Triggers() []string { return []string{"/timeout"} }
func (c *TimeoutCommand) Usage() string      { return "/timeout <usuario> <duración> [razón]" }

func (c *TimeoutCommand) Validate(args []string) (TimeoutArgs, error) {
	username, err := usernameArg(args)
	if err != nil {
		return TimeoutArgs{}, err
	}

	if len(args) < 2 {
		return TimeoutArgs{}, invalid(msgInvalidDuration)
	}
	seconds, ok := ParseDurationSeconds(args[1])
	// 0 segundos en Helix es un ban permanente.
	if !ok || seconds < 1 {
		return TimeoutArgs{}, invalid(msgInvalidDuration)
	}

	return TimeoutArgs{
		Username: username,
		Seconds:  seconds,
		Reason:   joinReason(args[2:]),
	}, nil
}

func (c *TimeoutCommand) Execute(ctx context.Context, args TimeoutArgs) bool {
	return c.exec.run(ctx, c.Name(), args.Username, func(ctx context.Context, userID string) error {
		return c.moderation.TimeoutUser(ctx, userID, args.Seconds, args.Reason)
	})
}

type BanCommand struct {
	exec       executor
	moderation domain.ModerationService
}

func NewBanCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *BanCommand {
	return &BanCommand{
		exec:       executor{users: users, logger: orNop(logger)},
		moderation: moderation,
	}
}

func (c *BanCommand) Name() string       { return "ban" }
func (c *BanCommand) Triggers() []string { return []string{"/ban"} }
func (c *BanCommand) Usage() string      { return "/ban <usuario> [razón]" }

func (c *BanCommand) Validate(args []string) (BanArgs, error) {
	username, err := usernameArg(args)
	if err != nil {
		return BanArgs{}, err
	}
	return BanArgs{
		Username: username,
		Reason:   joinReason(args[1:]),
	}, nil
}

func (c *BanCommand) Execute(ctx context.Context, args BanArgs) bool {
	return c.exec.run(ctx, c.Name(), args.Username, func(ctx context.Context, userID string) error {
		return c.moderation.BanUser(ctx, userID, args.Reason)
	})
}

// UserCommand cubre los verbos que solo reciben un usuario (unban, vip, unvip, mod, unmod).
type UserCommand struct {
	name     string
	triggers []string
	exec     executor
	action   func(ctx context.Context, userID string) error
}

func newUserCommand(name string, triggers []string, users domain.UserLookup, logger *zap.Logger, action func(ctx context.Context, userID string) error) *UserCommand {
	return &UserCommand{
		name:     name,
		triggers: triggers,
		exec:     executor{users: users, logger: orNop(logger)},
		action:   action,
	}
}

func NewUnbanCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *UserCommand {
	return newUserCommand("unban", []string{"/unban", "/untimeout"}, users, logger, moderation.UnbanUser)
}

func NewVIPCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *UserCommand {
	return newUserCommand("vip", []string{"/vip"}, users, logger, moderation.AddChannelVIP)
}

func NewUnVIPCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *UserCommand {
	return newUserCommand("unvip", []string{"/unvip"}, users, logger, moderation.RemoveChannelVIP)
}

func NewModCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *UserCommand {
	return newUserCommand("mod", []string{"/mod"}, users, logger, moderation.AddChannelModerator)
}

func NewUnmodCommand(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) *UserCommand {
	return newUserCommand("unmod", []string{"/unmod"}, users, logger, moderation.RemoveChannelModerator)
}

func (c *UserCommand) Name() string { return c.name }

func (c *UserCommand) Triggers() []string {
	return append([]string(nil), c.triggers...)
}

func (c *UserCommand) Usage() string {
	return fmt.Sprintf("%s <usuario>", c.triggers[0])
}

func (c *UserCommand) Validate(args []string) (UserArgs, error) {
	username, err := usernameArg(args)
	if err != nil {
		return UserArgs{}, err
	}
	return UserArgs{Username: username}, nil
}

func (c *UserCommand) Execute(ctx context.Context, args UserArgs) bool {
	return c.exec.run(ctx, c.name, args.Username, c.action)
}

// NewModerationCommands arma la tabla fija de comandos de moderación.
func NewModerationCommands(users domain.UserLookup, moderation domain.ModerationService, logger *zap.Logger) []Handler {
	return []Handler{
		Bind[TimeoutArgs](NewTimeoutCommand(users, moderation, logger)),
		Bind[BanArgs](NewBanCommand(users, moderation, logger)),
		Bind[UserArgs](NewUnbanCommand(users, moderation, logger)),
		Bind[UserArgs](NewVIPCommand(users, moderation, logger)),
		Bind[UserArgs](NewUnVIPCommand(users, moderation, logger)),
		Bind[UserArgs](NewModCommand(users, moderation, logger)),
		Bind[UserArgs](NewUnmodCommand(users, moderation, logger)),
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
