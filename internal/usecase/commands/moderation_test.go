package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zhatMod/internal/domain"
)

func TestUsernameRequiredForEveryCommand(t *testing.T) {
	users := &mockUsers{}
	moderation := &mockModeration{}

	for _, h := range NewModerationCommands(users, moderation, nil) {
		for _, args := range [][]string{nil, {}, {""}, {"@"}} {
			ok, err := h.Handle(context.Background(), args)
			assert.False(t, ok)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "command %s", h.Name())
			assert.Equal(t, "Please provide a username", verr.Message)
		}
	}

	users.AssertNotCalled(t, "LookupUserID", mock.Anything, mock.Anything)
	assert.Empty(t, moderation.Calls)
}

func TestTimeoutValidate(t *testing.T) {
	cmd := NewTimeoutCommand(&mockUsers{}, &mockModeration{}, nil)

	got, err := cmd.Validate([]string{"Alice", "5m", "spamming"})
	require.NoError(t, err)
	assert.Equal(t, TimeoutArgs{Username: "alice", Seconds: 300, Reason: domain.ReasonOf("spamming")}, got)

	got, err = cmd.Validate([]string{"alice", "10"})
	require.NoError(t, err)
	assert.Equal(t, 10, got.Seconds)
	assert.False(t, got.Reason.IsSet())

	for _, args := range [][]string{{"alice"}, {"alice", "soon"}, {"alice", "-10"}, {"alice", "0"}, {"alice", "500ms"}, {"alice", "0s"}} {
		_, err := cmd.Validate(args)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Please provide a valid duration", verr.Message)
	}
}

func TestTimeoutZeroNeverReachesModeration(t *testing.T) {
	users := &mockUsers{}
	moderation := &mockModeration{}

	h := Bind[TimeoutArgs](NewTimeoutCommand(users, moderation, nil))
	for _, d := range []string{"0", "500ms"} {
		ok, err := h.Handle(context.Background(), []string{"alice", d})
		assert.False(t, ok)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Please provide a valid duration", verr.Message)
	}

	users.AssertNotCalled(t, "LookupUserID", mock.Anything, mock.Anything)
	assert.Empty(t, moderation.Calls)
}

func TestBanValidateReason(t *testing.T) {
	cmd := NewBanCommand(&mockUsers{}, &mockModeration{}, nil)

	got, err := cmd.Validate([]string{"alice", "rude", "message", "here"})
	require.NoError(t, err)
	reason, ok := got.Reason.Get()
	assert.True(t, ok)
	assert.Equal(t, "rude message here", reason)

	got, err = cmd.Validate([]string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.NoReason(), got.Reason)
}

func TestTimeoutEndToEnd(t *testing.T) {
	ctx := context.Background()
	users := &mockUsers{}
	moderation := &mockModeration{}
	users.On("LookupUserID", ctx, "alice").Return("123", nil).Once()
	moderation.On("TimeoutUser", ctx, "123", 300, domain.ReasonOf("spamming")).Return(nil).Once()

	h := Bind[TimeoutArgs](NewTimeoutCommand(users, moderation, nil))
	ok, err := h.Handle(ctx, []string{"alice", "5m", "spamming"})

	require.NoError(t, err)
	assert.True(t, ok)
	users.AssertExpectations(t)
	moderation.AssertExpectations(t)
}

func TestBanPassesAbsentReasonThrough(t *testing.T) {
	ctx := context.Background()
	users := &mockUsers{}
	moderation := &mockModeration{}
	users.On("LookupUserID", ctx, "alice").Return("123", nil)
	moderation.On("BanUser", ctx, "123", domain.NoReason()).Return(nil).Once()

	cmd := NewBanCommand(users, moderation, nil)
	args, err := cmd.Validate([]string{"alice"})
	require.NoError(t, err)
	assert.True(t, cmd.Execute(ctx, args))
	moderation.AssertExpectations(t)
}

func TestActionFailurePropagatesAsFalse(t *testing.T) {
	ctx := context.Background()
	users := &mockUsers{}
	moderation := &mockModeration{}
	users.On("LookupUserID", ctx, "alice").Return("123", nil)
	moderation.On("BanUser", ctx, "123", domain.ReasonOf("x")).Return(errors.New("helix: 403")).Once()

	cmd := NewBanCommand(users, moderation, nil)
	assert.False(t, cmd.Execute(ctx, BanArgs{Username: "alice", Reason: domain.ReasonOf("x")}))
	moderation.AssertExpectations(t)
}

func TestExecutorShortCircuitsOnUnknownUser(t *testing.T) {
	ctx := context.Background()

	lookups := []struct {
		name string
		id   string
		err  error
	}{
		{"not found", "", domain.ErrUserNotFound},
		{"empty id", "", nil},
		{"lookup error", "", errors.New("network down")},
	}

	for _, lk := range lookups {
		t.Run(lk.name, func(t *testing.T) {
			users := &mockUsers{}
			moderation := &mockModeration{}
			users.On("LookupUserID", ctx, mock.Anything).Return(lk.id, lk.err)

			inputs := map[string][]string{
				"timeout": {"bob", "10"},
				"ban":     {"bob"},
				"unban":   {"bob"},
				"vip":     {"bob"},
				"unvip":   {"bob"},
				"mod":     {"bob"},
				"unmod":   {"bob"},
			}

			for _, h := range NewModerationCommands(users, moderation, nil) {
				ok, err := h.Handle(ctx, inputs[h.Name()])
				require.NoError(t, err, h.Name())
				assert.False(t, ok, h.Name())
			}

			assert.Empty(t, moderation.Calls)
		})
	}
}

func TestUserCommandsCallTheirAction(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
	}{
		{"unban", "UnbanUser"},
		{"vip", "AddChannelVIP"},
		{"unvip", "RemoveChannelVIP"},
		{"mod", "AddChannelModerator"},
		{"unmod", "RemoveChannelModerator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUsers{}
			moderation := &mockModeration{}
			users.On("LookupUserID", ctx, "bob").Return("42", nil)
			moderation.On(tt.method, ctx, "42").Return(nil).Once()

			var handler Handler
			for _, h := range NewModerationCommands(users, moderation, nil) {
				if h.Name() == tt.name {
					handler = h
				}
			}
			require.NotNil(t, handler)

			ok, err := handler.Handle(ctx, []string{"@Bob"})
			require.NoError(t, err)
			assert.True(t, ok)
			moderation.AssertExpectations(t)
			assert.Len(t, moderation.Calls, 1)
		})
	}
}

func TestVIPWithUnknownUser(t *testing.T) {
	ctx := context.Background()
	users := &mockUsers{}
	moderation := &mockModeration{}
	users.On("LookupUserID", ctx, "bob").Return("", domain.ErrUserNotFound)

	cmd := NewVIPCommand(users, moderation, nil)
	args, err := cmd.Validate([]string{"bob"})
	require.NoError(t, err)

	assert.False(t, cmd.Execute(ctx, args))
	moderation.AssertNotCalled(t, "AddChannelVIP", mock.Anything, mock.Anything)
}
