package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zhatMod/internal/domain"
)

func newTestRouter(t *testing.T, users *mockUsers, moderation *mockModeration, recorders ...ResultRecorder) *Router {
	t.Helper()
	r, err := NewRouter(RouterConfig{
		Handlers:  NewModerationCommands(users, moderation, nil),
		Recorders: recorders,
	})
	require.NoError(t, err)
	return r
}

func modMessage(text string) domain.Message {
	return domain.Message{
		Platform:        domain.PlatformTwitch,
		ChannelID:       "#streamer",
		Username:        "streamer",
		Text:            text,
		IsPlatformOwner: true,
		IsPlatformAdmin: true,
	}
}

func TestNewRouterRejectsDuplicateTriggers(t *testing.T) {
	users, moderation := &mockUsers{}, &mockModeration{}
	handlers := NewModerationCommands(users, moderation, nil)
	handlers = append(handlers, Bind[UserArgs](NewUnbanCommand(users, moderation, nil)))

	_, err := NewRouter(RouterConfig{Handlers: handlers})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/unban")
}

func TestRouterLookupIsCaseSensitive(t *testing.T) {
	r := newTestRouter(t, &mockUsers{}, &mockModeration{})

	_, ok := r.Lookup("/ban")
	assert.True(t, ok)
	_, ok = r.Lookup("/BAN")
	assert.False(t, ok)
	_, ok = r.Lookup("ban")
	assert.False(t, ok)
}

func TestRouterAliasesShareHandler(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}
	users.On("LookupUserID", ctx, "carol").Return("7", nil)
	moderation.On("UnbanUser", ctx, "7").Return(nil).Twice()

	r := newTestRouter(t, users, moderation)

	unban, ok := r.Lookup("/unban")
	require.True(t, ok)
	untimeout, ok := r.Lookup("/untimeout")
	require.True(t, ok)
	assert.Equal(t, unban, untimeout)

	cmd := NewUnbanCommand(users, moderation, nil)
	a, err := cmd.Validate([]string{"carol"})
	require.NoError(t, err)
	b, err := cmd.Validate([]string{"Carol"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	out := &fakeOut{}
	require.NoError(t, r.Handle(ctx, modMessage("/unban carol"), out))
	require.NoError(t, r.Handle(ctx, modMessage("/untimeout carol"), out))
	moderation.AssertExpectations(t)
}

func TestRouterTimeoutEndToEnd(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}
	users.On("LookupUserID", ctx, "alice").Return("123", nil)
	moderation.On("TimeoutUser", ctx, "123", 300, domain.ReasonOf("spamming")).Return(nil).Once()

	var results []Result
	rec := recorderFunc(func(_ context.Context, res Result) { results = append(results, res) })

	out := &fakeOut{}
	r := newTestRouter(t, users, moderation, rec)
	require.NoError(t, r.Handle(ctx, modMessage("/timeout alice 5m spamming"), out))

	moderation.AssertExpectations(t)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeOK, results[0].Outcome)
	assert.Equal(t, "timeout", results[0].Command)
	assert.Equal(t, []string{"alice", "5m", "spamming"}, results[0].Args)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "#streamer", out.sent[0].ChannelID)
	assert.Contains(t, out.sent[0].Text, "/timeout")
}

func TestRouterRepliesWithValidationMessage(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}

	var results []Result
	rec := recorderFunc(func(_ context.Context, res Result) { results = append(results, res) })

	out := &fakeOut{}
	r := newTestRouter(t, users, moderation, rec)
	require.NoError(t, r.Handle(ctx, modMessage("/timeout alice soon"), out))

	require.Len(t, out.sent, 1)
	assert.Equal(t, "Please provide a valid duration", out.sent[0].Text)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeInvalid, results[0].Outcome)
	users.AssertNotCalled(t, "LookupUserID", mock.Anything, mock.Anything)
}

func TestRouterReportsFailure(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}
	users.On("LookupUserID", ctx, "bob").Return("", domain.ErrUserNotFound)

	out := &fakeOut{}
	r := newTestRouter(t, users, moderation)
	require.NoError(t, r.Handle(ctx, modMessage("/vip bob"), out))

	require.Len(t, out.sent, 1)
	assert.Contains(t, out.sent[0].Text, "failed")
	moderation.AssertNotCalled(t, "AddChannelVIP", mock.Anything, mock.Anything)
}

func TestRouterIgnoresOtherMessages(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t, &mockUsers{}, &mockModeration{})
	out := &fakeOut{}

	for _, text := range []string{"", "   ", "hola chat", "/me waves", "/BAN alice", "!ban alice"} {
		require.NoError(t, r.Handle(ctx, modMessage(text), out))
	}
	assert.Empty(t, out.sent)
}

func TestRouterRequiresModerator(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}
	r := newTestRouter(t, users, moderation)
	out := &fakeOut{}

	msg := modMessage("/ban alice")
	msg.IsPlatformOwner = false
	msg.IsPlatformAdmin = false
	require.NoError(t, r.Handle(ctx, msg, out))

	assert.Empty(t, out.sent)
	users.AssertNotCalled(t, "LookupUserID", mock.Anything, mock.Anything)
}

func TestRouterAcceptsDashboardMessages(t *testing.T) {
	ctx := context.Background()
	users, moderation := &mockUsers{}, &mockModeration{}
	users.On("LookupUserID", ctx, "alice").Return("1", nil)
	moderation.On("BanUser", ctx, "1", domain.NoReason()).Return(nil).Once()

	r := newTestRouter(t, users, moderation)
	out := &fakeOut{}
	msg := domain.Message{Platform: domain.PlatformDashboard, Username: "web-user", Text: "/ban alice"}
	require.NoError(t, r.Handle(ctx, msg, out))

	moderation.AssertExpectations(t)
	require.Len(t, out.sent, 1)
	assert.Equal(t, domain.PlatformDashboard, out.sent[0].Platform)
}

func TestCatalogListsEveryCommand(t *testing.T) {
	r := newTestRouter(t, &mockUsers{}, &mockModeration{})

	catalog := r.Catalog()
	require.Len(t, catalog, 7)

	names := make([]string, 0, len(catalog))
	for _, d := range catalog {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Usage)
	}
	assert.Equal(t, []string{"timeout", "ban", "unban", "vip", "unvip", "mod", "unmod"}, names)
	assert.Equal(t, []string{"/unban", "/untimeout"}, catalog[2].Triggers)
}
