package commands

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"zhatMod/internal/domain"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) LookupUserID(ctx context.Context, login string) (string, error) {
	args := m.Called(ctx, login)
	return args.String(0), args.Error(1)
}

type mockModeration struct {
	mock.Mock
}

func (m *mockModeration) TimeoutUser(ctx context.Context, userID string, seconds int, reason domain.Reason) error {
	return m.Called(ctx, userID, seconds, reason).Error(0)
}

func (m *mockModeration) BanUser(ctx context.Context, userID string, reason domain.Reason) error {
	return m.Called(ctx, userID, reason).Error(0)
}

func (m *mockModeration) UnbanUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockModeration) AddChannelVIP(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockModeration) RemoveChannelVIP(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockModeration) AddChannelModerator(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockModeration) RemoveChannelModerator(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type sentMessage struct {
	Platform  domain.Platform
	ChannelID string
	Text      string
}

type fakeOut struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeOut) SendMessage(_ context.Context, platform domain.Platform, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Platform: platform, ChannelID: channelID, Text: text})
	return nil
}

type recorderFunc func(ctx context.Context, res Result)

func (f recorderFunc) RecordResult(ctx context.Context, res Result) { f(ctx, res) }
