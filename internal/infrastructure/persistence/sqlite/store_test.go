package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhatMod/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewStore("")
	require.Error(t, err)
}

func TestCredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Get(ctx, domain.PlatformTwitch, "streamer")
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.Save(ctx, &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         "streamer",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
		Metadata:     map[string]string{"login": "streamer"},
	}))

	got, err = store.Get(ctx, domain.PlatformTwitch, "streamer")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.Equal(t, "streamer", got.Metadata["login"])

	require.NoError(t, store.Save(ctx, &domain.Credential{
		Platform:    domain.PlatformTwitch,
		Role:        "streamer",
		AccessToken: "access-2",
	}))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "access-2", list[0].AccessToken)

	require.NoError(t, store.Delete(ctx, domain.PlatformTwitch, "streamer"))
	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.GetSetting(ctx, "integration.obs")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, "integration.obs", `{"port":4455}`))
	require.NoError(t, store.SetSetting(ctx, "integration.obs", `{"port":4456}`))

	value, ok, err := store.GetSetting(ctx, "integration.obs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"port":4456}`, value)
}

func TestModerationLog(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i, cmd := range []string{"ban", "vip", "timeout"} {
		rec := &domain.ModerationRecord{
			Command:   cmd,
			Trigger:   "/" + cmd,
			Args:      "alice",
			Invoker:   "streamer",
			Platform:  domain.PlatformDashboard,
			Success:   i != 1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.RecordModerationAction(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	list, err := store.ListModerationActions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "timeout", list[0].Command)
	assert.True(t, list[0].Success)
	assert.Equal(t, "vip", list[1].Command)
	assert.False(t, list[1].Success)
	assert.Equal(t, domain.PlatformDashboard, list[1].Platform)

	all, err := store.ListModerationActions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
