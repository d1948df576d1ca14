package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/pith/internal/state"
	"github.com/leapstack-labs/pith/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenBackend struct{}

func (brokenBackend) GetPref(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk I/O error")
}

func (brokenBackend) SetPref(context.Context, string, string) error {
	return errors.New("disk I/O error")
}

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := state.OpenAndMigrate(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, testutil.NewTestLogger(t))
}

func TestStore_DefaultsWhenAbsent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.Equal(t, DefaultSettings(), s.Settings(ctx))
	assert.Equal(t, "fallback", s.String(ctx, KeyLastModel, "fallback"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyLastModel, "gemma-2-2b-it-q4f32_1-MLC"))
	require.NoError(t, s.SaveSettings(ctx, Settings{Notifications: false, Autosave: true, Analytics: true}))

	assert.Equal(t, "gemma-2-2b-it-q4f32_1-MLC", s.String(ctx, KeyLastModel, ""))
	assert.Equal(t, Settings{Notifications: false, Autosave: true, Analytics: true}, s.Settings(ctx))
}

func TestStore_UnavailableStorage(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
	}{
		{"nil backend", nil},
		{"failing backend", brokenBackend{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.backend, testutil.NewTestLogger(t))
			ctx := context.Background()

			assert.Equal(t, DefaultSettings(), s.Settings(ctx))
			assert.True(t, s.Bool(ctx, KeyAutosave, true))
			assert.Error(t, s.Set(ctx, KeyAutosave, false))
		})
	}
}

func TestStore_MalformedValueFallsBack(t *testing.T) {
	st, err := state.OpenAndMigrate(":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	require.NoError(t, st.SetPref(ctx, KeyNotifications, "not-json"))

	s := New(st, testutil.NewTestLogger(t))
	assert.True(t, s.Bool(ctx, KeyNotifications, true))
}

func TestKeys(t *testing.T) {
	assert.Len(t, Keys(), 4)
	assert.True(t, IsKnown(KeyAnalytics))
	assert.False(t, IsKnown("pith-theme"))
}
