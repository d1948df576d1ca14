// Package prefs reads and writes user preferences with safe fallbacks.
// Strings are stored raw and everything else JSON encoded, matching what the
// browser front end keeps under the same keys.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Well-known preference keys.
const (
	KeyLastModel     = "pith-ai-last-model"
	KeyNotifications = "pith-notifications"
	KeyAutosave      = "pith-autosave"
	KeyAnalytics     = "pith-analytics"
)

// Backend is the persistence the preferences are stored in.
type Backend interface {
	GetPref(ctx context.Context, key string) (string, bool, error)
	SetPref(ctx context.Context, key, value string) error
}

// Settings are the toggles shown on the settings page.
type Settings struct {
	Notifications bool `json:"notifications"`
	Autosave      bool `json:"autosave"`
	Analytics     bool `json:"analytics"`
}

// DefaultSettings returns the toggles used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{Notifications: true, Autosave: true, Analytics: false}
}

// Store reads preferences with fallback to defaults and writes through on
// every change. A nil backend behaves like unavailable storage.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New returns a Store over backend.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{backend: backend, logger: logger}
}

// String returns the string stored under key, or def.
func (s *Store) String(ctx context.Context, key, def string) string {
	raw, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	var v string
	if strings.HasPrefix(raw, `"`) && json.Unmarshal([]byte(raw), &v) == nil {
		return v
	}
	return raw
}

// Bool returns the boolean stored under key, or def.
func (s *Store) Bool(ctx context.Context, key string, def bool) bool {
	var v bool
	if !s.load(ctx, key, &v) {
		return def
	}
	return v
}

// Set stores v under key. Strings are written as-is, other values as JSON.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	if s.backend == nil {
		return fmt.Errorf("preference storage unavailable")
	}
	if str, ok := v.(string); ok {
		return s.backend.SetPref(ctx, key, str)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode preference %s: %w", key, err)
	}
	return s.backend.SetPref(ctx, key, string(data))
}

// Settings returns the settings toggles.
func (s *Store) Settings(ctx context.Context) Settings {
	def := DefaultSettings()
	return Settings{
		Notifications: s.Bool(ctx, KeyNotifications, def.Notifications),
		Autosave:      s.Bool(ctx, KeyAutosave, def.Autosave),
		Analytics:     s.Bool(ctx, KeyAnalytics, def.Analytics),
	}
}

// SaveSettings writes every toggle.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	for _, kv := range []struct {
		key string
		val bool
	}{
		{KeyNotifications, st.Notifications},
		{KeyAutosave, st.Autosave},
		{KeyAnalytics, st.Analytics},
	} {
		if err := s.Set(ctx, kv.key, kv.val); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the well-known keys, sorted.
func Keys() []string {
	keys := []string{KeyLastModel, KeyNotifications, KeyAutosave, KeyAnalytics}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is one of the well-known keys.
func IsKnown(key string) bool {
	switch key {
	case KeyLastModel, KeyNotifications, KeyAutosave, KeyAnalytics:
		return true
	}
	return false
}

func (s *Store) raw(ctx context.Context, key string) (string, bool) {
	if s.backend == nil {
		return "", false
	}
	raw, ok, err := s.backend.GetPref(ctx, key)
	if err != nil {
		s.logger.Warn("preference storage unavailable, using default", "key", key, "error", err)
		return "", false
	}
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

func (s *Store) load(ctx context.Context, key string, dst any) bool {
	raw, ok := s.raw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("ignoring malformed preference", "key", key, "error", err)
		return false
	}
	return true
}
