package config

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives the full configuration after every successful
// Load/Save/Reset. Notification is synchronous and in registration order.
type Listener func(AppConfig)

// StoreConfig holds configuration for creating a Store.
type StoreConfig struct {
	// Path is the JSON file the store owns. Parent directories are created
	// on first save.
	Path string

	// Defaults is the configuration used when nothing is persisted yet.
	Defaults AppConfig

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store is the single owner of the persisted terminal configuration.
// All reads return copies; mutations persist and then fan out to
// subscribers.
type Store struct {
	path     string
	defaults AppConfig
	logger   zerolog.Logger

	mu        sync.Mutex
	config    AppConfig
	loaded    bool
	listeners []*subscription
}

type subscription struct {
	fn      Listener
	removed bool
}

// NewStore creates a new Store. Call Load before first use.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		path:     cfg.Path,
		defaults: cfg.Defaults,
		logger:   cfg.Logger.With().Str("component", "config").Logger(),
		config:   cfg.Defaults,
	}
}

// Load populates the in-memory configuration from disk, merging the
// persisted document over the defaults. A missing or unreadable file is
// not an error: the defaults are used so the agent can always start.
// Listeners are notified after the load completes.
func (s *Store) Load(_ context.Context) AppConfig {
	s.mu.Lock()

	cfg := s.defaults
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			s.logger.Error().Err(jsonErr).Str("path", s.path).
				Msg("persisted config is corrupt, falling back to defaults")
			cfg = s.defaults
		}
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info().Str("path", s.path).Msg("no persisted config, using defaults")
	default:
		s.logger.Error().Err(err).Str("path", s.path).
			Msg("failed to read persisted config, falling back to defaults")
	}

	s.config = cfg
	s.loaded = true

	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.notify(cfg, listeners)
	return cfg
}

// Get returns a copy of the current configuration.
func (s *Store) Get() AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.logger.Warn().Msg("config read before load, returning defaults")
		return s.defaults
	}
	return s.config
}

// Save merges the patch into the current configuration, persists the
// result, and notifies subscribers. The persisted document is only
// replaced when the write succeeds.
func (s *Store) Save(_ context.Context, patch Patch) (AppConfig, error) {
	s.mu.Lock()

	cfg := s.config
	patch.apply(&cfg)

	if err := s.persist(cfg); err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to persist config")
		return AppConfig{}, err
	}

	s.config = cfg
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info().
		Str("api_base_url", cfg.APIBaseURL).
		Bool("is_configured", cfg.IsConfigured).
		Str("boutique_id", cfg.SelectedBoutiqueID).
		Msg("config saved")

	s.notify(cfg, listeners)
	return cfg, nil
}

// Reset restores the defaults, removes the persisted document, and
// notifies subscribers.
func (s *Store) Reset(_ context.Context) (AppConfig, error) {
	s.mu.Lock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to remove persisted config")
		return AppConfig{}, err
	}

	cfg := s.defaults
	s.config = cfg
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info().Msg("config reset to defaults")

	s.notify(cfg, listeners)
	return cfg, nil
}

// Subscribe registers a listener invoked with the full configuration after
// every successful Load/Save/Reset. The returned function removes the
// listener. A listener registered while a notification round is running
// first fires on the next mutation.
func (s *Store) Subscribe(fn Listener) func() {
	sub := &subscription{fn: fn}

	s.mu.Lock()
	s.listeners = append(s.listeners, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.removed = true
		for i, candidate := range s.listeners {
			if candidate == sub {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				break
			}
		}
	}
}

// snapshotListeners copies the listener list so a listener that
// subscribes or unsubscribes during notification cannot disturb the
// round in flight. Caller must hold s.mu.
func (s *Store) snapshotListeners() []*subscription {
	out := make([]*subscription, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// notify invokes the snapshot in registration order. A panicking listener
// is logged and skipped; the remaining listeners still run.
func (s *Store) notify(cfg AppConfig, listeners []*subscription) {
	for _, sub := range listeners {
		s.mu.Lock()
		removed := sub.removed
		s.mu.Unlock()
		if removed {
			continue
		}
		s.invoke(sub.fn, cfg)
	}
}

func (s *Store) invoke(fn Listener, cfg AppConfig) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("config listener panicked")
		}
	}()
	fn(cfg)
}

// persist writes the configuration atomically: marshal, write to a temp
// file next to the target, then rename over it.
func (s *Store) persist(cfg AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
