package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fpang/minipaint/internal/chat"
	"github.com/rs/zerolog/log"
)

// StoreKey is the document key the AI settings are persisted under.
const StoreKey = "ai-settings"

// ErrInvalid is returned by Update for incomplete or unknown settings.
var ErrInvalid = errors.New("invalid settings")

// Settings selects the AI backend.
type Settings struct {
	Provider      string `json:"provider"`
	LocalEndpoint string `json:"localEndpoint"`
}

// Validate requires a known provider and a non-empty endpoint.
func (s Settings) Validate() error {
	switch {
	case s.Provider != chat.BackendGemini && s.Provider != chat.BackendLocal:
		return fmt.Errorf("%w: provider %q", ErrInvalid, s.Provider)
	case strings.TrimSpace(s.LocalEndpoint) == "":
		return fmt.Errorf("%w: localEndpoint is required", ErrInvalid)
	}
	return nil
}

// Persister loads and saves the settings document.
type Persister interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, key string, value any) error
}

// Service owns the effective settings.
type Service struct {
	mu      sync.RWMutex
	cfg     *Config
	store   Persister
	current Settings
}

// NewService loads saved settings. Saved settings that fail validation are
// ignored in favour of the configuration defaults. Fields pinned by the
// environment or flags always come from cfg.
func NewService(ctx context.Context, cfg *Config, store Persister) (*Service, error) {
	s := &Service{cfg: cfg, store: store, current: cfg.Defaults()}
	if store == nil {
		return s, nil
	}

	var saved Settings
	found, err := store.Get(ctx, StoreKey, &saved)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if found {
		if err := saved.Validate(); err != nil {
			log.Warn().Err(err).Msg("Saved settings invalid, using defaults")
		} else {
			s.current = s.pin(saved)
		}
	}
	return s, nil
}

func (s *Service) pin(in Settings) Settings {
	if s.cfg.pinProvider {
		in.Provider = s.cfg.Provider
	}
	if s.cfg.pinEndpoint {
		in.LocalEndpoint = s.cfg.LocalEndpoint
	}
	return in
}

// Get returns the effective settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Config returns the process configuration.
func (s *Service) Config() *Config {
	return s.cfg
}

// Update validates and persists in, then makes it effective.
func (s *Service) Update(ctx context.Context, in Settings) (Settings, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.LocalEndpoint = strings.TrimSpace(in.LocalEndpoint)
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Put(ctx, StoreKey, in); err != nil {
			return Settings{}, fmt.Errorf("save settings: %w", err)
		}
	}
	s.current = s.pin(in)
	log.Info().Str("provider", s.current.Provider).Str("endpoint", s.current.LocalEndpoint).Msg("AI settings updated")
	return s.current, nil
}
