package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fpang/minipaint/internal/auth"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/logging"
	"github.com/fpang/minipaint/internal/planner"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/fpang/minipaint/internal/store"
	"github.com/rs/zerolog/log"
)

// clientFactory builds the chat backend selected by s.
type clientFactory func(ctx context.Context, s settings.Settings) (chat.Client, error)

// app wires the store, the inventory, the settings and the planner for one
// command or server process.
type app struct {
	cfg       *settings.Config
	store     store.Store
	inventory *inventory.Manager
	settings  *settings.Service
	newClient clientFactory
	options   []planner.Option

	mu         sync.Mutex
	planner    *planner.Planner
	plannerFor settings.Settings
}

// openApp opens the database and loads the inventory and saved settings.
func openApp(ctx context.Context, name string, c *settings.Config) (*app, error) {
	start := time.Now()
	st, err := store.Open(ctx, c.Database)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, c, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	s := a.settings.Get()
	logging.NewStartupLogger(name).
		Version(commitHash).
		Backend(s.Provider, s.LocalEndpoint).
		Models(c.Models).
		Database(c.Database).
		Feature("fallbackPlan", s.Provider == chat.BackendLocal).
		Config("colorThreshold", fmt.Sprintf("%.2f", c.ColorThreshold)).
		Config("paints", fmt.Sprintf("%d", len(a.inventory.Snapshot().Paints))).
		InitDuration(time.Since(start)).
		Log()
	return a, nil
}

func newApp(ctx context.Context, c *settings.Config, st store.Store) (*app, error) {
	inv, err := inventory.NewManager(ctx, st)
	if err != nil {
		return nil, err
	}
	svc, err := settings.NewService(ctx, c, st)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: c, store: st, inventory: inv, settings: svc}
	a.newClient = a.defaultClient
	a.options = []planner.Option{planner.WithMatcher(colormatch.NewMatcher(c.ColorThreshold))}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) defaultClient(ctx context.Context, s settings.Settings) (chat.Client, error) {
	if s.Provider == chat.BackendLocal {
		return chat.NewLocalClient(s.LocalEndpoint, a.cfg.LocalModel), nil
	}
	apiKey, err := auth.GetAPIKey(a.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return chat.NewGeminiClient(ctx, apiKey, a.cfg.Models...)
}

// currentPlanner returns a planner for the effective settings, rebuilding
// it when the settings changed since the last call.
func (a *app) currentPlanner(ctx context.Context) (*planner.Planner, error) {
	s := a.settings.Get()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.planner != nil && a.plannerFor == s {
		return a.planner, nil
	}
	client, err := a.newClient(ctx, s)
	if err != nil {
		return nil, err
	}
	a.planner = planner.New(client, a.options...)
	a.plannerFor = s
	log.Debug().Str("provider", s.Provider).Str("endpoint", s.LocalEndpoint).Msg("Planner ready")
	return a.planner, nil
}

// lookupHex asks the model for a paint colour. When the lookup fails the
// colour keywords of the name are used instead, so adding a paint never
// blocks on the model.
func (a *app) lookupHex(ctx context.Context, brand, name string) string {
	p, err := a.currentPlanner(ctx)
	if err == nil {
		var hex string
		if hex, err = p.GetHexForPaint(ctx, brand, name); err == nil {
			return hex
		}
	}
	log.Warn().Err(err).Str("brand", brand).Str("paint", name).Msg("Hex lookup failed, using colour keywords")
	return colormatch.HexForNameOrNeutral(name)
}

// addPaint normalizes a user-supplied hex, looking it up when empty.
func (a *app) addPaint(ctx context.Context, p inventory.Paint) (inventory.Paint, error) {
	p.Hex = strings.TrimSpace(p.Hex)
	switch {
	case p.Hex == "":
		p.Hex = a.lookupHex(ctx, p.Brand, p.Name)
	case !strings.HasPrefix(p.Hex, "#"):
		p.Hex = "#" + p.Hex
	}
	hex, err := colormatch.NormalizeHex(p.Hex)
	if err != nil {
		return inventory.Paint{}, fmt.Errorf("%w: %w", inventory.ErrInvalid, err)
	}
	p.Hex = hex
	return a.inventory.AddPaint(ctx, p)
}
