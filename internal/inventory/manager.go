package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StoreKey is the document key the catalog is persisted under.
const StoreKey = "miniature-inventory"

// ErrNotFound is returned for an unknown item id.
var ErrNotFound = errors.New("inventory item not found")

// ErrDuplicate is returned when an add would create a second item with the
// same identity (see the dedupe rules on Manager).
var ErrDuplicate = errors.New("inventory item already exists")

// ErrInvalid is returned for items missing required fields or carrying a
// value outside the enumerations.
var ErrInvalid = errors.New("invalid inventory item")

// Persister loads and saves the catalog document. store.SQLiteStore
// satisfies it.
type Persister interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, key string, value any) error
}

// Manager owns the catalog. Identity is compared trimmed and
// case-insensitively:
//
//	paint   brand + name
//	thinner brand + composition
//	varnish brand + finish
//	wash    brand + composition
//
// Every mutation is persisted before it returns. A nil Persister keeps the
// catalog in memory only.
type Manager struct {
	mu    sync.RWMutex
	inv   Inventory
	store Persister
}

// NewManager loads the catalog from store (empty when nothing is saved).
func NewManager(ctx context.Context, store Persister) (*Manager, error) {
	m := &Manager{store: store, inv: Inventory{}.Clone()}
	if store == nil {
		return m, nil
	}
	var saved Inventory
	found, err := store.Get(ctx, StoreKey, &saved)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	if found {
		m.inv = saved.Clone()
		m.assignMissingIDs()
	}
	log.Debug().Int("items", m.inv.Len()).Bool("found", found).Msg("Inventory loaded")
	return m, nil
}

// Snapshot returns a deep copy safe to hand to a generation.
func (m *Manager) Snapshot() Inventory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inv.Clone()
}

func key(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "\x00")
}

func validPaintType(t PaintType) bool {
	switch t {
	case PaintInk, PaintAcrylic, PaintVarnish, PaintOther:
		return true
	}
	return false
}

func validComposition(c string) bool {
	return c == CompositionOriginal || c == CompositionCaseiro
}

func validFinish(f string) bool {
	switch f {
	case FinishBrilhante, FinishAcetinado, FinishFosco, FinishVitralBrilhante:
		return true
	}
	return false
}

func (m *Manager) assignMissingIDs() {
	for i := range m.inv.Paints {
		if m.inv.Paints[i].ID == "" {
			m.inv.Paints[i].ID = uuid.NewString()
		}
	}
	for i := range m.inv.Thinners {
		if m.inv.Thinners[i].ID == "" {
			m.inv.Thinners[i].ID = uuid.NewString()
		}
	}
	for i := range m.inv.Varnishes {
		if m.inv.Varnishes[i].ID == "" {
			m.inv.Varnishes[i].ID = uuid.NewString()
		}
	}
	for i := range m.inv.Washes {
		if m.inv.Washes[i].ID == "" {
			m.inv.Washes[i].ID = uuid.NewString()
		}
	}
}

// commit persists next and swaps it in. Callers hold the write lock.
func (m *Manager) commit(ctx context.Context, next Inventory) error {
	if m.store != nil {
		if err := m.store.Put(ctx, StoreKey, next); err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
	}
	m.inv = next
	return nil
}

// AddPaint validates p, assigns an id and adds it. Brand and name are
// required; Hex must already be normalized by the caller.
func (m *Manager) AddPaint(ctx context.Context, p Paint) (Paint, error) {
	p.Brand, p.Name = strings.TrimSpace(p.Brand), strings.TrimSpace(p.Name)
	if p.Brand == "" || p.Name == "" {
		return Paint{}, fmt.Errorf("%w: paint needs brand and name", ErrInvalid)
	}
	if p.Type == "" {
		p.Type = PaintAcrylic
	}
	if !validPaintType(p.Type) {
		return Paint{}, fmt.Errorf("%w: paint type %q", ErrInvalid, p.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(p.Brand, p.Name)
	for _, x := range m.inv.Paints {
		if key(x.Brand, x.Name) == k {
			return Paint{}, fmt.Errorf("%w: %s %s", ErrDuplicate, p.Brand, p.Name)
		}
	}
	p.ID = uuid.NewString()
	next := m.inv.Clone()
	next.Paints = append(next.Paints, p)
	if err := m.commit(ctx, next); err != nil {
		return Paint{}, err
	}
	return p, nil
}

// UpdatePaint replaces the paint with p.ID. Renaming onto another paint's
// identity is a duplicate.
func (m *Manager) UpdatePaint(ctx context.Context, p Paint) error {
	p.Brand, p.Name = strings.TrimSpace(p.Brand), strings.TrimSpace(p.Name)
	if p.Brand == "" || p.Name == "" || !validPaintType(p.Type) {
		return fmt.Errorf("%w: paint %s", ErrInvalid, p.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	k := key(p.Brand, p.Name)
	for i, x := range m.inv.Paints {
		switch {
		case x.ID == p.ID:
			idx = i
		case key(x.Brand, x.Name) == k:
			return fmt.Errorf("%w: %s %s", ErrDuplicate, p.Brand, p.Name)
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	next := m.inv.Clone()
	next.Paints[idx] = p
	return m.commit(ctx, next)
}

// RemovePaint deletes the paint with id.
func (m *Manager) RemovePaint(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.inv.Paints {
		if x.ID == id {
			next := m.inv.Clone()
			next.Paints = append(next.Paints[:i], next.Paints[i+1:]...)
			return m.commit(ctx, next)
		}
	}
	return ErrNotFound
}

func (m *Manager) AddThinner(ctx context.Context, t Thinner) (Thinner, error) {
	t.Brand = strings.TrimSpace(t.Brand)
	if t.Brand == "" || !validComposition(t.Composition) {
		return Thinner{}, fmt.Errorf("%w: thinner %q %q", ErrInvalid, t.Brand, t.Composition)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(t.Brand, t.Composition)
	for _, x := range m.inv.Thinners {
		if key(x.Brand, x.Composition) == k {
			return Thinner{}, fmt.Errorf("%w: %s %s", ErrDuplicate, t.Brand, t.Composition)
		}
	}
	t.ID = uuid.NewString()
	next := m.inv.Clone()
	next.Thinners = append(next.Thinners, t)
	if err := m.commit(ctx, next); err != nil {
		return Thinner{}, err
	}
	return t, nil
}

func (m *Manager) RemoveThinner(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.inv.Thinners {
		if x.ID == id {
			next := m.inv.Clone()
			next.Thinners = append(next.Thinners[:i], next.Thinners[i+1:]...)
			return m.commit(ctx, next)
		}
	}
	return ErrNotFound
}

func (m *Manager) AddVarnish(ctx context.Context, v Varnish) (Varnish, error) {
	v.Brand = strings.TrimSpace(v.Brand)
	if v.Brand == "" || !validFinish(v.Finish) {
		return Varnish{}, fmt.Errorf("%w: varnish %q %q", ErrInvalid, v.Brand, v.Finish)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(v.Brand, v.Finish)
	for _, x := range m.inv.Varnishes {
		if key(x.Brand, x.Finish) == k {
			return Varnish{}, fmt.Errorf("%w: %s %s", ErrDuplicate, v.Brand, v.Finish)
		}
	}
	v.ID = uuid.NewString()
	next := m.inv.Clone()
	next.Varnishes = append(next.Varnishes, v)
	if err := m.commit(ctx, next); err != nil {
		return Varnish{}, err
	}
	return v, nil
}

func (m *Manager) RemoveVarnish(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.inv.Varnishes {
		if x.ID == id {
			next := m.inv.Clone()
			next.Varnishes = append(next.Varnishes[:i], next.Varnishes[i+1:]...)
			return m.commit(ctx, next)
		}
	}
	return ErrNotFound
}

func (m *Manager) AddWash(ctx context.Context, w Wash) (Wash, error) {
	w.Brand, w.Composition = strings.TrimSpace(w.Brand), strings.TrimSpace(w.Composition)
	if w.Brand == "" || w.Composition == "" {
		return Wash{}, fmt.Errorf("%w: wash needs brand and composition", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(w.Brand, w.Composition)
	for _, x := range m.inv.Washes {
		if key(x.Brand, x.Composition) == k {
			return Wash{}, fmt.Errorf("%w: %s %s", ErrDuplicate, w.Brand, w.Composition)
		}
	}
	w.ID = uuid.NewString()
	next := m.inv.Clone()
	next.Washes = append(next.Washes, w)
	if err := m.commit(ctx, next); err != nil {
		return Wash{}, err
	}
	return w, nil
}

func (m *Manager) RemoveWash(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.inv.Washes {
		if x.ID == id {
			next := m.inv.Clone()
			next.Washes = append(next.Washes[:i], next.Washes[i+1:]...)
			return m.commit(ctx, next)
		}
	}
	return ErrNotFound
}

// ImportResult counts what Import added and skipped.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Import merges a parsed catalog (typically from a bulk import). Items that
// duplicate an existing one, or an earlier item of the same import, are
// skipped rather than failing the import. Invalid items are skipped too.
// The merged catalog is persisted once.
func (m *Manager) Import(ctx context.Context, in Inventory) (ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res ImportResult
	next := m.inv.Clone()
	seen := map[string]bool{}
	for _, p := range next.Paints {
		seen["p"+key(p.Brand, p.Name)] = true
	}
	for _, t := range next.Thinners {
		seen["t"+key(t.Brand, t.Composition)] = true
	}
	for _, v := range next.Varnishes {
		seen["v"+key(v.Brand, v.Finish)] = true
	}
	for _, w := range next.Washes {
		seen["w"+key(w.Brand, w.Composition)] = true
	}
	admit := func(k string, ok bool) bool {
		if !ok || seen[k] {
			res.Skipped++
			return false
		}
		seen[k] = true
		res.Added++
		return true
	}

	for _, p := range in.Paints {
		p.Brand, p.Name = strings.TrimSpace(p.Brand), strings.TrimSpace(p.Name)
		if admit("p"+key(p.Brand, p.Name), p.Brand != "" && p.Name != "" && validPaintType(p.Type)) {
			p.ID = uuid.NewString()
			next.Paints = append(next.Paints, p)
		}
	}
	for _, t := range in.Thinners {
		t.Brand = strings.TrimSpace(t.Brand)
		if admit("t"+key(t.Brand, t.Composition), t.Brand != "" && validComposition(t.Composition)) {
			t.ID = uuid.NewString()
			next.Thinners = append(next.Thinners, t)
		}
	}
	for _, v := range in.Varnishes {
		v.Brand = strings.TrimSpace(v.Brand)
		if admit("v"+key(v.Brand, v.Finish), v.Brand != "" && validFinish(v.Finish)) {
			v.ID = uuid.NewString()
			next.Varnishes = append(next.Varnishes, v)
		}
	}
	for _, w := range in.Washes {
		w.Brand, w.Composition = strings.TrimSpace(w.Brand), strings.TrimSpace(w.Composition)
		if admit("w"+key(w.Brand, w.Composition), w.Brand != "" && w.Composition != "") {
			w.ID = uuid.NewString()
			next.Washes = append(next.Washes, w)
		}
	}

	if res.Added == 0 {
		return res, nil
	}
	if err := m.commit(ctx, next); err != nil {
		return ImportResult{}, err
	}
	log.Info().Int("added", res.Added).Int("skipped", res.Skipped).Msg("Inventory imported")
	return res, nil
}
