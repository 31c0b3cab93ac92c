// Package store provides persistent state for minipaint: a small keyed
// document store holding the inventory and the AI settings, and an archive
// of generated plans.
//
// Both live in one SQLite database. Documents are JSON under a string key
// (for example "miniature-inventory" or "ai-settings"). Archived plans are
// zstd-compressed JSON, because the embedded reference image dominates
// their size, with a few summary columns kept uncompressed for listing.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/minipaint/internal/plan"
)

// Well-known document keys.
const (
	KeyInventory = "miniature-inventory"
	KeySettings  = "ai-settings"
)

// ErrNotFound is returned by GetPlan for an unknown id.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface used by the inventory manager, the
// settings layer and the HTTP server. Each method is safe for concurrent use.
//
// Get returns false (and leaves out untouched) when the key does not exist.
// Put performs full replacement.
type Store interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error

	// SavePlan archives p and returns its new id.
	SavePlan(ctx context.Context, p *plan.ProjectPlan) (string, error)
	// GetPlan returns ErrNotFound for an unknown id.
	GetPlan(ctx context.Context, id string) (*plan.ProjectPlan, error)
	// ListPlans returns summaries, newest first.
	ListPlans(ctx context.Context, limit int) ([]PlanSummary, error)
	DeletePlan(ctx context.Context, id string) error

	Close() error
}

// PlanSummary describes an archived plan without loading it.
type PlanSummary struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"projectName"`
	Source      string    `json:"source,omitempty"`
	Steps       int       `json:"steps"`
	Warnings    int       `json:"warnings"`
	CreatedAt   time.Time `json:"createdAt"`
}
