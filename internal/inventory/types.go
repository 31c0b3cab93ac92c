// Package inventory holds the user's paint and tool catalog: the entity
// types, a concurrency-safe manager with the dedupe rules, and persistence
// through the key-value store.
package inventory

// PaintType classifies a paint product.
type PaintType string

const (
	PaintInk     PaintType = "Ink"
	PaintAcrylic PaintType = "Acrylic"
	PaintVarnish PaintType = "Varnish"
	PaintOther   PaintType = "Other"
)

// Thinner compositions.
const (
	CompositionOriginal = "Original"
	CompositionCaseiro  = "Caseiro"
)

// Varnish finishes.
const (
	FinishBrilhante       = "Brilhante"
	FinishAcetinado       = "Acetinado"
	FinishFosco           = "Fosco"
	FinishVitralBrilhante = "Vitral Brilhante"
)

// Paint is a single pot of paint. Hex is always #RRGGBB once stored.
type Paint struct {
	ID    string    `json:"id,omitempty"`
	Type  PaintType `json:"type"`
	Brand string    `json:"brand"`
	Name  string    `json:"name"`
	Hex   string    `json:"hex"`
}

type Thinner struct {
	ID          string `json:"id,omitempty"`
	Brand       string `json:"brand"`
	Name        string `json:"name,omitempty"`
	Composition string `json:"composition"`
}

type Varnish struct {
	ID     string `json:"id,omitempty"`
	Brand  string `json:"brand"`
	Name   string `json:"name,omitempty"`
	Finish string `json:"finish"`
}

type Wash struct {
	ID          string `json:"id,omitempty"`
	Brand       string `json:"brand"`
	Name        string `json:"name,omitempty"`
	Hex         string `json:"hex,omitempty"`
	Composition string `json:"composition"`
}

// Inventory is the full catalog. Values handed to the planner are snapshots:
// the planner reads them and never writes back.
type Inventory struct {
	Paints    []Paint   `json:"paints"`
	Thinners  []Thinner `json:"thinners"`
	Varnishes []Varnish `json:"varnishes"`
	Washes    []Wash    `json:"washes"`
}

// Clone returns a deep copy with non-nil slices.
func (inv Inventory) Clone() Inventory {
	return Inventory{
		Paints:    append(make([]Paint, 0, len(inv.Paints)), inv.Paints...),
		Thinners:  append(make([]Thinner, 0, len(inv.Thinners)), inv.Thinners...),
		Varnishes: append(make([]Varnish, 0, len(inv.Varnishes)), inv.Varnishes...),
		Washes:    append(make([]Wash, 0, len(inv.Washes)), inv.Washes...),
	}
}

// Len returns the total number of items across all categories.
func (inv Inventory) Len() int {
	return len(inv.Paints) + len(inv.Thinners) + len(inv.Varnishes) + len(inv.Washes)
}
