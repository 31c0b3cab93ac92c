package colormatch

import (
	"regexp"
	"strings"

	"github.com/fpang/minipaint/internal/inventory"
)

// Category is the product family of an inventory line.
type Category string

const (
	CategoryPaint   Category = "paint"
	CategoryThinner Category = "thinner"
	CategoryVarnish Category = "varnish"
	CategoryWash    Category = "wash"
)

// DefaultBrand is used for imported lines when the caller gives no brand.
const DefaultBrand = "Desconhecida"

// Item is one categorized inventory line. Only the fields relevant to
// Category are set.
type Item struct {
	Category    Category
	Brand       string
	Name        string
	Hex         string              // paint, wash
	PaintType   inventory.PaintType // paint
	Finish      string              // varnish
	Composition string              // thinner, wash
}

type rule struct {
	words []string // folded tokens, any of which triggers the rule
	value string
}

// Evaluated in order; first hit wins.
var (
	categoryRules = []struct {
		category Category
		words    []string
	}{
		{CategoryVarnish, []string{"verniz", "vernizes", "varnish"}},
		{CategoryThinner, []string{"diluente", "diluentes", "thinner", "solvente"}},
		{CategoryWash, []string{"wash", "washes", "shade", "lavado"}},
	}

	finishRules = []rule{
		{[]string{"fosco", "matt", "matte", "mate"}, inventory.FinishFosco},
		{[]string{"acetinado", "satin", "semibrilho"}, inventory.FinishAcetinado},
		{[]string{"vitral"}, inventory.FinishVitralBrilhante},
	}

	inkWords = []string{"ink", "inks", "nanquim"}

	quantityPattern = regexp.MustCompile(`(?i)\b\d+\s?ml\b|\bunid\b|\bund\b`)
	spacePattern    = regexp.MustCompile(`\s{2,}`)
)

// CleanName strips pack sizes and unit counts ("Preto 17ml 1 und").
func CleanName(line string) string {
	name := quantityPattern.ReplaceAllString(line, "")
	name = spacePattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CategorizeInventoryLine classifies a free-text shop listing line as a
// paint, thinner, varnish or wash. Lines that match nothing become an
// Acrylic paint with the neutral gray, never an error.
func CategorizeInventoryLine(line, brand string) Item {
	if strings.TrimSpace(brand) == "" {
		brand = DefaultBrand
	}
	name := CleanName(line)
	if name == "" {
		name = strings.TrimSpace(line)
	}
	item := Item{Brand: brand, Name: name}

	category := CategoryPaint
	for _, r := range categoryRules {
		if HasToken(line, r.words...) {
			category = r.category
			break
		}
	}
	item.Category = category

	switch category {
	case CategoryVarnish:
		item.Finish = inventory.FinishBrilhante
		for _, r := range finishRules {
			if HasToken(line, r.words...) {
				item.Finish = r.value
				break
			}
		}
	case CategoryThinner:
		item.Composition = inventory.CompositionOriginal
		if HasToken(line, "caseiro", "caseira", "homemade") {
			item.Composition = inventory.CompositionCaseiro
		}
	case CategoryWash:
		item.Hex = HexForNameOrNeutral(line)
		item.Composition = name
	default:
		item.PaintType = inventory.PaintAcrylic
		if HasToken(line, inkWords...) {
			item.PaintType = inventory.PaintInk
		}
		item.Hex = HexForNameOrNeutral(line)
	}
	return item
}

// AddTo appends the item to the matching inventory category. IDs are left
// empty; the inventory manager assigns them on insert.
func (it Item) AddTo(inv *inventory.Inventory) {
	switch it.Category {
	case CategoryVarnish:
		inv.Varnishes = append(inv.Varnishes, inventory.Varnish{Brand: it.Brand, Name: it.Name, Finish: it.Finish})
	case CategoryThinner:
		inv.Thinners = append(inv.Thinners, inventory.Thinner{Brand: it.Brand, Name: it.Name, Composition: it.Composition})
	case CategoryWash:
		inv.Washes = append(inv.Washes, inventory.Wash{Brand: it.Brand, Name: it.Name, Hex: it.Hex, Composition: it.Composition})
	default:
		inv.Paints = append(inv.Paints, inventory.Paint{Type: it.PaintType, Brand: it.Brand, Name: it.Name, Hex: it.Hex})
	}
}

// ProgressFunc reports bulk-import progress: item is a short label for the
// line being processed.
type ProgressFunc func(current, total int, item string)

var leadingBullet = regexp.MustCompile(`^[-*•]+\s*`)

// ParseInventoryText categorizes a pasted multi-line listing without any
// model call. Leading bullets are stripped and lines of two characters or
// fewer are ignored. Returns nil when no line could be categorized.
func ParseInventoryText(text, brand string, progress ProgressFunc) *inventory.Inventory {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := leadingBullet.ReplaceAllString(strings.TrimSpace(raw), "")
		if len([]rune(line)) > 2 {
			lines = append(lines, line)
		}
	}

	inv := &inventory.Inventory{}
	for i, line := range lines {
		if progress != nil {
			progress(i+1, len(lines), "Processando: "+truncate(line, 40)+"...")
		}
		CategorizeInventoryLine(line, brand).AddTo(inv)
	}
	if progress != nil {
		progress(len(lines), len(lines), "Processamento concluído!")
	}

	if inv.Len() == 0 {
		return nil
	}
	return inv
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
