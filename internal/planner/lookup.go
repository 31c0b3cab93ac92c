package planner

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/fpang/minipaint/internal/assets"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/filehandler"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/jsonutil"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/rs/zerolog/log"
)

// ErrNoHex means the hosted model did not answer with a #RRGGBB code.
var ErrNoHex = errors.New("no hex code in model response")

// ErrEmptyImport means a bulk import recognized no item.
var ErrEmptyImport = errors.New("no inventory item recognized")

var strictHex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// IdentifyPartsInImage suggests named parts with approximate regions to
// seed the region editor. Suggestions are provisional; the user confirms
// them. The image is always downsampled to IdentifyMaxDim.
func (p *Planner) IdentifyPartsInImage(ctx context.Context, img *filehandler.ImageFile) ([]plan.PartSuggestion, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New("an image is required")
	}
	maxDim := IdentifyMaxDim
	if p.profile.MaxImageDim > 0 && p.profile.MaxImageDim < maxDim {
		maxDim = p.profile.MaxImageDim
	}
	prepared, err := prepareImage(img, maxDim)
	if err != nil {
		return nil, err
	}

	raw, err := p.run(ctx, call{
		op:          "identifyParts",
		prompt:      assets.RenderIdentifyPartsPrompt(plan.MaxParts, p.profile.Compact),
		image:       prepared,
		schema:      suggestionsSchema(),
		temperature: identifyTemperature,
		budget:      identifyBudget,
	})
	if err != nil {
		return nil, err
	}

	parts, err := plan.NewNormalizer(inventory.Inventory{}, p.matcher).NormalizeParts(raw)
	if err != nil {
		return nil, chat.Malformed("identifyParts", err)
	}
	out := make([]plan.PartSuggestion, 0, len(parts))
	for _, part := range parts {
		s := plan.PartSuggestion{Name: part.Name, Description: part.Description}
		if len(part.Regions) > 0 {
			r := part.Regions[0]
			s.Region = &r
		}
		out = append(out, s)
	}
	log.Info().Int("suggestions", len(out)).Msg("Parts identified in image")
	return out, nil
}

// GetHexForPaint asks the model for a paint's colour. The hosted backend
// must answer with exactly #RRGGBB, otherwise ErrNoHex. The local backend
// accepts any 3-6 digit code in the reply and, when the reply has none or
// the call fails, falls back to the colour keywords in the paint name; it
// never fails.
func (p *Planner) GetHexForPaint(ctx context.Context, brand, name string) (string, error) {
	c := call{
		op:          "getHexForPaint",
		prompt:      assets.RenderHexPrompt(brand, name, p.profile.Compact),
		temperature: hexTemperature,
		budget:      hexBudget,
	}

	if p.profile.Backend != chat.BackendLocal {
		completion, err := p.complete(ctx, c)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(completion.Text)
		if !strictHex.MatchString(text) {
			log.Warn().Str("paint", name).Str("response", preview(text)).Msg("Hex lookup returned no hex code")
			return "", ErrNoHex
		}
		return strings.ToUpper(text), nil
	}

	completion, err := p.complete(ctx, c)
	if err == nil {
		if hex, ok := colormatch.ExtractHex(completion.Text); ok {
			return hex, nil
		}
		log.Debug().Str("paint", name).Str("response", preview(completion.Text)).Msg("No hex in local response, using keywords")
	} else {
		log.Warn().Err(err).Str("paint", name).Msg("Local hex lookup failed, using keywords")
	}
	return colormatch.HexForNameOrNeutral(name), nil
}

// ParseBulkInventory categorizes a pasted product list. The hosted backend
// categorizes it in one structured call; the local backend uses the keyword
// categorizer without any model call. brand, when set, is used for every
// paint. Returns ErrEmptyImport when nothing was recognized.
func (p *Planner) ParseBulkInventory(ctx context.Context, list, brand string, progress colormatch.ProgressFunc) (*inventory.Inventory, error) {
	if p.profile.Backend == chat.BackendLocal {
		inv := colormatch.ParseInventoryText(list, brand, progress)
		if inv == nil {
			return nil, ErrEmptyImport
		}
		return inv, nil
	}

	lines := 0
	for _, l := range strings.Split(list, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	if progress != nil {
		progress(0, lines, "Enviando para Gemini API...")
	}

	completion, err := p.complete(ctx, call{
		op:          "parseBulkInventory",
		prompt:      assets.RenderInventoryPrompt(list, brand),
		schema:      inventorySchema(),
		temperature: inventoryTemperature,
		budget:      importBudget,
		json:        true,
	})
	if err != nil {
		if progress != nil {
			progress(lines, lines, "Erro no processamento")
		}
		return nil, err
	}

	parsed, err := jsonutil.ParseJSON[inventory.Inventory](completion.Text)
	if err != nil {
		if progress != nil {
			progress(lines, lines, "Erro no processamento")
		}
		return nil, chat.Malformed("parseBulkInventory", err)
	}
	if progress != nil {
		progress(lines, lines, "Processamento concluído!")
	}

	inv := cleanImported(parsed, brand)
	if inv.Len() == 0 {
		return nil, ErrEmptyImport
	}
	log.Info().
		Int("paints", len(inv.Paints)).
		Int("thinners", len(inv.Thinners)).
		Int("varnishes", len(inv.Varnishes)).
		Int("washes", len(inv.Washes)).
		Msg("Bulk inventory parsed")
	return &inv, nil
}

// cleanImported fills brands, normalizes hex codes and drops nameless
// paints and values outside the enumerations.
func cleanImported(in inventory.Inventory, brand string) inventory.Inventory {
	defBrand := orName(strings.TrimSpace(brand), colormatch.DefaultBrand)
	pickBrand := func(b string) string { return orName(strings.TrimSpace(b), defBrand) }

	var out inventory.Inventory
	for _, pt := range in.Paints {
		name := strings.TrimSpace(pt.Name)
		if name == "" {
			continue
		}
		switch pt.Type {
		case inventory.PaintInk, inventory.PaintAcrylic, inventory.PaintVarnish, inventory.PaintOther:
		default:
			pt.Type = inventory.PaintAcrylic
		}
		b := pickBrand(pt.Brand)
		if brand != "" {
			b = brand
		}
		hex := pt.Hex
		if colormatch.IsHexLike(hex) && !strings.HasPrefix(hex, "#") {
			hex = "#" + hex
		}
		out.Paints = append(out.Paints, inventory.Paint{
			Type:  pt.Type,
			Brand: b,
			Name:  name,
			Hex:   colormatch.CoerceHex(hex, colormatch.HexForNameOrNeutral(name)),
		})
	}
	for _, t := range in.Thinners {
		if t.Composition != inventory.CompositionCaseiro {
			t.Composition = inventory.CompositionOriginal
		}
		t.Brand = pickBrand(t.Brand)
		out.Thinners = append(out.Thinners, t)
	}
	for _, v := range in.Varnishes {
		switch v.Finish {
		case inventory.FinishBrilhante, inventory.FinishAcetinado, inventory.FinishFosco, inventory.FinishVitralBrilhante:
		default:
			v.Finish = inventory.FinishBrilhante
		}
		v.Brand = pickBrand(v.Brand)
		out.Varnishes = append(out.Varnishes, v)
	}
	for _, w := range in.Washes {
		w.Brand = pickBrand(w.Brand)
		if w.Hex != "" {
			w.Hex = colormatch.CoerceHex(w.Hex, colormatch.HexForNameOrNeutral(w.Composition))
		}
		out.Washes = append(out.Washes, w)
	}
	return out
}
