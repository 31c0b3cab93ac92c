// Package cli holds terminal helpers shared by the minipaint commands:
// human-readable rendering of plans and inventories and input checks.
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// PrintPlan renders p as a numbered painting guide.
func PrintPlan(w io.Writer, p *plan.ProjectPlan) {
	fmt.Fprintf(w, "%s", p.ProjectName)
	if p.Source != "" {
		fmt.Fprintf(w, " (%s)", p.Source)
	}
	fmt.Fprintln(w)

	for _, warn := range p.Warnings {
		fmt.Fprintf(w, "! %s\n", warn)
	}

	if len(p.IdentifiedColors) > 0 {
		fmt.Fprintln(w, "\nCores:")
		for _, c := range p.IdentifiedColors {
			fmt.Fprintf(w, "  %s %-20s %s", c.Hex, c.ColorName, c.Location)
			switch {
			case c.MatchedPaint != nil:
				fmt.Fprintf(w, " -> %s (%s)", c.MatchedPaint.Name, c.MatchedPaint.Brand)
			case c.MixRecipe != nil:
				fmt.Fprintf(w, " -> mistura: %s", describeMix(c.MixRecipe))
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "\nPassos:")
	for _, st := range p.Steps {
		fmt.Fprintf(w, "%2d. %s [%s]\n", st.StepNumber, st.PartName, st.Technique)
		if st.PartDescription != "" {
			fmt.Fprintf(w, "    %s\n", st.PartDescription)
		}
		var paints []string
		for _, ref := range st.PaintsToUse {
			s := ref.Name
			if ref.Purpose != "" {
				s += " (" + ref.Purpose + ")"
			}
			paints = append(paints, s)
		}
		if len(paints) > 0 {
			fmt.Fprintf(w, "    Tintas: %s\n", strings.Join(paints, ", "))
		}
		if st.PaintMix != nil {
			fmt.Fprintf(w, "    Mistura: %s\n", describeMix(st.PaintMix))
		}
		if st.Tool != "" {
			fmt.Fprintf(w, "    Ferramenta: %s\n", st.Tool)
		}
		if st.Dilution.Ratio != "" {
			fmt.Fprintf(w, "    Diluição: %s %s\n", st.Dilution.Ratio, st.Dilution.Description)
		}
		for _, tip := range st.Tips {
			fmt.Fprintf(w, "    - %s\n", tip)
		}
	}

	if len(p.FixationTips) > 0 {
		fmt.Fprintln(w, "\nFixação:")
		for _, tip := range p.FixationTips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
}

func describeMix(m *plan.PaintMix) string {
	var parts []string
	for _, c := range m.Components {
		parts = append(parts, fmt.Sprintf("%d %s", c.Ratio, c.Paint))
	}
	return strings.Join(parts, " + ")
}

// PrintInventory renders the catalog as aligned tables, one per category.
func PrintInventory(w io.Writer, inv inventory.Inventory) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "TINTAS (%d)\n", len(inv.Paints))
	for _, p := range inv.Paints {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.ID, p.Brand, p.Name, p.Type, p.Hex)
	}
	fmt.Fprintf(tw, "DILUENTES (%d)\n", len(inv.Thinners))
	for _, t := range inv.Thinners {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.ID, t.Brand, t.Name, t.Composition)
	}
	fmt.Fprintf(tw, "VERNIZES (%d)\n", len(inv.Varnishes))
	for _, v := range inv.Varnishes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", v.ID, v.Brand, v.Name, v.Finish)
	}
	fmt.Fprintf(tw, "WASHES (%d)\n", len(inv.Washes))
	for _, x := range inv.Washes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", x.ID, x.Brand, x.Composition, x.Hex)
	}
}

// PrintSuggestions lists part suggestions with their region, if any.
func PrintSuggestions(w io.Writer, parts []plan.PartSuggestion) {
	for i, s := range parts {
		fmt.Fprintf(w, "%2d. %s", i+1, s.Name)
		if s.Region != nil {
			fmt.Fprintf(w, "  [x=%.2f y=%.2f w=%.2f h=%.2f]", s.Region.X, s.Region.Y, s.Region.Width, s.Region.Height)
		}
		if s.Description != "" {
			fmt.Fprintf(w, "  %s", s.Description)
		}
		fmt.Fprintln(w)
	}
}
