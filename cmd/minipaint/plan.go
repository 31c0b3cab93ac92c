package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fpang/minipaint/internal/cli"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/filehandler"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/fpang/minipaint/internal/planner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	planNameFlag    string
	planSourceFlag  string
	planRegionsFlag string
	planSaveFlag    bool
	planJSONFlag    bool

	partsRegionsFlag string
	partsAcceptFlag  bool
	partsJSONFlag    bool
)

var planCmd = &cobra.Command{
	Use:   "plan <image>",
	Short: "Generate a painting plan from a reference photo",
	Long: `Generate a painting plan from a reference photo and your inventory.

Without --regions the model discovers the parts of the miniature itself.
With --regions (a JSON list as written by "minipaint parts --json") the
plan follows your parts and every step keeps exactly your rectangles.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var partsCmd = &cobra.Command{
	Use:   "parts <image>",
	Short: "Suggest the parts of a miniature with approximate regions",
	Long: `Ask the model for the parts of the miniature and their approximate
regions. With --regions the suggestions are merged into an existing list;
parts already there keep their regions. Suggestions stay unconfirmed until
you accept them (--accept).`,
	Args: cobra.ExactArgs(1),
	RunE: runParts,
}

var hexCmd = &cobra.Command{
	Use:   "hex <brand> <name>",
	Short: "Look up the hex colour of a paint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "hex", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.currentPlanner(cmd.Context())
		if err != nil {
			return err
		}
		hex, err := p.GetHexForPaint(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hex, colormatch.DescribeColor(hex))
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <hex>",
	Short: "Find the closest inventory paint, or a mix, for a colour",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hex, err := colormatch.NormalizeHex(args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}
		a, err := openApp(cmd.Context(), "match", cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		printMatch(cmd.OutOrStdout(), hex, a.inventory.Snapshot().Paints, colormatch.NewMatcher(a.cfg.ColorThreshold))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&planNameFlag, "name", "n", "", "Project name")
	planCmd.Flags().StringVarP(&planSourceFlag, "source", "s", "", "Where the miniature comes from (game, franchise)")
	planCmd.Flags().StringVarP(&planRegionsFlag, "regions", "r", "", "JSON file with the part regions to use")
	planCmd.Flags().BoolVar(&planSaveFlag, "save", false, "Archive the plan in the database")
	planCmd.Flags().BoolVar(&planJSONFlag, "json", false, "Print the plan as JSON")

	partsCmd.Flags().StringVarP(&partsRegionsFlag, "regions", "r", "", "JSON file with an existing region list to merge into")
	partsCmd.Flags().BoolVar(&partsAcceptFlag, "accept", false, "Accept every suggested region")
	partsCmd.Flags().BoolVar(&partsJSONFlag, "json", false, "Print the region list as JSON")
}

func loadImageArg(path string) (*filehandler.ImageFile, error) {
	path, err := cli.ValidateImagePath(path)
	if err != nil {
		return nil, err
	}
	return filehandler.LoadImage(path)
}

func readRegions(path string) ([]plan.RegionItem, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []plan.RegionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse regions %s: %w", path, err)
	}
	return items, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// generate snapshots the inventory and runs a generation. Regions select
// the user-regions protocol.
func (a *app) generate(ctx context.Context, req planner.Request, regions []plan.RegionItem) (*plan.ProjectPlan, error) {
	p, err := a.currentPlanner(ctx)
	if err != nil {
		return nil, err
	}
	req.Inventory = a.inventory.Snapshot()
	if len(regions) > 0 {
		return p.GenerateWithRegions(ctx, req, regions)
	}
	return p.Generate(ctx, req)
}

func runPlan(cmd *cobra.Command, args []string) error {
	img, err := loadImageArg(args[0])
	if err != nil {
		return err
	}
	regions, err := readRegions(planRegionsFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, "plan", cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result, err := a.generate(ctx, planner.Request{
		ProjectName: planNameFlag,
		Source:      planSourceFlag,
		Image:       img,
	}, regions)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if planJSONFlag {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		cli.PrintPlan(out, result)
		fmt.Fprintf(out, "\nGerado em %s\n", cli.FormatDurationShort(time.Since(start)))
	}

	if planSaveFlag {
		id, err := a.store.SavePlan(ctx, result)
		if err != nil {
			return err
		}
		log.Info().Str("id", id).Msg("Plan archived")
		fmt.Fprintf(cmd.ErrOrStderr(), "Plano salvo: %s\n", id)
	}
	return nil
}

func runParts(cmd *cobra.Command, args []string) error {
	img, err := loadImageArg(args[0])
	if err != nil {
		return err
	}
	existing, err := readRegions(partsRegionsFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, "parts", cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.currentPlanner(ctx)
	if err != nil {
		return err
	}
	suggestions, err := p.IdentifyPartsInImage(ctx, img)
	if err != nil {
		return err
	}

	if !partsJSONFlag && len(existing) == 0 && !partsAcceptFlag {
		cli.PrintSuggestions(cmd.OutOrStdout(), suggestions)
		return nil
	}
	items := plan.MergeSuggestions(plan.NormalizeRegionItems(existing), suggestions)
	if partsAcceptFlag {
		for i := range items {
			items[i].Confirm()
		}
	}
	return writeJSON(cmd.OutOrStdout(), items)
}

func printMatch(w io.Writer, hex string, paints []inventory.Paint, m *colormatch.Matcher) {
	fmt.Fprintf(w, "%s  %s\n", hex, colormatch.DescribeColor(hex))

	closest, dist := colormatch.ClosestPaint(hex, paints)
	if closest == nil {
		fmt.Fprintln(w, "Nenhuma tinta com cor conhecida no inventário.")
		return
	}
	if m.Match(hex, paints) != nil {
		fmt.Fprintf(w, "Tinta: %s (%s) %s  distância %.3f\n", closest.Name, closest.Brand, closest.Hex, dist)
		return
	}
	fmt.Fprintf(w, "Mais próxima: %s (%s) %s  distância %.3f\n", closest.Name, closest.Brand, closest.Hex, dist)

	recipe := colormatch.SuggestMix(hex, paints)
	if recipe == nil || len(recipe.Components) < 2 {
		return
	}
	fmt.Fprint(w, "Mistura:")
	for i, c := range recipe.Components {
		if i > 0 {
			fmt.Fprint(w, " +")
		}
		fmt.Fprintf(w, " %d %s", c.Ratio, c.Paint.Name)
	}
	fmt.Fprintf(w, "  -> %s  distância %.3f\n", recipe.ResultHex, recipe.Distance)
}
