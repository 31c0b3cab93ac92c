package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fpang/minipaint/internal/cli"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	invJSONFlag     bool
	invHexFlag      string
	invTypeFlag     string
	invItemNameFlag string
	invBrandFlag    string
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "Manage your paints, thinners, varnishes and washes",
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "inventory", cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if invJSONFlag {
			return writeJSON(cmd.OutOrStdout(), a.inventory.Snapshot())
		}
		cli.PrintInventory(cmd.OutOrStdout(), a.inventory.Snapshot())
		return nil
	},
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add <paint|thinner|varnish|wash> <brand> <name|composition|finish>",
	Short: "Add an item",
	Long: `Add an item to the inventory.

  minipaint inventory add paint Citadel "Mephiston Red" --hex "#9A1115"
  minipaint inventory add paint Vallejo "Gold Brown"          (hex looked up)
  minipaint inventory add thinner Vallejo Original
  minipaint inventory add varnish Vallejo Fosco
  minipaint inventory add wash Citadel "Nuln Oil" --hex "#1A1A1A"

Paints and varnishes are unique per brand and name/finish; thinners and
washes per brand and composition.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "inventory", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		kind, brand, value := args[0], args[1], args[2]
		switch normalizeKind(kind) {
		case kindPaints:
			p, err := a.addPaint(ctx, inventory.Paint{Brand: brand, Name: value, Hex: invHexFlag, Type: inventory.PaintType(invTypeFlag)})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s %s %s\n", p.ID, p.Brand, p.Name, p.Hex)
		case kindThinners:
			t, err := a.inventory.AddThinner(ctx, inventory.Thinner{Brand: brand, Composition: value, Name: invItemNameFlag})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s %s\n", t.ID, t.Brand, t.Composition)
		case kindVarnishes:
			v, err := a.inventory.AddVarnish(ctx, inventory.Varnish{Brand: brand, Finish: value, Name: invItemNameFlag})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s %s\n", v.ID, v.Brand, v.Finish)
		case kindWashes:
			w := inventory.Wash{Brand: brand, Composition: value, Name: invItemNameFlag}
			if invHexFlag != "" {
				if w.Hex, err = colormatch.NormalizeHex(invHexFlag); err != nil {
					return fmt.Errorf("%q: %w", invHexFlag, err)
				}
			}
			if w, err = a.inventory.AddWash(ctx, w); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s %s\n", w.ID, w.Brand, w.Composition)
		default:
			return fmt.Errorf("%w: unknown kind %q", inventory.ErrInvalid, kind)
		}
		return nil
	},
}

var inventoryRemoveCmd = &cobra.Command{
	Use:     "remove <paint|thinner|varnish|wash> <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an item by id",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "inventory", cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.removeItem(cmd.Context(), args[0], args[1])
	},
}

var inventoryImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import a pasted product list, one item per line",
	Long: `Import a product list, one item per line ("-" reads stdin). The hosted
model categorizes the list; with the local provider a keyword categorizer
is used. Items already in the inventory are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), "inventory", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		stderr := cmd.ErrOrStderr()
		res, err := a.importList(cmd.Context(), string(data), invBrandFlag, func(current, total int, item string) {
			fmt.Fprintf(stderr, "[%d/%d] %s\n", current, total, item)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d adicionados, %d ignorados\n", res.Added, res.Skipped)
		return nil
	},
}

func init() {
	inventoryListCmd.Flags().BoolVar(&invJSONFlag, "json", false, "Print the inventory as JSON")
	inventoryAddCmd.Flags().StringVar(&invHexFlag, "hex", "", "Hex colour (paints are looked up when empty)")
	inventoryAddCmd.Flags().StringVar(&invTypeFlag, "type", string(inventory.PaintAcrylic), "Paint type: Acrylic, Ink, Varnish or Other")
	inventoryAddCmd.Flags().StringVar(&invItemNameFlag, "name", "", "Product name for thinners, varnishes and washes")
	inventoryImportCmd.Flags().StringVarP(&invBrandFlag, "brand", "b", "", "Brand for every imported paint")

	inventoryCmd.AddCommand(inventoryListCmd, inventoryAddCmd, inventoryRemoveCmd, inventoryImportCmd)
}

// Item kinds, as used in API paths.
const (
	kindPaints    = "paints"
	kindThinners  = "thinners"
	kindVarnishes = "varnishes"
	kindWashes    = "washes"
)

// normalizeKind accepts singular or plural kind names.
func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "paint", "paints":
		return kindPaints
	case "thinner", "thinners":
		return kindThinners
	case "varnish", "varnishes":
		return kindVarnishes
	case "wash", "washes":
		return kindWashes
	}
	return ""
}

func (a *app) removeItem(ctx context.Context, kind, id string) error {
	switch normalizeKind(kind) {
	case kindPaints:
		return a.inventory.RemovePaint(ctx, id)
	case kindThinners:
		return a.inventory.RemoveThinner(ctx, id)
	case kindVarnishes:
		return a.inventory.RemoveVarnish(ctx, id)
	case kindWashes:
		return a.inventory.RemoveWash(ctx, id)
	}
	return fmt.Errorf("%w: unknown kind %q", inventory.ErrInvalid, kind)
}

// importList categorizes a product list and merges it into the inventory.
func (a *app) importList(ctx context.Context, text, brand string, progress colormatch.ProgressFunc) (inventory.ImportResult, error) {
	p, err := a.currentPlanner(ctx)
	if err != nil {
		return inventory.ImportResult{}, err
	}
	parsed, err := p.ParseBulkInventory(ctx, text, strings.TrimSpace(brand), progress)
	if err != nil {
		return inventory.ImportResult{}, err
	}
	res, err := a.inventory.Import(ctx, *parsed)
	if err != nil {
		return inventory.ImportResult{}, err
	}
	log.Info().Int("added", res.Added).Int("skipped", res.Skipped).Msg("Inventory imported")
	return res, nil
}
