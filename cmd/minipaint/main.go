package main

import (
	"context"
	"os"

	"github.com/fpang/minipaint/internal/logging"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/spf13/cobra"
)

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=$(git rev-parse --short HEAD) -X main.buildTime=$(date -u +%Y%m%dT%H%M%SZ)"
var (
	commitHash = "dev"
	buildTime  = "unknown"
)

// Global flags
var (
	configFlag   string
	dbFlag       string
	providerFlag string
	endpointFlag string
	modelFlag    string
	logLevelFlag string
)

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg *settings.Config

var rootCmd = &cobra.Command{
	Use:   "minipaint",
	Short: "Painting plans for miniatures from a reference photo",
	Long: `MiniPaint turns a reference photo of a miniature into a step-by-step
painting plan that uses the paints you actually own. It talks to the Gemini
API or to a local OpenAI-compatible server (LM Studio, llama.cpp, Ollama).

Examples:
  minipaint plan paladino.jpg --name "Paladino"
  minipaint plan paladino.jpg --regions regions.json --save
  minipaint inventory import lista.txt --brand Citadel
  minipaint --provider local --endpoint http://localhost:1234/v1 hex Vallejo "Gold Brown"
  minipaint serve --port 8080`,
	SilenceUsage: true,
	Version:      commitHash + " (" + buildTime + ")",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logLevelFlag)
		c, err := settings.Load(configFlag)
		if err != nil {
			return err
		}
		c.Override(providerFlag, endpointFlag, dbFlag)
		if modelFlag != "" {
			c.Models = []string{modelFlag}
			c.LocalModel = modelFlag
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Config file (default ~/.minipaint/config.yaml)")
	pf.StringVar(&dbFlag, "db", "", "SQLite database path (default ~/.minipaint/minipaint.db)")
	pf.StringVar(&providerFlag, "provider", "", "AI provider: gemini or local (overrides saved settings)")
	pf.StringVar(&endpointFlag, "endpoint", "", "Local server base URL (overrides saved settings)")
	pf.StringVarP(&modelFlag, "model", "m", "", "Model name for the selected provider")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(planCmd, partsCmd, hexCmd, matchCmd, inventoryCmd, settingsCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
