package main

import (
	"errors"
	"fmt"

	"github.com/fpang/minipaint/internal/auth"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/cli"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the AI provider",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective AI settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "settings", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.settings.Get()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "provider:      %s\n", s.Provider)
		fmt.Fprintf(out, "localEndpoint: %s\n", s.LocalEndpoint)
		fmt.Fprintf(out, "localModel:    %s\n", a.cfg.LocalModel)
		fmt.Fprintf(out, "models:        %v\n", a.cfg.Models)
		fmt.Fprintf(out, "database:      %s\n", a.cfg.Database)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <gemini|local> [endpoint]",
	Short: "Save the AI provider and local endpoint",
	Long: `Save the AI provider. The endpoint is the base URL of a local
OpenAI-compatible server; when omitted the current one is kept.

  minipaint settings set local http://localhost:1234/v1
  minipaint settings set gemini`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "settings", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		in := a.settings.Get()
		in.Provider = args[0]
		if len(args) == 2 {
			in.LocalEndpoint = args[1]
		}
		s, err := a.settings.Update(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configurações salvas: %s %s\n", s.Provider, s.LocalEndpoint)
		return nil
	},
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the selected provider answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), "settings", cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		s := a.settings.Get()
		if s.Provider == chat.BackendLocal {
			client := chat.NewLocalClient(s.LocalEndpoint, a.cfg.LocalModel)
			if _, err := client.CompleteText(ctx, "oi", chat.Options{Op: "check", MaxOutputTokens: 1}); err != nil {
				return errors.New(chat.Classify("check", err).Message)
			}
			fmt.Fprintf(out, "Servidor local OK: %s\n", s.LocalEndpoint)
			return nil
		}

		if err := checkGemini(cmd, a.cfg); err != nil {
			return errors.New(cli.DescribeValidationError(err))
		}
		fmt.Fprintln(out, "Chave de API válida.")
		return nil
	},
}

func checkGemini(cmd *cobra.Command, c *settings.Config) error {
	apiKey, err := auth.GetAPIKey(c.APIKey)
	if err != nil {
		return err
	}
	client, err := chat.NewGeminiClient(cmd.Context(), apiKey, c.Models...)
	if err != nil {
		return err
	}
	model := chat.DefaultModelName
	if len(c.Models) > 0 {
		model = c.Models[0]
	}
	return auth.ValidateAPIKey(cmd.Context(), client.GenAI().Models, model)
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsCheckCmd)
}
