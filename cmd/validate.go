package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configured provider can serve the model",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("model") {
			cfg.Provider.Model, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("provider") {
			cfg.Provider.Name, _ = cmd.Flags().GetString("provider")
		}
		if cfg.Provider.Model == "" {
			return eris.New("validate: a model is required (--model or provider.model)")
		}

		p, _, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		if err := p.Validate(cmd.Context(), cfg.Provider.Model, cfg.Generation); err != nil {
			return eris.Wrapf(err, "validate: model %s", cfg.Provider.Model)
		}

		fmt.Fprintf(os.Stdout, "%s: model %s is available\n", p.Name(), cfg.Provider.Model)
		return nil
	},
}

func init() {
	validateCmd.Flags().String("model", "", "model name (overrides provider.model)")
	validateCmd.Flags().String("provider", "", "provider: ollama, claude, openai (overrides provider.name)")
	rootCmd.AddCommand(validateCmd)
}
