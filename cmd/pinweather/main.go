package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/pinweather/internal/config"
)

var cfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "pinweather",
	Short: "Drop pins on a map and track the weather at each one",
	Long: `pinweather keeps a set of map pins, resolves each pin's address and current
weather, and refreshes the weather of every pin at most once an hour.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.InitializeLogging()
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
