package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/pinweather/internal/geo"
)

var (
	resolveLat float64
	resolveLon float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the address and current weather of a coordinate",
	Long:  `Resolve runs the same enrichment a new pin gets and prints it as JSON.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		coord := geo.NewCoordinate(resolveLat, resolveLon)
		if err := coord.Validate(); err != nil {
			return err
		}

		c, err := build(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.HTTPTimeout*2)
		defer cancel()

		res, err := c.fetcher.Resolve(ctx, coord)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", coord, err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			Coordinate geo.Coordinate `json:"coordinate"`
			Address    string         `json:"address,omitempty"`
			Timezone   string         `json:"timezone,omitempty"`
			Fahrenheit int            `json:"fahrenheit"`
			Weather    any            `json:"weather"`
		}{
			Coordinate: coord,
			Address:    res.Address,
			Timezone:   res.Timezone,
			Fahrenheit: res.Weather.Temperature.Fahrenheit(),
			Weather:    res.Weather,
		})
	},
}

func init() {
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "latitude in degrees")
	resolveCmd.Flags().Float64Var(&resolveLon, "lon", 0, "longitude in degrees")
	_ = resolveCmd.MarkFlagRequired("lat")
	_ = resolveCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(resolveCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
