package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
)

var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Print the elevation at a location",
	Example: `  hgt-elevation height --lat 47.267222 --lon 11.392778
  hgt-elevation height --lat -16.5 --lon -68.15 --bilinear --source skadi`,
	RunE: runHeight,
}

func init() {
	rootCmd.AddCommand(heightCmd)

	heightCmd.Flags().Float64("lat", 0, "latitude")
	heightCmd.Flags().Float64("lon", 0, "longitude")
	heightCmd.Flags().Bool("bilinear", false, "interpolate bilinearly")
	_ = heightCmd.MarkFlagRequired("lat")
	_ = heightCmd.MarkFlagRequired("lon")
}

func runHeight(cmd *cobra.Command, args []string) error {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	bilinear, _ := cmd.Flags().GetBool("bilinear")
	if err := validateCoordinate(lat, lon); err != nil {
		return err
	}

	cfg := loadConfig(cmd)
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := cfg.newStore(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if bilinear {
		elevation, ok, err := store.ElevationBilinear(ctx, lat, lon)
		switch {
		case err != nil:
			return err
		case !ok:
			fmt.Fprintln(cmd.OutOrStdout(), "no data")
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", elevation)
		}
		return nil
	}

	elevation, ok, err := store.Elevation(ctx, lat, lon)
	switch {
	case err != nil:
		return err
	case !ok:
		fmt.Fprintln(cmd.OutOrStdout(), "no data")
	default:
		fmt.Fprintln(cmd.OutOrStdout(), elevation)
	}
	return nil
}

func validateCoordinate(lat, lon float64) error {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lon):
		return fmt.Errorf("%v, %v: invalid coordinate", lat, lon)
	case lat < -90 || 90 <= lat:
		return fmt.Errorf("%v: latitude out of range", lat)
	case lon < -180 || 180 <= lon:
		return fmt.Errorf("%v: longitude out of range", lon)
	default:
		return nil
	}
}
