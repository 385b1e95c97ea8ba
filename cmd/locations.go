package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Manage the authorized locations used by the geofence",
}

var locationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authorized locations",
	Args:  cobra.NoArgs,
	RunE:  runLocationsList,
}

var locationsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an authorized location",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationsAdd,
}

func init() {
	rootCmd.AddCommand(locationsCmd)
	locationsCmd.AddCommand(locationsListCmd)
	locationsCmd.AddCommand(locationsAddCmd)

	addPointFlags(locationsAddCmd, "Anchor")
	locationsAddCmd.MarkFlagRequired("lat")
	locationsAddCmd.MarkFlagRequired("lon")
}

func runLocationsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()

	anchors, err := backend.Locations.ListAnchors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list locations: %w", err)
	}

	for _, a := range anchors {
		if p, ok := a.Point(); ok {
			fmt.Printf("%-6d %-30s %.6f, %.6f\n", a.ID, a.Name, p.Latitude, p.Longitude)
		} else {
			fmt.Printf("%-6d %-30s (incomplete, ignored)\n", a.ID, a.Name)
		}
	}
	fmt.Printf("\nTotal: %d\n", len(anchors))
	return nil
}

func runLocationsAdd(cmd *cobra.Command, args []string) error {
	point, err := readPointFlags(cmd)
	if err != nil {
		return err
	}
	if point == nil {
		return errors.New("--lat and --lon are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()

	id, err := backend.Locations.AddAnchor(ctx, args[0], *point)
	if err != nil {
		return fmt.Errorf("failed to add location: %w", err)
	}

	fmt.Printf("Location %q added with id %d\n", args[0], id)
	return nil
}
