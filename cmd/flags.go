package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/verification"
	"github.com/spf13/cobra"
)

// flagValue reads one typed flag and names it in the error.
func flagValue[T any](name string, get func(string) (T, error)) (T, error) {
	v, err := get(name)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("reading --%s: %w", name, err)
	}
	return v, nil
}

// addPointFlags adds --lat and --lon.
func addPointFlags(cmd *cobra.Command, what string) {
	cmd.Flags().Float64("lat", 0, what+" latitude in degrees")
	cmd.Flags().Float64("lon", 0, what+" longitude in degrees")
}

// readPointFlags returns the --lat/--lon point, or nil when neither was given.
func readPointFlags(cmd *cobra.Command) (*facematch.LocationPoint, error) {
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if !latSet && !lonSet {
		return nil, nil
	}
	if latSet != lonSet {
		return nil, errors.New("--lat and --lon must be given together")
	}

	lat, err := flagValue("lat", cmd.Flags().GetFloat64)
	if err != nil {
		return nil, err
	}
	lon, err := flagValue("lon", cmd.Flags().GetFloat64)
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates %.6f, %.6f out of range", lat, lon)
	}
	return &facematch.LocationPoint{Latitude: lat, Longitude: lon}, nil
}

type verifyFlags struct {
	Threshold float64
	Policy    verification.Policy
	Location  *facematch.LocationPoint
}

func addVerifyFlags(cmd *cobra.Command) {
	addFaceInputFlags(cmd)
	cmd.Flags().Float64("threshold", 0, "Similarity threshold (0 uses MATCH_VERIFY_THRESHOLD)")
	cmd.Flags().String("policy", "", "Matching policy: first or best (default MATCH_POLICY)")
	addPointFlags(cmd, "Capture (required when the geofence is enabled)")
}

func readVerifyFlags(cmd *cobra.Command) (verifyFlags, error) {
	var out verifyFlags
	var err error

	if out.Threshold, err = flagValue("threshold", cmd.Flags().GetFloat64); err != nil {
		return out, err
	}
	if out.Threshold < -1 || out.Threshold > 1 {
		return out, fmt.Errorf("--threshold %v outside [-1, 1]", out.Threshold)
	}

	raw, err := flagValue("policy", cmd.Flags().GetString)
	if err != nil {
		return out, err
	}
	policy, ok := verification.ParsePolicy(raw)
	if !ok {
		return out, fmt.Errorf("unknown policy %q", raw)
	}
	out.Policy = policy

	out.Location, err = readPointFlags(cmd)
	return out, err
}

type serveFlags struct {
	Port         int
	Host         string
	NoExtractor  bool
	IndexRefresh time.Duration
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	cmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	cmd.Flags().Bool("no-extractor", false, "Accept only precomputed embeddings")
	cmd.Flags().Duration("index-refresh", 5*time.Minute, "How often the HNSW index is rebuilt and saved (0 disables)")
}

func readServeFlags(cmd *cobra.Command) (serveFlags, error) {
	var out serveFlags
	var err error

	if out.Port, err = flagValue("port", cmd.Flags().GetInt); err != nil {
		return out, err
	}
	if out.Port < 0 || out.Port > 65535 {
		return out, fmt.Errorf("--port %d out of range", out.Port)
	}
	if out.Host, err = flagValue("host", cmd.Flags().GetString); err != nil {
		return out, err
	}
	if out.NoExtractor, err = flagValue("no-extractor", cmd.Flags().GetBool); err != nil {
		return out, err
	}
	if out.IndexRefresh, err = flagValue("index-refresh", cmd.Flags().GetDuration); err != nil {
		return out, err
	}
	if out.IndexRefresh < 0 {
		return out, errors.New("--index-refresh must not be negative")
	}
	return out, nil
}
