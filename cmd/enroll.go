package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <subject-id>",
	Short: "Register a face embedding for a subject",
	Long: `Stores a new face embedding for the subject. A subject may be enrolled
any number of times; every call adds another record.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	addFaceInputFlags(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine, err := engineFor(cfg, backend.Enrollments, backend.Locations, nil, nil, log)
	if err != nil {
		return err
	}

	emb, err := readFaceInput(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	rec, err := engine.Register(ctx, args[0], emb)
	if err != nil {
		return fmt.Errorf("failed to enroll: %w", err)
	}

	fmt.Printf("Enrolled subject %s as record %d\n", rec.SubjectID, rec.ID)
	return nil
}
