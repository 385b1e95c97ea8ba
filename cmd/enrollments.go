package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/spf13/cobra"
)

var enrollmentsCmd = &cobra.Command{
	Use:   "enrollments",
	Short: "Inspect and manage stored enrollments",
}

var enrollmentsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <record-id>",
	Short: "Hide an enrollment from verification",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrollmentsDeactivate,
}

var enrollmentsCountCmd = &cobra.Command{
	Use:   "count <subject-id>",
	Short: "Show how many active enrollments a subject has",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrollmentsCount,
}

func init() {
	rootCmd.AddCommand(enrollmentsCmd)
	enrollmentsCmd.AddCommand(enrollmentsDeactivateCmd)
	enrollmentsCmd.AddCommand(enrollmentsCountCmd)
}

func runEnrollmentsDeactivate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid record id %q", args[0])
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

	if err := backend.Enrollments.Deactivate(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("record %d not found", id)
		}
		return fmt.Errorf("failed to deactivate record %d: %w", id, err)
	}

	fmt.Printf("Record %d deactivated\n", id)
	return nil
}

func runEnrollmentsCount(cmd *cobra.Command, args []string) error {
	subjectID := facematch.NormalizeSubjectID(args[0])
	if subjectID == "" {
		return errors.New("subject id is required")
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

	count, err := backend.Enrollments.CountBySubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to count enrollments: %w", err)
	}

	fmt.Printf("Subject: %s\n", subjectID)
	fmt.Printf("Active enrollments: %d\n", count)
	return nil
}
