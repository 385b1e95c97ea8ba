package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-gate/internal/verification"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a face against all enrollments",
	Long: `Scans every active enrollment and reports the subject whose stored
embedding is similar enough to the given one.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addVerifyFlags(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	flags, err := readVerifyFlags(cmd)
	if err != nil {
		return err
	}
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

	result, err := engine.Verify(ctx, verification.VerifyRequest{
		Candidate: emb,
		Threshold: flags.Threshold,
		Location:  flags.Location,
		Policy:    flags.Policy,
	})
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("Outcome:    %s\n", result.Outcome)
	if result.Matched() {
		fmt.Printf("Subject:    %s\n", result.SubjectID)
		fmt.Printf("Record:     %d\n", result.RecordID)
		fmt.Printf("Similarity: %.4f\n", result.Similarity)
	}
	fmt.Printf("Scanned:    %d (skipped %d)\n", result.Scanned, result.Skipped)
	return nil
}
