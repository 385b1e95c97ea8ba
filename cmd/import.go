package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Bulk enroll faces from a JSON lines file",
	Long: `Reads one enrollment per line, {"subject_id": "...", "embedding": [...]},
and registers each of them. Invalid lines are reported and skipped; use "-"
to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("dry-run", false, "Validate the file without writing anything")
}

// importLine is one enrollment in an import file.
type importLine struct {
	SubjectID string              `json:"subject_id"`
	UserID    string              `json:"userId"`
	Embedding facematch.Embedding `json:"embedding"`
}

// readImportLines parses every non-empty line; bad lines are returned as errors by line number.
func readImportLines(r io.Reader) ([]importLine, map[int]error, error) {
	var lines []importLine
	bad := make(map[int]error)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	n := 0
	for scanner.Scan() {
		n++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line importLine
		if err := json.Unmarshal(raw, &line); err != nil {
			bad[n] = err
			continue
		}
		if line.SubjectID == "" {
			line.SubjectID = line.UserID
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read import file: %w", err)
	}
	return lines, bad, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := cmd.Context()

	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		in = f
	}

	lines, bad, err := readImportLines(in)
	if err != nil {
		return err
	}
	for n, lineErr := range bad {
		fmt.Printf("line %d: %v\n", n, lineErr)
	}
	fmt.Printf("Enrollments to import: %d (%d unreadable lines)\n\n", len(lines), len(bad))

	dryRun, err := flagValue("dry-run", cmd.Flags().GetBool)
	if err != nil {
		return err
	}
	if dryRun {
		return nil
	}

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine, err := engineFor(cfg, backend.Enrollments, backend.Locations, nil, nil, log)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(lines),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, errorCount int
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := engine.Register(ctx, line.SubjectID, line.Embedding); err != nil {
			log.Warn(ctx, "import line rejected", "subject_id", line.SubjectID, "error", err)
			errorCount++
		} else {
			successCount++
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\n\nImported: %d\n", successCount)
	fmt.Printf("Failed:   %d\n", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d enrollments failed, see log for details", errorCount)
	}
	return nil
}
