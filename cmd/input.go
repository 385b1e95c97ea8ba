package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/spf13/cobra"
)

// addFaceInputFlags adds the flags that select where a face embedding comes from.
func addFaceInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("embedding", "", "Embedding as a JSON array")
	cmd.Flags().String("embedding-file", "", "File containing the embedding as a JSON array")
	cmd.Flags().String("image", "", "Image file to extract the embedding from")
}

// readFaceInput resolves the embedding given on the command line. Images go
// through the extractor service.
func readFaceInput(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (facematch.Embedding, error) {
	inline, err := flagValue("embedding", cmd.Flags().GetString)
	if err != nil {
		return nil, err
	}
	file, err := flagValue("embedding-file", cmd.Flags().GetString)
	if err != nil {
		return nil, err
	}
	image, err := flagValue("image", cmd.Flags().GetString)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file) //nolint:gosec // path is from trusted CLI input
		if err != nil {
			return nil, fmt.Errorf("failed to read embedding file: %w", err)
		}
		data = b
	case image != "":
		b, err := os.ReadFile(image) //nolint:gosec // path is from trusted CLI input
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return extractor.NewClient(cfg.Extractor).Extract(ctx, b)
	default:
		return nil, errors.New("one of --embedding, --embedding-file or --image is required")
	}

	emb, err := facematch.ParseEmbedding(data, cfg.Matching.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding: %w", err)
	}
	return emb, nil
}
