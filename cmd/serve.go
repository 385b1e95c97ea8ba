package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/logging"
	"github.com/kozaktomas/face-gate/internal/verification"
	"github.com/kozaktomas/face-gate/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Gate HTTP API.
Clients register faces, verify captures against every enrollment and compare
a capture with a freshly registered face.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

// initEnrollmentIndex builds or loads the HNSW index used for best-match candidates.
func initEnrollmentIndex(ctx context.Context, cfg *config.Config, store database.EnrollmentReader, log logging.Logger) *database.EnrollmentIndex {
	path := cfg.Database.HNSWIndexPath
	if path == "" {
		return nil
	}

	records, err := store.ListActive(ctx)
	if err != nil {
		log.Warn(ctx, "cannot load enrollments for HNSW index, best match will scan", "error", err)
		return nil
	}

	index := database.NewEnrollmentIndex(cfg.Matching.EmbeddingDim)
	loaded, err := index.LoadOrBuild(path, records)
	if err != nil {
		log.Warn(ctx, "saved HNSW index unusable, rebuilt from store", "path", path, "error", err)
	}
	log.Info(ctx, "HNSW index ready", "records", index.Len(), "loaded_from_disk", loaded, "path", path)
	return index
}

// refreshIndex rebuilds the index from the store, picking up deactivations made
// by other processes, and persists it.
func refreshIndex(ctx context.Context, index *database.EnrollmentIndex, store database.EnrollmentReader, path string, log logging.Logger) {
	records, err := store.ListActive(ctx)
	if err != nil {
		log.Warn(ctx, "HNSW refresh skipped", "error", err)
		return
	}
	indexed, skipped := index.Build(records)
	if err := index.Save(path); err != nil {
		log.Warn(ctx, "failed to save HNSW index", "path", path, "error", err)
		return
	}
	log.Debug(ctx, "HNSW index refreshed", "indexed", indexed, "skipped", skipped)
}

// startJobs schedules token purging and index maintenance.
func startJobs(ctx context.Context, comparisons *verification.PendingComparisons, index *database.EnrollmentIndex,
	store database.EnrollmentReader, cfg *config.Config, indexRefresh time.Duration, log logging.Logger) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Every(time.Minute).Do(func() {
		if n := comparisons.PurgeExpired(); n > 0 {
			log.Debug(ctx, "purged expired comparison tokens", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("scheduling token purge: %w", err)
	}

	if index != nil && indexRefresh > 0 {
		if _, err := scheduler.Every(indexRefresh).WaitForSchedule().Do(func() {
			refreshIndex(ctx, index, store, cfg.Database.HNSWIndexPath, log)
		}); err != nil {
			return nil, fmt.Errorf("scheduling index refresh: %w", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	flags, err := readServeFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flags.Port > 0 {
		cfg.Web.Port = flags.Port
	}
	if flags.Host != "" {
		cfg.Web.Host = flags.Host
	}

	log := newLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := backend.Enrollments
	if cfg.Matching.CacheTTL > 0 {
		// Writes from other processes are not seen until the TTL expires.
		store = database.NewCachedStore(backend.Enrollments, cfg.Matching.CacheTTL)
		log.Warn(ctx, "enrollment cache enabled, serve must be the only writer", "ttl", cfg.Matching.CacheTTL)
	}
	index := initEnrollmentIndex(ctx, cfg, store, log)

	// pgvector ranks natively; the cache wrapper hides that, so ask the backend.
	nearest, _ := backend.Enrollments.(database.NearestSearcher)

	engine, err := engineFor(cfg, store, backend.Locations, index, nearest, log)
	if err != nil {
		return err
	}

	var ext extractor.Extractor
	if !flags.NoExtractor {
		ext = extractor.NewClient(cfg.Extractor)
		log.Info(ctx, "image extraction enabled", "url", cfg.Extractor.URL)
	}

	comparisons := verification.NewPendingComparisons(cfg.Matching.ComparisonSecret, cfg.Matching.ComparisonTTL)

	scheduler, err := startJobs(ctx, comparisons, index, store, cfg, flags.IndexRefresh, log)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	server := web.NewServer(cfg, web.Deps{
		Engine:      engine,
		Extractor:   ext,
		Comparisons: comparisons,
		Backend:     backend.Name,
		Logger:      log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		scheduler.Stop()
		if index != nil {
			if err := index.Save(cfg.Database.HNSWIndexPath); err != nil {
				log.Warn(ctx, "failed to save HNSW index", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "error during shutdown", "error", err)
		}
	}()

	fmt.Printf("Starting Face Gate on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
