package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/correlation"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute signatures for reports stored without one",
	Long: `Compute face signatures for reports that were stored without a comparable
signature, for example reports imported from an older system. The stored photo
of each report is sent to the extractor sidecar again.

Backfilled reports become candidates for future submissions; they are not
linked retroactively.

Examples:
  # Run with default concurrency
  lost-trace backfill

  # Limit concurrency
  lost-trace backfill --concurrency 2

  # JSON output for scripting
  lost-trace backfill --json`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().Int("concurrency", constants.BackfillWorkers, "Number of parallel workers")
	backfillCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// BackfillResult represents the result of a backfill run
type BackfillResult struct {
	correlation.BackfillStats
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

func runBackfill(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	startTime := time.Now()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	pending, err := store.ListWithoutSignature(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(pending) == 0 {
		if jsonOutput {
			return outputJSON(BackfillResult{DurationMs: time.Since(startTime).Milliseconds()})
		}
		fmt.Println("All reports have a signature.")
		return nil
	}

	if !jsonOutput {
		fmt.Printf("Found %d reports without a signature\n\n", len(pending))
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Backfilling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("reports"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}
	progress := func() {
		if bar != nil {
			bar.Add(1)
		}
	}

	service := correlation.NewService(store, newExtractor(cfg), cfg.Matching.Threshold)
	stats, err := service.Backfill(ctx, blobs, concurrency, progress)
	if err != nil {
		return fmt.Errorf("backfill interrupted: %w", err)
	}

	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	result := BackfillResult{
		BackfillStats: *stats,
		DurationMs:    duration.Milliseconds(),
	}

	if jsonOutput {
		return outputJSON(result)
	}

	result.DurationHuman = formatDuration(duration)
	fmt.Println("\nBackfill complete!")
	fmt.Printf("  Reports:   %d\n", result.Total)
	fmt.Printf("  Updated:   %d\n", result.Updated)
	if result.NoFace > 0 {
		fmt.Printf("  No face:   %d\n", result.NoFace)
	}
	if result.Failed > 0 {
		fmt.Printf("  Failed:    %d\n", result.Failed)
	}
	fmt.Printf("  Duration:  %s\n", result.DurationHuman)

	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
