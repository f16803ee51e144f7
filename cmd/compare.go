package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/lost-trace/internal/extractor"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Compare the faces in two images",
	Long: `Extract a face signature from each image and print their distance.
Nothing is stored.

Examples:
  lost-trace compare missing.jpg found.jpg
  lost-trace compare missing.jpg found.jpg --threshold 0.5 --output yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Float64("threshold", -1, "Match threshold (defaults to MATCH_THRESHOLD)")
	compareCmd.Flags().StringP("output", "o", "text", "Output format: text, json or yaml")
}

// CompareResult is the outcome of comparing two images
type CompareResult struct {
	ImageA     string  `json:"image_a" yaml:"image_a"`
	ImageB     string  `json:"image_b" yaml:"image_b"`
	Distance   float64 `json:"distance" yaml:"distance"`
	Confidence string  `json:"confidence" yaml:"confidence"`
	Threshold  float64 `json:"threshold" yaml:"threshold"`
	Match      bool    `json:"match" yaml:"match"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	output := mustGetString(cmd, "output")
	if output != "text" && output != "json" && output != "yaml" {
		return fmt.Errorf("unknown output format %q", output)
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if threshold < 0 {
		threshold = cfg.Matching.Threshold
	}

	ex := newExtractor(cfg)
	signatures := make([]facematch.Signature, len(args))

	g, ctx := errgroup.WithContext(context.Background())
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			sig, err := ex.Extract(ctx, data)
			if errors.Is(err, extractor.ErrNoFaceDetected) {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err != nil {
				return fmt.Errorf("extracting signature from %s: %w", path, err)
			}
			signatures[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	distance := facematch.EuclideanDistance(signatures[0], signatures[1])
	result := CompareResult{
		ImageA:     args[0],
		ImageB:     args[1],
		Distance:   distance,
		Confidence: facematch.FormatConfidence(distance),
		Threshold:  threshold,
		Match:      facematch.WithinThreshold(distance, threshold),
	}

	switch output {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	}

	verdict := "different people"
	if result.Match {
		verdict = "same person"
	}
	fmt.Printf("Distance:   %.4f\n", result.Distance)
	fmt.Printf("Confidence: %s\n", result.Confidence)
	fmt.Printf("Threshold:  %.2f\n", result.Threshold)
	fmt.Printf("Verdict:    %s\n", verdict)
	return nil
}

func outputYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}
	return nil
}
