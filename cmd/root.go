package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lost-trace",
	Short: "Match missing-person and found-person reports by face",
	Long: `Lost Trace stores missing and found person reports together with a face
signature of the reported person. Every new report is compared against all
earlier ones and linked to the closest report within the match threshold.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the configuration and sets up logging.
// The returned closer releases the log file.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg := config.Load()
	closer, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, closer, nil
}
