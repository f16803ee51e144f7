package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/extractor"
	"github.com/kozaktomas/lost-trace/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Lost Trace API server.
Reports are submitted as multipart uploads under /api/v1/reports; every
submission is matched against all stored reports before the response is sent.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies the host and port flags over the configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// newExtractor creates a client for the configured extractor sidecar.
func newExtractor(cfg *config.Config) *extractor.Extractor {
	return extractor.New(cfg.Embedding.URL, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	resolveServeHostPort(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var opts []correlation.Option
	if cfg.Matching.GalleryIndex {
		indexed, err := enableGalleryIndex(ctx, store)
		if err != nil {
			log.WithError(err).Warn("Failed to build gallery index, searches will scan the full gallery")
		} else {
			store = indexed
			opts = append(opts, correlation.WithGalleryIndex(indexed.Index()))
		}
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	notifier := openNotifier(cfg)
	defer notifier.Close()
	opts = append(opts, correlation.WithNotifier(notifier))

	ex := newExtractor(cfg)
	if err := ex.Init(ctx); err != nil {
		// retried on the first submission
		log.WithError(err).Warn("Extractor sidecar not reachable yet")
	} else {
		log.WithField("model", ex.Model()).Info("Extractor sidecar ready")
	}

	service := correlation.NewService(store, ex, cfg.Matching.Threshold, opts...)
	server := web.NewServer(cfg, web.Dependencies{Service: service, Blobs: blobs})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error during shutdown")
		}
	}()

	log.WithFields(log.Fields{
		"threshold": service.Threshold(),
		"storage":   cfg.Storage.Backend,
	}).Infof("Starting Lost Trace on http://%s:%d", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
