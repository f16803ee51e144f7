// Package logger configures the global logrus logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init sets level, formatter and output of the global logger.
// The returned Closer releases the log file, if one was opened.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
		log.SetOutput(os.Stdout)
		return nopCloser{}, err
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
	if err != nil {
		log.SetOutput(os.Stdout)
		return nopCloser{}, err
	}

	// stdout stays for container logs
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}
