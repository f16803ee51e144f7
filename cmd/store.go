package cmd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/blobstore"
	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/database/postgres"
	"github.com/kozaktomas/lost-trace/internal/database/sqlite"
	"github.com/kozaktomas/lost-trace/internal/notify"
)

// openStore initializes the backend selected by DATABASE_URL and returns its report store.
// The returned func closes the backend.
func openStore(ctx context.Context, cfg *config.Config) (database.ReportWriter, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	var closeFn func()
	if path, ok := cfg.Database.SQLitePath(); ok {
		store, err := sqlite.Initialize(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		closeFn = func() { store.Close() }
	} else {
		log.Info("Connecting to PostgreSQL database...")
		if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		closeFn = func() { postgres.GetGlobalPool().Close() }
	}

	store, err := database.GetReportWriter(ctx)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	log.WithField("backend", database.BackendName()).Info("Report store ready")
	return store, closeFn, nil
}

// enableGalleryIndex wraps the registered store so its writes keep an HNSW index current,
// loads every stored signature and re-registers the wrapped store.
func enableGalleryIndex(ctx context.Context, store database.ReportWriter) (*database.IndexedStore, error) {
	idx := database.NewGalleryIndex()
	indexed := database.NewIndexedStore(store, idx)
	if err := indexed.Rebuild(ctx); err != nil {
		return nil, err
	}

	database.RegisterBackend(database.BackendName(), func() database.ReportWriter { return indexed })
	database.RegisterGalleryIndex(idx)
	log.WithField("reports", idx.Count()).Info("Gallery index built")
	return indexed, nil
}

// openBlobStore creates the blob store selected by STORAGE_BACKEND.
func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Storage.Backend {
	case "minio":
		m := cfg.Storage.MinIO
		store, err := blobstore.NewMinIOStore(ctx, blobstore.MinIOOptions{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
			PublicURL: m.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		log.WithFields(log.Fields{"endpoint": m.Endpoint, "bucket": m.Bucket}).Info("Storing images in MinIO")
		return store, nil
	default:
		store, err := blobstore.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open image directory: %w", err)
		}
		log.WithField("dir", cfg.Storage.Dir).Info("Storing images locally")
		return store, nil
	}
}

// openNotifier connects to the MQTT broker when one is configured.
// A broker that cannot be reached disables notifications instead of failing.
func openNotifier(cfg *config.Config) notify.Notifier {
	if !cfg.MQTT.Enabled() {
		return notify.Noop{}
	}
	n, err := notify.NewMQTTNotifier(notify.MQTTOptions{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	})
	if err != nil {
		log.WithError(err).Warn("MQTT unavailable, match notifications disabled")
		return notify.Noop{}
	}
	log.WithField("topic", n.Topic()).Info("Publishing match notifications")
	return n
}
