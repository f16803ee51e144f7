package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/lost-trace/internal/database"
)

// ImageSource loads stored report images by storage id.
type ImageSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// BackfillStats summarizes a backfill run.
type BackfillStats struct {
	Total   int `json:"total" yaml:"total"`
	Updated int `json:"updated" yaml:"updated"`
	NoFace  int `json:"no_face" yaml:"no_face"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Backfill computes signatures for reports stored without one.
// Backfilled reports are never linked; linking only happens at submission.
// progress, when set, is called once per processed report.
func (s *Service) Backfill(ctx context.Context, images ImageSource, workers int, progress func()) (*BackfillStats, error) {
	pending, err := s.store.ListWithoutSignature(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports without signature: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	var updated, noFace, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range pending {
		report := pending[i]
		g.Go(func() error {
			defer func() {
				if progress != nil {
					progress()
				}
			}()
			switch err := s.backfillOne(gctx, images, &report); {
			case err == nil:
				updated.Add(1)
			case errors.Is(err, ErrNoFaceDetected):
				noFace.Add(1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				log.WithError(err).WithField("report_id", report.ID).Warn("Backfill failed")
			}
			return nil
		})
	}

	err = g.Wait()
	stats := &BackfillStats{
		Total:   len(pending),
		Updated: int(updated.Load()),
		NoFace:  int(noFace.Load()),
		Failed:  int(failed.Load()),
	}
	return stats, err
}

func (s *Service) backfillOne(ctx context.Context, images ImageSource, report *database.Report) error {
	if report.ImageStorageID == "" {
		return errors.New("report has no stored image")
	}
	data, err := images.Get(ctx, report.ImageStorageID)
	if err != nil {
		return fmt.Errorf("load image %s: %w", report.ImageStorageID, err)
	}
	signature, err := s.extract(ctx, data)
	if err != nil {
		return err
	}
	return s.store.UpdateSignature(ctx, report.ID, signature)
}
