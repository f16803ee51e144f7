package database

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// IndexedStore keeps a GalleryIndex in sync with the writes of a ReportWriter.
// The wrapped store stays the source of truth; the index only follows committed writes.
type IndexedStore struct {
	ReportWriter
	index *GalleryIndex
}

// NewIndexedStore wraps w so its writes are mirrored into index.
func NewIndexedStore(w ReportWriter, index *GalleryIndex) *IndexedStore {
	return &IndexedStore{ReportWriter: w, index: index}
}

// Index returns the maintained gallery index.
func (s *IndexedStore) Index() *GalleryIndex {
	return s.index
}

// Rebuild loads every report from the store into the index.
func (s *IndexedStore) Rebuild(ctx context.Context) error {
	reports, err := s.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}
	s.index.Rebuild(reports)
	return nil
}

// Insert stores the report and indexes its signature.
func (s *IndexedStore) Insert(ctx context.Context, report *Report) (string, error) {
	id, err := s.ReportWriter.Insert(ctx, report)
	if err != nil {
		return "", err
	}
	s.index.Add(id, report.Signature)
	return id, nil
}

// UpdateSignature stores the signature and re-indexes the report.
func (s *IndexedStore) UpdateSignature(ctx context.Context, id string, signature facematch.Signature) error {
	if err := s.ReportWriter.UpdateSignature(ctx, id, signature); err != nil {
		return err
	}
	if signature.Valid() {
		s.index.Add(id, signature)
	} else {
		s.index.Delete(id)
	}
	return nil
}

// Delete removes the report and drops it from the index.
func (s *IndexedStore) Delete(ctx context.Context, id string) error {
	if err := s.ReportWriter.Delete(ctx, id); err != nil {
		return err
	}
	s.index.Delete(id)
	return nil
}
