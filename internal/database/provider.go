package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	backendMu      sync.RWMutex
	backendName    string
	reportWriter   func() ReportWriter
	galleryIndexer *GalleryIndex // Singleton for probe-only search acceleration
)

// RegisterBackend registers the report store constructor of a backend.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, writer func() ReportWriter) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	reportWriter = writer
}

// ResetBackend forgets the registered backend and gallery index.
func ResetBackend() {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = ""
	reportWriter = nil
	galleryIndexer = nil
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return reportWriter != nil
}

// BackendName returns the name of the registered backend, empty if none.
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// GetReportWriter returns a ReportWriter from the registered backend
func GetReportWriter(ctx context.Context) (ReportWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if reportWriter == nil {
		return nil, errors.New("report store not initialized: DATABASE_URL is required")
	}
	w := reportWriter()
	if w == nil {
		return nil, fmt.Errorf("%s backend returned no report store", backendName)
	}
	return w, nil
}

// RegisterGalleryIndex registers the shared in-memory gallery index.
func RegisterGalleryIndex(idx *GalleryIndex) {
	backendMu.Lock()
	defer backendMu.Unlock()
	galleryIndexer = idx
}

// GetGalleryIndex returns the registered gallery index, or nil if not registered.
func GetGalleryIndex() *GalleryIndex {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return galleryIndexer
}
