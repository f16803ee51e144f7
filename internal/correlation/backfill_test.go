package correlation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/database/mock"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

type mapImages map[string][]byte

func (m mapImages) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestBackfill(t *testing.T) {
	store := mock.NewMockReportStore()
	store.AddReport(database.Report{ID: "done", Signature: at(0), Status: database.StatusOpen})
	store.AddReport(database.Report{ID: "legacy", ImageStorageID: "reports/legacy.jpg", Status: database.StatusOpen})
	store.AddReport(database.Report{ID: "blank", ImageStorageID: "reports/blank.jpg", Status: database.StatusOpen})
	store.AddReport(database.Report{ID: "lost", ImageStorageID: "reports/lost.jpg", Status: database.StatusOpen})
	store.AddReport(database.Report{ID: "noimage", Status: database.StatusOpen})

	images := mapImages{
		"reports/legacy.jpg": []byte("legacy"),
		"reports/blank.jpg":  []byte("blank"),
	}
	ex := newFakeExtractor()
	ex.signatures["legacy"] = at(0.1)
	ex.errs["blank"] = ErrNoFaceDetected

	var processed atomic.Int32
	svc := NewService(store, ex, facematch.DefaultThreshold)
	stats, err := svc.Backfill(context.Background(), images, 2, func() { processed.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.NoFace)
	assert.Equal(t, 2, stats.Failed)
	assert.EqualValues(t, 4, processed.Load())

	legacy, err := store.Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.True(t, legacy.HasSignature())
	assert.Equal(t, database.StatusOpen, legacy.Status, "backfill must not link")
	assert.Empty(t, store.UpdateLinkCalls)
}

func TestBackfill_ListError(t *testing.T) {
	store := mock.NewMockReportStore()
	store.ListError = errors.New("db gone")

	svc := NewService(store, newFakeExtractor(), facematch.DefaultThreshold)
	_, err := svc.Backfill(context.Background(), mapImages{}, 1, nil)
	require.Error(t, err)
}

func TestBackfill_Cancelled(t *testing.T) {
	store := mock.NewMockReportStore()
	store.AddReport(database.Report{ID: "legacy", ImageStorageID: "reports/legacy.jpg"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(store, newFakeExtractor(), facematch.DefaultThreshold)
	_, err := svc.Backfill(ctx, mapImages{}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
