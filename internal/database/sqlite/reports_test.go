package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

func setupStore(t *testing.T) *ReportRepository {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewReportRepository(store)
}

func testSignature(x float32) facematch.Signature {
	s := make(facematch.Signature, facematch.SignatureDim)
	for i := range s {
		s[i] = x / float32(i+1)
	}
	return s
}

func testReport(name, submitter string, sig facematch.Signature, at time.Time) *database.Report {
	return &database.Report{
		PersonName:  name,
		Age:         12,
		Gender:      database.GenderMale,
		ImageURL:    "/images/" + name + ".jpg",
		Signature:   sig,
		SubmittedBy: submitter,
		SubmittedAt: at,
	}
}

func TestReportRepository_InsertAndGet(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, testReport("tom", "user-1", testSignature(0.3), time.Time{}))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected report, got nil")
	}
	if got.Status != database.StatusOpen {
		t.Errorf("expected OPEN, got %s", got.Status)
	}
	if got.SubmittedAt.IsZero() {
		t.Error("expected submitted_at to be set")
	}
	if len(got.Signature) != facematch.SignatureDim {
		t.Fatalf("expected %d dims, got %d", facematch.SignatureDim, len(got.Signature))
	}
	if math.Abs(float64(got.Signature[1]-0.15)) > 1e-6 {
		t.Errorf("signature not round-tripped: %v", got.Signature[1])
	}

	missing, err := repo.Get(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestReportRepository_LegacySignatures(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	broken := testSignature(1)
	broken[0] = float32(math.NaN())

	inputs := []facematch.Signature{testSignature(1), make(facematch.Signature, 64), nil, broken}
	for i, sig := range inputs {
		if _, err := repo.Insert(ctx, testReport("p", "u", sig, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	all, err := repo.ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(all))
	}
	if len(all[1].Signature) != 64 {
		t.Errorf("expected short signature to round-trip, got %d", len(all[1].Signature))
	}
	if all[2].Signature != nil || all[3].Signature != nil {
		t.Error("expected absent signatures for nil and non-finite input")
	}

	without, err := repo.ListWithoutSignature(ctx)
	if err != nil {
		t.Fatalf("ListWithoutSignature failed: %v", err)
	}
	if len(without) != 3 {
		t.Errorf("expected 3 reports without signature, got %d", len(without))
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts.Total != 4 || counts.Open != 4 || counts.MissingSignature != 3 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestReportRepository_LinkAndDelete(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first, _ := repo.Insert(ctx, testReport("a", "user-1", testSignature(1), base))
	second, _ := repo.Insert(ctx, testReport("b", "user-2", testSignature(1), base.Add(time.Minute)))

	gallery, err := repo.ScanExcluding(ctx, second)
	if err != nil {
		t.Fatalf("ScanExcluding failed: %v", err)
	}
	if len(gallery) != 1 || gallery[0].ID != first {
		t.Fatalf("unexpected gallery %+v", gallery)
	}

	if err := repo.UpdateStatusAndLink(ctx, second, database.StatusMatched, first); err != nil {
		t.Fatalf("UpdateStatusAndLink failed: %v", err)
	}
	got, _ := repo.Get(ctx, second)
	if got.Status != database.StatusMatched || got.MatchedWith != first {
		t.Errorf("expected MATCHED -> %s, got %s -> %s", first, got.Status, got.MatchedWith)
	}

	if err := repo.UpdateStatusAndLink(ctx, second, database.StatusMatched, "ghost"); !errors.Is(err, database.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound for missing target, got %v", err)
	}
	if err := repo.UpdateStatusAndLink(ctx, "ghost", database.StatusMatched, first); !errors.Is(err, database.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound for missing report, got %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 2 || list[0].ID != second {
		t.Errorf("List should be newest first: %+v, %v", list, err)
	}
	mine, err := repo.ListBySubmitter(ctx, "user-1")
	if err != nil || len(mine) != 1 || mine[0].ID != first {
		t.Errorf("ListBySubmitter: %+v, %v", mine, err)
	}

	if err := repo.Delete(ctx, first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = repo.Get(ctx, second)
	if got.MatchedWith != "" {
		t.Errorf("expected link cleared after delete, got %q", got.MatchedWith)
	}
	if err := repo.Delete(ctx, first); !errors.Is(err, database.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepository_UpdateSignature(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()

	id, _ := repo.Insert(ctx, testReport("c", "u", nil, time.Time{}))
	if err := repo.UpdateSignature(ctx, id, testSignature(0.7)); err != nil {
		t.Fatalf("UpdateSignature failed: %v", err)
	}
	got, _ := repo.Get(ctx, id)
	if !got.HasSignature() {
		t.Error("expected signature after update")
	}
	if err := repo.UpdateSignature(ctx, "ghost", testSignature(0.7)); !errors.Is(err, database.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepository_ConcurrentInserts(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Insert(ctx, testReport("c", "u", testSignature(float32(i)), time.Time{})); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent insert failed: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil || count != 20 {
		t.Errorf("Count() = %d, %v; want 20", count, err)
	}
}
