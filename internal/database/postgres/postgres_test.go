//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
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
		PersonName:     name,
		Age:            30,
		Gender:         database.GenderFemale,
		Description:    "last seen at the station",
		ImageURL:       "/images/reports/" + name + ".jpg",
		ImageStorageID: "reports/" + name + ".jpg",
		Signature:      sig,
		SubmittedBy:    submitter,
		SubmittedAt:    at,
	}
}

func TestReportRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewReportRepository(pool)
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	var firstID, secondID string

	t.Run("InsertAndGet", func(t *testing.T) {
		id, err := repo.Insert(ctx, testReport("anna", "user-1", testSignature(0.5), base))
		if err != nil {
			t.Fatalf("Failed to insert report: %v", err)
		}
		firstID = id

		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get report: %v", err)
		}
		if got == nil {
			t.Fatal("Expected report, got nil")
		}
		if got.Status != database.StatusOpen {
			t.Errorf("Expected status OPEN, got %s", got.Status)
		}
		if len(got.Signature) != facematch.SignatureDim {
			t.Errorf("Expected %d dimensions, got %d", facematch.SignatureDim, len(got.Signature))
		}
		if got.MatchedWith != "" {
			t.Errorf("Expected no link, got %q", got.MatchedWith)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		for _, id := range []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid"} {
			got, err := repo.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", id, err)
			}
			if got != nil {
				t.Errorf("Get(%q) = %+v, want nil", id, got)
			}
		}
	})

	t.Run("LegacyRowsRoundTrip", func(t *testing.T) {
		if _, err := repo.Insert(ctx, testReport("short", "user-2", make(facematch.Signature, 64), base.Add(time.Minute))); err != nil {
			t.Fatalf("Failed to insert short signature: %v", err)
		}
		if _, err := repo.Insert(ctx, testReport("none", "user-2", nil, base.Add(2*time.Minute))); err != nil {
			t.Fatalf("Failed to insert empty signature: %v", err)
		}

		all, err := repo.ScanAll(ctx)
		if err != nil {
			t.Fatalf("ScanAll failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Expected 3 reports, got %d", len(all))
		}

		missing, err := repo.ListWithoutSignature(ctx)
		if err != nil {
			t.Fatalf("ListWithoutSignature failed: %v", err)
		}
		if len(missing) != 2 {
			t.Errorf("Expected 2 reports without signature, got %d", len(missing))
		}
	})

	t.Run("ScanExcluding", func(t *testing.T) {
		id, err := repo.Insert(ctx, testReport("anna-again", "user-3", testSignature(0.5), base.Add(3*time.Minute)))
		if err != nil {
			t.Fatalf("Failed to insert report: %v", err)
		}
		secondID = id

		gallery, err := repo.ScanExcluding(ctx, secondID)
		if err != nil {
			t.Fatalf("ScanExcluding failed: %v", err)
		}
		for _, r := range gallery {
			if r.ID == secondID {
				t.Error("ScanExcluding returned the excluded report")
			}
		}
		if len(gallery) != 3 {
			t.Errorf("Expected 3 reports, got %d", len(gallery))
		}
	})

	t.Run("UpdateStatusAndLink", func(t *testing.T) {
		if err := repo.UpdateStatusAndLink(ctx, secondID, database.StatusMatched, firstID); err != nil {
			t.Fatalf("UpdateStatusAndLink failed: %v", err)
		}
		got, err := repo.Get(ctx, secondID)
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != database.StatusMatched || got.MatchedWith != firstID {
			t.Errorf("Expected MATCHED -> %s, got %s -> %s", firstID, got.Status, got.MatchedWith)
		}

		err = repo.UpdateStatusAndLink(ctx, secondID, database.StatusMatched, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, database.ErrReportNotFound) {
			t.Errorf("Expected ErrReportNotFound for missing target, got %v", err)
		}
	})

	t.Run("ListOrdering", func(t *testing.T) {
		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for i := 1; i < len(all); i++ {
			if all[i].SubmittedAt.After(all[i-1].SubmittedAt) {
				t.Error("List not ordered newest first")
			}
		}

		mine, err := repo.ListBySubmitter(ctx, "user-2")
		if err != nil {
			t.Fatalf("ListBySubmitter failed: %v", err)
		}
		if len(mine) != 2 {
			t.Errorf("Expected 2 reports for user-2, got %d", len(mine))
		}
	})

	t.Run("CountByStatus", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx)
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts.Total != 4 || counts.Matched != 1 || counts.Open != 3 || counts.MissingSignature != 2 {
			t.Errorf("Unexpected counts: %+v", counts)
		}
	})

	t.Run("DeleteClearsLinks", func(t *testing.T) {
		if err := repo.Delete(ctx, firstID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, err := repo.Get(ctx, secondID)
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.MatchedWith != "" {
			t.Errorf("Expected link cleared, got %q", got.MatchedWith)
		}
		if err := repo.Delete(ctx, firstID); !errors.Is(err, database.ErrReportNotFound) {
			t.Errorf("Expected ErrReportNotFound on second delete, got %v", err)
		}
	})

	t.Run("UpdateSignature", func(t *testing.T) {
		missing, err := repo.ListWithoutSignature(ctx)
		if err != nil || len(missing) == 0 {
			t.Fatalf("ListWithoutSignature failed: %v (%d)", err, len(missing))
		}
		if err := repo.UpdateSignature(ctx, missing[0].ID, testSignature(0.9)); err != nil {
			t.Fatalf("UpdateSignature failed: %v", err)
		}
		after, err := repo.ListWithoutSignature(ctx)
		if err != nil {
			t.Fatalf("ListWithoutSignature failed: %v", err)
		}
		if len(after) != len(missing)-1 {
			t.Errorf("Expected %d reports without signature, got %d", len(missing)-1, len(after))
		}
	})
}

func TestMigrationsIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(applied) == 0 || applied[0] != "001_reports.sql" {
		t.Errorf("Unexpected applied migrations: %v", applied)
	}
}

func TestMigrationStatus(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	states, err := pool.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if len(states) == 0 {
		t.Fatal("Expected at least one embedded migration")
	}
	for _, s := range states {
		if !s.Applied() {
			t.Errorf("Migration %s not applied after setup", s.Version)
		}
	}
}

func TestMigrateConcurrent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { errs <- pool.Migrate(ctx) }()
	}
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Concurrent migrate failed: %v", err)
		}
	}
}
