package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID keys the advisory lock held while migrating, so that
// several instances starting together apply each file once.
const migrationLockID = 7_310_442_001

type migration struct {
	version string
	sql     string
}

// MigrationState describes one embedded migration and when it was applied.
type MigrationState struct {
	Version   string     `json:"version"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Applied reports whether the migration has run.
func (m MigrationState) Applied() bool { return m.AppliedAt != nil }

func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := migrationsFS.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(content)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func ensureMigrationsTable(ctx context.Context, q querier) error {
	_, err := q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// appliedAt maps each applied version to its timestamp.
func appliedAt(ctx context.Context, q querier) (map[string]time.Time, error) {
	rows, err := q.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var (
			v  string
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Migrate applies every pending migration, each in its own transaction.
func (p *Pool) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.WithError(err).Warn("Failed to release migration lock")
		}
	}()

	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return err
	}
	applied, err := appliedAt(ctx, conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.version]; ok {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
		log.WithField("migration", m.version).Info("Applied migration")
	}
	return nil
}

func applyMigration(ctx context.Context, conn *sql.Conn, m migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", m.version, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}

// MigrationStatus lists every embedded migration with its applied time, if any.
func (p *Pool) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, p.db); err != nil {
		return nil, err
	}
	applied, err := appliedAt(ctx, p.db)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		state := MigrationState{Version: m.version}
		if at, ok := applied[m.version]; ok {
			state.AppliedAt = &at
		}
		states = append(states, state)
	}
	return states, nil
}

// MigrationsApplied returns the versions of applied migrations in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	states, err := p.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, s := range states {
		if s.Applied() {
			versions = append(versions, s.Version)
		}
	}
	return versions, nil
}
