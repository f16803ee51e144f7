package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// PostgreSQL error codes handled explicitly.
const (
	pqForeignKeyViolation = "23503"
	pqInvalidTextRep      = "22P02"
)

const reportColumns = `id, person_name, age, gender, description, image_url, image_storage_id,
	signature::text, status, matched_with, submitted_by, submitted_at`

// ReportRepository provides PostgreSQL-backed report storage.
type ReportRepository struct {
	pool *Pool
}

// NewReportRepository creates a new PostgreSQL report repository.
func NewReportRepository(pool *Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// signatureValue converts a signature to a query argument.
// Empty and non-finite signatures are stored as NULL since pgvector rejects NaN and Inf.
func signatureValue(sig facematch.Signature) any {
	if len(sig) == 0 {
		return nil
	}
	for _, v := range sig {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	}
	return pgvector.NewVector([]float32(sig))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isMissingRow reports whether err means the referenced row does not exist
// (foreign key violation or an id that is not a UUID).
func isMissingRow(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation || pqErr.Code == pqInvalidTextRep
	}
	return false
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Insert stores a new report in a single statement.
func (r *ReportRepository) Insert(ctx context.Context, report *database.Report) (string, error) {
	id := report.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := report.Status
	if status == "" {
		status = database.StatusOpen
	}
	submittedAt := report.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	query := `
		INSERT INTO reports (id, person_name, age, gender, description, image_url, image_storage_id,
		                     signature, status, matched_with, submitted_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		id,
		report.PersonName,
		report.Age,
		report.Gender,
		report.Description,
		report.ImageURL,
		report.ImageStorageID,
		signatureValue(report.Signature),
		string(status),
		nullString(report.MatchedWith),
		report.SubmittedBy,
		submittedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// Get retrieves a report by id, returns nil if not found.
func (r *ReportRepository) Get(ctx context.Context, id string) (*database.Report, error) {
	if !validID(id) {
		return nil, nil
	}

	row := r.pool.QueryRow(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = $1", id)
	report, err := scanReportRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns all reports, newest first.
func (r *ReportRepository) List(ctx context.Context) ([]database.Report, error) {
	return r.queryReports(ctx, "list reports",
		"SELECT "+reportColumns+" FROM reports ORDER BY submitted_at DESC, id")
}

// ListBySubmitter returns the reports of one submitter, newest first.
func (r *ReportRepository) ListBySubmitter(ctx context.Context, submitterID string) ([]database.Report, error) {
	return r.queryReports(ctx, "list reports by submitter",
		"SELECT "+reportColumns+" FROM reports WHERE submitted_by = $1 ORDER BY submitted_at DESC, id",
		submitterID)
}

// ScanAll returns every report including its signature, oldest first.
func (r *ReportRepository) ScanAll(ctx context.Context) ([]database.Report, error) {
	return r.queryReports(ctx, "scan reports",
		"SELECT "+reportColumns+" FROM reports ORDER BY submitted_at, id")
}

// ScanExcluding returns every report except id, oldest first.
func (r *ReportRepository) ScanExcluding(ctx context.Context, id string) ([]database.Report, error) {
	if !validID(id) {
		return r.ScanAll(ctx)
	}
	return r.queryReports(ctx, "scan reports",
		"SELECT "+reportColumns+" FROM reports WHERE id <> $1 ORDER BY submitted_at, id", id)
}

// ListWithoutSignature returns reports whose signature is absent or not comparable.
func (r *ReportRepository) ListWithoutSignature(ctx context.Context) ([]database.Report, error) {
	query := "SELECT " + reportColumns + ` FROM reports
		WHERE signature IS NULL OR vector_dims(signature) <> $1
		ORDER BY submitted_at, id`
	return r.queryReports(ctx, "list reports without signature", query, facematch.SignatureDim)
}

// Count returns the total number of reports stored.
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}

// CountByStatus returns per-status counts.
func (r *ReportRepository) CountByStatus(ctx context.Context) (*database.ReportCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'OPEN'),
		       COUNT(*) FILTER (WHERE status = 'MATCHED'),
		       COUNT(*) FILTER (WHERE signature IS NULL OR vector_dims(signature) <> $1)
		FROM reports
	`
	var c database.ReportCounts
	err := r.pool.QueryRow(ctx, query, facematch.SignatureDim).Scan(&c.Total, &c.Open, &c.Matched, &c.MissingSignature)
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	return &c, nil
}

// UpdateStatusAndLink sets status and matched_with in one statement.
// The foreign key on matched_with rejects links to reports that do not exist.
func (r *ReportRepository) UpdateStatusAndLink(
	ctx context.Context, id string, status database.Status, matchedWith string,
) error {
	if !validID(id) || (matchedWith != "" && !validID(matchedWith)) {
		return database.ErrReportNotFound
	}

	result, err := r.pool.Exec(ctx,
		"UPDATE reports SET status = $2, matched_with = $3 WHERE id = $1",
		id, string(status), nullString(matchedWith),
	)
	if err != nil {
		if isMissingRow(err) {
			return database.ErrReportNotFound
		}
		return fmt.Errorf("update report status: %w", err)
	}
	return requireAffected(result, "update report status")
}

// UpdateSignature replaces the stored signature of a report.
func (r *ReportRepository) UpdateSignature(ctx context.Context, id string, signature facematch.Signature) error {
	if !validID(id) {
		return database.ErrReportNotFound
	}

	result, err := r.pool.Exec(ctx, "UPDATE reports SET signature = $2 WHERE id = $1", id, signatureValue(signature))
	if err != nil {
		return fmt.Errorf("update report signature: %w", err)
	}
	return requireAffected(result, "update report signature")
}

// Delete removes a report. Links pointing at it are cleared by ON DELETE SET NULL.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return database.ErrReportNotFound
	}

	result, err := r.pool.Exec(ctx, "DELETE FROM reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireAffected(result, "delete report")
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return database.ErrReportNotFound
	}
	return nil
}

func (r *ReportRepository) queryReports(ctx context.Context, op, query string, args ...any) ([]database.Report, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanReports(rows)
}

func scanReports(rows *sql.Rows) ([]database.Report, error) {
	reports := make([]database.Report, 0)
	for rows.Next() {
		report, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// scanReportRow scans a row selected with reportColumns.
// An unreadable signature is logged and left empty so one bad row never breaks a scan.
func scanReportRow(scanner interface{ Scan(...any) error }) (database.Report, error) {
	var report database.Report
	var signature, matchedWith sql.NullString
	var status string

	err := scanner.Scan(
		&report.ID,
		&report.PersonName,
		&report.Age,
		&report.Gender,
		&report.Description,
		&report.ImageURL,
		&report.ImageStorageID,
		&signature,
		&status,
		&matchedWith,
		&report.SubmittedBy,
		&report.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report, err
		}
		return report, fmt.Errorf("scan report: %w", err)
	}

	report.Status = database.Status(status)
	if matchedWith.Valid {
		report.MatchedWith = matchedWith.String
	}
	if signature.Valid && len(signature.String) > 2 {
		var vec pgvector.Vector
		if err := vec.Parse(signature.String); err != nil {
			log.WithField("report_id", report.ID).WithError(err).Warn("Ignoring unreadable signature")
		} else {
			report.Signature = facematch.Signature(vec.Slice())
		}
	}
	return report, nil
}
