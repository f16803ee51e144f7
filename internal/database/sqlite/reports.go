package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// reportRow is the gorm model of the reports table.
// The signature is kept as a JSON array; signature_dim mirrors its length for cheap filtering.
type reportRow struct {
	ID             string `gorm:"primaryKey;type:text"`
	PersonName     string `gorm:"not null"`
	Age            int    `gorm:"not null"`
	Gender         string `gorm:"not null"`
	Description    string
	ImageURL       string
	ImageStorageID string
	Signature      datatypes.JSON
	SignatureDim   int       `gorm:"not null;default:0"`
	Status         string    `gorm:"not null;default:OPEN;index"`
	MatchedWith    *string   `gorm:"index"`
	SubmittedBy    string    `gorm:"not null;index"`
	SubmittedAt    time.Time `gorm:"not null;index"`
}

func (reportRow) TableName() string { return "reports" }

// ReportRepository provides SQLite-backed report storage.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new SQLite report repository.
func NewReportRepository(s *Store) *ReportRepository {
	return &ReportRepository{db: s.db}
}

// encodeSignature returns the JSON column value and stored length.
// Non-finite signatures cannot be JSON encoded and are stored as absent.
func encodeSignature(sig facematch.Signature) (datatypes.JSON, int) {
	if len(sig) == 0 {
		return nil, 0
	}
	for _, v := range sig {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, 0
		}
	}
	data, err := json.Marshal([]float32(sig))
	if err != nil {
		return nil, 0
	}
	return datatypes.JSON(data), len(sig)
}

func (row *reportRow) toReport() database.Report {
	r := database.Report{
		ID:             row.ID,
		PersonName:     row.PersonName,
		Age:            row.Age,
		Gender:         row.Gender,
		Description:    row.Description,
		ImageURL:       row.ImageURL,
		ImageStorageID: row.ImageStorageID,
		Status:         database.Status(row.Status),
		SubmittedBy:    row.SubmittedBy,
		SubmittedAt:    row.SubmittedAt,
	}
	if row.MatchedWith != nil {
		r.MatchedWith = *row.MatchedWith
	}
	if len(row.Signature) > 0 && string(row.Signature) != "null" {
		var sig []float32
		if err := json.Unmarshal(row.Signature, &sig); err != nil {
			log.WithField("report_id", row.ID).WithError(err).Warn("Ignoring unreadable signature")
		} else {
			r.Signature = facematch.Signature(sig)
		}
	}
	return r
}

func toReports(rows []reportRow) []database.Report {
	reports := make([]database.Report, len(rows))
	for i := range rows {
		reports[i] = rows[i].toReport()
	}
	return reports
}

// Insert stores a new report in a single statement.
func (r *ReportRepository) Insert(ctx context.Context, report *database.Report) (string, error) {
	row := reportRow{
		ID:             report.ID,
		PersonName:     report.PersonName,
		Age:            report.Age,
		Gender:         report.Gender,
		Description:    report.Description,
		ImageURL:       report.ImageURL,
		ImageStorageID: report.ImageStorageID,
		Status:         string(report.Status),
		SubmittedBy:    report.SubmittedBy,
		SubmittedAt:    report.SubmittedAt,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Status == "" {
		row.Status = string(database.StatusOpen)
	}
	if row.SubmittedAt.IsZero() {
		row.SubmittedAt = time.Now()
	}
	if report.MatchedWith != "" {
		link := report.MatchedWith
		row.MatchedWith = &link
	}
	row.Signature, row.SignatureDim = encodeSignature(report.Signature)

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return row.ID, nil
}

// Get retrieves a report by id, returns nil if not found.
func (r *ReportRepository) Get(ctx context.Context, id string) (*database.Report, error) {
	var row reportRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	report := row.toReport()
	return &report, nil
}

func (r *ReportRepository) find(ctx context.Context, op string, query func(*gorm.DB) *gorm.DB) ([]database.Report, error) {
	var rows []reportRow
	if err := query(r.db.WithContext(ctx)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toReports(rows), nil
}

// List returns all reports, newest first.
func (r *ReportRepository) List(ctx context.Context) ([]database.Report, error) {
	return r.find(ctx, "list reports", func(db *gorm.DB) *gorm.DB {
		return db.Order("submitted_at DESC").Order("id")
	})
}

// ListBySubmitter returns the reports of one submitter, newest first.
func (r *ReportRepository) ListBySubmitter(ctx context.Context, submitterID string) ([]database.Report, error) {
	return r.find(ctx, "list reports by submitter", func(db *gorm.DB) *gorm.DB {
		return db.Where("submitted_by = ?", submitterID).Order("submitted_at DESC").Order("id")
	})
}

// ScanAll returns every report including its signature, oldest first.
func (r *ReportRepository) ScanAll(ctx context.Context) ([]database.Report, error) {
	return r.find(ctx, "scan reports", func(db *gorm.DB) *gorm.DB {
		return db.Order("submitted_at").Order("id")
	})
}

// ScanExcluding returns every report except id, oldest first.
func (r *ReportRepository) ScanExcluding(ctx context.Context, id string) ([]database.Report, error) {
	return r.find(ctx, "scan reports", func(db *gorm.DB) *gorm.DB {
		return db.Where("id <> ?", id).Order("submitted_at").Order("id")
	})
}

// ListWithoutSignature returns reports whose signature is absent or not comparable.
func (r *ReportRepository) ListWithoutSignature(ctx context.Context) ([]database.Report, error) {
	return r.find(ctx, "list reports without signature", func(db *gorm.DB) *gorm.DB {
		return db.Where("signature_dim <> ?", facematch.SignatureDim).Order("submitted_at").Order("id")
	})
}

// Count returns the total number of reports stored.
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&reportRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return int(count), nil
}

// CountByStatus returns per-status counts.
func (r *ReportRepository) CountByStatus(ctx context.Context) (*database.ReportCounts, error) {
	var c struct {
		Total            int
		Open             int
		Matched          int
		MissingSignature int
	}
	err := r.db.WithContext(ctx).Model(&reportRow{}).Select(
		"COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS open, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS matched, "+
			"COALESCE(SUM(CASE WHEN signature_dim <> ? THEN 1 ELSE 0 END), 0) AS missing_signature",
		string(database.StatusOpen), string(database.StatusMatched), facematch.SignatureDim,
	).Scan(&c).Error
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	return &database.ReportCounts{
		Total:            c.Total,
		Open:             c.Open,
		Matched:          c.Matched,
		MissingSignature: c.MissingSignature,
	}, nil
}

// UpdateStatusAndLink sets status and matched_with in one transaction,
// refusing links to reports that do not exist.
func (r *ReportRepository) UpdateStatusAndLink(
	ctx context.Context, id string, status database.Status, matchedWith string,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link *string
		if matchedWith != "" {
			var n int64
			if err := tx.Model(&reportRow{}).Where("id = ?", matchedWith).Count(&n).Error; err != nil {
				return fmt.Errorf("check link target: %w", err)
			}
			if n == 0 {
				return database.ErrReportNotFound
			}
			link = &matchedWith
		}

		res := tx.Model(&reportRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":       string(status),
			"matched_with": link,
		})
		if res.Error != nil {
			return fmt.Errorf("update report status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return database.ErrReportNotFound
		}
		return nil
	})
}

// UpdateSignature replaces the stored signature of a report.
func (r *ReportRepository) UpdateSignature(ctx context.Context, id string, signature facematch.Signature) error {
	data, dim := encodeSignature(signature)
	res := r.db.WithContext(ctx).Model(&reportRow{}).Where("id = ?", id).Updates(map[string]any{
		"signature":     data,
		"signature_dim": dim,
	})
	if res.Error != nil {
		return fmt.Errorf("update report signature: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.ErrReportNotFound
	}
	return nil
}

// Delete removes a report and clears links pointing at it in the same transaction.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&reportRow{})
		if res.Error != nil {
			return fmt.Errorf("delete report: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return database.ErrReportNotFound
		}
		if err := tx.Model(&reportRow{}).Where("matched_with = ?", id).
			Update("matched_with", nil).Error; err != nil {
			return fmt.Errorf("clear links to report: %w", err)
		}
		return nil
	})
}
