// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// MockReportStore is a mock implementation of database.ReportWriter
type MockReportStore struct {
	mu      sync.RWMutex
	reports map[string]*database.Report
	order   []string // insertion order
	now     func() time.Time

	// Track calls
	InsertCalls          []database.Report
	UpdateLinkCalls      []UpdateLinkCall
	UpdateSignatureCalls []string
	DeleteCalls          []string

	// Error injection
	InsertError          error
	GetError             error
	ListError            error
	ScanError            error
	UpdateLinkError      error
	UpdateSignatureError error
	DeleteError          error
	CountError           error
}

// UpdateLinkCall tracks an UpdateStatusAndLink call
type UpdateLinkCall struct {
	ID          string
	Status      database.Status
	MatchedWith string
}

// NewMockReportStore creates a new mock report store
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{
		reports: make(map[string]*database.Report),
		now:     time.Now,
	}
}

// AddReport adds a report to the mock store without recording an Insert call
func (m *MockReportStore) AddReport(r database.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(r)
}

func (m *MockReportStore) put(r database.Report) {
	if _, exists := m.reports[r.ID]; !exists {
		m.order = append(m.order, r.ID)
	}
	r.Signature = cloneSignature(r.Signature)
	m.reports[r.ID] = &r
}

func cloneSignature(s facematch.Signature) facematch.Signature {
	if s == nil {
		return nil
	}
	return append(facematch.Signature(nil), s...)
}

// snapshot returns reports in insertion order, filtered by keep.
func (m *MockReportStore) snapshot(keep func(*database.Report) bool) []database.Report {
	out := make([]database.Report, 0, len(m.order))
	for _, id := range m.order {
		r, ok := m.reports[id]
		if !ok || (keep != nil && !keep(r)) {
			continue
		}
		c := *r
		c.Signature = cloneSignature(r.Signature)
		out = append(out, c)
	}
	return out
}

func newestFirst(reports []database.Report) []database.Report {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].SubmittedAt.After(reports[j].SubmittedAt)
	})
	return reports
}

// Insert stores a new report
func (m *MockReportStore) Insert(ctx context.Context, report *database.Report) (string, error) {
	if m.InsertError != nil {
		return "", m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *report
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = database.StatusOpen
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = m.now()
	}
	m.InsertCalls = append(m.InsertCalls, r)
	m.put(r)
	return r.ID, nil
}

// Get retrieves a report by id
func (m *MockReportStore) Get(ctx context.Context, id string) (*database.Report, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	c := *r
	c.Signature = cloneSignature(r.Signature)
	return &c, nil
}

// List returns all reports, newest first
func (m *MockReportStore) List(ctx context.Context) ([]database.Report, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.snapshot(nil)), nil
}

// ListBySubmitter returns reports of one submitter, newest first
func (m *MockReportStore) ListBySubmitter(ctx context.Context, submitterID string) ([]database.Report, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.snapshot(func(r *database.Report) bool {
		return r.SubmittedBy == submitterID
	})), nil
}

// ScanAll returns every report in insertion order
func (m *MockReportStore) ScanAll(ctx context.Context) ([]database.Report, error) {
	if m.ScanError != nil {
		return nil, m.ScanError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(nil), nil
}

// ScanExcluding returns every report except id, in insertion order
func (m *MockReportStore) ScanExcluding(ctx context.Context, id string) ([]database.Report, error) {
	if m.ScanError != nil {
		return nil, m.ScanError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(func(r *database.Report) bool { return r.ID != id }), nil
}

// ListWithoutSignature returns reports without a comparable signature
func (m *MockReportStore) ListWithoutSignature(ctx context.Context) ([]database.Report, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(func(r *database.Report) bool { return !r.Signature.Valid() }), nil
}

// Count returns the number of reports
func (m *MockReportStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports), nil
}

// CountByStatus returns per-status counts
func (m *MockReportStore) CountByStatus(ctx context.Context) (*database.ReportCounts, error) {
	if m.CountError != nil {
		return nil, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := &database.ReportCounts{}
	for _, r := range m.reports {
		counts.Total++
		switch r.Status {
		case database.StatusOpen:
			counts.Open++
		case database.StatusMatched:
			counts.Matched++
		}
		if !r.Signature.Valid() {
			counts.MissingSignature++
		}
	}
	return counts, nil
}

// UpdateStatusAndLink sets status and link of a report
func (m *MockReportStore) UpdateStatusAndLink(ctx context.Context, id string, status database.Status, matchedWith string) error {
	if m.UpdateLinkError != nil {
		return m.UpdateLinkError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reports[id]
	if !ok {
		return database.ErrReportNotFound
	}
	if matchedWith != "" {
		if _, ok := m.reports[matchedWith]; !ok {
			return database.ErrReportNotFound
		}
	}
	m.UpdateLinkCalls = append(m.UpdateLinkCalls, UpdateLinkCall{ID: id, Status: status, MatchedWith: matchedWith})
	r.Status = status
	r.MatchedWith = matchedWith
	return nil
}

// UpdateSignature replaces the signature of a report
func (m *MockReportStore) UpdateSignature(ctx context.Context, id string, signature facematch.Signature) error {
	if m.UpdateSignatureError != nil {
		return m.UpdateSignatureError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reports[id]
	if !ok {
		return database.ErrReportNotFound
	}
	m.UpdateSignatureCalls = append(m.UpdateSignatureCalls, id)
	r.Signature = cloneSignature(signature)
	return nil
}

// Delete removes a report and clears links pointing at it
func (m *MockReportStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[id]; !ok {
		return database.ErrReportNotFound
	}
	m.DeleteCalls = append(m.DeleteCalls, id)
	delete(m.reports, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for _, r := range m.reports {
		if r.MatchedWith == id {
			r.MatchedWith = ""
		}
	}
	return nil
}
