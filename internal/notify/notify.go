// Package notify publishes events about newly matched reports.
package notify

import (
	"context"
	"time"
)

// MatchEvent is published whenever a new report is linked to an earlier one.
type MatchEvent struct {
	ReportID    string    `json:"report_id"`
	MatchedWith string    `json:"matched_with"`
	PersonName  string    `json:"person_name"`
	Distance    float64   `json:"distance"`
	Confidence  string    `json:"confidence"`
	MatchedAt   time.Time `json:"matched_at"`
}

// Notifier delivers match events.
type Notifier interface {
	NotifyMatch(ctx context.Context, event MatchEvent) error
	Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) NotifyMatch(context.Context, MatchEvent) error { return nil }

func (Noop) Close() {}
