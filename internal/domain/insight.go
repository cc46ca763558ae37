package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DemandLevel string

const (
	DemandHigh   DemandLevel = "HIGH"
	DemandMedium DemandLevel = "MEDIUM"
	DemandLow    DemandLevel = "LOW"
)

// Insight is the current state of one industry, written by the ingestion job.
type Insight struct {
	ID            uuid.UUID
	Industry      string
	GrowthRate    float64
	DemandLevel   DemandLevel
	MarketOutlook string
	UpdatedAt     time.Time
}

// InsightSnapshot is one row of the append-only history log.
type InsightSnapshot struct {
	GrowthRate    float64
	DemandLevel   DemandLevel
	MarketOutlook string
	RecordedAt    time.Time
}

// Snapshot captures the insight's current values at the given time.
func (i *Insight) Snapshot(at time.Time) InsightSnapshot {
	return InsightSnapshot{
		GrowthRate:    i.GrowthRate,
		DemandLevel:   i.DemandLevel,
		MarketOutlook: i.MarketOutlook,
		RecordedAt:    at,
	}
}

// InsightChange is the computed delta broadcast to an industry room.
type InsightChange struct {
	Industry       string      `json:"industry"`
	GrowthRateDiff float64     `json:"growthRateDiff"`
	DemandLevel    DemandLevel `json:"demandLevel"`
	MarketOutlook  string      `json:"marketOutlook"`
	Message        string      `json:"message"`
}

type InsightRepository interface {
	// GetInsight returns ErrUnknownIndustry when the industry has no insight row.
	GetInsight(ctx context.Context, industry string) (*Insight, error)

	// GetLatestHistory returns ErrNoHistory when nothing has been recorded yet.
	GetLatestHistory(ctx context.Context, industry string) (*InsightSnapshot, error)

	AppendHistory(ctx context.Context, industry string, snapshot InsightSnapshot) error
	ListIndustries(ctx context.Context) ([]string, error)
}
