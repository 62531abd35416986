// Package model defines the domain types used across the application.
package model

import "time"

// Urgency is the severity label derived from the urgency score.
type Urgency string

// Urgency levels, ordered from least to most severe.
const (
	UrgencyLow      Urgency = "Low"
	UrgencyMedium   Urgency = "Medium"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

// DedupPolicy selects how a source handles records that match an existing alert.
//
// Skip-only sources have no identifier reliable enough to update in place, so
// any match within the dedup window is skipped. Strong-key sources carry a
// stable external identifier (recall number, alert id) and update the existing
// row when fields change. The policy is per-source configuration; the two must
// not be unified.
type DedupPolicy string

// Supported duplicate-handling policies.
const (
	PolicySkipOnly  DedupPolicy = "skip-only"
	PolicyStrongKey DedupPolicy = "upsert-by-strong-key"
)

// SourceKind identifies the fetch mechanism a source uses.
type SourceKind string

// Supported source kinds.
const (
	KindFeed SourceKind = "feed"
	KindHTML SourceKind = "html"
	KindAPI  SourceKind = "api"
)

// Alert is the canonical normalized record produced by every source.
type Alert struct {
	ID            int64
	ExternalID    string
	Source        string
	Agency        string
	Title         string
	Summary       string
	FullContent   string
	ExternalURL   string
	PublishedDate time.Time
	DateUpdated   *time.Time
	// DateEstimated marks alerts whose published date was missing upstream
	// and was substituted with the fetch time.
	DateEstimated bool
	Urgency       Urgency
	UrgencyScore  int
	Jurisdiction  string
	Locations     []string
	ProductTypes  []string
	Category      string
	Hash          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Recall holds the recall-specific detail row written by strong-key recall
// sources alongside the alert.
type Recall struct {
	ID                 int64
	RecallNumber       string
	Source             string
	Classification     string
	Company            string
	ProductDescription string
	Reason             string
	States             []string
	Status             string
	RecallDate         time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UpsertAction describes what the deduplicator did with a single alert.
type UpsertAction string

// Possible upsert outcomes.
const (
	ActionInserted UpsertAction = "inserted"
	ActionUpdated  UpsertAction = "updated"
	ActionSkipped  UpsertAction = "skipped"
)

// SyncResult is the per-source outcome of one sync run. Immutable once the
// run finishes.
type SyncResult struct {
	Source     string    `json:"source"`
	Success    bool      `json:"success"`
	Fetched    int       `json:"fetched"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunStatus is the overall state of a sync run.
type RunStatus string

// Run states. A run is failed only when no source produced anything: either
// the datastore was unreachable before any source could be attempted, or
// every attempted source errored.
const (
	StatusPending        RunStatus = "pending"
	StatusRunning        RunStatus = "running"
	StatusSuccess        RunStatus = "success"
	StatusPartialSuccess RunStatus = "partial_success"
	StatusFailed         RunStatus = "failed"
)

// RunSummary aggregates all source results for one orchestrator invocation.
type RunSummary struct {
	RunID         string       `json:"runId"`
	Status        RunStatus    `json:"status"`
	Success       bool         `json:"success"`
	TotalFetched  int          `json:"totalFetched"`
	TotalInserted int          `json:"totalInserted"`
	TotalUpdated  int          `json:"totalUpdated"`
	TotalSkipped  int          `json:"totalSkipped"`
	Results       []SyncResult `json:"results"`
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
}

// SyncLog is one audit row in the sync_logs table. The orchestrator writes
// one row per run and one row per source.
type SyncLog struct {
	ID            int64
	RunID         string
	JobName       string
	Status        string
	RecordsSynced int
	ErrorMessage  string
	Metadata      string
	CreatedAt     time.Time
}
