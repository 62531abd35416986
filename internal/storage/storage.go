// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"regiq/internal/model"
)

// AlertFilter narrows ListAlerts results. Zero-value fields are ignored.
type AlertFilter struct {
	Source  string
	Urgency string
	Since   *time.Time
	Limit   int
}

// Storage is the interface for all persistence operations. Find methods
// return (nil, nil) when no row matches.
type Storage interface {
	InsertAlert(ctx context.Context, alert *model.Alert) error
	UpdateAlert(ctx context.Context, alert *model.Alert) error
	FindAlertByTitle(ctx context.Context, source, title string, since time.Time) (*model.Alert, error)
	FindAlertByExternalID(ctx context.Context, source, externalID string) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error)

	UpsertRecall(ctx context.Context, recall *model.Recall) error

	InsertSyncLog(ctx context.Context, entry *model.SyncLog) error
	ListSyncLogs(ctx context.Context, limit int) ([]model.SyncLog, error)

	Ping(ctx context.Context) error
	Close() error
}
