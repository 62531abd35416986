// Package dedup implements the duplicate check and the two per-source
// duplicate-handling policies: skip-only and upsert-by-strong-key.
package dedup

import (
	"context"
	"fmt"
	"time"

	"regiq/internal/model"
	"regiq/internal/storage"
)

// Deduplicator decides whether an incoming alert is new, a duplicate to
// skip, or an existing record to update.
type Deduplicator struct {
	store  storage.Storage
	window time.Duration
}

// New creates a Deduplicator with the given trailing lookback window for
// the heuristic title+source duplicate check.
func New(store storage.Storage, windowDays int) *Deduplicator {
	if windowDays < 1 {
		windowDays = 7
	}
	return &Deduplicator{store: store, window: time.Duration(windowDays) * 24 * time.Hour}
}

// IsDuplicate reports whether an alert with the same title and source was
// published within the lookback window. External ids are not globally
// consistent across agencies, so this heuristic is the duplicate check for
// sources without a strong key. Equal titles published further apart than
// the window are treated as distinct; that false-negative risk is an
// accepted property of the heuristic.
func (d *Deduplicator) IsDuplicate(ctx context.Context, alert *model.Alert) (bool, error) {
	since := alert.PublishedDate.Add(-d.window)
	existing, err := d.store.FindAlertByTitle(ctx, alert.Source, alert.Title, since)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return existing != nil, nil
}

// Upsert applies the source's duplicate policy to one alert and reports
// what happened.
func (d *Deduplicator) Upsert(ctx context.Context, alert *model.Alert, policy model.DedupPolicy) (model.UpsertAction, error) {
	switch policy {
	case model.PolicyStrongKey:
		return d.upsertByStrongKey(ctx, alert)
	default:
		return d.insertOrSkip(ctx, alert)
	}
}

// insertOrSkip is the skip-only policy: any heuristic match is skipped,
// never reconciled, since these sources have no key reliable enough to
// update in place.
func (d *Deduplicator) insertOrSkip(ctx context.Context, alert *model.Alert) (model.UpsertAction, error) {
	dup, err := d.IsDuplicate(ctx, alert)
	if err != nil {
		return "", err
	}
	if dup {
		return model.ActionSkipped, nil
	}
	if err := d.store.InsertAlert(ctx, alert); err != nil {
		return "", err
	}
	return model.ActionInserted, nil
}

// upsertByStrongKey matches on the source-scoped external id and updates
// the existing row when fields changed; unchanged records are skipped so
// re-running a sync is idempotent.
func (d *Deduplicator) upsertByStrongKey(ctx context.Context, alert *model.Alert) (model.UpsertAction, error) {
	existing, err := d.store.FindAlertByExternalID(ctx, alert.Source, alert.ExternalID)
	if err != nil {
		return "", fmt.Errorf("strong key lookup: %w", err)
	}
	if existing == nil {
		if err := d.store.InsertAlert(ctx, alert); err != nil {
			return "", err
		}
		return model.ActionInserted, nil
	}

	if !changed(existing, alert) {
		return model.ActionSkipped, nil
	}

	alert.ID = existing.ID
	alert.CreatedAt = existing.CreatedAt
	if err := d.store.UpdateAlert(ctx, alert); err != nil {
		return "", err
	}
	return model.ActionUpdated, nil
}

func changed(existing, incoming *model.Alert) bool {
	return existing.Hash != incoming.Hash ||
		existing.Title != incoming.Title ||
		existing.Summary != incoming.Summary ||
		existing.FullContent != incoming.FullContent ||
		existing.ExternalURL != incoming.ExternalURL ||
		existing.Urgency != incoming.Urgency ||
		existing.UrgencyScore != incoming.UrgencyScore ||
		existing.Category != incoming.Category
}
