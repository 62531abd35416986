package sources

import (
	"context"
	"fmt"
	"time"

	"regiq/internal/config"
	"regiq/internal/fetch"
	"regiq/internal/model"
	"regiq/internal/normalize"
)

// feedSource covers all RSS/Atom-backed sources. Each feed entry becomes a
// fetch.FeedRecord; normalization is shared, with agency/category defaults
// coming from the source config.
type feedSource struct {
	cfg config.SourceConfig
}

func newFeedSource(cfg config.SourceConfig) Source {
	return &feedSource{cfg: cfg}
}

func (s *feedSource) Config() config.SourceConfig { return s.cfg }

// Fetch downloads the feed and drops entries published before since.
// Entries with no parseable date are kept; normalization assigns them a
// placeholder date.
func (s *feedSource) Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error) {
	records, err := fetch.Feed(ctx, client, s.cfg.URL)
	if err != nil {
		return nil, err
	}
	raws := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		if rec.Published != nil && rec.Published.Before(since) {
			continue
		}
		raws = append(raws, rec)
	}
	return raws, nil
}

func (s *feedSource) Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error) {
	rec, ok := raw.(fetch.FeedRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", raw)
	}

	// A record without a title is untrackable: the skip-only duplicate
	// check matches on title, so keeping it would collapse every titleless
	// record into one dedup bucket.
	title := normalize.Title(rec.Title)
	if title == "" {
		return nil, normalize.ErrEmptyRecord
	}
	body := rec.Content
	if body == "" {
		body = rec.Description
	}

	published := fetchedAt
	estimated := true
	if rec.Published != nil {
		published = *rec.Published
		estimated = false
	}

	externalID := rec.GUID
	if externalID == "" {
		externalID = rec.Link
	}

	alert := &model.Alert{
		ExternalID:    model.NormalizeExternalID(externalID),
		Source:        s.cfg.Name,
		Agency:        s.cfg.Agency,
		Title:         title,
		Summary:       normalize.Summary(body),
		FullContent:   body,
		ExternalURL:   rec.Link,
		PublishedDate: published.UTC(),
		DateUpdated:   rec.Updated,
		DateEstimated: estimated,
		Jurisdiction:  s.cfg.Jurisdiction,
		Category:      s.cfg.Category,
	}
	alert.Hash = model.AlertHash(alert.Source, alert.ExternalID, alert.PublishedDate, alert.DateUpdated)
	return alert, nil
}
