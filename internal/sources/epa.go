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

// epaRules extract news entries from the EPA newsroom listing. A site
// redesign shows up as zero extracted records, which Fetch reports as a
// permanent source error.
var epaRules = fetch.PageRules{
	Item:    ".views-row",
	Title:   "h3 a",
	Summary: "p",
	Date:    "time",
	Link:    "h3 a",
}

var epaDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// epaNews scrapes the EPA newsroom listing page. No reliable identifier
// exists beyond the article URL, so the source is skip-only.
type epaNews struct {
	cfg config.SourceConfig
}

func newEPANews(cfg config.SourceConfig) Source {
	return &epaNews{cfg: cfg}
}

func (s *epaNews) Config() config.SourceConfig { return s.cfg }

func (s *epaNews) Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error) {
	records, err := fetch.Page(ctx, client, s.cfg.URL, epaRules)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records extracted from %s (selector mismatch?)", s.cfg.URL)
	}

	var raws []RawRecord
	for _, rec := range records {
		if date, ok := parsePageDate(rec.DateText); ok && date.Before(since) {
			continue
		}
		raws = append(raws, rec)
	}
	return raws, nil
}

func (s *epaNews) Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error) {
	rec, ok := raw.(fetch.PageRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", raw)
	}

	title := normalize.Title(rec.Title)
	if title == "" {
		return nil, normalize.ErrEmptyRecord
	}

	published, dateOK := parsePageDate(rec.DateText)
	if !dateOK {
		published = fetchedAt
	}

	externalID := rec.Link
	if externalID == "" {
		externalID = title
	}

	alert := &model.Alert{
		ExternalID:    model.NormalizeExternalID(externalID),
		Source:        s.cfg.Name,
		Agency:        s.cfg.Agency,
		Title:         title,
		Summary:       normalize.Summary(rec.Summary),
		FullContent:   rec.Summary,
		ExternalURL:   rec.Link,
		PublishedDate: published.UTC(),
		DateEstimated: !dateOK,
		Jurisdiction:  s.cfg.Jurisdiction,
		Category:      s.cfg.Category,
	}
	alert.Hash = model.AlertHash(alert.Source, alert.ExternalID, alert.PublishedDate, alert.DateUpdated)
	return alert, nil
}

func parsePageDate(text string) (time.Time, bool) {
	for _, layout := range epaDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
