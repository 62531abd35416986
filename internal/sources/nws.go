package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"regiq/internal/config"
	"regiq/internal/fetch"
	"regiq/internal/model"
	"regiq/internal/normalize"
)

// NWSRecord is one active alert from the api.weather.gov alerts endpoint.
type NWSRecord struct {
	ID          string     `json:"id"`
	Event       string     `json:"event"`
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	AreaDesc    string     `json:"areaDesc"`
	Sent        time.Time  `json:"sent"`
	Effective   time.Time  `json:"effective"`
	Expires     *time.Time `json:"expires"`
	Status      string     `json:"status"`
}

type nwsResponse struct {
	Features []struct {
		Properties NWSRecord `json:"properties"`
	} `json:"features"`
}

// nwsAlerts polls the NWS active-alerts API. Alert ids are stable, so the
// source uses update-in-place semantics; the upstream severity field feeds
// the urgency base score.
type nwsAlerts struct {
	cfg config.SourceConfig
}

func newNWSAlerts(cfg config.SourceConfig) Source {
	return &nwsAlerts{cfg: cfg}
}

func (s *nwsAlerts) Config() config.SourceConfig { return s.cfg }

func (s *nwsAlerts) Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error) {
	var resp nwsResponse
	if err := fetch.JSON(ctx, client, s.cfg.URL, &resp); err != nil {
		return nil, err
	}

	var raws []RawRecord
	for _, f := range resp.Features {
		rec := f.Properties
		if !rec.Sent.IsZero() && rec.Sent.Before(since) {
			continue
		}
		// Exercise and draft messages are not public alerts.
		if rec.Status != "" && !strings.EqualFold(rec.Status, "actual") {
			continue
		}
		raws = append(raws, rec)
	}
	return raws, nil
}

func (s *nwsAlerts) Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error) {
	rec, ok := raw.(NWSRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", raw)
	}

	title := normalize.Title(rec.Headline)
	if title == "" {
		title = normalize.Title(rec.Event)
	}
	if title == "" {
		return nil, normalize.ErrEmptyRecord
	}

	published := rec.Sent
	if published.IsZero() {
		published = rec.Effective
	}
	estimated := published.IsZero()
	if estimated {
		published = fetchedAt
	}

	alert := &model.Alert{
		ExternalID:    model.NormalizeExternalID(rec.ID),
		Source:        s.cfg.Name,
		Agency:        s.cfg.Agency,
		Title:         title,
		Summary:       normalize.Summary(rec.Description),
		FullContent:   rec.Description,
		ExternalURL:   rec.ID,
		PublishedDate: published.UTC(),
		DateEstimated: estimated,
		Jurisdiction:  s.cfg.Jurisdiction,
		Locations:     splitList(rec.AreaDesc),
		Category:      s.cfg.Category,
	}
	alert.Hash = model.AlertHash(alert.Source, alert.ExternalID, alert.PublishedDate, alert.DateUpdated)
	return alert, nil
}

// ScoreBoost maps NWS severity onto the urgency base score.
func (s *nwsAlerts) ScoreBoost(raw RawRecord) int {
	rec, ok := raw.(NWSRecord)
	if !ok {
		return 0
	}
	switch strings.ToLower(rec.Severity) {
	case "extreme":
		return 6
	case "severe":
		return 4
	case "moderate":
		return 2
	default:
		return 0
	}
}
