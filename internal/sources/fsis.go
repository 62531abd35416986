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

const fsisDateLayout = "2006-01-02"

// FSISRecord is one raw entry from the FSIS recall API.
type FSISRecord struct {
	Title          string `json:"field_title"`
	RecallNumber   string `json:"field_recall_number"`
	RecallDate     string `json:"field_recall_date"`
	Classification string `json:"field_recall_classification"`
	RiskLevel      string `json:"field_risk_level"`
	Reason         string `json:"field_recall_reason"`
	Summary        string `json:"field_summary"`
	ProductItems   string `json:"field_product_items"`
	Establishment  string `json:"field_establishment"`
	States         string `json:"field_states"`
	ActiveNotice   string `json:"field_active_notice"`
}

// fsisRecalls polls the FSIS recall API. Recall numbers are a strong key.
type fsisRecalls struct {
	cfg config.SourceConfig
}

func newFSISRecalls(cfg config.SourceConfig) Source {
	return &fsisRecalls{cfg: cfg}
}

func (s *fsisRecalls) Config() config.SourceConfig { return s.cfg }

// Fetch pulls the full recall list (the API is not paginated) and keeps
// entries inside the lookback window. Entries with unparseable dates are
// kept for normalization to flag.
func (s *fsisRecalls) Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error) {
	var records []FSISRecord
	if err := fetch.JSON(ctx, client, s.cfg.URL, &records); err != nil {
		return nil, err
	}

	var raws []RawRecord
	for _, rec := range records {
		if date, err := time.Parse(fsisDateLayout, rec.RecallDate); err == nil && date.Before(since) {
			continue
		}
		raws = append(raws, rec)
	}
	return raws, nil
}

func (s *fsisRecalls) Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error) {
	rec, ok := raw.(FSISRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", raw)
	}

	title := normalize.Title(rec.Title)
	if title == "" {
		return nil, normalize.ErrEmptyRecord
	}

	published, err := time.Parse(fsisDateLayout, rec.RecallDate)
	estimated := err != nil
	if estimated {
		published = fetchedAt
	}

	body := rec.Summary
	if body == "" {
		body = strings.TrimSpace(rec.Classification + " " + rec.Reason + " " + rec.ProductItems)
	}

	alert := &model.Alert{
		ExternalID:    model.NormalizeExternalID(rec.RecallNumber),
		Source:        s.cfg.Name,
		Agency:        s.cfg.Agency,
		Title:         title,
		Summary:       normalize.Summary(body),
		FullContent:   body,
		PublishedDate: published.UTC(),
		DateEstimated: estimated,
		Jurisdiction:  s.cfg.Jurisdiction,
		Locations:     splitList(rec.States),
		ProductTypes:  splitList(rec.ProductItems),
		Category:      s.cfg.Category,
	}
	alert.Hash = model.AlertHash(alert.Source, alert.ExternalID, alert.PublishedDate, alert.DateUpdated)
	return alert, nil
}

// ScoreBoost raises urgency for recalls FSIS marks high-risk.
func (s *fsisRecalls) ScoreBoost(raw RawRecord) int {
	rec, ok := raw.(FSISRecord)
	if !ok {
		return 0
	}
	switch strings.ToLower(rec.RiskLevel) {
	case "high":
		return 4
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// Recall extracts the recalls-table detail row.
func (s *fsisRecalls) Recall(raw RawRecord) *model.Recall {
	rec, ok := raw.(FSISRecord)
	if !ok {
		return nil
	}
	date, _ := time.Parse(fsisDateLayout, rec.RecallDate)
	return &model.Recall{
		RecallNumber:       rec.RecallNumber,
		Source:             s.cfg.Name,
		Classification:     rec.Classification,
		Company:            normalize.Text(rec.Establishment),
		ProductDescription: normalize.Text(rec.ProductItems),
		Reason:             normalize.Text(rec.Reason),
		States:             splitList(rec.States),
		Status:             rec.ActiveNotice,
		RecallDate:         date.UTC(),
	}
}

// splitList splits comma- or semicolon-delimited upstream lists.
func splitList(raw string) []string {
	var out []string
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
