package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"regiq/internal/config"
	"regiq/internal/fetch"
	"regiq/internal/model"
	"regiq/internal/normalize"
)

const (
	openFDADateLayout = "20060102"
	enforcementPage   = 100
)

// EnforcementRecord is one raw entry from the openFDA food enforcement API.
type EnforcementRecord struct {
	RecallNumber         string `json:"recall_number"`
	ReportDate           string `json:"report_date"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	Classification       string `json:"classification"`
	ProductDescription   string `json:"product_description"`
	ProductType          string `json:"product_type"`
	ReasonForRecall      string `json:"reason_for_recall"`
	RecallingFirm        string `json:"recalling_firm"`
	City                 string `json:"city"`
	State                string `json:"state"`
	DistributionPattern  string `json:"distribution_pattern"`
	Status               string `json:"status"`
	VoluntaryMandated    string `json:"voluntary_mandated"`
}

type enforcementResponse struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []EnforcementRecord `json:"results"`
}

// fdaEnforcement polls the openFDA food enforcement endpoint. The recall
// number is a strong key, so this source uses update-in-place semantics and
// also writes recall detail rows.
type fdaEnforcement struct {
	cfg config.SourceConfig
}

func newFDAEnforcement(cfg config.SourceConfig) Source {
	return &fdaEnforcement{cfg: cfg}
}

func (s *fdaEnforcement) Config() config.SourceConfig { return s.cfg }

// Fetch pages through enforcement reports filed since the lookback cutoff,
// stopping at an empty page or the configured page cap.
func (s *fdaEnforcement) Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error) {
	maxPages := s.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	var raws []RawRecord
	for page := 0; page < maxPages; page++ {
		pageURL, err := s.pageURL(since, page*enforcementPage)
		if err != nil {
			return nil, err
		}

		var resp enforcementResponse
		if err := fetch.JSON(ctx, client, pageURL, &resp); err != nil {
			// openFDA answers 404 for an empty result window.
			var statusErr *fetch.StatusError
			if page == 0 && errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
				return nil, nil
			}
			return nil, err
		}
		if len(resp.Results) == 0 {
			break
		}
		for _, rec := range resp.Results {
			raws = append(raws, rec)
		}
		if (page+1)*enforcementPage >= resp.Meta.Results.Total {
			break
		}
	}
	return raws, nil
}

func (s *fdaEnforcement) pageURL(since time.Time, skip int) (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", s.cfg.URL, err)
	}
	q := u.Query()
	q.Set("search", fmt.Sprintf("report_date:[%s TO %s]",
		since.UTC().Format(openFDADateLayout), time.Now().UTC().Format(openFDADateLayout)))
	q.Set("limit", strconv.Itoa(enforcementPage))
	q.Set("skip", strconv.Itoa(skip))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *fdaEnforcement) Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error) {
	rec, ok := raw.(EnforcementRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", raw)
	}

	product := normalize.Text(rec.ProductDescription)
	firm := normalize.Text(rec.RecallingFirm)
	if product == "" && firm == "" {
		return nil, normalize.ErrEmptyRecord
	}

	title := normalize.Truncate(fmt.Sprintf("%s recalls %s", firm, product), 200)
	body := fmt.Sprintf("%s Reason: %s Distribution: %s",
		rec.ProductDescription, rec.ReasonForRecall, rec.DistributionPattern)

	published, pubOK := parseOpenFDADate(rec.RecallInitiationDate)
	if !pubOK {
		published, pubOK = parseOpenFDADate(rec.ReportDate)
	}
	estimated := false
	if !pubOK {
		published = fetchedAt
		estimated = true
	}
	var updated *time.Time
	if reported, ok := parseOpenFDADate(rec.ReportDate); ok && !reported.Equal(published) {
		updated = &reported
	}

	var locations []string
	if rec.City != "" {
		locations = append(locations, rec.City)
	}
	if rec.State != "" {
		locations = append(locations, rec.State)
	}

	alert := &model.Alert{
		ExternalID:    model.NormalizeExternalID(rec.RecallNumber),
		Source:        s.cfg.Name,
		Agency:        s.cfg.Agency,
		Title:         title,
		Summary:       normalize.Summary(body),
		FullContent:   body,
		PublishedDate: published.UTC(),
		DateUpdated:   updated,
		DateEstimated: estimated,
		Jurisdiction:  s.cfg.Jurisdiction,
		Locations:     locations,
		ProductTypes:  nonEmpty(rec.ProductType),
		Category:      s.cfg.Category,
	}
	// Classification drives keyword scoring ("Class I" is a critical term).
	alert.FullContent = fmt.Sprintf("%s %s", rec.Classification, alert.FullContent)
	alert.Summary = normalize.Summary(alert.FullContent)
	alert.Hash = model.AlertHash(alert.Source, alert.ExternalID, alert.PublishedDate, alert.DateUpdated)
	return alert, nil
}

// Recall extracts the recalls-table detail row.
func (s *fdaEnforcement) Recall(raw RawRecord) *model.Recall {
	rec, ok := raw.(EnforcementRecord)
	if !ok {
		return nil
	}
	date, dateOK := parseOpenFDADate(rec.RecallInitiationDate)
	if !dateOK {
		date, _ = parseOpenFDADate(rec.ReportDate)
	}
	var states []string
	if rec.State != "" {
		states = append(states, rec.State)
	}
	return &model.Recall{
		RecallNumber:       rec.RecallNumber,
		Source:             s.cfg.Name,
		Classification:     rec.Classification,
		Company:            normalize.Text(rec.RecallingFirm),
		ProductDescription: normalize.Text(rec.ProductDescription),
		Reason:             normalize.Text(rec.ReasonForRecall),
		States:             states,
		Status:             rec.Status,
		RecallDate:         date.UTC(),
	}
}

func parseOpenFDADate(s string) (time.Time, bool) {
	t, err := time.Parse(openFDADateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
