package sources

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"regiq/internal/config"
	"regiq/internal/fetch"
	"regiq/internal/model"
	"regiq/internal/normalize"
)

var (
	testRetry = config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	fetchedAt = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func stubClient(status int, body string) *fetch.Client {
	return fetch.NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}), "test-agent", testRetry)
}

func TestBuild(t *testing.T) {
	srcs, err := Build(Defaults())
	if err != nil {
		t.Fatalf("build defaults: %v", err)
	}
	if len(srcs) != len(Defaults()) {
		t.Errorf("built %d sources, want %d", len(srcs), len(Defaults()))
	}

	disabled := false
	cfgs := Defaults()
	cfgs[0].Enabled = &disabled
	srcs, err = Build(cfgs)
	if err != nil {
		t.Fatalf("build with disabled: %v", err)
	}
	if len(srcs) != len(cfgs)-1 {
		t.Errorf("built %d sources, want %d", len(srcs), len(cfgs)-1)
	}
	for _, src := range srcs {
		if src.Config().Name == cfgs[0].Name {
			t.Errorf("disabled source %q was built", cfgs[0].Name)
		}
	}

	if _, err := Build([]config.SourceConfig{{Name: "usda_mystery"}}); err == nil {
		t.Error("expected error for unregistered source")
	}
}

func TestFeedSourceNormalize(t *testing.T) {
	src := newFeedSource(config.SourceConfig{
		Name: "fda_recalls", Agency: "FDA", Category: "recall", Jurisdiction: "US",
	})

	published := time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC)
	alert, err := src.Normalize(fetch.FeedRecord{
		Title:       "  Acme Foods Recalls <b>Frozen Peas</b>  ",
		Description: "<p>Possible listeria contamination.</p>",
		Link:        "https://www.fda.gov/recalls/acme",
		GUID:        "acme-peas-001",
		Published:   &published,
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.Title != "Acme Foods Recalls Frozen Peas" {
		t.Errorf("Title = %q", alert.Title)
	}
	if alert.ExternalID != model.NormalizeExternalID("acme-peas-001") {
		t.Errorf("ExternalID = %q", alert.ExternalID)
	}
	if !alert.PublishedDate.Equal(published) || alert.DateEstimated {
		t.Errorf("date = %v estimated=%v", alert.PublishedDate, alert.DateEstimated)
	}
	if alert.Summary != "Possible listeria contamination." {
		t.Errorf("Summary = %q", alert.Summary)
	}
	if alert.Hash == "" {
		t.Error("hash not set")
	}

	// No GUID falls back to the link as the external id.
	alert, err = src.Normalize(fetch.FeedRecord{
		Title: "Other recall", Link: "https://www.fda.gov/recalls/other",
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize without guid: %v", err)
	}
	if alert.ExternalID != model.NormalizeExternalID("https://www.fda.gov/recalls/other") {
		t.Errorf("ExternalID = %q", alert.ExternalID)
	}
	// No published date means the fetch time stands in, flagged as estimated.
	if !alert.DateEstimated || !alert.PublishedDate.Equal(fetchedAt) {
		t.Errorf("estimated date: %v estimated=%v", alert.PublishedDate, alert.DateEstimated)
	}

	if _, err := src.Normalize(fetch.FeedRecord{Title: " ", Description: "<br/>"}, fetchedAt); err != normalize.ErrEmptyRecord {
		t.Errorf("empty record error = %v", err)
	}
}

// A body alone is not enough: records whose normalized title is empty are
// dropped, since the duplicate check keys on title.
func TestNormalizeDropsTitlelessRecords(t *testing.T) {
	feed := newFeedSource(config.SourceConfig{Name: "fda_recalls"})
	fsis := newFSISRecalls(config.SourceConfig{Name: "fsis_recalls"})
	epa := newEPANews(config.SourceConfig{Name: "epa_news"})
	nws := newNWSAlerts(config.SourceConfig{Name: "nws_alerts"})

	tests := []struct {
		name string
		src  Source
		raw  RawRecord
	}{
		{"feed", feed, fetch.FeedRecord{Title: "", Description: "Some notice"}},
		{"feed markup title", feed, fetch.FeedRecord{Title: "<b></b>", Description: "Some notice"}},
		{"fsis", fsis, FSISRecord{Title: "", Summary: "Some notice", RecallNumber: "001-2026"}},
		{"epa", epa, fetch.PageRecord{Title: "", Summary: "Some notice", Link: "https://www.epa.gov/x"}},
		{"nws", nws, NWSRecord{ID: "urn:x", Description: "Some notice", Sent: fetchedAt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.src.Normalize(tt.raw, fetchedAt); err != normalize.ErrEmptyRecord {
				t.Errorf("err = %v, want ErrEmptyRecord", err)
			}
		})
	}
}

func TestFDAEnforcementNormalize(t *testing.T) {
	src := newFDAEnforcement(config.SourceConfig{
		Name: "fda_enforcement", Agency: "FDA", Category: "enforcement", Jurisdiction: "US",
	})

	rec := EnforcementRecord{
		RecallNumber:         "f-1234-2026",
		ReportDate:           "20260819",
		RecallInitiationDate: "20260815",
		Classification:       "Class I",
		ProductDescription:   "Frozen peas, 16 oz bags",
		ProductType:          "Food",
		ReasonForRecall:      "Listeria monocytogenes contamination",
		RecallingFirm:        "Acme Foods",
		City:                 "Fresno",
		State:                "CA",
		Status:               "Ongoing",
	}

	alert, err := src.Normalize(rec, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.Title != "Acme Foods recalls Frozen peas, 16 oz bags" {
		t.Errorf("Title = %q", alert.Title)
	}
	if alert.ExternalID != "F-1234-2026" {
		t.Errorf("ExternalID = %q", alert.ExternalID)
	}
	wantDate := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !alert.PublishedDate.Equal(wantDate) {
		t.Errorf("PublishedDate = %v", alert.PublishedDate)
	}
	if alert.DateUpdated == nil || !alert.DateUpdated.Equal(time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateUpdated = %v", alert.DateUpdated)
	}
	if !strings.HasPrefix(alert.FullContent, "Class I ") {
		t.Errorf("classification not prepended: %q", alert.FullContent)
	}
	if len(alert.Locations) != 2 {
		t.Errorf("Locations = %v", alert.Locations)
	}

	extractor, ok := src.(RecallExtractor)
	if !ok {
		t.Fatal("fda_enforcement should extract recalls")
	}
	recall := extractor.Recall(rec)
	if recall == nil {
		t.Fatal("expected recall row")
	}
	if recall.RecallNumber != "f-1234-2026" || recall.Classification != "Class I" {
		t.Errorf("recall = %+v", recall)
	}
	if !recall.RecallDate.Equal(wantDate) {
		t.Errorf("RecallDate = %v", recall.RecallDate)
	}
}

func TestFDAEnforcementEmptyWindow(t *testing.T) {
	src := newFDAEnforcement(Defaults()[1])
	client := stubClient(404, `{"error":{"code":"NOT_FOUND"}}`)

	raws, err := src.Fetch(context.Background(), client, fetchedAt.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("empty window should not error: %v", err)
	}
	if raws != nil {
		t.Errorf("got %d records, want none", len(raws))
	}
}

func TestFSISScoreBoost(t *testing.T) {
	src := newFSISRecalls(config.SourceConfig{Name: "fsis_recalls"})
	booster := src.(ScoreBooster)

	tests := []struct {
		risk string
		want int
	}{
		{"High", 4},
		{"high", 4},
		{"Medium", 2},
		{"Low", 1},
		{"", 0},
		{"Marginal", 0},
	}
	for _, tt := range tests {
		if got := booster.ScoreBoost(FSISRecord{RiskLevel: tt.risk}); got != tt.want {
			t.Errorf("ScoreBoost(%q) = %d, want %d", tt.risk, got, tt.want)
		}
	}
}

func TestFSISNormalize(t *testing.T) {
	src := newFSISRecalls(config.SourceConfig{
		Name: "fsis_recalls", Agency: "FSIS", Category: "recall", Jurisdiction: "US",
	})

	alert, err := src.Normalize(FSISRecord{
		Title:          "Acme Meats Recalls Ground Beef",
		RecallNumber:   "012-2026",
		RecallDate:     "2026-08-16",
		Classification: "Class I",
		Reason:         "E. coli O157:H7",
		Summary:        "Acme Meats is recalling ground beef products.",
		ProductItems:   "Ground beef, Beef patties",
		States:         "CA; OR, WA",
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.ExternalID != "012-2026" {
		t.Errorf("ExternalID = %q", alert.ExternalID)
	}
	if !alert.PublishedDate.Equal(time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedDate = %v", alert.PublishedDate)
	}
	wantStates := []string{"CA", "OR", "WA"}
	if len(alert.Locations) != len(wantStates) {
		t.Fatalf("Locations = %v, want %v", alert.Locations, wantStates)
	}
	for i, s := range wantStates {
		if alert.Locations[i] != s {
			t.Errorf("Locations[%d] = %q, want %q", i, alert.Locations[i], s)
		}
	}
}

func TestNWSFetchFilters(t *testing.T) {
	src := newNWSAlerts(Defaults()[6])

	body := `{"features":[
		{"properties":{"id":"urn:a","event":"Flood Warning","severity":"Severe","status":"Actual","sent":"2026-08-20T10:00:00Z"}},
		{"properties":{"id":"urn:b","event":"Test Message","severity":"Minor","status":"Test","sent":"2026-08-20T10:00:00Z"}},
		{"properties":{"id":"urn:c","event":"Old Warning","severity":"Severe","status":"Actual","sent":"2026-08-10T10:00:00Z"}}
	]}`
	client := stubClient(200, body)

	since := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	raws, err := src.Fetch(context.Background(), client, since)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d records, want 1 (test and stale alerts dropped)", len(raws))
	}
	rec := raws[0].(NWSRecord)
	if rec.ID != "urn:a" {
		t.Errorf("kept record = %q", rec.ID)
	}

	booster := src.(ScoreBooster)
	if got := booster.ScoreBoost(rec); got != 4 {
		t.Errorf("ScoreBoost(Severe) = %d, want 4", got)
	}
}

func TestNWSNormalize(t *testing.T) {
	src := newNWSAlerts(config.SourceConfig{
		Name: "nws_alerts", Agency: "NOAA", Category: "weather", Jurisdiction: "US",
	})

	sent := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	alert, err := src.Normalize(NWSRecord{
		ID:          "urn:oid:2.49.0.1.840.0.abc",
		Event:       "Flood Warning",
		Headline:    "Flood Warning issued for Sacramento County",
		Description: "Heavy rainfall will cause flooding.",
		Severity:    "Severe",
		AreaDesc:    "Sacramento County; Yolo County",
		Sent:        sent,
		Status:      "Actual",
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.Title != "Flood Warning issued for Sacramento County" {
		t.Errorf("Title = %q", alert.Title)
	}
	if !alert.PublishedDate.Equal(sent) || alert.DateEstimated {
		t.Errorf("date = %v estimated=%v", alert.PublishedDate, alert.DateEstimated)
	}
	if len(alert.Locations) != 2 {
		t.Errorf("Locations = %v", alert.Locations)
	}

	// Headline missing falls back to the event name.
	alert, err = src.Normalize(NWSRecord{
		ID: "urn:x", Event: "Heat Advisory", Description: "High temperatures.", Sent: sent,
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize fallback: %v", err)
	}
	if alert.Title != "Heat Advisory" {
		t.Errorf("Title = %q", alert.Title)
	}
}

func TestEPAFetchSelectorMismatch(t *testing.T) {
	src := newEPANews(Defaults()[5])
	client := stubClient(200, `<html><body><div class="totally-redesigned"></div></body></html>`)

	_, err := src.Fetch(context.Background(), client, fetchedAt.AddDate(0, 0, -14))
	if err == nil {
		t.Fatal("zero extracted records should be an error")
	}
	if !strings.Contains(err.Error(), "selector") {
		t.Errorf("error should mention selectors: %v", err)
	}
}

func TestEPANormalize(t *testing.T) {
	src := newEPANews(config.SourceConfig{
		Name: "epa_news", Agency: "EPA", Category: "enforcement", Jurisdiction: "US",
	})

	alert, err := src.Normalize(fetch.PageRecord{
		Title:    "EPA Fines Chemical Plant",
		Summary:  "The agency announced an enforcement action.",
		DateText: "August 18, 2026",
		Link:     "https://www.epa.gov/newsreleases/epa-fines-chemical-plant",
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !alert.PublishedDate.Equal(time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)) || alert.DateEstimated {
		t.Errorf("date = %v estimated=%v", alert.PublishedDate, alert.DateEstimated)
	}

	// Unparseable dates fall back to the fetch time.
	alert, err = src.Normalize(fetch.PageRecord{
		Title: "Another Action", DateText: "sometime soon", Link: "https://www.epa.gov/x",
	}, fetchedAt)
	if err != nil {
		t.Fatalf("normalize bad date: %v", err)
	}
	if !alert.DateEstimated || !alert.PublishedDate.Equal(fetchedAt) {
		t.Errorf("fallback date = %v estimated=%v", alert.PublishedDate, alert.DateEstimated)
	}
}
