// Package sources defines the per-agency source catalog: each source knows
// how to fetch its raw records and how to normalize its own record variant
// into the canonical Alert.
package sources

import (
	"context"
	"fmt"
	"time"

	"regiq/internal/config"
	"regiq/internal/fetch"
	"regiq/internal/model"
)

// RawRecord is implemented by every source-specific raw record shape.
type RawRecord interface{}

// Source is one configured external data source. Fetch performs a fresh
// network round trip; Normalize is a pure mapping from one raw record to an
// Alert and must not fail the batch for a single bad record.
type Source interface {
	Config() config.SourceConfig
	Fetch(ctx context.Context, client *fetch.Client, since time.Time) ([]RawRecord, error)
	Normalize(raw RawRecord, fetchedAt time.Time) (*model.Alert, error)
}

// RecallExtractor is implemented by strong-key recall sources that also
// produce a recall detail row.
type RecallExtractor interface {
	Recall(raw RawRecord) *model.Recall
}

// ScoreBooster lets a source add a per-record increment to the base urgency
// score (e.g. from an upstream severity field).
type ScoreBooster interface {
	ScoreBoost(raw RawRecord) int
}

var builders = map[string]func(config.SourceConfig) Source{
	"fda_recalls":     newFeedSource,
	"fda_enforcement": newFDAEnforcement,
	"fsis_recalls":    newFSISRecalls,
	"cdc_outbreaks":   newFeedSource,
	"cdc_travel":      newFeedSource,
	"epa_news":        newEPANews,
	"nws_alerts":      newNWSAlerts,
}

// Defaults returns the built-in source catalog.
func Defaults() []config.SourceConfig {
	return []config.SourceConfig{
		{
			Name:         "fda_recalls",
			Kind:         model.KindFeed,
			Policy:       model.PolicySkipOnly,
			URL:          "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/recalls/rss.xml",
			Agency:       "FDA",
			Category:     "recall",
			Jurisdiction: "US",
			BaseScore:    3,
			LookbackDays: 30,
		},
		{
			Name:         "fda_enforcement",
			Kind:         model.KindAPI,
			Policy:       model.PolicyStrongKey,
			URL:          "https://api.fda.gov/food/enforcement.json",
			Agency:       "FDA",
			Category:     "enforcement",
			Jurisdiction: "US",
			BaseScore:    3,
			LookbackDays: 30,
			MaxPages:     5,
		},
		{
			Name:         "fsis_recalls",
			Kind:         model.KindAPI,
			Policy:       model.PolicyStrongKey,
			URL:          "https://www.fsis.usda.gov/fsis/api/recall/v/1",
			Agency:       "FSIS",
			Category:     "recall",
			Jurisdiction: "US",
			BaseScore:    3,
			LookbackDays: 30,
		},
		{
			Name:         "cdc_outbreaks",
			Kind:         model.KindFeed,
			Policy:       model.PolicySkipOnly,
			URL:          "https://tools.cdc.gov/api/v2/resources/media/285676.rss",
			Agency:       "CDC",
			Category:     "outbreak",
			Jurisdiction: "US",
			BaseScore:    4,
			LookbackDays: 30,
		},
		{
			Name:         "cdc_travel",
			Kind:         model.KindFeed,
			Policy:       model.PolicySkipOnly,
			URL:          "https://wwwnc.cdc.gov/travel/rss/notices.xml",
			Agency:       "CDC",
			Category:     "travel-notice",
			Jurisdiction: "International",
			BaseScore:    2,
			LookbackDays: 30,
		},
		{
			Name:         "epa_news",
			Kind:         model.KindHTML,
			Policy:       model.PolicySkipOnly,
			URL:          "https://www.epa.gov/newsreleases/search",
			Agency:       "EPA",
			Category:     "enforcement",
			Jurisdiction: "US",
			BaseScore:    2,
			LookbackDays: 14,
		},
		{
			Name:         "nws_alerts",
			Kind:         model.KindAPI,
			Policy:       model.PolicyStrongKey,
			URL:          "https://api.weather.gov/alerts/active",
			Agency:       "NOAA",
			Category:     "weather",
			Jurisdiction: "US",
			BaseScore:    1,
			LookbackDays: 3,
		},
	}
}

// Build constructs sources from the merged catalog, skipping disabled
// entries. A catalog entry with no registered builder is an error.
func Build(cfgs []config.SourceConfig) ([]Source, error) {
	var srcs []Source
	for _, cfg := range cfgs {
		builder, ok := builders[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("no builder registered for source %q", cfg.Name)
		}
		if !cfg.IsEnabled() {
			continue
		}
		srcs = append(srcs, builder(cfg))
	}
	return srcs, nil
}
