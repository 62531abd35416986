// Package sync orchestrates a run of all configured sources: fetch,
// normalize, classify, dedup, persist, and audit-log, with per-source
// failure isolation.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"regiq/internal/classify"
	"regiq/internal/config"
	"regiq/internal/dedup"
	"regiq/internal/fetch"
	"regiq/internal/model"
	"regiq/internal/normalize"
	"regiq/internal/sources"
	"regiq/internal/storage"
)

// ErrStoreUnreachable is returned when the datastore cannot be reached
// before any source is attempted; the run is marked failed.
var ErrStoreUnreachable = errors.New("datastore unreachable")

// Options narrow a single run.
type Options struct {
	// Days overrides every source's lookback window when positive.
	Days int
	// Sources restricts the run to the named sources; empty means all.
	Sources []string
}

// Orchestrator runs the ingestion pipeline across all configured sources.
type Orchestrator struct {
	store     storage.Storage
	dedup     *dedup.Deduplicator
	sources   []sources.Source
	cfg       config.SyncConfig
	userAgent string
	doer      fetch.Doer
	log       *slog.Logger
	now       func() time.Time
}

// New creates an Orchestrator. A nil doer uses the default HTTP client;
// zero batch and timeout fields fall back to safe values.
func New(store storage.Storage, srcs []sources.Source, cfg config.SyncConfig, userAgent string, doer fetch.Doer, log *slog.Logger) *Orchestrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 45 * time.Second
	}
	return &Orchestrator{
		store:     store,
		dedup:     dedup.New(store, cfg.DedupWindowDays),
		sources:   srcs,
		cfg:       cfg,
		userAgent: userAgent,
		doer:      doer,
		log:       log,
		now:       time.Now,
	}
}

// SetNow overrides the clock (useful for testing).
func (o *Orchestrator) SetNow(now func() time.Time) { o.now = now }

// Run executes one sync across the selected sources. Sources run in small
// batches with a politeness delay in between; a failing source never aborts
// the others. The returned error is non-nil only when the datastore was
// unreachable before any source could be attempted.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		Status:    model.StatusRunning,
		StartedAt: o.now().UTC(),
	}

	if err := o.store.Ping(ctx); err != nil {
		summary.Status = model.StatusFailed
		summary.FinishedAt = o.now().UTC()
		o.log.Error("sync aborted", "run_id", summary.RunID, "error", err)
		o.writeRunLog(ctx, summary, err.Error())
		return summary, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	selected, unknown := o.selectSources(opts.Sources)
	results := make([]model.SyncResult, len(selected))
	// Pre-fill source names so a run cut short by cancellation still
	// reports and audit-logs every selected source.
	for i, src := range selected {
		results[i].Source = src.Config().Name
	}

	for start := 0; start < len(selected); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(selected) {
			end = len(selected)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = o.runSource(ctx, selected[i], opts)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(selected) {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.BatchDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	now := o.now().UTC()
	for _, name := range unknown {
		results = append(results, model.SyncResult{
			Source:     name,
			Errors:     []string{"unknown source"},
			StartedAt:  now,
			FinishedAt: now,
		})
	}

	summary.Results = results
	succeeded := 0
	failed := 0
	for _, r := range results {
		summary.TotalFetched += r.Fetched
		summary.TotalInserted += r.Inserted
		summary.TotalUpdated += r.Updated
		summary.TotalSkipped += r.Skipped
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}

	switch {
	case failed == 0:
		summary.Status = model.StatusSuccess
	case succeeded > 0:
		summary.Status = model.StatusPartialSuccess
	default:
		summary.Status = model.StatusFailed
	}
	summary.Success = succeeded > 0
	summary.FinishedAt = o.now().UTC()

	o.writeSourceLogs(ctx, summary)
	o.writeRunLog(ctx, summary, "")

	o.log.Info("sync finished",
		"run_id", summary.RunID,
		"status", summary.Status,
		"fetched", summary.TotalFetched,
		"inserted", summary.TotalInserted,
		"updated", summary.TotalUpdated,
		"skipped", summary.TotalSkipped)

	return summary, nil
}

// selectSources resolves a requested source-name list. Names that match no
// configured source come back separately so the run can report them as
// failures instead of silently running against nothing.
func (o *Orchestrator) selectSources(names []string) (selected []sources.Source, unknown []string) {
	if len(names) == 0 {
		return o.sources, nil
	}
	byName := make(map[string]sources.Source, len(o.sources))
	for _, src := range o.sources {
		byName[src.Config().Name] = src
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if src, ok := byName[n]; ok {
			selected = append(selected, src)
		} else {
			unknown = append(unknown, n)
		}
	}
	return selected, unknown
}

// runSource executes the fetch→normalize→classify→dedup chain for one
// source. All errors are captured on the result; nothing escapes.
func (o *Orchestrator) runSource(ctx context.Context, src sources.Source, opts Options) (result model.SyncResult) {
	cfg := src.Config()
	result.Source = cfg.Name
	result.StartedAt = o.now().UTC()
	defer func() { result.FinishedAt = o.now().UTC() }()

	log := o.log.With("source", cfg.Name)

	lookbackDays := cfg.LookbackDays
	if opts.Days > 0 {
		lookbackDays = opts.Days
	}
	since := o.now().UTC().AddDate(0, 0, -lookbackDays)

	client := fetch.NewClient(o.doer, o.userAgent, cfg.Retry)

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	raws, err := src.Fetch(fetchCtx, client, since)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch: %v", err))
		log.Error("fetch failed", "error", err)
		return result
	}
	result.Success = true
	result.Fetched = len(raws)

	fetchedAt := o.now().UTC()
	booster, _ := src.(sources.ScoreBooster)
	recaller, _ := src.(sources.RecallExtractor)

	for _, raw := range raws {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "canceled")
			result.Success = false
			return result
		}

		alert, err := src.Normalize(raw, fetchedAt)
		if err != nil {
			result.Skipped++
			if errors.Is(err, normalize.ErrEmptyRecord) {
				log.Debug("dropped empty record")
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("normalize: %v", err))
			continue
		}

		base := cfg.BaseScore
		if booster != nil {
			base += booster.ScoreBoost(raw)
		}
		scored := classify.Score(alert.Title+" "+alert.Summary, classify.Input{
			BaseScore: base,
			Published: alert.PublishedDate,
			Now:       fetchedAt,
		})
		alert.Urgency = scored.Level
		alert.UrgencyScore = scored.Score

		action, err := o.dedup.Upsert(ctx, alert, cfg.Policy)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("upsert %q: %v", alert.Title, err))
			continue
		}
		switch action {
		case model.ActionInserted:
			result.Inserted++
		case model.ActionUpdated:
			result.Updated++
		case model.ActionSkipped:
			result.Skipped++
		}

		if recaller != nil && action != model.ActionSkipped {
			if recall := recaller.Recall(raw); recall != nil {
				if err := o.store.UpsertRecall(ctx, recall); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("recall %s: %v", recall.RecallNumber, err))
				}
			}
		}
	}

	log.Info("source synced",
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	return result
}

// writeSourceLogs persists one audit row per source. Audit failures are
// logged but never fail the run.
func (o *Orchestrator) writeSourceLogs(ctx context.Context, summary *model.RunSummary) {
	for _, r := range summary.Results {
		status := "success"
		if !r.Success {
			status = "failed"
		}
		entry := &model.SyncLog{
			RunID:         summary.RunID,
			JobName:       r.Source,
			Status:        status,
			RecordsSynced: r.Inserted + r.Updated,
			ErrorMessage:  joinErrors(r.Errors),
		}
		if meta, err := json.Marshal(r); err == nil {
			entry.Metadata = string(meta)
		}
		if err := o.store.InsertSyncLog(ctx, entry); err != nil {
			o.log.Error("write source audit log", "source", r.Source, "error", err)
		}
	}
}

func (o *Orchestrator) writeRunLog(ctx context.Context, summary *model.RunSummary, errMsg string) {
	entry := &model.SyncLog{
		RunID:         summary.RunID,
		JobName:       "sync_run",
		Status:        string(summary.Status),
		RecordsSynced: summary.TotalInserted + summary.TotalUpdated,
		ErrorMessage:  errMsg,
	}
	meta := map[string]any{
		"totalFetched":  summary.TotalFetched,
		"totalInserted": summary.TotalInserted,
		"totalUpdated":  summary.TotalUpdated,
		"totalSkipped":  summary.TotalSkipped,
		"sources":       len(summary.Results),
	}
	if b, err := json.Marshal(meta); err == nil {
		entry.Metadata = string(b)
	}
	if err := o.store.InsertSyncLog(ctx, entry); err != nil {
		o.log.Error("write run audit log", "run_id", summary.RunID, "error", err)
	}
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined += "; " + e
	}
	return joined
}
