package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"regiq/internal/model"
	"regiq/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies the datastore is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertAlert inserts a new alert and populates its ID and timestamps.
func (s *SQLite) InsertAlert(ctx context.Context, a *model.Alert) error {
	now := time.Now().UTC().Format(timeLayout)
	locations, err := marshalList(a.Locations)
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}
	productTypes, err := marshalList(a.ProductTypes)
	if err != nil {
		return fmt.Errorf("encode product types: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (external_id, source, agency, title, summary, full_content, external_url,
		                     published_date, date_updated, date_estimated, urgency, urgency_score,
		                     jurisdiction, locations, product_types, category, hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ExternalID, a.Source, a.Agency, a.Title, a.Summary, a.FullContent, a.ExternalURL,
		a.PublishedDate.UTC().Format(timeLayout), fmtNullableTime(a.DateUpdated), boolToInt(a.DateEstimated),
		string(a.Urgency), a.UrgencyScore, a.Jurisdiction, locations, productTypes, a.Category, a.Hash,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt, _ = time.Parse(timeLayout, now)
	a.UpdatedAt = a.CreatedAt
	return nil
}

// UpdateAlert persists changes to an existing alert. created_at is left
// untouched so repeated syncs stay idempotent for audit purposes.
func (s *SQLite) UpdateAlert(ctx context.Context, a *model.Alert) error {
	now := time.Now().UTC().Format(timeLayout)
	locations, err := marshalList(a.Locations)
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}
	productTypes, err := marshalList(a.ProductTypes)
	if err != nil {
		return fmt.Errorf("encode product types: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE alerts SET external_id = ?, title = ?, summary = ?, full_content = ?, external_url = ?,
		        published_date = ?, date_updated = ?, date_estimated = ?, urgency = ?, urgency_score = ?,
		        jurisdiction = ?, locations = ?, product_types = ?, category = ?, hash = ?, updated_at = ?
		 WHERE id = ?`,
		a.ExternalID, a.Title, a.Summary, a.FullContent, a.ExternalURL,
		a.PublishedDate.UTC().Format(timeLayout), fmtNullableTime(a.DateUpdated), boolToInt(a.DateEstimated),
		string(a.Urgency), a.UrgencyScore, a.Jurisdiction, locations, productTypes, a.Category, a.Hash,
		now, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	a.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const alertColumns = `id, external_id, source, agency, title, summary, full_content, external_url,
	published_date, date_updated, date_estimated, urgency, urgency_score,
	jurisdiction, locations, product_types, category, hash, created_at, updated_at`

// FindAlertByTitle returns the most recent alert with the same title and
// source published at or after since. This is the heuristic duplicate check
// used by skip-only sources.
func (s *SQLite) FindAlertByTitle(ctx context.Context, source, title string, since time.Time) (*model.Alert, error) {
	query, args, err := sq.Select(alertColumns).
		From("alerts").
		Where(sq.Eq{"source": source, "title": title}).
		Where(sq.GtOrEq{"published_date": since.UTC().Format(timeLayout)}).
		OrderBy("published_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build title query: %w", err)
	}
	return s.findAlert(ctx, query, args...)
}

// FindAlertByExternalID returns the alert with the given strong key.
func (s *SQLite) FindAlertByExternalID(ctx context.Context, source, externalID string) (*model.Alert, error) {
	query, args, err := sq.Select(alertColumns).
		From("alerts").
		Where(sq.Eq{"source": source, "external_id": model.NormalizeExternalID(externalID)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build external id query: %w", err)
	}
	return s.findAlert(ctx, query, args...)
}

func (s *SQLite) findAlert(ctx context.Context, query string, args ...any) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *SQLite) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	builder := sq.Select(alertColumns).
		From("alerts").
		OrderBy("published_date DESC")

	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Urgency != "" {
		builder = builder.Where(sq.Eq{"urgency": filter.Urgency})
	}
	if filter.Since != nil {
		builder = builder.Where(sq.GtOrEq{"published_date": filter.Since.UTC().Format(timeLayout)})
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// UpsertRecall inserts or updates the recall detail row keyed by
// (source, recall_number).
func (s *SQLite) UpsertRecall(ctx context.Context, r *model.Recall) error {
	now := time.Now().UTC().Format(timeLayout)
	states, err := marshalList(r.States)
	if err != nil {
		return fmt.Errorf("encode states: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recalls (recall_number, source, classification, company, product_description,
		                      reason, states, status, recall_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, recall_number) DO UPDATE SET
		   classification = excluded.classification,
		   company = excluded.company,
		   product_description = excluded.product_description,
		   reason = excluded.reason,
		   states = excluded.states,
		   status = excluded.status,
		   recall_date = excluded.recall_date,
		   updated_at = excluded.updated_at`,
		model.NormalizeExternalID(r.RecallNumber), r.Source, r.Classification, r.Company,
		r.ProductDescription, r.Reason, states, r.Status,
		r.RecallDate.UTC().Format(timeLayout), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert recall: %w", err)
	}
	return nil
}

// InsertSyncLog appends one audit row.
func (s *SQLite) InsertSyncLog(ctx context.Context, e *model.SyncLog) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_logs (run_id, job_name, status, records_synced, error_message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.JobName, e.Status, e.RecordsSynced, e.ErrorMessage, e.Metadata, now,
	)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListSyncLogs returns the most recent audit rows.
func (s *SQLite) ListSyncLogs(ctx context.Context, limit int) ([]model.SyncLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, job_name, status, records_synced, error_message, metadata, created_at
		 FROM sync_logs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sync logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.SyncLog
	for rows.Next() {
		var e model.SyncLog
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.JobName, &e.Status, &e.RecordsSynced,
			&e.ErrorMessage, &e.Metadata, &created); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fmtNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func marshalList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	var dateEstimated int
	var published string
	var dateUpdated sql.NullString
	var urgency, locations, productTypes string
	var created, updated sql.NullString

	err := row.Scan(&a.ID, &a.ExternalID, &a.Source, &a.Agency, &a.Title, &a.Summary,
		&a.FullContent, &a.ExternalURL, &published, &dateUpdated, &dateEstimated,
		&urgency, &a.UrgencyScore, &a.Jurisdiction, &locations, &productTypes,
		&a.Category, &a.Hash, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.PublishedDate, _ = time.Parse(timeLayout, published)
	if dateUpdated.Valid {
		t, _ := time.Parse(timeLayout, dateUpdated.String)
		a.DateUpdated = &t
	}
	a.DateEstimated = dateEstimated == 1
	a.Urgency = model.Urgency(urgency)
	a.Locations = unmarshalList(locations)
	a.ProductTypes = unmarshalList(productTypes)
	if created.Valid {
		a.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if updated.Valid {
		a.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	return &a, nil
}
