package api

import (
	"time"

	"regiq/internal/model"
)

// alertView is the JSON shape the dashboard consumes.
type alertView struct {
	ID            int64      `json:"id"`
	ExternalID    string     `json:"externalId"`
	Source        string     `json:"source"`
	Agency        string     `json:"agency"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	ExternalURL   string     `json:"externalUrl,omitempty"`
	PublishedDate time.Time  `json:"publishedDate"`
	DateUpdated   *time.Time `json:"dateUpdated,omitempty"`
	DateEstimated bool       `json:"dateEstimated,omitempty"`
	Urgency       string     `json:"urgency"`
	UrgencyScore  int        `json:"urgencyScore"`
	Jurisdiction  string     `json:"jurisdiction,omitempty"`
	Locations     []string   `json:"locations,omitempty"`
	ProductTypes  []string   `json:"productTypes,omitempty"`
	Category      string     `json:"category,omitempty"`
}

func toAlertViews(alerts []model.Alert) []alertView {
	views := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, alertView{
			ID:            a.ID,
			ExternalID:    a.ExternalID,
			Source:        a.Source,
			Agency:        a.Agency,
			Title:         a.Title,
			Summary:       a.Summary,
			ExternalURL:   a.ExternalURL,
			PublishedDate: a.PublishedDate,
			DateUpdated:   a.DateUpdated,
			DateEstimated: a.DateEstimated,
			Urgency:       string(a.Urgency),
			UrgencyScore:  a.UrgencyScore,
			Jurisdiction:  a.Jurisdiction,
			Locations:     a.Locations,
			ProductTypes:  a.ProductTypes,
			Category:      a.Category,
		})
	}
	return views
}

type logView struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"runId"`
	JobName       string    `json:"jobName"`
	Status        string    `json:"status"`
	RecordsSynced int       `json:"recordsSynced"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	Metadata      string    `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toLogViews(logs []model.SyncLog) []logView {
	views := make([]logView, 0, len(logs))
	for _, l := range logs {
		views = append(views, logView{
			ID:            l.ID,
			RunID:         l.RunID,
			JobName:       l.JobName,
			Status:        l.Status,
			RecordsSynced: l.RecordsSynced,
			ErrorMessage:  l.ErrorMessage,
			Metadata:      l.Metadata,
			CreatedAt:     l.CreatedAt,
		})
	}
	return views
}
