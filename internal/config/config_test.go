package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"regiq/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "./data/regiq.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Sync.LookbackDays != 30 || cfg.Sync.DedupWindowDays != 7 {
		t.Errorf("sync defaults = %+v", cfg.Sync)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/alt.db")
	t.Setenv("SYNC_LOOKBACK_DAYS", "14")
	t.Setenv("SYNC_BATCH_DELAY", "500ms")
	t.Setenv("FETCH_TIMEOUT", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "/tmp/alt.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Sync.LookbackDays != 14 {
		t.Errorf("LookbackDays = %d", cfg.Sync.LookbackDays)
	}
	if cfg.Sync.BatchDelay != 500*time.Millisecond {
		t.Errorf("BatchDelay = %v", cfg.Sync.BatchDelay)
	}
	if cfg.Sync.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.Sync.FetchTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric lookback", "SYNC_LOOKBACK_DAYS", "soon"},
		{"bad duration", "SYNC_BATCH_DELAY", "fast"},
		{"zero batch size", "SYNC_BATCH_SIZE", "0"},
		{"zero dedup window", "DEDUP_WINDOW_DAYS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadCatalogNoFile(t *testing.T) {
	defaults := []SourceConfig{{Name: "fda_recalls", URL: "https://a.example"}}
	got, err := LoadCatalog(defaults, "")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if diff := cmp.Diff(defaults, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalogMerge(t *testing.T) {
	defaults := []SourceConfig{
		{
			Name:         "fda_recalls",
			Kind:         model.KindFeed,
			Policy:       model.PolicySkipOnly,
			URL:          "https://default.example/feed",
			Agency:       "FDA",
			BaseScore:    3,
			LookbackDays: 30,
			Retry:        RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		},
		{
			Name:   "fsis_recalls",
			Kind:   model.KindAPI,
			Policy: model.PolicyStrongKey,
			URL:    "https://default.example/fsis",
			Agency: "FSIS",
		},
	}

	catalog := `
sources:
  - name: fda_recalls
    url: https://override.example/feed
    lookback_days: 7
    retry:
      max_attempts: 5
  - name: fsis_recalls
    enabled: false
`
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	got, err := LoadCatalog(defaults, path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	fda := got[0]
	if fda.URL != "https://override.example/feed" {
		t.Errorf("URL not overridden: %q", fda.URL)
	}
	if fda.LookbackDays != 7 {
		t.Errorf("LookbackDays = %d, want 7", fda.LookbackDays)
	}
	if fda.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", fda.Retry.MaxAttempts)
	}
	// Fields absent from the override keep their defaults.
	if fda.Agency != "FDA" || fda.BaseScore != 3 || fda.Retry.BaseDelay != time.Second {
		t.Errorf("defaults lost in merge: %+v", fda)
	}

	fsis := got[1]
	if fsis.IsEnabled() {
		t.Error("fsis_recalls should be disabled")
	}
	if got[0].IsEnabled() != true {
		t.Error("fda_recalls should stay enabled")
	}
}

func TestLoadCatalogUnknownSource(t *testing.T) {
	catalog := "sources:\n  - name: usda_mystery\n"
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	_, err := LoadCatalog([]SourceConfig{{Name: "fda_recalls"}}, path)
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	if !strings.Contains(err.Error(), "usda_mystery") {
		t.Errorf("error should name the source: %v", err)
	}
}

func TestLoadCatalogBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources: [notaseq"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadCatalog(nil, path); err == nil {
		t.Fatal("expected parse error")
	}
}
