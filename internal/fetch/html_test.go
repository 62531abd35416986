package fetch

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPage(t *testing.T) {
	c := fixtureClient(t, "testdata/listing.html")

	rules := PageRules{
		Item:    ".views-row",
		Title:   "h3 a",
		Summary: "p",
		Date:    "time",
		Link:    "h3 a",
	}

	records, err := Page(context.Background(), c, "https://www.example.gov/newsreleases/search", rules)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	want := []PageRecord{
		{
			Title:    "EPA Settles Clean Water Act Violations",
			Summary:  "The agency reached a settlement over discharge permit violations.",
			DateText: "August 20, 2026",
			Link:     "https://www.example.gov/newsreleases/epa-settles-violations",
		},
		{
			Title:    "Emergency Order Issued for Drinking Water System",
			Summary:  "An emergency order was issued to protect a public drinking water supply.",
			DateText: "August 18, 2026",
			Link:     "https://www.example.gov/newsreleases/emergency-order",
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestPageNoMatches(t *testing.T) {
	c := fixtureClient(t, "testdata/listing.html")

	records, err := Page(context.Background(), c, "https://www.example.gov/newsreleases/search", PageRules{
		Item: ".does-not-exist",
	})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}
