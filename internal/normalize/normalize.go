// Package normalize maps raw source records into display-safe text: HTML is
// stripped, whitespace collapsed, and summaries truncated to a bounded
// length. Raw content is retained separately on the Alert for audit.
package normalize

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SummaryLimit bounds normalized summaries for display.
const SummaryLimit = 500

// ErrEmptyRecord is returned for records missing both a title and a body;
// such records are dropped and counted as skipped.
var ErrEmptyRecord = errors.New("record has neither title nor body")

var stripPolicy = bluemonday.StrictPolicy()

// Text strips HTML markup, decodes entities, and collapses whitespace.
func Text(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most limit runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// Summary produces the bounded display summary from raw descriptive text.
func Summary(s string) string {
	return Truncate(Text(s), SummaryLimit)
}

// Title cleans a raw title. Titles are stripped but never truncated.
func Title(s string) string {
	return Text(s)
}
