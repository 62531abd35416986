package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// NormalizeExternalID canonicalizes a source-scoped identifier: trimmed,
// upper-cased, internal whitespace collapsed to single spaces.
func NormalizeExternalID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), " "))
}

// AlertHash computes the stable fingerprint used for idempotent upserts.
// It depends only on its inputs, so re-running a sync over unchanged data
// produces identical hashes. The date component is date_updated when present,
// otherwise the published date.
func AlertHash(source, externalID string, published time.Time, updated *time.Time) string {
	date := published
	if updated != nil {
		date = *updated
	}
	h := sha256.Sum256([]byte(source + "|" + NormalizeExternalID(externalID) + "|" + date.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%x", h[:16])
}
