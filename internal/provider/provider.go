// Package provider contains clients for external subtitle sources.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Provider identifiers used in result provenance and stored records.
const (
	NameOpenSubtitles = "opensubtitles"
	NameSubDB         = "subdb"
)

// Criteria describes a subtitle search request.
type Criteria struct {
	Title     string
	CatalogID string // IMDB-style id, with or without the "tt" prefix
	Language  string // ISO 639-1 code
	FileHash  string // first/last 64KiB MD5, for hash-lookup providers
}

// RawResult is one subtitle option as returned by a provider.
type RawResult struct {
	Provider      string `json:"provider"`
	SubtitleID    string `json:"id"`
	Language      string `json:"language"`
	DownloadCount int    `json:"download_count"`
	Release       string `json:"release"`
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	URL           string `json:"url"`
	Score         int    `json:"quality_score"`
}

// Client is the capability set every subtitle source exposes.
type Client interface {
	Name() string
	Search(ctx context.Context, criteria Criteria) ([]RawResult, error)
	Download(ctx context.Context, result RawResult) ([]byte, error)
	Close() error
}

// Error carries enough context for callers to branch on failure type.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsThrottled reports whether the provider rejected the call for rate
// limiting. Throttled calls are retryable at the aggregation layer.
func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuth reports whether the failure was an authentication rejection.
func (e *Error) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// releaseBonusTags are release labels that earn a scoring bonus.
var releaseBonusTags = []string{"bluray", "web-dl", "webrip"}

// QualityScore derives the ranking score for a subtitle option.
// Download count dominates; well-regarded release sources get a flat bonus.
func QualityScore(downloadCount int, release string) int {
	score := downloadCount * 10

	lower := strings.ToLower(release)
	for _, tag := range releaseBonusTags {
		if strings.Contains(lower, tag) {
			score += 100
			break
		}
	}

	return score
}

// HashMatchScore is the fixed score for hash-lookup hits, which carry no
// popularity signal.
const HashMatchScore = 50
