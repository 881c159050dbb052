package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SubDB looks up subtitles by file hash. There is no popularity data, so
// every hit scores HashMatchScore.
type SubDB struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewSubDB creates a SubDB client.
func NewSubDB(baseURL, userAgent string) *SubDB {
	return &SubDB{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *SubDB) Name() string { return NameSubDB }

// Search checks which languages are available for the file hash. The API
// answers with a comma-joined language list; a hit in the requested
// language yields exactly one result.
func (c *SubDB) Search(ctx context.Context, criteria Criteria) ([]RawResult, error) {
	if criteria.FileHash == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("action", "search")
	query.Set("hash", criteria.FileHash)

	body, status, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, &Error{Provider: NameSubDB, StatusCode: status, Message: "search failed"}
	}

	for _, lang := range strings.Split(strings.TrimSpace(string(body)), ",") {
		if strings.TrimSpace(lang) != criteria.Language {
			continue
		}
		return []RawResult{{
			Provider:   NameSubDB,
			SubtitleID: criteria.FileHash,
			Language:   criteria.Language,
			Filename:   fmt.Sprintf("%s.%s.srt", criteria.FileHash, criteria.Language),
			Format:     "srt",
			Score:      HashMatchScore,
		}}, nil
	}

	return nil, nil
}

// Download fetches the raw subtitle for a hash hit. SubtitleID carries the
// file hash from Search.
func (c *SubDB) Download(ctx context.Context, result RawResult) ([]byte, error) {
	query := url.Values{}
	query.Set("action", "download")
	query.Set("hash", result.SubtitleID)
	query.Set("language", result.Language)

	body, status, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &Error{Provider: NameSubDB, StatusCode: status, Message: "download failed"}
	}

	return body, nil
}

func (c *SubDB) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *SubDB) get(ctx context.Context, query url.Values) ([]byte, int, error) {
	endpoint := fmt.Sprintf("%s/?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
