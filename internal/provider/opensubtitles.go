package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// Tokens are valid for 24h; refresh an hour early.
	tokenRefreshDuration = 23 * time.Hour

	openSubtitlesUserAgent = "subvault v1.0"
)

// OpenSubtitles is a token-authenticated catalog provider. Login happens
// transparently whenever the bearer token is absent or expired.
type OpenSubtitles struct {
	apiKey     string
	username   string
	password   string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	mu       sync.RWMutex
	token    string
	tokenExp time.Time
}

// NewOpenSubtitles creates an OpenSubtitles client.
func NewOpenSubtitles(baseURL, apiKey, username, password string) *OpenSubtitles {
	return &OpenSubtitles{
		apiKey:   apiKey,
		username: username,
		password: password,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		log: slog.With("provider", NameOpenSubtitles),
	}
}

func (c *OpenSubtitles) Name() string { return NameOpenSubtitles }

// IsConfigured returns true if the client has an API key configured
func (c *OpenSubtitles) IsConfigured() bool {
	return c.apiKey != ""
}

type osSearchResponse struct {
	TotalCount int              `json:"total_count"`
	Data       []osSearchResult `json:"data"`
}

type osSearchResult struct {
	ID         string       `json:"id"`
	Attributes osAttributes `json:"attributes"`
}

type osAttributes struct {
	SubtitleID    string   `json:"subtitle_id"`
	Language      string   `json:"language"`
	DownloadCount int      `json:"download_count"`
	Release       string   `json:"release"`
	URL           string   `json:"url"`
	Files         []osFile `json:"files"`
}

type osFile struct {
	FileID   int    `json:"file_id"`
	FileName string `json:"file_name"`
}

type osLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type osLoginResponse struct {
	Token string `json:"token"`
}

type osDownloadRequest struct {
	FileID string `json:"file_id"`
}

type osDownloadResponse struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
}

// Search queries the catalog by id or free text, ranked server-side by
// download count descending.
func (c *OpenSubtitles) Search(ctx context.Context, criteria Criteria) ([]RawResult, error) {
	if !c.IsConfigured() {
		return nil, &Error{Provider: NameOpenSubtitles, Message: "API key not configured"}
	}

	query := url.Values{}
	query.Set("languages", criteria.Language)
	query.Set("order_by", "download_count")
	query.Set("order_direction", "desc")

	switch {
	case criteria.CatalogID != "":
		query.Set("imdb_id", strings.TrimPrefix(criteria.CatalogID, "tt"))
	case criteria.Title != "":
		query.Set("query", criteria.Title)
	default:
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/subtitles?%s", c.baseURL, query.Encode())

	var resp osSearchResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	results := make([]RawResult, 0, len(resp.Data))
	for _, item := range resp.Data {
		attrs := item.Attributes

		var filename string
		id := item.ID
		if len(attrs.Files) > 0 {
			filename = attrs.Files[0].FileName
			id = fmt.Sprintf("%d", attrs.Files[0].FileID)
		}

		results = append(results, RawResult{
			Provider:      NameOpenSubtitles,
			SubtitleID:    id,
			Language:      attrs.Language,
			DownloadCount: attrs.DownloadCount,
			Release:       attrs.Release,
			Filename:      filename,
			Format:        "srt", // OpenSubtitles serves SRT
			URL:           attrs.URL,
			Score:         QualityScore(attrs.DownloadCount, attrs.Release),
		})
	}

	return results, nil
}

// Download is two-phase: request a transient link, then fetch the bytes.
func (c *OpenSubtitles) Download(ctx context.Context, result RawResult) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, &Error{Provider: NameOpenSubtitles, Message: "API key not configured"}
	}

	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var dl osDownloadResponse
	endpoint := fmt.Sprintf("%s/download", c.baseURL)
	if err := c.post(ctx, endpoint, osDownloadRequest{FileID: result.SubtitleID}, &dl, true); err != nil {
		return nil, err
	}
	if dl.Link == "" {
		return nil, &Error{Provider: NameOpenSubtitles, Message: "no download link in response"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: NameOpenSubtitles, StatusCode: resp.StatusCode, Message: "download link fetch failed"}
	}

	return io.ReadAll(resp.Body)
}

// Close releases client resources.
func (c *OpenSubtitles) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ensureToken logs in when the token is absent or expired.
func (c *OpenSubtitles) ensureToken(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	return c.login(ctx)
}

func (c *OpenSubtitles) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return nil
	}

	// Without credentials the API key alone allows limited downloads.
	if c.username == "" || c.password == "" {
		c.token = "anonymous"
		c.tokenExp = time.Now().Add(tokenRefreshDuration)
		return nil
	}

	endpoint := fmt.Sprintf("%s/login", c.baseURL)

	var resp osLoginResponse
	if err := c.postLocked(ctx, endpoint, osLoginRequest{Username: c.username, Password: c.password}, &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return &Error{Provider: NameOpenSubtitles, Message: "no token in login response"}
	}

	c.token = resp.Token
	c.tokenExp = time.Now().Add(tokenRefreshDuration)
	c.log.Info("logged in to OpenSubtitles")

	return nil
}

func (c *OpenSubtitles) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, false)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

func (c *OpenSubtitles) post(ctx context.Context, endpoint string, body, result any, useToken bool) error {
	req, err := c.newPost(ctx, endpoint, body)
	if err != nil {
		return err
	}
	c.setHeaders(req, useToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// postLocked is post without token headers, callable while c.mu is held.
func (c *OpenSubtitles) postLocked(ctx context.Context, endpoint string, body, result any) error {
	req, err := c.newPost(ctx, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", openSubtitlesUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, result)
}

func (c *OpenSubtitles) newPost(ctx context.Context, endpoint string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *OpenSubtitles) setHeaders(req *http.Request, useToken bool) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", openSubtitlesUserAgent)
	req.Header.Set("Accept", "application/json")

	if useToken {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()

		if token != "" && token != "anonymous" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

func (c *OpenSubtitles) handleResponse(resp *http.Response, result any) error {
	if resp.StatusCode == http.StatusUnauthorized {
		// Clear token to force re-login on the next call.
		c.mu.Lock()
		c.token = ""
		c.tokenExp = time.Time{}
		c.mu.Unlock()
		return &Error{Provider: NameOpenSubtitles, StatusCode: resp.StatusCode, Message: "invalid API key or token"}
	}

	return c.decodeResponse(resp, result)
}

func (c *OpenSubtitles) decodeResponse(resp *http.Response, result any) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &Error{Provider: NameOpenSubtitles, StatusCode: resp.StatusCode, Message: "rate limited"}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Provider: NameOpenSubtitles, StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
