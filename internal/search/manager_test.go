package search

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapedtime/subvault/internal/provider"
)

// fakeClient scripts provider behavior for manager tests.
type fakeClient struct {
	mu            sync.Mutex
	name          string
	results       []provider.RawResult
	searchErr     error
	failuresLeft  int
	body          []byte
	downloadErr   error
	searchCalls   int
	downloadCalls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Search(ctx context.Context, criteria provider.Criteria) ([]provider.RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, f.searchErr
	}
	if f.searchErr != nil && f.failuresLeft == 0 && f.results == nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeClient) Download(ctx context.Context, result provider.RawResult) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.body, nil
}

func (f *fakeClient) Close() error { return nil }

func newTestManager(t *testing.T, clients ...provider.Client) *Manager {
	t.Helper()

	m := NewManager(clients, nil, Config{
		RetryAttempts:      3,
		RetryBaseDelay:     time.Millisecond,
		ConcurrentRequests: 2,
		PriorityLanguages:  []string{"en", "es", "fr"},
	}, nil, nil)
	m.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return m
}

func TestSearchMergesAndRanksProviders(t *testing.T) {
	primary := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{{
			Provider:      provider.NameOpenSubtitles,
			SubtitleID:    "123",
			Language:      "en",
			DownloadCount: 1200,
			Release:       "Inception.2010.1080p.BluRay.x264",
			Filename:      "inception.srt",
			Score:         12100,
		}},
	}
	hash := &fakeClient{
		name: provider.NameSubDB,
		results: []provider.RawResult{{
			Provider:   provider.NameSubDB,
			SubtitleID: "abc123",
			Language:   "en",
			Filename:   "abc123.en.srt",
			Score:      provider.HashMatchScore,
		}},
	}

	m := newTestManager(t, primary, hash)

	results, err := m.SearchSubtitles(context.Background(), "Inception", "tt1375666", "en", "abc123")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 12100, results[0].Score)
	assert.Equal(t, provider.NameOpenSubtitles, results[0].Provider)
	assert.Equal(t, provider.HashMatchScore, results[1].Score)
}

func TestSearchSkipsHashProviderWithoutHash(t *testing.T) {
	primary := &fakeClient{name: provider.NameOpenSubtitles}
	hash := &fakeClient{name: provider.NameSubDB}

	m := newTestManager(t, primary, hash)

	_, err := m.SearchSubtitles(context.Background(), "Inception", "tt1375666", "en", "")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.searchCalls)
	assert.Equal(t, 0, hash.searchCalls)
}

func TestSearchSkipsHashProviderWhenEnoughResults(t *testing.T) {
	primary := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{
			{Filename: "a.srt", Language: "en", Score: 300},
			{Filename: "b.srt", Language: "en", Score: 200},
			{Filename: "c.srt", Language: "en", Score: 100},
		},
	}
	hash := &fakeClient{name: provider.NameSubDB}

	m := newTestManager(t, primary, hash)

	results, err := m.SearchSubtitles(context.Background(), "Inception", "tt1375666", "en", "abc123")
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 0, hash.searchCalls)
}

func TestSearchDeduplicatesByFilenameAndLanguage(t *testing.T) {
	primary := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{
			{Filename: "Movie.srt", Language: "en", Score: 500},
			{Filename: "movie.srt", Language: "en", Score: 100},
			{Filename: "movie.srt", Language: "es", Score: 100},
		},
	}

	m := newTestManager(t, primary)

	results, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 500, results[0].Score)
	assert.Equal(t, "es", results[1].Language)
}

func TestRetryOnThrottleThenSuccess(t *testing.T) {
	primary := &fakeClient{
		name:         provider.NameOpenSubtitles,
		searchErr:    &provider.Error{Provider: provider.NameOpenSubtitles, StatusCode: http.StatusTooManyRequests, Message: "slow down"},
		failuresLeft: 2,
		results:      []provider.RawResult{{Filename: "a.srt", Language: "en", Score: 10}},
	}

	m := newTestManager(t, primary)

	results, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 3, primary.searchCalls)
}

func TestRetryBackoffStartsAtBaseDelay(t *testing.T) {
	primary := &fakeClient{
		name:         provider.NameOpenSubtitles,
		searchErr:    &provider.Error{Provider: provider.NameOpenSubtitles, StatusCode: http.StatusTooManyRequests, Message: "slow down"},
		failuresLeft: 2,
		results:      []provider.RawResult{{Filename: "a.srt", Language: "en", Score: 10}},
	}

	m := NewManager([]provider.Client{primary}, nil, Config{
		RetryAttempts:      3,
		RetryBaseDelay:     time.Second,
		ConcurrentRequests: 1,
	}, nil, nil)

	var delays []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestNoRetryOnAuthFailure(t *testing.T) {
	primary := &fakeClient{
		name:         provider.NameOpenSubtitles,
		searchErr:    &provider.Error{Provider: provider.NameOpenSubtitles, StatusCode: http.StatusUnauthorized, Message: "bad key"},
		failuresLeft: 3,
	}

	m := newTestManager(t, primary)

	_, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "")
	require.Error(t, err)
	assert.Equal(t, 1, primary.searchCalls)
}

func TestSearchErrorOnlySurfacesWhenNoResults(t *testing.T) {
	broken := &fakeClient{
		name:         provider.NameOpenSubtitles,
		searchErr:    &provider.Error{Provider: provider.NameOpenSubtitles, StatusCode: http.StatusUnauthorized, Message: "bad key"},
		failuresLeft: 1,
	}
	hash := &fakeClient{
		name:    provider.NameSubDB,
		results: []provider.RawResult{{Provider: provider.NameSubDB, Filename: "h.srt", Language: "en", Score: 50}},
	}

	m := newTestManager(t, broken, hash)

	results, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "somehash")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDownloadContentDispatchesByProvider(t *testing.T) {
	primary := &fakeClient{name: provider.NameOpenSubtitles, body: []byte("primary body")}
	hash := &fakeClient{name: provider.NameSubDB, body: []byte("hash body")}

	m := newTestManager(t, primary, hash)

	body, err := m.DownloadContent(context.Background(), provider.RawResult{Provider: provider.NameSubDB})
	require.NoError(t, err)
	assert.Equal(t, "hash body", string(body))
	assert.Equal(t, 0, primary.downloadCalls)

	_, err = m.DownloadContent(context.Background(), provider.RawResult{Provider: "nonexistent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestAvailableLanguages(t *testing.T) {
	primary := &fakeClient{
		name:    provider.NameOpenSubtitles,
		results: []provider.RawResult{{Filename: "a.srt", Language: "en", Score: 10}},
	}

	m := newTestManager(t, primary)

	langs, err := m.AvailableLanguages(context.Background(), "Movie", "tt1")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es", "fr"}, langs)
	assert.Equal(t, 3, primary.searchCalls)
}

func TestCallLogReceivesOutcomes(t *testing.T) {
	primary := &fakeClient{
		name:    provider.NameOpenSubtitles,
		results: []provider.RawResult{{Filename: "a.srt", Language: "en", Score: 10}},
	}

	var mu sync.Mutex
	var statuses []string
	logCall := func(providerName, operation, status string, duration time.Duration, callErr string) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, providerName+":"+operation+":"+status)
	}

	m := NewManager([]provider.Client{primary}, nil, Config{
		RetryAttempts:      1,
		ConcurrentRequests: 1,
	}, logCall, nil)

	_, err := m.SearchSubtitles(context.Background(), "Movie", "", "en", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"opensubtitles:search:success"}, statuses)
}
