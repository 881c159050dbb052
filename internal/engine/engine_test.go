package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapedtime/subvault/internal/config"
	"github.com/shapedtime/subvault/internal/provider"
	"github.com/shapedtime/subvault/internal/search"
	"github.com/shapedtime/subvault/internal/store"
	"github.com/shapedtime/subvault/internal/subtitle"
)

const sampleVTT = "WEBVTT\n\n00:01.000 --> 00:02.500\nHello there\n\n00:03.000 --> 00:04.000\nGeneral Kenobi\n"

// fakeClient scripts one provider for engine tests.
type fakeClient struct {
	name        string
	results     []provider.RawResult
	body        []byte
	searchErr   error
	downloadErr error
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Search(ctx context.Context, criteria provider.Criteria) ([]provider.RawResult, error) {
	return f.results, f.searchErr
}

func (f *fakeClient) Download(ctx context.Context, result provider.RawResult) ([]byte, error) {
	return f.body, f.downloadErr
}

func (f *fakeClient) Close() error { return nil }

// newTestEngine builds an engine over a real sqlite store, fake
// providers, and no cache tier, which exercises the degradation path.
func newTestEngine(t *testing.T, clients ...provider.Client) *Engine {
	t.Helper()

	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()

	return &Engine{
		cfg:   cfg,
		log:   slog.Default(),
		ready: true,
		store: st,
		proc:  subtitle.NewProcessor(cfg.Limits.MaxSubtitleSize),
		search: search.NewManager(clients, nil, search.Config{
			RetryAttempts:      1,
			ConcurrentRequests: 2,
			PriorityLanguages:  []string{"en", "es"},
		}, nil, nil),
		clients: clients,
	}
}

func TestSearchAndCachePersistsResults(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{
			{
				Provider:      provider.NameOpenSubtitles,
				SubtitleID:    "123",
				Language:      "en",
				DownloadCount: 1200,
				Release:       "Inception.2010.1080p.BluRay.x264",
				Filename:      "inception.srt",
				Format:        "srt",
				Score:         12100,
			},
			{
				Provider:   provider.NameOpenSubtitles,
				SubtitleID: "456",
				Language:   "en",
				Filename:   "inception-alt.srt",
				Score:      200,
			},
			{
				Provider:   provider.NameOpenSubtitles,
				SubtitleID: "789",
				Language:   "es",
				Filename:   "inception-es.srt",
				Score:      300,
			},
		},
	}

	e := newTestEngine(t, client)
	ctx := context.Background()

	results, err := e.SearchAndCache(ctx, "Inception.2010.1080p.BluRay.x264", "tt1375666", "en", "")
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Best result per language persisted.
	record, err := e.store.GetRecord(ctx, "tt1375666", "en")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "123", record.SubtitleID)
	assert.Equal(t, 12100, record.QualityScore)

	esRecord, err := e.store.GetRecord(ctx, "tt1375666", "es")
	require.NoError(t, err)
	require.NotNil(t, esRecord)

	info, err := e.store.GetMovieInfo(ctx, "tt1375666")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Inception", info.Title)
	assert.Equal(t, 2010, info.Year)
	assert.ElementsMatch(t, []string{"en", "es"}, info.AvailableLanguages)
}

func TestSearchAndCacheUsesTitleKeyWithoutCatalogID(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{
			{Provider: provider.NameOpenSubtitles, Language: "en", Filename: "m.srt", Score: 10},
		},
	}

	e := newTestEngine(t, client)
	ctx := context.Background()

	_, err := e.SearchAndCache(ctx, "The Matrix 1999", "", "en", "")
	require.NoError(t, err)

	record, err := e.store.GetRecord(ctx, "the matrix", "en")
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestDownloadAndProcessConvertsAndStores(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenSubtitles,
		body: []byte(sampleVTT),
	}

	e := newTestEngine(t, client)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))

	text, err := e.DownloadAndProcess(ctx, "tt1", "en", provider.RawResult{
		Provider: provider.NameOpenSubtitles, SubtitleID: "123", Language: "en",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "00:00:01,000 --> 00:00:02,500")
	assert.Contains(t, text, "Hello there")

	// Blob written back and download stamped.
	blob, err := e.store.GetBlob(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Equal(t, text, blob)

	record, err := e.store.GetRecord(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Equal(t, 1, record.LocalDownloads)
	assert.True(t, record.CachedContent)
}

func TestDownloadAndProcessRejectsGarbage(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenSubtitles,
		body: []byte("this is not a subtitle"),
	}

	e := newTestEngine(t, client)

	_, err := e.DownloadAndProcess(context.Background(), "tt1", "en", provider.RawResult{
		Provider: provider.NameOpenSubtitles,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing failed")
}

func TestGetSubtitleInfoFromStore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	meta, err := e.GetSubtitleInfo(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Nil(t, meta)

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
		QualityScore: 777,
	}))

	meta, err = e.GetSubtitleInfo(ctx, "tt1", "en")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 777, meta.QualityScore)
	assert.Equal(t, provider.NameOpenSubtitles, meta.Provider)
}

func TestGetSubtitleContentFromStoreBlob(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text, err := e.GetSubtitleContent(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))
	require.NoError(t, e.store.CacheBlob(ctx, "tt1", "en", "subtitle body", true))

	text, err = e.GetSubtitleContent(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Equal(t, "subtitle body", text)
}

func TestAvailableLanguagesFromStoreThenProbe(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenSubtitles,
		results: []provider.RawResult{
			{Provider: provider.NameOpenSubtitles, Language: "en", Filename: "m.srt", Score: 10},
		},
	}

	e := newTestEngine(t, client)
	ctx := context.Background()

	// Empty store falls through to the provider probe; the fake answers
	// every language it is asked about.
	langs, err := e.AvailableLanguages(ctx, "tt9", "Some Movie")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es"}, langs)

	// Stored records short-circuit the probe.
	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "fr", Provider: provider.NameOpenSubtitles,
	}))

	langs, err = e.AvailableLanguages(ctx, "tt1", "Some Movie")
	require.NoError(t, err)
	assert.Equal(t, []string{"fr"}, langs)
}

func TestPreviewAndConvert(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	srt := "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n"
	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))
	require.NoError(t, e.store.CacheBlob(ctx, "tt1", "en", srt, false))

	preview, err := e.Preview(ctx, "tt1", "en", 1)
	require.NoError(t, err)
	assert.Contains(t, preview, "Hello")
	assert.Contains(t, preview, "and 1 more entries")

	vtt, err := e.Convert(ctx, "tt1", "en", "vtt")
	require.NoError(t, err)
	assert.Contains(t, vtt, "WEBVTT")
	assert.Contains(t, vtt, "00:00:01.000 --> 00:00:02.000")

	_, err = e.Preview(ctx, "tt2", "en", 1)
	require.Error(t, err)
}

func TestAdjustTimingShiftsAndTracksOffset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	srt := "1\n00:00:01,000 --> 00:00:02,000\nHello\n"
	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))
	require.NoError(t, e.store.CacheBlob(ctx, "tt1", "en", srt, false))

	shifted, err := e.AdjustTiming(ctx, "tt1", "en", 1.5)
	require.NoError(t, err)
	assert.Contains(t, shifted, "00:00:02,500 --> 00:00:03,500")

	// The shifted content replaces the stored blob and the record carries
	// the cumulative offset.
	blob, err := e.store.GetBlob(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Equal(t, shifted, blob)

	_, err = e.AdjustTiming(ctx, "tt1", "en", -0.5)
	require.NoError(t, err)

	record, err := e.store.GetRecord(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, record.SyncOffset, 0.001)

	_, err = e.AdjustTiming(ctx, "tt2", "en", 1.0)
	require.Error(t, err)
}

func TestMergeTracksOrdersByStartTime(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	en := "1\n00:00:01,000 --> 00:00:02,000\nHello\n"
	es := "1\n00:00:00,500 --> 00:00:01,500\nHola\n"
	for lang, text := range map[string]string{"en": en, "es": es} {
		require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
			MovieID: "tt1", Language: lang, Provider: provider.NameOpenSubtitles,
		}))
		require.NoError(t, e.store.CacheBlob(ctx, "tt1", lang, text, false))
	}

	merged, err := e.MergeTracks(ctx, "tt1", []string{"en", "es"})
	require.NoError(t, err)
	assert.Less(t, strings.Index(merged, "Hola"), strings.Index(merged, "Hello"))

	_, err = e.MergeTracks(ctx, "tt1", []string{"en"})
	require.Error(t, err)

	_, err = e.MergeTracks(ctx, "tt1", []string{"en", "fr"})
	require.Error(t, err)
}

func TestContentInfoAnalyzesStoredContent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))
	require.NoError(t, e.store.CacheBlob(ctx, "tt1", "en", sampleVTT, false))

	info, err := e.ContentInfo(ctx, "tt1", "en")
	require.NoError(t, err)
	assert.Equal(t, subtitle.FormatVTT, info.Format)
	assert.Equal(t, 2, info.Entries)
	assert.InDelta(t, 4.0, info.Duration, 0.001)

	_, err = e.ContentInfo(ctx, "tt2", "en")
	require.Error(t, err)
}

func TestInvalidateMovie(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))

	cacheEntries, records, err := e.InvalidateMovie(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, cacheEntries) // no cache tier in tests
	assert.Equal(t, 1, records)
}

func TestHealthDegradesWithoutCache(t *testing.T) {
	e := newTestEngine(t, &fakeClient{name: provider.NameOpenSubtitles})

	h := e.Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.True(t, h.StoreConnected)
	assert.False(t, h.CacheConnected)
	assert.Equal(t, []string{provider.NameOpenSubtitles}, h.Providers)
}

func TestStatsCombinesTiers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertRecord(ctx, &store.Record{
		MovieID: "tt1", Language: "en", Provider: provider.NameOpenSubtitles,
	}))

	status, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Store.TotalSubtitles)
	assert.False(t, status.Cache.Connected)
}
