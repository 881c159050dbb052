package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shapedtime/subvault/internal/cache"
	"github.com/shapedtime/subvault/internal/identify"
	"github.com/shapedtime/subvault/internal/provider"
	"github.com/shapedtime/subvault/internal/store"
	"github.com/shapedtime/subvault/internal/subtitle"
)

// movieKey picks the storage key for a movie: the catalog id when known,
// otherwise the normalized title.
func movieKey(catalogID, title string) string {
	if catalogID != "" {
		return catalogID
	}
	return identify.NormalizedTitle(title)
}

func recordToMetadata(r *store.Record) *cache.Metadata {
	return &cache.Metadata{
		MovieID:       r.MovieID,
		Language:      r.Language,
		Provider:      r.Provider,
		SubtitleID:    r.SubtitleID,
		Format:        r.Format,
		QualityScore:  r.QualityScore,
		DownloadCount: r.DownloadCount,
		Release:       r.Release,
	}
}

// GetSubtitleInfo returns the stored descriptor for movie+language, fast
// tier first, or nil when nothing is known.
func (e *Engine) GetSubtitleInfo(ctx context.Context, movieID, language string) (*cache.Metadata, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	if meta := e.cache.GetMetadata(movieID, language); meta != nil {
		e.cacheHit("metadata")
		e.store.RecordEvent(ctx, store.EventCacheHit, movieID, language, "")
		return meta, nil
	}
	e.cacheMiss("metadata")

	record, err := e.store.GetRecord(ctx, movieID, language)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	meta := recordToMetadata(record)
	e.cache.SetMetadata(movieID, language, meta)
	e.store.RecordEvent(ctx, store.EventAccess, movieID, language, "")
	return meta, nil
}

// GetSubtitleContent returns processed subtitle text for movie+language,
// or "" when nothing is cached at either tier.
func (e *Engine) GetSubtitleContent(ctx context.Context, movieID, language string) (string, error) {
	if err := e.ensureReady(ctx); err != nil {
		return "", err
	}

	if text, ok := e.cache.GetContent(movieID, language); ok {
		e.cacheHit("content")
		e.store.RecordEvent(ctx, store.EventCacheHit, movieID, language, "")
		return text, nil
	}
	e.cacheMiss("content")

	text, err := e.store.GetBlob(ctx, movieID, language)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}

	e.cache.SetContent(movieID, language, text)
	e.store.RecordEvent(ctx, store.EventCacheHit, movieID, language, "")
	return text, nil
}

// SearchAndCache runs an aggregated provider search and persists what it
// finds: the best record per language, the movie aggregate, and the raw
// result list in the search cache.
func (e *Engine) SearchAndCache(ctx context.Context, title, catalogID, language, fileHash string) ([]provider.RawResult, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	query := catalogID
	if query == "" {
		query = title
	}

	var cached []provider.RawResult
	if e.cache.GetSearchResults(query, language, &cached) {
		e.cacheHit("search")
		return cached, nil
	}
	e.cacheMiss("search")

	start := time.Now()
	results, err := e.search.SearchSubtitles(ctx, title, catalogID, language, fileHash)
	if e.met != nil {
		e.met.Searches.Inc()
		e.met.SearchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	key := movieKey(catalogID, title)
	e.persistResults(ctx, key, title, results)

	e.cache.SetSearchResults(query, language, results)
	e.store.RecordEvent(ctx, store.EventAccess, key, language, "")
	return results, nil
}

// persistResults stores the best result per language plus the movie
// aggregate. Persistence failures degrade to logs; the caller still gets
// its results.
func (e *Engine) persistResults(ctx context.Context, key, title string, results []provider.RawResult) {
	seen := map[string]struct{}{}
	var languages []string

	for _, r := range results {
		if _, dup := seen[r.Language]; dup {
			continue
		}
		seen[r.Language] = struct{}{}
		languages = append(languages, r.Language)

		record := &store.Record{
			MovieID:       key,
			Language:      r.Language,
			Provider:      r.Provider,
			SubtitleID:    r.SubtitleID,
			DownloadCount: r.DownloadCount,
			QualityScore:  r.Score,
			Format:        r.Format,
			Filename:      r.Filename,
			Release:       r.Release,
			DownloadURL:   r.URL,
		}
		if err := e.store.UpsertRecord(ctx, record); err != nil {
			e.log.Warn("record persist failed",
				"movie_id", key, "language", r.Language, "err", err)
		}
	}

	if len(languages) == 0 {
		return
	}

	release := identify.Parse(title)
	movieTitle := release.Title
	if movieTitle == "" {
		movieTitle = title
	}
	if err := e.store.UpsertMovieInfo(ctx, key, movieTitle, release.Year, languages); err != nil {
		e.log.Warn("movie info persist failed", "movie_id", key, "err", err)
	}
}

// DownloadAndProcess fetches a search result's body, cleans and converts
// it to the default format, and writes it back to both tiers.
func (e *Engine) DownloadAndProcess(ctx context.Context, movieID, language string, result provider.RawResult) (string, error) {
	if err := e.ensureReady(ctx); err != nil {
		return "", err
	}

	if text, ok := e.cache.GetContent(movieID, language); ok {
		e.cacheHit("content")
		e.store.RecordEvent(ctx, store.EventCacheHit, movieID, language, "")
		return text, nil
	}
	e.cacheMiss("content")

	body, err := e.search.DownloadContent(ctx, result)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}

	text, status := e.proc.Process(body, e.defaultFormat())
	if text == "" {
		if e.met != nil {
			e.met.ProcessingFailures.Inc()
		}
		return "", fmt.Errorf("subtitle processing failed: %s", status)
	}

	e.cache.SetContent(movieID, language, text)
	if err := e.store.CacheBlob(ctx, movieID, language, text, true); err != nil {
		e.log.Warn("blob writeback failed",
			"movie_id", movieID, "language", language, "err", err)
	}
	if err := e.store.MarkDownloaded(ctx, movieID, language); err != nil {
		e.log.Warn("download mark failed",
			"movie_id", movieID, "language", language, "err", err)
	}
	e.store.RecordEvent(ctx, store.EventDownload, movieID, language, "")
	if e.met != nil {
		e.met.Downloads.Inc()
	}

	return text, nil
}

// AvailableLanguages reports which languages exist for a movie, checking
// cache, then store, then probing providers, with writeback at each
// lower tier.
func (e *Engine) AvailableLanguages(ctx context.Context, movieID, title string) ([]string, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	if langs, ok := e.cache.GetLanguages(movieID); ok {
		e.cacheHit("languages")
		return langs, nil
	}
	e.cacheMiss("languages")

	records, err := e.store.GetRecordsForMovie(ctx, movieID, false)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		seen := map[string]struct{}{}
		var langs []string
		for _, r := range records {
			if _, dup := seen[r.Language]; dup {
				continue
			}
			seen[r.Language] = struct{}{}
			langs = append(langs, r.Language)
		}
		e.cache.SetLanguages(movieID, langs)
		return langs, nil
	}

	langs, err := e.search.AvailableLanguages(ctx, title, movieID)
	if err != nil {
		return nil, fmt.Errorf("language probe failed: %w", err)
	}

	e.cache.SetLanguages(movieID, langs)
	if len(langs) > 0 {
		release := identify.Parse(title)
		movieTitle := release.Title
		if movieTitle == "" {
			movieTitle = title
		}
		if err := e.store.UpsertMovieInfo(ctx, movieID, movieTitle, release.Year, langs); err != nil {
			e.log.Warn("movie info persist failed", "movie_id", movieID, "err", err)
		}
	}
	return langs, nil
}

// Preview renders the first cues of stored content as display lines.
func (e *Engine) Preview(ctx context.Context, movieID, language string, maxLines int) (string, error) {
	text, err := e.GetSubtitleContent(ctx, movieID, language)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no cached content for %s/%s", movieID, language)
	}
	return e.proc.Preview(text, maxLines), nil
}

// Convert returns stored content re-serialized in the requested format.
func (e *Engine) Convert(ctx context.Context, movieID, language, format string) (string, error) {
	text, err := e.GetSubtitleContent(ctx, movieID, language)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no cached content for %s/%s", movieID, language)
	}
	return e.proc.ConvertFormat(text, parseFormat(format))
}

// AdjustTiming shifts every cue of the stored content by offsetSeconds
// and writes the result back to both tiers. The record's cumulative sync
// offset tracks the total shift applied.
func (e *Engine) AdjustTiming(ctx context.Context, movieID, language string, offsetSeconds float64) (string, error) {
	text, err := e.GetSubtitleContent(ctx, movieID, language)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no cached content for %s/%s", movieID, language)
	}

	offset := time.Duration(offsetSeconds * float64(time.Second))
	shifted, err := e.proc.ShiftTiming(text, offset)
	if err != nil {
		return "", fmt.Errorf("timing shift failed: %w", err)
	}

	e.cache.SetContent(movieID, language, shifted)
	if err := e.store.CacheBlob(ctx, movieID, language, shifted, true); err != nil {
		return "", fmt.Errorf("failed to store shifted content: %w", err)
	}
	if err := e.store.AddSyncOffset(ctx, movieID, language, offsetSeconds); err != nil {
		e.log.Warn("sync offset update failed",
			"movie_id", movieID, "language", language, "err", err)
	}
	return shifted, nil
}

// MergeTracks combines the stored content of several languages into one
// track ordered by cue start time. Every language must have cached
// content.
func (e *Engine) MergeTracks(ctx context.Context, movieID string, languages []string) (string, error) {
	if len(languages) < 2 {
		return "", fmt.Errorf("merge needs at least two languages")
	}

	texts := make([]string, 0, len(languages))
	for _, language := range languages {
		text, err := e.GetSubtitleContent(ctx, movieID, language)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", fmt.Errorf("no cached content for %s/%s", movieID, language)
		}
		texts = append(texts, text)
	}

	merged, err := e.proc.Merge(texts)
	if err != nil {
		return "", fmt.Errorf("merge failed: %w", err)
	}
	return merged, nil
}

// ContentInfo analyzes stored content: format, cue count, duration, and
// the detected dialogue language.
func (e *Engine) ContentInfo(ctx context.Context, movieID, language string) (*subtitle.Info, error) {
	text, err := e.GetSubtitleContent(ctx, movieID, language)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("no cached content for %s/%s", movieID, language)
	}

	info := subtitle.ExtractInfo(text)
	return &info, nil
}

// BestQuality returns the highest-scoring stored record at or above
// minScore.
func (e *Engine) BestQuality(ctx context.Context, movieID, language string, minScore int) (*store.Record, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.GetBestQuality(ctx, movieID, language, minScore)
}

func (e *Engine) defaultFormat() subtitle.Format {
	return parseFormat(e.cfg.Subtitles.DefaultFormat)
}

func parseFormat(v string) subtitle.Format {
	switch v {
	case "vtt":
		return subtitle.FormatVTT
	case "ass", "ssa":
		return subtitle.FormatASS
	default:
		return subtitle.FormatSRT
	}
}
