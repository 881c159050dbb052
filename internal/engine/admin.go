package engine

import (
	"context"

	"github.com/shapedtime/subvault/internal/cache"
	"github.com/shapedtime/subvault/internal/store"
)

// Status combines durable store and fast tier occupancy.
type Status struct {
	Store *store.Stats `json:"store"`
	Cache cache.Stats  `json:"cache"`
}

// Health is the component liveness report.
type Health struct {
	Status         string   `json:"status"`
	CacheConnected bool     `json:"cache_connected"`
	StoreConnected bool     `json:"store_connected"`
	Providers      []string `json:"providers"`
}

// Stats reports occupancy across both tiers.
func (e *Engine) Stats(ctx context.Context) (*Status, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	storeStats, err := e.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		Store: storeStats,
		Cache: e.cache.Stats(),
	}, nil
}

// Health reports component liveness. A down cache degrades the status,
// a down store fails it.
func (e *Engine) Health(ctx context.Context) *Health {
	h := &Health{Status: "ok"}

	if err := e.ensureReady(ctx); err != nil {
		h.Status = "down"
		return h
	}

	h.CacheConnected = e.cache.Stats().Connected
	h.StoreConnected = e.store.Ping(ctx) == nil

	for _, c := range e.clients {
		h.Providers = append(h.Providers, c.Name())
	}

	switch {
	case !h.StoreConnected:
		h.Status = "down"
	case !h.CacheConnected:
		h.Status = "degraded"
	}
	return h
}

// Cleanup runs an expiry sweep over the durable store.
func (e *Engine) Cleanup(ctx context.Context) (*store.SweepResult, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.ExpirySweep(ctx)
}

// InvalidateMovie drops a movie from the cache tier and the durable
// store. Returns how many cache entries and store records were removed.
func (e *Engine) InvalidateMovie(ctx context.Context, movieID string) (cacheEntries, records int, err error) {
	if err := e.ensureReady(ctx); err != nil {
		return 0, 0, err
	}

	cacheEntries = e.cache.Invalidate(movieID)
	records, err = e.store.DeleteRecords(ctx, movieID)
	return cacheEntries, records, err
}

// BulkImport loads records in batches and returns the stored count.
func (e *Engine) BulkImport(ctx context.Context, records []store.Record) (int, error) {
	if err := e.ensureReady(ctx); err != nil {
		return 0, err
	}
	return e.store.BulkUpsert(ctx, records)
}

// Recommendations scores stored options for a movie against the given
// language preference order.
func (e *Engine) Recommendations(ctx context.Context, movieID string, languagePreferences []string) ([]store.Recommendation, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.Recommendations(ctx, movieID, languagePreferences)
}

// PopularLanguages ranks stored languages by usage volume.
func (e *Engine) PopularLanguages(ctx context.Context, limit int) ([]store.LanguagePopularity, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.PopularLanguages(ctx, limit)
}

// SearchMovies matches stored movies by title.
func (e *Engine) SearchMovies(ctx context.Context, title string, limit int) ([]store.MovieInfo, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.SearchMoviesByTitle(ctx, title, limit)
}

// UsageStats aggregates usage events over the trailing window.
func (e *Engine) UsageStats(ctx context.Context, days int) (*store.UsageStats, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.GetUsageStats(ctx, days)
}

// ExportUsageCSV renders daily usage as CSV.
func (e *Engine) ExportUsageCSV(ctx context.Context, days int) (string, error) {
	if err := e.ensureReady(ctx); err != nil {
		return "", err
	}
	return e.store.ExportUsageCSV(ctx, days)
}

// VerifyIntegrity checks one stored subtitle's cached content.
func (e *Engine) VerifyIntegrity(ctx context.Context, movieID, language string) (*store.IntegrityResult, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.VerifyIntegrity(ctx, movieID, language)
}

// ProviderHealth aggregates the upstream call log.
func (e *Engine) ProviderHealth(ctx context.Context, hours int) ([]store.ProviderHealth, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.GetProviderHealth(ctx, hours)
}

// Backup snapshots subtitle and movie metadata.
func (e *Engine) Backup(ctx context.Context) (*store.Backup, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.store.CreateBackup(ctx)
}

// Restore loads a snapshot; existing rows win conflicts.
func (e *Engine) Restore(ctx context.Context, backup *store.Backup) error {
	if err := e.ensureReady(ctx); err != nil {
		return err
	}
	return e.store.RestoreBackup(ctx, backup)
}
