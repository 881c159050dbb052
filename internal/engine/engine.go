// Package engine is the retrieval facade: it orchestrates the cache,
// durable store, provider aggregation, and content processing behind one
// surface the HTTP layer calls into.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shapedtime/subvault/internal/cache"
	"github.com/shapedtime/subvault/internal/config"
	"github.com/shapedtime/subvault/internal/metrics"
	"github.com/shapedtime/subvault/internal/provider"
	"github.com/shapedtime/subvault/internal/ratelimit"
	"github.com/shapedtime/subvault/internal/search"
	"github.com/shapedtime/subvault/internal/store"
	"github.com/shapedtime/subvault/internal/subtitle"
)

// Engine wires the retrieval pipeline together. Components come up
// lazily on first use; a failed Init tears down whatever it had built
// and surfaces the error without retrying on its own.
type Engine struct {
	cfg *config.Config
	met *metrics.Metrics // may be nil
	log *slog.Logger

	mu    sync.Mutex
	ready bool

	cache   *cache.Cache
	store   *store.Store
	search  *search.Manager
	proc    *subtitle.Processor
	clients []provider.Client
}

// New creates an engine. Nothing is opened until the first operation or
// an explicit Init.
func New(cfg *config.Config, met *metrics.Metrics) *Engine {
	return &Engine{
		cfg: cfg,
		met: met,
		log: slog.With("component", "engine"),
	}
}

// Init brings every component up. Safe to call repeatedly; only the
// first successful call does work.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return nil
	}

	dsn := e.cfg.Database.Path
	if e.cfg.Database.Driver == store.DriverPostgres {
		dsn = e.cfg.Database.DSN
	}
	st, err := store.Open(e.cfg.Database.Driver, dsn, e.cfg.Subtitles.CacheDuration)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	// The cache is the fast tier; losing it degrades, it does not stop
	// the engine. An open failure here still surfaces so a bad path is
	// caught at startup rather than masked forever.
	ca, err := cache.New(e.cfg.Cache.Path, cache.TTLs{
		Metadata:  e.cfg.Cache.MetadataTTL,
		Content:   e.cfg.Cache.ContentTTL,
		Search:    e.cfg.Cache.SearchTTL,
		Languages: e.cfg.Cache.LanguagesTTL,
	}, e.cfg.Cache.MaxCacheSize)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to open cache: %w", err)
	}

	osClient := provider.NewOpenSubtitles(
		e.cfg.Providers.OpenSubtitles.BaseURL,
		e.cfg.Providers.OpenSubtitles.APIKey,
		e.cfg.Providers.OpenSubtitles.Username,
		e.cfg.Providers.OpenSubtitles.Password,
	)
	sdClient := provider.NewSubDB(e.cfg.Providers.SubDB.BaseURL, e.cfg.Providers.SubDB.UserAgent)
	clients := []provider.Client{osClient, sdClient}

	limiter := ratelimit.NewLimiter(e.cfg.Limits.APICallsPerMinute, time.Minute)

	e.store = st
	e.cache = ca
	e.clients = clients
	e.search = search.NewManager(clients, limiter, search.Config{
		RetryAttempts:      e.cfg.Limits.RetryAttempts,
		RetryBaseDelay:     e.cfg.Limits.RetryBaseDelay,
		ConcurrentRequests: e.cfg.Limits.ConcurrentRequests,
		PriorityLanguages:  e.cfg.Subtitles.PriorityLanguages,
	}, e.logProviderCall, e.log)
	e.proc = subtitle.NewProcessor(e.cfg.Limits.MaxSubtitleSize)
	e.ready = true

	e.log.Info("engine initialized",
		"driver", e.cfg.Database.Driver, "providers", len(clients))
	return nil
}

func (e *Engine) ensureReady(ctx context.Context) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if ready {
		return nil
	}
	return e.Init(ctx)
}

// logProviderCall feeds every upstream call into the call log and the
// provider metrics.
func (e *Engine) logProviderCall(providerName, operation, status string, duration time.Duration, callErr string) {
	if e.met != nil {
		e.met.ProviderRequests.WithLabelValues(providerName, status).Inc()
		e.met.ProviderReqDuration.Observe(duration.Seconds())
	}
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.store.LogProviderCall(ctx, providerName, operation, status, duration, callErr)
}

func (e *Engine) cacheHit(class string) {
	if e.met != nil {
		e.met.CacheHits.WithLabelValues("memory", class).Inc()
	}
}

func (e *Engine) cacheMiss(class string) {
	if e.met != nil {
		e.met.CacheMisses.WithLabelValues("memory", class).Inc()
	}
}

// Store exposes the durable tier, for the metrics collector. Nil until
// Init has run.
func (e *Engine) Store() *store.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store
}

// Close shuts down providers, cache, and store. The engine is not
// usable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, c := range e.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	e.ready = false
	e.clients = nil
	e.cache = nil
	e.store = nil
	e.search = nil
	return firstErr
}
