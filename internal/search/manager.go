// Package search aggregates subtitle providers behind one query surface.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shapedtime/subvault/internal/provider"
	"github.com/shapedtime/subvault/internal/ratelimit"
)

// hashFallbackThreshold is the result count below which hash-lookup
// providers are consulted as a supplement.
const hashFallbackThreshold = 3

// CallLogFunc receives the outcome of every upstream provider call.
type CallLogFunc func(providerName, operation, status string, duration time.Duration, callErr string)

// Config carries the aggregation knobs.
type Config struct {
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	ConcurrentRequests int
	PriorityLanguages  []string
}

// Manager fans queries out over the configured providers, retries
// transient failures, and merges results into one ranked list.
type Manager struct {
	clients []provider.Client
	byName  map[string]provider.Client
	limiter *ratelimit.Limiter
	sem     *semaphore.Weighted
	logCall CallLogFunc
	log     *slog.Logger

	retryAttempts  int
	retryBaseDelay time.Duration
	priorityLangs  []string

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager wires providers behind a shared rate limiter. Client order is
// consultation order. logCall may be nil.
func NewManager(clients []provider.Client, limiter *ratelimit.Limiter, cfg Config, logCall CallLogFunc, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	concurrent := cfg.ConcurrentRequests
	if concurrent < 1 {
		concurrent = 1
	}

	byName := make(map[string]provider.Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}

	return &Manager{
		clients:        clients,
		byName:         byName,
		limiter:        limiter,
		sem:            semaphore.NewWeighted(int64(concurrent)),
		logCall:        logCall,
		log:            log.With("component", "search"),
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		priorityLangs:  cfg.PriorityLanguages,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SearchSubtitles queries providers in order and returns deduplicated
// results, best score first. Hash-lookup providers are only consulted
// when the primary providers come up short and a file hash is known.
func (m *Manager) SearchSubtitles(ctx context.Context, title, catalogID, language, fileHash string) ([]provider.RawResult, error) {
	criteria := provider.Criteria{
		Title:     title,
		CatalogID: catalogID,
		Language:  language,
		FileHash:  fileHash,
	}

	var results []provider.RawResult
	var lastErr error

	for _, client := range m.clients {
		if client.Name() == provider.NameSubDB {
			if fileHash == "" || len(results) >= hashFallbackThreshold {
				continue
			}
		}

		found, err := m.searchProvider(ctx, client, criteria)
		if err != nil {
			m.log.Warn("provider search failed",
				"provider", client.Name(), "movie_id", catalogID, "language", language, "err", err)
			lastErr = err
			continue
		}
		results = append(results, found...)
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}

	results = dedupeResults(results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (m *Manager) searchProvider(ctx context.Context, client provider.Client, criteria provider.Criteria) ([]provider.RawResult, error) {
	var results []provider.RawResult
	err := m.withRetry(ctx, client.Name(), "search", func() error {
		var err error
		results, err = client.Search(ctx, criteria)
		return err
	})
	return results, err
}

// DownloadContent fetches the raw body for a result from its provider.
func (m *Manager) DownloadContent(ctx context.Context, result provider.RawResult) ([]byte, error) {
	client, ok := m.byName[result.Provider]
	if !ok {
		return nil, &provider.Error{Provider: result.Provider, Message: "unknown provider"}
	}

	var body []byte
	err := m.withRetry(ctx, result.Provider, "download", func() error {
		var err error
		body, err = client.Download(ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// AvailableLanguages probes the priority language set concurrently and
// returns the ones with at least one result. Per-language failures are
// logged and swallowed.
func (m *Manager) AvailableLanguages(ctx context.Context, title, catalogID string) ([]string, error) {
	var mu sync.Mutex
	var available []string
	var wg sync.WaitGroup

	for _, lang := range m.priorityLangs {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}

		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			defer m.sem.Release(1)

			results, err := m.SearchSubtitles(ctx, title, catalogID, lang, "")
			if err != nil {
				m.log.Debug("language probe failed",
					"movie_id", catalogID, "language", lang, "err", err)
				return
			}
			if len(results) == 0 {
				return
			}

			mu.Lock()
			available = append(available, lang)
			mu.Unlock()
		}(lang)
	}

	wg.Wait()
	sort.Strings(available)
	return available, nil
}

// withRetry runs fn under the shared rate limiter, retrying transient
// failures with exponential backoff. The last error is returned.
func (m *Manager) withRetry(ctx context.Context, providerName, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < m.retryAttempts; attempt++ {
		if attempt > 0 {
			// First retry waits the base delay, doubling from there.
			delay := m.retryBaseDelay << (attempt - 1)
			m.log.Debug("retrying provider call",
				"provider", providerName, "op", operation, "attempt", attempt, "delay", delay)
			if err := m.sleep(ctx, delay); err != nil {
				return err
			}
		}

		if m.limiter != nil {
			if err := m.limiter.Acquire(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		err := fn()
		m.observe(providerName, operation, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
	}

	return lastErr
}

func (m *Manager) observe(providerName, operation string, duration time.Duration, err error) {
	if m.logCall == nil {
		return
	}
	status := "success"
	msg := ""
	if err != nil {
		status = "error"
		msg = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	m.logCall(providerName, operation, status, duration, msg)
}

// retryable decides whether a provider failure is worth another attempt.
// Auth rejections and client-side errors are terminal; throttling, server
// errors, and transport failures are not.
func retryable(err error) bool {
	var perr *provider.Error
	if errors.As(err, &perr) {
		if perr.IsThrottled() {
			return true
		}
		if perr.IsAuth() {
			return false
		}
		return perr.StatusCode == 0 || perr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// dedupeResults keeps the first result per filename+language pair, which
// preserves provider consultation order.
func dedupeResults(results []provider.RawResult) []provider.RawResult {
	seen := make(map[string]struct{}, len(results))
	deduped := results[:0]

	for _, r := range results {
		key := strings.ToLower(r.Filename) + "|" + r.Language
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped
}
