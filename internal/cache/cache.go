// Package cache is the fast tier: a Badger-backed TTL cache for subtitle
// metadata, content, search results, and rate-limit counters.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "subtitle"

// TTLs carries the per-class expiry durations.
type TTLs struct {
	Metadata  time.Duration
	Content   time.Duration
	Search    time.Duration
	Languages time.Duration
}

// Metadata is the cached descriptor for one stored subtitle.
type Metadata struct {
	MovieID       string    `json:"movie_id"`
	Language      string    `json:"language"`
	Provider      string    `json:"provider"`
	SubtitleID    string    `json:"subtitle_id"`
	Format        string    `json:"format"`
	QualityScore  int       `json:"quality_score"`
	DownloadCount int       `json:"download_count"`
	Release       string    `json:"release,omitempty"`
	CachedAt      time.Time `json:"cached_at"`
}

// Stats summarizes cache occupancy.
type Stats struct {
	Connected bool           `json:"connected"`
	TotalKeys int            `json:"total_keys"`
	KeyCounts map[string]int `json:"key_counts"`
	LSMSize   int64          `json:"lsm_size_bytes"`
	VLogSize  int64          `json:"vlog_size_bytes"`
}

// badgerLogger adapts slog for Badger's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error(f, "args", v) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn(f, "args", v) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.log.Info(f, "args", v) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.log.Debug(f, "args", v) }

// Cache is the tiered cache front. A nil *Cache is valid and degrades to
// a permanent miss so callers never have to branch on availability.
type Cache struct {
	db          *badger.DB
	ttls        TTLs
	maxItemSize int64
	log         *slog.Logger
}

// New opens the Badger store at path.
func New(path string, ttls TTLs, maxItemSize int64) (*Cache, error) {
	log := slog.With("component", "cache")

	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{log: log}).
		WithValueLogFileSize(1<<26 - 1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// Reclaim value-log space left over from previous runs.
	err = db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		db.Close()
		return nil, err
	}

	return &Cache{
		db:          db,
		ttls:        ttls,
		maxItemSize: maxItemSize,
		log:         log,
	}, nil
}

func makeKey(parts ...string) []byte {
	return []byte(keyPrefix + ":" + strings.Join(parts, ":"))
}

func (c *Cache) available() bool {
	return c != nil && c.db != nil
}

// GetMetadata returns the cached descriptor for movie+language, or nil on
// miss.
func (c *Cache) GetMetadata(movieID, language string) *Metadata {
	if !c.available() {
		return nil
	}

	var meta Metadata
	if !c.getJSON(makeKey("metadata", movieID, language), &meta) {
		return nil
	}
	return &meta
}

// SetMetadata caches a subtitle descriptor.
func (c *Cache) SetMetadata(movieID, language string, meta *Metadata) bool {
	if !c.available() || meta == nil {
		return false
	}
	meta.CachedAt = time.Now()
	return c.setJSON(makeKey("metadata", movieID, language), meta, c.ttls.Metadata)
}

// GetContent returns cached subtitle text, or ("", false) on miss.
func (c *Cache) GetContent(movieID, language string) (string, bool) {
	if !c.available() {
		return "", false
	}

	val, ok := c.getRaw(makeKey("content", movieID, language))
	if !ok {
		return "", false
	}
	return string(val), true
}

// SetContent caches subtitle text. Content over the size cap is refused.
func (c *Cache) SetContent(movieID, language, content string) bool {
	if !c.available() {
		return false
	}
	if int64(len(content)) > c.maxItemSize {
		c.log.Warn("content exceeds cache size cap",
			"movie_id", movieID, "language", language, "size", len(content))
		return false
	}
	return c.setRaw(makeKey("content", movieID, language), []byte(content), c.ttls.Content)
}

// GetSearchResults returns cached search results decoded into dst.
// dst must be a pointer to the caller's result slice.
func (c *Cache) GetSearchResults(query, language string, dst any) bool {
	if !c.available() {
		return false
	}
	return c.getJSON(makeKey("search", strings.ToLower(query), language), dst)
}

// SetSearchResults caches search results.
func (c *Cache) SetSearchResults(query, language string, results any) bool {
	if !c.available() {
		return false
	}
	return c.setJSON(makeKey("search", strings.ToLower(query), language), results, c.ttls.Search)
}

// GetLanguages returns the cached language list for a movie.
func (c *Cache) GetLanguages(movieID string) ([]string, bool) {
	if !c.available() {
		return nil, false
	}

	var langs []string
	if !c.getJSON(makeKey("languages", movieID), &langs) {
		return nil, false
	}
	return langs, true
}

// SetLanguages caches the available language list for a movie.
func (c *Cache) SetLanguages(movieID string, languages []string) bool {
	if !c.available() {
		return false
	}
	return c.setJSON(makeKey("languages", movieID), languages, c.ttls.Languages)
}

// Invalidate drops every cached entry for a movie across metadata,
// content, and language classes.
func (c *Cache) Invalidate(movieID string) int {
	if !c.available() {
		return 0
	}

	// Trailing colon keeps "tt1" from matching "tt10".
	prefixes := [][]byte{
		append(makeKey("metadata", movieID), ':'),
		append(makeKey("content", movieID), ':'),
		makeKey("languages", movieID),
	}

	removed := 0
	err := c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var doomed [][]byte
		for _, prefix := range prefixes[:2] {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				doomed = append(doomed, it.Item().KeyCopy(nil))
			}
		}

		// The languages entry is a single exact key.
		if _, err := txn.Get(prefixes[2]); err == nil {
			doomed = append(doomed, prefixes[2])
		}

		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		c.log.Error("cache invalidation failed", "movie_id", movieID, "err", err)
		return 0
	}

	return removed
}

// rateLimitRetries bounds optimistic retries on transaction conflicts.
const rateLimitRetries = 3

// IncrementRateLimit bumps the counter for id within the named window and
// reports whether the call is under max. Failures fail open: a broken
// cache never blocks traffic.
func (c *Cache) IncrementRateLimit(id, window string, ttl time.Duration, max int) (bool, int) {
	if !c.available() {
		return true, 0
	}

	key := makeKey("rate_limit", window, id)

	for attempt := 0; attempt < rateLimitRetries; attempt++ {
		count := 0
		err := c.db.Update(func(txn *badger.Txn) error {
			entryTTL := ttl
			item, err := txn.Get(key)
			if err == nil {
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				count, _ = strconv.Atoi(string(val))
				// The window expiry is seeded by the first increment;
				// later increments keep it instead of extending it.
				if exp := item.ExpiresAt(); exp > 0 {
					if remaining := time.Until(time.Unix(int64(exp), 0)); remaining > 0 {
						entryTTL = remaining
					}
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			count++
			entry := badger.NewEntry(key, []byte(strconv.Itoa(count))).WithTTL(entryTTL)
			return txn.SetEntry(entry)
		})

		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			c.log.Warn("rate limit counter failed open", "id", id, "err", err)
			return true, 0
		}
		return count <= max, count
	}

	return true, 0
}

// Stats reports key counts per class and on-disk sizes.
func (c *Cache) Stats() Stats {
	if !c.available() {
		return Stats{Connected: false}
	}

	counts := map[string]int{}
	classes := []string{"metadata", "content", "search", "languages", "rate_limit"}

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, class := range classes {
			prefix := makeKey(class)
			n := 0
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				n++
			}
			counts[class] = n
		}
		return nil
	})
	if err != nil {
		c.log.Error("cache stats failed", "err", err)
		return Stats{Connected: false}
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	lsm, vlog := c.db.Size()
	return Stats{
		Connected: true,
		TotalKeys: total,
		KeyCounts: counts,
		LSMSize:   lsm,
		VLogSize:  vlog,
	}
}

// Close shuts down the Badger database.
func (c *Cache) Close() error {
	if !c.available() {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) getRaw(key []byte) ([]byte, bool) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			c.log.Warn("cache read failed", "key", string(key), "err", err)
		}
		return nil, false
	}
	return val, true
}

func (c *Cache) setRaw(key, val []byte, ttl time.Duration) bool {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, val).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.log.Warn("cache write failed", "key", string(key), "err", err)
		return false
	}
	return true
}

func (c *Cache) getJSON(key []byte, dst any) bool {
	val, ok := c.getRaw(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		c.log.Warn("cache entry corrupt", "key", string(key), "err", err)
		return false
	}
	return true
}

func (c *Cache) setJSON(key []byte, v any, ttl time.Duration) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", string(key), "err", err)
		return false
	}
	return c.setRaw(key, data, ttl)
}
