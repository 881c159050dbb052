package store

import "time"

// Verification states for stored subtitle records.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationFailed   = "failed"
)

// Usage event types.
const (
	EventAccess   = "access"
	EventDownload = "download"
	EventCacheHit = "cache_hit"
)

// Record is one stored subtitle document.
type Record struct {
	ID                 int64      `json:"id"`
	MovieID            string     `json:"movie_id"`
	Language           string     `json:"language"`
	Provider           string     `json:"provider"`
	SubtitleID         string     `json:"subtitle_id"`
	DownloadCount      int        `json:"download_count"`
	QualityScore       int        `json:"quality_score"`
	Format             string     `json:"format"`
	Filename           string     `json:"filename"`
	Release            string     `json:"release"`
	FileSize           int64      `json:"file_size"`
	Encoding           string     `json:"encoding"`
	HearingImpaired    bool       `json:"hearing_impaired"`
	MachineTranslated  bool       `json:"machine_translated"`
	DownloadURL        string     `json:"download_url"`
	CachedContent      bool       `json:"cached_content"`
	LocalDownloads     int        `json:"local_downloads"`
	LastDownloaded     *time.Time `json:"last_downloaded,omitempty"`
	VerificationStatus string     `json:"verification_status"`
	LastVerified       *time.Time `json:"last_verified,omitempty"`
	SyncOffset         float64    `json:"sync_offset"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
}

// MovieInfo is the aggregate subtitle availability for one movie.
type MovieInfo struct {
	ID                 int64     `json:"id"`
	CatalogID          string    `json:"catalog_id,omitempty"`
	Title              string    `json:"title"`
	NormalizedTitle    string    `json:"normalized_title"`
	Year               int       `json:"year,omitempty"`
	AvailableLanguages []string  `json:"available_languages"`
	SubtitleCount      int       `json:"subtitle_count"`
	CheckCount         int       `json:"check_count"`
	LastChecked        time.Time `json:"last_checked"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LanguagePopularity ranks a language by stored subtitle volume.
type LanguagePopularity struct {
	Language       string   `json:"language"`
	Count          int      `json:"count"`
	AvgQuality     float64  `json:"avg_quality"`
	TotalDownloads int      `json:"total_downloads"`
	Providers      []string `json:"providers"`
	Popularity     float64  `json:"popularity"`
}

// SweepResult reports what an expiry sweep removed.
type SweepResult struct {
	ExpiredRecords int `json:"expired_records"`
	OrphanedBlobs  int `json:"orphaned_blobs"`
	MoviesUpdated  int `json:"movies_updated"`
}

// Stats summarizes store occupancy.
type Stats struct {
	TotalSubtitles      int            `json:"total_subtitles"`
	ActiveSubtitles     int            `json:"active_subtitles"`
	ExpiredSubtitles    int            `json:"expired_subtitles"`
	TotalMovies         int            `json:"total_movies"`
	CachedBlobs         int            `json:"cached_blobs"`
	BlobBytes           int64          `json:"blob_bytes"`
	CacheEfficiency     float64        `json:"cache_efficiency"`
	QualityDistribution map[string]int `json:"quality_distribution"`
	ByProvider          map[string]int `json:"by_provider"`
	ByLanguage          map[string]int `json:"by_language"`
}

// DailyUsage is one day of aggregated usage events.
type DailyUsage struct {
	Date        string `json:"date"`
	Downloads   int    `json:"downloads"`
	UniqueUsers int    `json:"unique_users"`
	Languages   int    `json:"languages"`
}

// LanguageUsage aggregates events per language.
type LanguageUsage struct {
	Language    string `json:"language"`
	Downloads   int    `json:"downloads"`
	UniqueUsers int    `json:"unique_users"`
}

// MovieUsage aggregates events per movie.
type MovieUsage struct {
	MovieID   string `json:"movie_id"`
	Downloads int    `json:"downloads"`
	Languages int    `json:"languages"`
}

// UsageStats is the usage report for a trailing window.
type UsageStats struct {
	PeriodDays         int             `json:"period_days"`
	TotalDownloads     int             `json:"total_downloads"`
	UniqueUsers        int             `json:"unique_users"`
	AvgDownloadsPerDay float64         `json:"avg_downloads_per_day"`
	Daily              []DailyUsage    `json:"daily_stats"`
	Languages          []LanguageUsage `json:"language_stats"`
	Movies             []MovieUsage    `json:"movie_stats"`
}

// IntegrityResult is the outcome of verifying one cached subtitle.
type IntegrityResult struct {
	Status        string     `json:"status"`
	Message       string     `json:"message,omitempty"`
	ContentLength int        `json:"content_length,omitempty"`
	LineCount     int        `json:"line_count,omitempty"`
	HasTimecode   bool       `json:"has_timecode,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// Recommendation is a scored subtitle option for one movie.
type Recommendation struct {
	Record
	RecommendationScore float64 `json:"recommendation_score"`
}

// ProviderHealth aggregates the call log for one provider.
type ProviderHealth struct {
	Provider      string  `json:"provider"`
	TotalCalls    int     `json:"total_calls"`
	Successes     int     `json:"successes"`
	Errors        int     `json:"errors"`
	ErrorRate     float64 `json:"error_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Backup is a portable snapshot of subtitle and movie metadata.
type Backup struct {
	CreatedAt     time.Time   `json:"created_at"`
	Version       string      `json:"version"`
	SubtitleCount int         `json:"subtitle_count"`
	MovieCount    int         `json:"movie_count"`
	Subtitles     []Record    `json:"subtitles"`
	Movies        []MovieInfo `json:"movies"`
}
