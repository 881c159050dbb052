package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ExpirySweep drops expired records and blobs no live record points to,
// then recomputes affected movie aggregates.
func (s *Store) ExpirySweep(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	result := &SweepResult{}

	// Collect affected movies before deletion so aggregates can be fixed.
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT DISTINCT movie_id FROM subtitles WHERE expires_at <= ?`), now)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired records: %w", err)
	}
	var movies []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		movies = append(movies, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM subtitles WHERE expires_at <= ?`), now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired records: %w", err)
	}
	expired, _ := res.RowsAffected()
	result.ExpiredRecords = int(expired)

	// Blobs whose record is gone are orphans.
	res, err = s.db.ExecContext(ctx, `
		DELETE FROM subtitle_blobs WHERE NOT EXISTS (
			SELECT 1 FROM subtitles
			WHERE subtitles.movie_id = subtitle_blobs.movie_id
			AND subtitles.language = subtitle_blobs.language
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to delete orphaned blobs: %w", err)
	}
	orphans, _ := res.RowsAffected()
	result.OrphanedBlobs = int(orphans)

	for _, movieID := range movies {
		if err := s.refreshMovieAggregate(ctx, movieID); err != nil {
			s.log.Warn("aggregate refresh failed", "movie_id", movieID, "err", err)
			continue
		}
		result.MoviesUpdated++
	}

	s.log.Info("expiry sweep complete",
		"expired", result.ExpiredRecords, "orphaned_blobs", result.OrphanedBlobs)
	return result, nil
}

// qualityBuckets label the score histogram in GetStats.
var qualityBuckets = []struct {
	label string
	lo    int
	hi    int // exclusive; -1 means unbounded
}{
	{"0-49", 0, 50},
	{"50-99", 50, 100},
	{"100-499", 100, 500},
	{"500-999", 500, 1000},
	{"1000+", 1000, -1},
}

// GetStats reports store occupancy and the quality score distribution.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		QualityDistribution: map[string]int{},
		ByProvider:          map[string]int{},
		ByLanguage:          map[string]int{},
	}
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
			SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END)
		FROM subtitles
	`), now)
	var active sql.NullInt64
	if err := row.Scan(&stats.TotalSubtitles, &active); err != nil {
		return nil, fmt.Errorf("failed to count subtitles: %w", err)
	}
	stats.ActiveSubtitles = int(active.Int64)
	stats.ExpiredSubtitles = stats.TotalSubtitles - stats.ActiveSubtitles

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&stats.TotalMovies); err != nil {
		return nil, fmt.Errorf("failed to count movies: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(compressed_size), 0) FROM subtitle_blobs`)
	if err := row.Scan(&stats.CachedBlobs, &stats.BlobBytes); err != nil {
		return nil, fmt.Errorf("failed to count blobs: %w", err)
	}
	if stats.ActiveSubtitles > 0 {
		stats.CacheEfficiency = float64(stats.CachedBlobs) / float64(stats.ActiveSubtitles) * 100
	}

	for _, bucket := range qualityBuckets {
		var query string
		args := []any{now, bucket.lo}
		if bucket.hi >= 0 {
			query = s.rebind(`SELECT COUNT(*) FROM subtitles WHERE expires_at > ? AND quality_score >= ? AND quality_score < ?`)
			args = append(args, bucket.hi)
		} else {
			query = s.rebind(`SELECT COUNT(*) FROM subtitles WHERE expires_at > ? AND quality_score >= ?`)
		}
		var n int
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to bucket quality scores: %w", err)
		}
		stats.QualityDistribution[bucket.label] = n
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT provider, COUNT(*) FROM subtitles WHERE expires_at > ?
		GROUP BY provider
	`), now)
	if err != nil {
		return nil, fmt.Errorf("failed to count providers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var n int
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, err
		}
		stats.ByProvider[provider] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	langRows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT language, COUNT(*) FROM subtitles WHERE expires_at > ?
		GROUP BY language
	`), now)
	if err != nil {
		return nil, fmt.Errorf("failed to count languages: %w", err)
	}
	defer langRows.Close()
	for langRows.Next() {
		var language string
		var n int
		if err := langRows.Scan(&language, &n); err != nil {
			return nil, err
		}
		stats.ByLanguage[language] = n
	}
	return stats, langRows.Err()
}

var timecodeRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)

// VerifyIntegrity checks that a record's cached content is retrievable
// and plausible, then stamps the verification status.
func (s *Store) VerifyIntegrity(ctx context.Context, movieID, language string) (*IntegrityResult, error) {
	record, err := s.GetRecord(ctx, movieID, language)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &IntegrityResult{Status: "not_found", Message: "subtitle record not found"}, nil
	}
	if !record.CachedContent {
		return &IntegrityResult{Status: "not_cached", Message: "subtitle content not cached"}, nil
	}

	content, err := s.GetBlob(ctx, movieID, language)
	if err != nil {
		return nil, err
	}
	if content == "" {
		s.setVerification(ctx, movieID, language, VerificationFailed)
		return &IntegrityResult{Status: "content_missing", Message: "cached content could not be retrieved"}, nil
	}

	lineCount := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lineCount++
		}
	}

	now := time.Now().UTC()
	result := &IntegrityResult{
		Status:        "verified",
		ContentLength: len(content),
		LineCount:     lineCount,
		HasTimecode:   timecodeRe.MatchString(content),
		VerifiedAt:    &now,
	}

	s.setVerification(ctx, movieID, language, VerificationVerified)
	return result, nil
}

func (s *Store) setVerification(ctx context.Context, movieID, language, status string) {
	query := s.rebind(`
		UPDATE subtitles SET verification_status = ?, last_verified = ?
		WHERE movie_id = ? AND language = ?
	`)
	if _, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), movieID, language); err != nil {
		s.log.Warn("verification stamp failed", "movie_id", movieID, "err", err)
	}
}

// backupVersion tags exported snapshots.
const backupVersion = "1.0"

// CreateBackup snapshots all subtitle and movie metadata. Blob bodies are
// excluded; content re-downloads on demand.
func (s *Store) CreateBackup(ctx context.Context) (*Backup, error) {
	records, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}

	movies, err := s.allMovies(ctx)
	if err != nil {
		return nil, err
	}

	backup := &Backup{
		CreatedAt:     time.Now().UTC(),
		Version:       backupVersion,
		SubtitleCount: len(records),
		MovieCount:    len(movies),
		Subtitles:     records,
		Movies:        movies,
	}

	s.log.Info("created backup", "subtitles", len(records), "movies", len(movies))
	return backup, nil
}

// RestoreBackup loads a snapshot. Existing rows win conflicts; restore
// only fills gaps.
func (s *Store) RestoreBackup(ctx context.Context, backup *Backup) error {
	if backup == nil || len(backup.Subtitles) == 0 && len(backup.Movies) == 0 {
		return fmt.Errorf("backup is empty")
	}

	query := s.rebind(`
		INSERT INTO subtitles (
			movie_id, language, provider, subtitle_id, download_count,
			quality_score, format, filename, release_name, file_size, encoding,
			hearing_impaired, machine_translated, download_url, cached_content,
			local_downloads, verification_status, sync_offset,
			created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(movie_id, language) DO NOTHING
	`)
	for _, r := range backup.Subtitles {
		if _, err := s.db.ExecContext(ctx, query,
			r.MovieID, r.Language, r.Provider, r.SubtitleID, r.DownloadCount,
			r.QualityScore, r.Format, r.Filename, r.Release, r.FileSize, r.Encoding,
			r.HearingImpaired, r.MachineTranslated, r.DownloadURL, false,
			r.LocalDownloads, r.VerificationStatus, r.SyncOffset,
			r.CreatedAt, r.UpdatedAt, r.ExpiresAt,
		); err != nil {
			return fmt.Errorf("failed to restore subtitle record: %w", err)
		}
	}

	movieQuery := s.rebind(`
		INSERT INTO movies (
			catalog_id, title, normalized_title, year, available_languages,
			subtitle_count, check_count, last_checked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(catalog_id) DO NOTHING
	`)
	for _, m := range backup.Movies {
		langJSON := "[]"
		if len(m.AvailableLanguages) > 0 {
			langJSON = `["` + strings.Join(m.AvailableLanguages, `","`) + `"]`
		}
		var yearArg any
		if m.Year > 0 {
			yearArg = m.Year
		}
		if _, err := s.db.ExecContext(ctx, movieQuery,
			m.CatalogID, m.Title, m.NormalizedTitle, yearArg, langJSON,
			m.SubtitleCount, m.CheckCount, m.LastChecked, m.CreatedAt, m.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to restore movie info: %w", err)
		}
	}

	s.log.Info("restored backup",
		"subtitles", len(backup.Subtitles), "movies", len(backup.Movies))
	return nil
}

func (s *Store) allRecords(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM subtitles ORDER BY movie_id, language`, recordColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *Store) allMovies(ctx context.Context) ([]MovieInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM movies ORDER BY normalized_title`, movieColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []MovieInfo
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}
