package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// recordColumns is the scan order shared by every record query.
const recordColumns = `id, movie_id, language, provider, COALESCE(subtitle_id, ''),
	download_count, quality_score, format, filename, release_name, file_size,
	encoding, hearing_impaired, machine_translated, download_url, cached_content,
	local_downloads, last_downloaded, verification_status, last_verified,
	sync_offset, created_at, updated_at, expires_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var lastDownloaded, lastVerified sql.NullTime

	err := row.Scan(
		&r.ID, &r.MovieID, &r.Language, &r.Provider, &r.SubtitleID,
		&r.DownloadCount, &r.QualityScore, &r.Format, &r.Filename, &r.Release,
		&r.FileSize, &r.Encoding, &r.HearingImpaired, &r.MachineTranslated,
		&r.DownloadURL, &r.CachedContent, &r.LocalDownloads, &lastDownloaded,
		&r.VerificationStatus, &lastVerified, &r.SyncOffset,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if lastDownloaded.Valid {
		r.LastDownloaded = &lastDownloaded.Time
	}
	if lastVerified.Valid {
		r.LastVerified = &lastVerified.Time
	}
	return &r, nil
}

// UpsertRecord stores a subtitle document, replacing any previous one for
// the same movie+language. created_at survives replacement; everything
// else is last-writer-wins. The movie aggregate is recomputed after.
func (s *Store) UpsertRecord(ctx context.Context, r *Record) error {
	now := time.Now().UTC()
	expires := now.Add(s.cacheDuration)
	if !r.ExpiresAt.IsZero() {
		expires = r.ExpiresAt.UTC()
	}

	query := s.rebind(`
		INSERT INTO subtitles (
			movie_id, language, provider, subtitle_id, download_count,
			quality_score, format, filename, release_name, file_size, encoding,
			hearing_impaired, machine_translated, download_url, cached_content,
			local_downloads, verification_status, sync_offset,
			created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(movie_id, language) DO UPDATE SET
			provider = excluded.provider,
			subtitle_id = excluded.subtitle_id,
			download_count = excluded.download_count,
			quality_score = excluded.quality_score,
			format = excluded.format,
			filename = excluded.filename,
			release_name = excluded.release_name,
			file_size = excluded.file_size,
			encoding = excluded.encoding,
			hearing_impaired = excluded.hearing_impaired,
			machine_translated = excluded.machine_translated,
			download_url = excluded.download_url,
			cached_content = excluded.cached_content,
			local_downloads = excluded.local_downloads,
			verification_status = excluded.verification_status,
			sync_offset = excluded.sync_offset,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`)

	format := r.Format
	if format == "" {
		format = "srt"
	}
	encoding := r.Encoding
	if encoding == "" {
		encoding = "utf-8"
	}
	status := r.VerificationStatus
	if status == "" {
		status = VerificationPending
	}

	_, err := s.db.ExecContext(ctx, query,
		r.MovieID, r.Language, r.Provider, r.SubtitleID, r.DownloadCount,
		r.QualityScore, format, r.Filename, r.Release, r.FileSize, encoding,
		r.HearingImpaired, r.MachineTranslated, r.DownloadURL, r.CachedContent,
		r.LocalDownloads, status, r.SyncOffset,
		now, now, expires,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subtitle record: %w", err)
	}

	return s.refreshMovieAggregate(ctx, r.MovieID)
}

// GetRecord returns the live record for movie+language, or nil when absent
// or expired.
func (s *Store) GetRecord(ctx context.Context, movieID, language string) (*Record, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT %s FROM subtitles
		WHERE movie_id = ? AND language = ? AND expires_at > ?
	`, recordColumns))

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, movieID, language, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle record: %w", err)
	}
	return r, nil
}

// GetRecordsForMovie lists all records for a movie, best quality first.
func (s *Store) GetRecordsForMovie(ctx context.Context, movieID string, includeExpired bool) ([]Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM subtitles WHERE movie_id = ?`, recordColumns)
	args := []any{movieID}
	if !includeExpired {
		query += ` AND expires_at > ?`
		args = append(args, time.Now().UTC())
	}
	query += ` ORDER BY quality_score DESC, download_count DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitle records: %w", err)
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

// GetBestQuality returns the highest-scoring live record at or above
// minScore, or nil when none qualifies.
func (s *Store) GetBestQuality(ctx context.Context, movieID, language string, minScore int) (*Record, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT %s FROM subtitles
		WHERE movie_id = ? AND language = ? AND quality_score >= ? AND expires_at > ?
		ORDER BY quality_score DESC, download_count DESC
		LIMIT 1
	`, recordColumns))

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, movieID, language, minScore, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get best quality record: %w", err)
	}
	return r, nil
}

// bulkBatchSize bounds one insert transaction during bulk import.
const bulkBatchSize = 100

// BulkUpsert imports records in batches and returns how many were stored.
// A failed batch is skipped, not fatal.
func (s *Store) BulkUpsert(ctx context.Context, records []Record) (int, error) {
	stored := 0
	movies := map[string]struct{}{}

	for start := 0; start < len(records); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := s.bulkBatch(ctx, records[start:end])
		if err != nil {
			s.log.Warn("bulk import batch failed", "start", start, "err", err)
			continue
		}
		stored += n
		for _, r := range records[start:end] {
			movies[r.MovieID] = struct{}{}
		}
	}

	for movieID := range movies {
		if err := s.refreshMovieAggregate(ctx, movieID); err != nil {
			s.log.Warn("aggregate refresh failed", "movie_id", movieID, "err", err)
		}
	}

	return stored, nil
}

func (s *Store) bulkBatch(ctx context.Context, records []Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := s.rebind(`
		INSERT INTO subtitles (
			movie_id, language, provider, subtitle_id, download_count,
			quality_score, format, filename, release_name, file_size, encoding,
			hearing_impaired, machine_translated, download_url, cached_content,
			local_downloads, verification_status, sync_offset,
			created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(movie_id, language) DO UPDATE SET
			provider = excluded.provider,
			subtitle_id = excluded.subtitle_id,
			download_count = excluded.download_count,
			quality_score = excluded.quality_score,
			format = excluded.format,
			filename = excluded.filename,
			release_name = excluded.release_name,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, r := range records {
		if r.MovieID == "" || r.Language == "" {
			continue
		}

		expires := now.Add(s.cacheDuration)
		if !r.ExpiresAt.IsZero() {
			expires = r.ExpiresAt.UTC()
		}
		format := r.Format
		if format == "" {
			format = "srt"
		}
		encoding := r.Encoding
		if encoding == "" {
			encoding = "utf-8"
		}
		status := r.VerificationStatus
		if status == "" {
			status = VerificationPending
		}

		if _, err := stmt.ExecContext(ctx,
			r.MovieID, r.Language, r.Provider, r.SubtitleID, r.DownloadCount,
			r.QualityScore, format, r.Filename, r.Release, r.FileSize, encoding,
			r.HearingImpaired, r.MachineTranslated, r.DownloadURL, r.CachedContent,
			r.LocalDownloads, status, r.SyncOffset,
			now, now, expires,
		); err != nil {
			return 0, err
		}
		n++
	}

	return n, tx.Commit()
}

// AddSyncOffset accumulates a timing adjustment on the record, mirroring
// the shift applied to its stored content.
func (s *Store) AddSyncOffset(ctx context.Context, movieID, language string, offsetSeconds float64) error {
	query := s.rebind(`
		UPDATE subtitles
		SET sync_offset = sync_offset + ?, updated_at = ?
		WHERE movie_id = ? AND language = ?
	`)
	_, err := s.db.ExecContext(ctx, query, offsetSeconds, time.Now().UTC(), movieID, language)
	if err != nil {
		return fmt.Errorf("failed to record sync offset: %w", err)
	}
	return nil
}

// MarkDownloaded bumps the local download counter and stamps the record.
func (s *Store) MarkDownloaded(ctx context.Context, movieID, language string) error {
	query := s.rebind(`
		UPDATE subtitles
		SET local_downloads = local_downloads + 1, last_downloaded = ?, updated_at = ?
		WHERE movie_id = ? AND language = ?
	`)
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, now, now, movieID, language)
	if err != nil {
		return fmt.Errorf("failed to mark download: %w", err)
	}
	return nil
}

// DeleteRecords removes every record and blob for a movie and returns the
// number of records dropped.
func (s *Store) DeleteRecords(ctx context.Context, movieID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM subtitles WHERE movie_id = ?`), movieID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtitle records: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM subtitle_blobs WHERE movie_id = ?`), movieID); err != nil {
		return 0, fmt.Errorf("failed to delete subtitle blobs: %w", err)
	}

	n, _ := res.RowsAffected()

	if err := s.refreshMovieAggregate(ctx, movieID); err != nil {
		s.log.Warn("aggregate refresh failed", "movie_id", movieID, "err", err)
	}

	return int(n), nil
}
