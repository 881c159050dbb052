package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"
)

// CacheBlob stores subtitle content for movie+language, replacing any
// previous body, and flags the record as content-cached.
func (s *Store) CacheBlob(ctx context.Context, movieID, language, content string, compress bool) error {
	raw := []byte(content)
	body := raw

	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("failed to compress content: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress content: %w", err)
		}
		body = buf.Bytes()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	query := s.rebind(`
		INSERT INTO subtitle_blobs (
			movie_id, language, body, compressed, original_size, compressed_size,
			encoding, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(movie_id, language) DO UPDATE SET
			body = excluded.body,
			compressed = excluded.compressed,
			original_size = excluded.original_size,
			compressed_size = excluded.compressed_size,
			encoding = excluded.encoding,
			cached_at = excluded.cached_at
	`)
	if _, err := tx.ExecContext(ctx, query,
		movieID, language, body, compress, len(raw), len(body), "utf-8", now,
	); err != nil {
		return fmt.Errorf("failed to cache subtitle blob: %w", err)
	}

	mark := s.rebind(`
		UPDATE subtitles SET cached_content = TRUE, updated_at = ?
		WHERE movie_id = ? AND language = ?
	`)
	if _, err := tx.ExecContext(ctx, mark, now, movieID, language); err != nil {
		return fmt.Errorf("failed to flag cached content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Debug("cached subtitle blob",
		"movie_id", movieID, "language", language,
		"original", len(raw), "stored", len(body))
	return nil
}

// GetBlob returns the stored content, transparently gunzipping. A corrupt
// compressed body falls back to the raw bytes rather than failing.
func (s *Store) GetBlob(ctx context.Context, movieID, language string) (string, error) {
	query := s.rebind(`
		SELECT body, compressed FROM subtitle_blobs
		WHERE movie_id = ? AND language = ?
	`)

	var body []byte
	var compressed bool
	err := s.db.QueryRowContext(ctx, query, movieID, language).Scan(&body, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get subtitle blob: %w", err)
	}

	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			s.log.Warn("blob decompression failed, returning raw bytes",
				"movie_id", movieID, "language", language, "err", err)
			return string(body), nil
		}
		defer zr.Close()

		decoded, err := io.ReadAll(zr)
		if err != nil {
			return string(body), nil
		}
		return string(decoded), nil
	}

	return string(body), nil
}
