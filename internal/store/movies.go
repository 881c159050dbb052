package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UpsertMovieInfo stores movie-level availability. Repeated checks bump
// check_count and refresh last_checked.
func (s *Store) UpsertMovieInfo(ctx context.Context, catalogID, title string, year int, languages []string) error {
	langJSON, err := json.Marshal(languages)
	if err != nil {
		return fmt.Errorf("failed to encode languages: %w", err)
	}

	now := time.Now().UTC()
	normalized := strings.ToLower(strings.TrimSpace(title))

	query := s.rebind(`
		INSERT INTO movies (
			catalog_id, title, normalized_title, year, available_languages,
			subtitle_count, check_count, last_checked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(catalog_id) DO UPDATE SET
			title = excluded.title,
			normalized_title = excluded.normalized_title,
			year = excluded.year,
			available_languages = excluded.available_languages,
			subtitle_count = excluded.subtitle_count,
			check_count = movies.check_count + 1,
			last_checked = excluded.last_checked,
			updated_at = excluded.updated_at
	`)

	var yearArg any
	if year > 0 {
		yearArg = year
	}

	_, err = s.db.ExecContext(ctx, query,
		catalogID, title, normalized, yearArg, string(langJSON),
		len(languages), now, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert movie info: %w", err)
	}
	return nil
}

const movieColumns = `id, COALESCE(catalog_id, ''), title, normalized_title,
	COALESCE(year, 0), available_languages, subtitle_count, check_count,
	last_checked, created_at, updated_at`

func scanMovie(row interface{ Scan(...any) error }) (*MovieInfo, error) {
	var m MovieInfo
	var langJSON string

	err := row.Scan(
		&m.ID, &m.CatalogID, &m.Title, &m.NormalizedTitle, &m.Year,
		&langJSON, &m.SubtitleCount, &m.CheckCount,
		&m.LastChecked, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(langJSON), &m.AvailableLanguages); err != nil {
		m.AvailableLanguages = nil
	}
	return &m, nil
}

// GetMovieInfo looks up a movie by catalog id.
func (s *Store) GetMovieInfo(ctx context.Context, catalogID string) (*MovieInfo, error) {
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM movies WHERE catalog_id = ?`, movieColumns))

	m, err := scanMovie(s.db.QueryRowContext(ctx, query, catalogID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie info: %w", err)
	}
	return m, nil
}

// SearchMoviesByTitle matches on the normalized title, newest check first.
func (s *Store) SearchMoviesByTitle(ctx context.Context, title string, limit int) ([]MovieInfo, error) {
	if limit <= 0 {
		limit = 10
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(title)) + "%"
	query := s.rebind(fmt.Sprintf(`
		SELECT %s FROM movies
		WHERE normalized_title LIKE ?
		ORDER BY last_checked DESC
		LIMIT ?
	`, movieColumns))

	rows, err := s.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
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

// PopularLanguages ranks languages across live records. Popularity blends
// volume, average quality, and download totals; each entry carries the
// set of providers contributing to it.
func (s *Store) PopularLanguages(ctx context.Context, limit int) ([]LanguagePopularity, error) {
	if limit <= 0 {
		limit = 20
	}

	now := time.Now().UTC()
	query := s.rebind(`
		SELECT language, COUNT(*), COALESCE(AVG(quality_score), 0),
			COALESCE(SUM(download_count), 0)
		FROM subtitles
		WHERE expires_at > ?
		GROUP BY language
	`)

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to rank languages: %w", err)
	}
	defer rows.Close()

	var langs []LanguagePopularity
	for rows.Next() {
		var l LanguagePopularity
		if err := rows.Scan(&l.Language, &l.Count, &l.AvgQuality, &l.TotalDownloads); err != nil {
			return nil, err
		}
		l.Popularity = float64(l.Count) + l.AvgQuality*0.1 + float64(l.TotalDownloads)*0.001
		langs = append(langs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	providers, err := s.providersByLanguage(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range langs {
		langs[i].Providers = providers[langs[i].Language]
	}

	sort.Slice(langs, func(i, j int) bool {
		return langs[i].Popularity > langs[j].Popularity
	})
	if len(langs) > limit {
		langs = langs[:limit]
	}
	return langs, nil
}

// providersByLanguage collects the distinct provider set per live
// language. Aggregated in Go so the query stays in the dialect subset
// both drivers accept.
func (s *Store) providersByLanguage(ctx context.Context, now time.Time) (map[string][]string, error) {
	query := s.rebind(`
		SELECT DISTINCT language, provider FROM subtitles
		WHERE expires_at > ?
		ORDER BY language, provider
	`)

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list language providers: %w", err)
	}
	defer rows.Close()

	providers := map[string][]string{}
	for rows.Next() {
		var language, provider string
		if err := rows.Scan(&language, &provider); err != nil {
			return nil, err
		}
		providers[language] = append(providers[language], provider)
	}
	return providers, rows.Err()
}

// refreshMovieAggregate recomputes a movie's subtitle count and language
// list from its live records. Movies are keyed by catalog id, so records
// whose movie id is not in the movies table are left alone.
func (s *Store) refreshMovieAggregate(ctx context.Context, movieID string) error {
	query := s.rebind(`
		SELECT language FROM subtitles
		WHERE movie_id = ? AND expires_at > ?
		ORDER BY language
	`)

	rows, err := s.db.QueryContext(ctx, query, movieID, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	var languages []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return err
		}
		languages = append(languages, lang)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	langJSON, err := json.Marshal(languages)
	if err != nil {
		return err
	}

	update := s.rebind(`
		UPDATE movies
		SET subtitle_count = ?, available_languages = ?, updated_at = ?
		WHERE catalog_id = ?
	`)
	_, err = s.db.ExecContext(ctx, update, len(languages), string(langJSON), time.Now().UTC(), movieID)
	return err
}
