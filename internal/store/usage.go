package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RecordEvent appends a usage event. Event logging is advisory; failures
// are logged, not surfaced.
func (s *Store) RecordEvent(ctx context.Context, eventType, movieID, language, userID string) {
	query := s.rebind(`
		INSERT INTO usage_events (event_type, movie_id, language, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, query, eventType, movieID, language, userID, time.Now().UTC()); err != nil {
		s.log.Warn("usage event dropped", "type", eventType, "err", err)
	}
}

// GetUsageStats aggregates events over the trailing window.
func (s *Store) GetUsageStats(ctx context.Context, days int) (*UsageStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	stats := &UsageStats{PeriodDays: days}

	// Overall totals.
	totals := s.rebind(`
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM usage_events WHERE created_at >= ?
	`)
	if err := s.db.QueryRowContext(ctx, totals, since).Scan(&stats.TotalDownloads, &stats.UniqueUsers); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage totals: %w", err)
	}
	stats.AvgDownloadsPerDay = float64(stats.TotalDownloads) / float64(days)

	// Per-day breakdown.
	daily := s.rebind(fmt.Sprintf(`
		SELECT %s AS day, COUNT(*), COUNT(DISTINCT user_id), COUNT(DISTINCT language)
		FROM usage_events WHERE created_at >= ?
		GROUP BY day ORDER BY day
	`, s.dateExpr("created_at")))

	rows, err := s.db.QueryContext(ctx, daily, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Date, &d.Downloads, &d.UniqueUsers, &d.Languages); err != nil {
			return nil, err
		}
		stats.Daily = append(stats.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Top languages.
	langs := s.rebind(`
		SELECT language, COUNT(*), COUNT(DISTINCT user_id)
		FROM usage_events WHERE created_at >= ? AND language != ''
		GROUP BY language ORDER BY COUNT(*) DESC LIMIT 10
	`)
	lrows, err := s.db.QueryContext(ctx, langs, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate language usage: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var l LanguageUsage
		if err := lrows.Scan(&l.Language, &l.Downloads, &l.UniqueUsers); err != nil {
			return nil, err
		}
		stats.Languages = append(stats.Languages, l)
	}
	if err := lrows.Err(); err != nil {
		return nil, err
	}

	// Top movies.
	movies := s.rebind(`
		SELECT movie_id, COUNT(*), COUNT(DISTINCT language)
		FROM usage_events WHERE created_at >= ? AND movie_id != ''
		GROUP BY movie_id ORDER BY COUNT(*) DESC LIMIT 10
	`)
	mrows, err := s.db.QueryContext(ctx, movies, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate movie usage: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m MovieUsage
		if err := mrows.Scan(&m.MovieID, &m.Downloads, &m.Languages); err != nil {
			return nil, err
		}
		stats.Movies = append(stats.Movies, m)
	}
	return stats, mrows.Err()
}

// ExportUsageCSV renders the daily usage breakdown as CSV.
func (s *Store) ExportUsageCSV(ctx context.Context, days int) (string, error) {
	stats, err := s.GetUsageStats(ctx, days)
	if err != nil {
		return "", err
	}

	lines := []string{"Date,Downloads,Unique_Users,Languages"}
	for _, d := range stats.Daily {
		lines = append(lines, fmt.Sprintf("%s,%d,%d,%d", d.Date, d.Downloads, d.UniqueUsers, d.Languages))
	}
	return strings.Join(lines, "\n"), nil
}

// Provider call statuses.
const (
	CallStatusSuccess = "success"
	CallStatusError   = "error"
	CallStatusTimeout = "timeout"
)

// LogProviderCall appends one entry to the outbound call log. Advisory,
// like RecordEvent.
func (s *Store) LogProviderCall(ctx context.Context, provider, endpoint, status string, duration time.Duration, callErr string) {
	query := s.rebind(`
		INSERT INTO provider_calls (provider, endpoint, status, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := s.db.ExecContext(ctx, query,
		provider, endpoint, status, duration.Milliseconds(), callErr, time.Now().UTC(),
	); err != nil {
		s.log.Warn("provider call log dropped", "provider", provider, "err", err)
	}
}

// GetProviderHealth aggregates the call log per provider over the
// trailing window.
func (s *Store) GetProviderHealth(ctx context.Context, hours int) ([]ProviderHealth, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	query := s.rebind(`
		SELECT provider, COUNT(*),
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status != 'success' THEN 1 ELSE 0 END),
			COALESCE(AVG(duration_ms), 0)
		FROM provider_calls WHERE created_at >= ?
		GROUP BY provider ORDER BY provider
	`)

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate provider health: %w", err)
	}
	defer rows.Close()

	var health []ProviderHealth
	for rows.Next() {
		var h ProviderHealth
		if err := rows.Scan(&h.Provider, &h.TotalCalls, &h.Successes, &h.Errors, &h.AvgDurationMS); err != nil {
			return nil, err
		}
		if h.TotalCalls > 0 {
			h.ErrorRate = float64(h.Errors) / float64(h.TotalCalls)
		}
		health = append(health, h)
	}
	return health, rows.Err()
}
