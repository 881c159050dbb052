package store

import (
	"context"
	"sort"
)

// Recommendation score weights. Quality and popularity dominate; language
// preference, cached content, and verification add smaller boosts.
const (
	recQualityCap    = 1000
	recDownloadCap   = 10000
	recQualityMax    = 40.0
	recDownloadMax   = 30.0
	recLangPrefMax   = 20.0
	recLangPrefStep  = 5.0
	recLangPrefMin   = 5.0
	recCachedBonus   = 5.0
	recVerifiedBonus = 5.0
)

// Recommendations scores every live record for a movie against quality,
// popularity, and the caller's language preference order.
func (s *Store) Recommendations(ctx context.Context, movieID string, languagePreferences []string) ([]Recommendation, error) {
	records, err := s.GetRecordsForMovie(ctx, movieID, false)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	prefIndex := map[string]int{}
	for i, lang := range languagePreferences {
		if _, seen := prefIndex[lang]; !seen {
			prefIndex[lang] = i
		}
	}

	recs := make([]Recommendation, 0, len(records))
	for _, r := range records {
		score := 0.0

		quality := r.QualityScore
		if quality > recQualityCap {
			quality = recQualityCap
		}
		score += float64(quality) / recQualityCap * recQualityMax

		downloads := r.DownloadCount
		if downloads > recDownloadCap {
			downloads = recDownloadCap
		}
		score += float64(downloads) / recDownloadCap * recDownloadMax

		if idx, ok := prefIndex[r.Language]; ok {
			bonus := recLangPrefMax - float64(idx)*recLangPrefStep
			if bonus < recLangPrefMin {
				bonus = recLangPrefMin
			}
			score += bonus
		}

		if r.CachedContent {
			score += recCachedBonus
		}
		if r.VerificationStatus == VerificationVerified {
			score += recVerifiedBonus
		}

		recs = append(recs, Recommendation{Record: r, RecommendationScore: score})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RecommendationScore > recs[j].RecommendationScore
	})
	return recs, nil
}
