package service

import (
	"math"
	"sort"
	"strings"

	"github.com/formbricks/feedback-insights/internal/models"
)

// SimilarityScorer compares two theme collections. ok is false when they share nothing;
// such pairs are left out of rankings rather than scored zero.
type SimilarityScorer interface {
	Score(source, candidate []models.Theme) (match models.SimilarityMatch, ok bool)
}

// JaccardScorer scores theme-label overlap as |intersection| / |union|, case-insensitively.
type JaccardScorer struct{}

var _ SimilarityScorer = JaccardScorer{}

// Score implements SimilarityScorer.
func (JaccardScorer) Score(source, candidate []models.Theme) (models.SimilarityMatch, bool) {
	return ScoreSimilarity(source, candidate)
}

// ScoreSimilarity returns the Jaccard coefficient of the lower-cased theme labels, rounded to
// 2 decimals, with the sorted shared labels. ok is false when the intersection is empty.
func ScoreSimilarity(source, candidate []models.Theme) (models.SimilarityMatch, bool) {
	a := themeSet(source)
	b := themeSet(candidate)

	var shared []string

	for label := range a {
		if _, ok := b[label]; ok {
			shared = append(shared, label)
		}
	}

	if len(shared) == 0 {
		return models.SimilarityMatch{}, false
	}

	union := len(a) + len(b) - len(shared)
	sort.Strings(shared)

	return models.SimilarityMatch{
		Score:          roundTo2(float64(len(shared)) / float64(union)),
		MatchingThemes: shared,
	}, true
}

func themeSet(themes []models.Theme) map[string]struct{} {
	set := make(map[string]struct{}, len(themes))
	for _, t := range themes {
		set[strings.ToLower(t.Theme)] = struct{}{}
	}

	return set
}

func roundTo2(x float64) float64 {
	return math.Round(x*100) / 100
}
