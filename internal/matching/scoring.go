// internal/matching/scoring.go

package matching

import (
	"math"

	"github.com/sonuprasad23/spark/internal/profile"
)

// MinCompatibilityScore is the cutoff shared by full and quick scoring
const MinCompatibilityScore = 60

// Full-score weight buckets
const (
	interestWeight      = 30.0
	questionnaireWeight = 50.0
	questionnaireFlat   = 20.0
	cityWeight          = 10.0
	completenessWeight  = 10.0

	maxAnswerDiff = 4.0
)

// Quick-score increments
const (
	quickBase         = 50
	quickPerInterest  = 5
	quickSameCity     = 10
	quickBothVerified = 10
	maxCompatibility  = 100
)

// FullScore ranks a pair for weekly generation and display. qa and qb are the
// questionnaire answers of a and b. The result is in [0,100] and symmetric.
//
// When either questionnaire is empty a flat 20 points is added and the
// questionnaire bucket is left out of the denominator.
func FullScore(a, b *profile.UserProfile, qa, qb []int) int {
	var raw, maxScore float64

	raw += interestOverlap(a.Interests, b.Interests) * interestWeight
	maxScore += interestWeight

	if len(qa) > 0 && len(qb) > 0 {
		raw += questionnaireSimilarity(qa, qb) * questionnaireWeight
		maxScore += questionnaireWeight
	} else {
		raw += questionnaireFlat
	}

	if sameCity(a, b) {
		raw += cityWeight
	}
	maxScore += cityWeight

	avg := float64(clampPercent(a.ProfileCompleteness)+clampPercent(b.ProfileCompleteness)) / 2
	raw += avg / 100 * completenessWeight
	maxScore += completenessWeight

	return clampScore(int(math.Round(raw / maxScore * 100)))
}

// QuickScore is the cheap estimate used to rank on-demand previews
func QuickScore(a, b *profile.UserProfile) int {
	score := quickBase + commonInterests(a.Interests, b.Interests)*quickPerInterest
	if sameCity(a, b) {
		score += quickSameCity
	}
	if a.IsVerified && b.IsVerified {
		score += quickBothVerified
	}
	if score > maxCompatibility {
		return maxCompatibility
	}
	return score
}

// interestOverlap is |A∩B| / max(|A|,|B|,1) over de-duplicated sets
func interestOverlap(a, b []string) float64 {
	sizeA, sizeB := len(toSet(a)), len(toSet(b))
	denom := sizeA
	if sizeB > denom {
		denom = sizeB
	}
	if denom < 1 {
		denom = 1
	}
	return float64(commonInterests(a, b)) / float64(denom)
}

func commonInterests(a, b []string) int {
	setB := toSet(b)
	common := 0
	for interest := range toSet(a) {
		if _, ok := setB[interest]; ok {
			common++
		}
	}
	return common
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// questionnaireSimilarity averages (4-|d|)/4 over the shared prefix
func questionnaireSimilarity(qa, qb []int) float64 {
	n := len(qa)
	if len(qb) < n {
		n = len(qb)
	}
	if n == 0 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		diff := math.Abs(float64(qa[i] - qb[i]))
		if diff > maxAnswerDiff {
			diff = maxAnswerDiff
		}
		total += (maxAnswerDiff - diff) / maxAnswerDiff
	}
	return total / float64(n)
}

func sameCity(a, b *profile.UserProfile) bool {
	return a.City != "" && a.City == b.City
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxCompatibility {
		return maxCompatibility
	}
	return v
}
