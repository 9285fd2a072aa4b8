// internal/matching/filter.go

package matching

import (
	"context"
	"fmt"

	"github.com/sonuprasad23/spark/internal/profile"
)

// DefaultCandidateScanLimit caps how many users one store query returns
const DefaultCandidateScanLimit = 200

// CandidateFilter narrows the user pool to admissible candidates for one user
type CandidateFilter struct {
	directory profile.Directory
	repo      Repository
	scanLimit int
}

func NewCandidateFilter(directory profile.Directory, repo Repository, scanLimit int) *CandidateFilter {
	if scanLimit <= 0 {
		scanLimit = DefaultCandidateScanLimit
	}
	return &CandidateFilter{directory: directory, repo: repo, scanLimit: scanLimit}
}

// Candidates returns admissible candidates for user in cycle c. Candidates
// beyond the scan limit are not considered.
func (f *CandidateFilter) Candidates(ctx context.Context, user *profile.UserProfile, prefs *profile.Preferences, c Cycle) ([]*profile.UserProfile, error) {
	query := profile.CandidateQuery{Limit: f.scanLimit}
	if prefs.LookingFor != profile.LookingForBoth && prefs.LookingFor != "" {
		query.Gender = profile.Gender(prefs.LookingFor)
	}
	query.MinAge, query.MaxAge = prefs.Bounds()

	pool, err := f.directory.QueryCandidates(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query candidates for %s: %w", user.ID, err)
	}

	partners, err := f.repo.PartnersInCycle(ctx, user.ID, c)
	if err != nil {
		return nil, fmt.Errorf("load existing matches for %s: %w", user.ID, err)
	}

	ids := make([]string, 0, len(pool))
	for _, cand := range pool {
		ids = append(ids, cand.ID)
	}
	candidatePrefs, err := f.directory.GetPreferencesBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate preferences for %s: %w", user.ID, err)
	}

	out := make([]*profile.UserProfile, 0, len(pool))
	for _, cand := range pool {
		theirs, ok := candidatePrefs[cand.ID]
		if !ok {
			theirs = profile.OpenPreferences(cand.ID)
		}
		if Admissible(user, prefs, cand, theirs, partners) {
			out = append(out, cand)
		}
	}
	return out, nil
}

// Admissible applies every candidate rule: eligibility, bidirectional gender
// and age compatibility, not self, and not already paired this cycle.
func Admissible(user *profile.UserProfile, prefs *profile.Preferences, cand *profile.UserProfile, candPrefs *profile.Preferences, partners map[string]struct{}) bool {
	if cand.ID == user.ID {
		return false
	}
	if _, paired := partners[cand.ID]; paired {
		return false
	}
	if !cand.Eligible() {
		return false
	}
	return prefs.Accepts(cand) && candPrefs.Accepts(user)
}
