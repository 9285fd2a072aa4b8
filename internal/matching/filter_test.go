package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonuprasad23/spark/internal/profile"
)

func TestAdmissible(t *testing.T) {
	user := member("u", profile.GenderMale, 28, "Pune")
	prefs := &profile.Preferences{UserID: "u", LookingFor: profile.LookingForFemale, AgeRange: profile.AgeRange{Min: 24, Max: 32}}

	tests := []struct {
		name      string
		cand      *profile.UserProfile
		candPrefs *profile.Preferences
		partners  map[string]struct{}
		want      bool
	}{
		{
			name:      "open candidate",
			cand:      member("c", profile.GenderFemale, 26, "Pune"),
			candPrefs: profile.OpenPreferences("c"),
			want:      true,
		},
		{
			name:      "self",
			cand:      member("u", profile.GenderMale, 28, "Pune"),
			candPrefs: profile.OpenPreferences("u"),
		},
		{
			name:      "wrong gender for user",
			cand:      member("c", profile.GenderMale, 26, "Pune"),
			candPrefs: profile.OpenPreferences("c"),
		},
		{
			name:      "outside user's age range",
			cand:      member("c", profile.GenderFemale, 33, "Pune"),
			candPrefs: profile.OpenPreferences("c"),
		},
		{
			name:      "candidate not looking for men",
			cand:      member("c", profile.GenderFemale, 26, "Pune"),
			candPrefs: &profile.Preferences{LookingFor: profile.LookingForFemale, AgeRange: profile.AgeRange{Min: 18, Max: 40}},
		},
		{
			name:      "user outside candidate's age range",
			cand:      member("c", profile.GenderFemale, 26, "Pune"),
			candPrefs: &profile.Preferences{LookingFor: profile.LookingForBoth, AgeRange: profile.AgeRange{Min: 18, Max: 25}},
		},
		{
			name:      "already paired this cycle",
			cand:      member("c", profile.GenderFemale, 26, "Pune"),
			candPrefs: profile.OpenPreferences("c"),
			partners:  map[string]struct{}{"c": {}},
		},
		{
			name: "incomplete profile",
			cand: func() *profile.UserProfile {
				c := member("c", profile.GenderFemale, 26, "Pune")
				c.ProfileCompleteness = 40
				return c
			}(),
			candPrefs: profile.OpenPreferences("c"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Admissible(user, prefs, tt.cand, tt.candPrefs, tt.partners))
		})
	}
}

func TestCandidateFilterExcludesExistingPairsInBothDirections(t *testing.T) {
	dir := profile.NewMemoryDirectory()
	repo := NewMemoryRepository()
	cycle := CycleOf(testNow)

	user := member("u", profile.GenderMale, 28, "Pune")
	dir.PutUser(user)
	for _, id := range []string{"c1", "c2", "c3"} {
		dir.PutUser(member(id, profile.GenderFemale, 27, "Pune"))
	}
	dir.PutPreferences(&profile.Preferences{UserID: "c3", LookingFor: profile.LookingForFemale})

	// c1 already matched to u by u's own generation, c2 matched u from her side
	repo.Put(newRecord(user, member("c1", profile.GenderFemale, 27, "Pune"), 90, cycle, testNow))
	repo.Put(newRecord(member("c2", profile.GenderFemale, 27, "Pune"), user, 90, cycle, testNow))

	filter := NewCandidateFilter(dir, repo, 0)
	prefs := &profile.Preferences{UserID: "u", LookingFor: profile.LookingForFemale}

	got, err := filter.Candidates(context.Background(), user, prefs, cycle)
	require.NoError(t, err)
	assert.Empty(t, got)

	// a new cycle forgets earlier pairings
	next := Cycle{Year: cycle.Year, Week: cycle.Week + 1}
	got, err = filter.Candidates(context.Background(), user, prefs, next)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)
}

func TestCandidateFilterScanLimit(t *testing.T) {
	dir := profile.NewMemoryDirectory()
	user := member("u", profile.GenderMale, 28, "Pune")
	dir.PutUser(user)
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		dir.PutUser(member(id, profile.GenderFemale, 27, "Pune"))
	}

	filter := NewCandidateFilter(dir, NewMemoryRepository(), 2)
	got, err := filter.Candidates(context.Background(), user, &profile.Preferences{LookingFor: profile.LookingForFemale}, CycleOf(testNow))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
