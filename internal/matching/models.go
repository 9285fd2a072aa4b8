// internal/matching/models.go

package matching

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sonuprasad23/spark/internal/profile"
)

// MatchStatus of a weekly match record
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusViewed    MatchStatus = "viewed"
	StatusConnected MatchStatus = "connected"
	StatusPassed    MatchStatus = "passed"
	StatusExpired   MatchStatus = "expired"
)

// Action a participant takes on a match
type Action string

const (
	ActionConnect Action = "connect"
	ActionPass    Action = "pass"
)

func (a Action) Valid() bool {
	return a == ActionConnect || a == ActionPass
}

// MatchLifetime is how long a generated match stays actionable
const MatchLifetime = 7 * 24 * time.Hour

var idNamespace = uuid.MustParse("3d6f1a52-8c4b-4e09-9a1f-5b7e2c8d0f64")

// Cycle identifies a weekly matching period by ISO week
type Cycle struct {
	Year int
	Week int
}

// CycleOf returns the ISO week containing t in UTC
func CycleOf(t time.Time) Cycle {
	year, week := t.UTC().ISOWeek()
	return Cycle{Year: year, Week: week}
}

func (c Cycle) String() string {
	return fmt.Sprintf("%d-W%02d", c.Year, c.Week)
}

// MatchID is the deterministic id of the record (userID -> matchedUserID) in cycle c
func MatchID(userID, matchedUserID string, c Cycle) string {
	name := fmt.Sprintf("%s:%s:%d:%d", userID, matchedUserID, c.Week, c.Year)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// PairMatchID is the match id shared by both directions of a pairing.
// Rooms are keyed by it so a pair gets at most one room per cycle.
func PairMatchID(userA, userB string, c Cycle) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return MatchID(userA, userB, c)
}

// MatchRecord is one directional weekly match
type MatchRecord struct {
	ID                 string      `firestore:"-" json:"id"`
	UserID             string      `firestore:"userId" json:"userId"`
	MatchedUserID      string      `firestore:"matchedUserId" json:"matchedUserId"`
	CompatibilityScore int         `firestore:"compatibilityScore" json:"compatibilityScore"`
	WeekNumber         int         `firestore:"weekNumber" json:"weekNumber"`
	Year               int         `firestore:"year" json:"year"`
	Status             MatchStatus `firestore:"status" json:"status"`
	UserAction         Action      `firestore:"userAction,omitempty" json:"userAction,omitempty"`
	MatchAction        Action      `firestore:"matchAction,omitempty" json:"matchAction,omitempty"`
	IsMutualMatch      bool        `firestore:"isMutualMatch" json:"isMutualMatch"`
	RoomID             string      `firestore:"roomId,omitempty" json:"roomId,omitempty"`
	CreatedAt          time.Time   `firestore:"createdAt" json:"createdAt"`
	ExpiresAt          time.Time   `firestore:"expiresAt" json:"expiresAt"`
	DecidedAt          *time.Time  `firestore:"decidedAt,omitempty" json:"decidedAt,omitempty"`
}

// Cycle returns the record's matching period
func (m *MatchRecord) Cycle() Cycle {
	return Cycle{Year: m.Year, Week: m.WeekNumber}
}

// MirrorID is the id of the reverse-direction record in the same cycle
func (m *MatchRecord) MirrorID() string {
	return MatchID(m.MatchedUserID, m.UserID, m.Cycle())
}

// IsParticipant reports whether userID is either side of the match
func (m *MatchRecord) IsParticipant(userID string) bool {
	return userID != "" && (m.UserID == userID || m.MatchedUserID == userID)
}

// Other returns the participant that is not userID
func (m *MatchRecord) Other(userID string) string {
	if m.UserID == userID {
		return m.MatchedUserID
	}
	return m.UserID
}

// Open reports whether the record still awaits decisions
func (m *MatchRecord) Open() bool {
	return m.Status == StatusPending || m.Status == StatusViewed
}

// decisionOf returns the action userID recorded on m, if any
func (m *MatchRecord) decisionOf(userID string) Action {
	switch userID {
	case m.UserID:
		return m.UserAction
	case m.MatchedUserID:
		return m.MatchAction
	}
	return ""
}

func (m *MatchRecord) setDecision(userID string, a Action) {
	switch userID {
	case m.UserID:
		m.UserAction = a
	case m.MatchedUserID:
		m.MatchAction = a
	}
}

// settle derives status from the recorded actions. A single action sets a
// provisional status; both actions decide the outcome.
func (m *MatchRecord) settle(now time.Time) {
	mine, theirs := m.UserAction, m.MatchAction
	switch {
	case mine != "" && theirs != "":
		m.IsMutualMatch = mine == ActionConnect && theirs == ActionConnect
		if m.IsMutualMatch {
			m.Status = StatusConnected
		} else {
			m.Status = StatusPassed
		}
	case mine == ActionConnect || theirs == ActionConnect:
		m.Status = StatusConnected
	case mine == ActionPass || theirs == ActionPass:
		m.Status = StatusPassed
	}
	decided := now
	m.DecidedAt = &decided
}

func newRecord(user, candidate *profile.UserProfile, score int, c Cycle, now time.Time) *MatchRecord {
	return &MatchRecord{
		ID:                 MatchID(user.ID, candidate.ID, c),
		UserID:             user.ID,
		MatchedUserID:      candidate.ID,
		CompatibilityScore: score,
		WeekNumber:         c.Week,
		Year:               c.Year,
		Status:             StatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(MatchLifetime),
	}
}

// MatchView is a record with the other user's public profile
type MatchView struct {
	*MatchRecord
	MatchedUser *profile.UserProfile `json:"matchedUser,omitempty"`
}

// ActionResult is returned by RecordAction
type ActionResult struct {
	MatchID       string      `json:"matchId"`
	Status        MatchStatus `json:"status"`
	IsMutualMatch bool        `json:"isMutualMatch"`
	RoomID        string      `json:"roomId,omitempty"`
}

// CandidatePreview is one ranked entry from PreviewCandidates
type CandidatePreview struct {
	User  *profile.UserProfile `json:"user"`
	Score int                  `json:"score"`
}

// GenerationSummary reports a weekly generation run
type GenerationSummary struct {
	Week            int           `json:"week"`
	Year            int           `json:"year"`
	UsersConsidered int           `json:"usersConsidered"`
	UsersProcessed  int           `json:"usersProcessed"`
	UsersSkipped    int           `json:"usersSkipped"`
	UsersFailed     int           `json:"usersFailed"`
	MatchesCreated  int           `json:"matchesCreated"`
	Duration        time.Duration `json:"duration"`
}

// ExpirySummary reports an ExpireMatches sweep
type ExpirySummary struct {
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}
