// internal/rooms/models.go

package rooms

import (
	"time"

	"github.com/google/uuid"

	"github.com/sonuprasad23/spark/internal/profile"
)

// Status of a connection room. Every status but active is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusConnected Status = "connected"
	StatusExpired   Status = "expired"
	StatusPassed    Status = "passed"
)

func (s Status) Terminal() bool {
	return s != StatusActive
}

// Decision a participant makes about the room
type Decision string

const (
	DecisionConnect Decision = "connect"
	DecisionPass    Decision = "pass"
	DecisionExtend  Decision = "extend"
)

func (d Decision) Valid() bool {
	return d == DecisionConnect || d == DecisionPass || d == DecisionExtend
}

// MessageType of a chat message
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageVoice MessageType = "voice"
	MessageImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageVoice || t == MessageImage
}

// MessageStatus only moves forward: sent, delivered, read
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageDelivered:
		return 1
	case MessageRead:
		return 2
	default:
		return 0
	}
}

// Before reports whether s is an earlier stage than other
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.rank() < other.rank()
}

const (
	RoomLifetime    = 7 * 24 * time.Hour
	ExtensionLength = 3 * 24 * time.Hour
	MaxExtensions   = 1
	FinalDay        = 7
	ReminderDay     = 6
	VoiceUnlockDay  = 3
	ImageUnlockDay  = 5

	// ArchiveAfter is how long a finished room stays live after expiresAt
	ArchiveAfter = 30 * 24 * time.Hour

	DefaultMessageLimit = 50
	MaxMessageLimit     = 100

	day = 24 * time.Hour
)

var roomNamespace = uuid.MustParse("9b2e4c71-0f3a-4d8e-b6c5-71a0e3f9d214")

// RoomID derives the room id from the match that opened it
func RoomID(matchID string) string {
	return uuid.NewSHA1(roomNamespace, []byte(matchID)).String()
}

// Room is a 7-day connection room between two matched users
type Room struct {
	ID             string              `firestore:"id" json:"id"`
	MatchID        string              `firestore:"matchId" json:"matchId"`
	Participants   []string            `firestore:"participants" json:"participants"`
	DayNumber      int                 `firestore:"dayNumber" json:"dayNumber"`
	StartedAt      time.Time           `firestore:"startedAt" json:"startedAt"`
	ExpiresAt      time.Time           `firestore:"expiresAt" json:"expiresAt"`
	LastMessageAt  time.Time           `firestore:"lastMessageAt" json:"lastMessageAt"`
	MessageCount   int                 `firestore:"messageCount" json:"messageCount"`
	Status         Status              `firestore:"status" json:"status"`
	Decisions      map[string]Decision `firestore:"decisions" json:"decisions"`
	ExtensionsUsed int                 `firestore:"extensionsUsed" json:"extensionsUsed"`
	CreatedAt      time.Time           `firestore:"createdAt" json:"createdAt"`

	// stored is the raw document the room was decoded from
	stored map[string]interface{}
}

func newRoom(matchID, userA, userB string, now time.Time) *Room {
	return &Room{
		ID:            RoomID(matchID),
		MatchID:       matchID,
		Participants:  []string{userA, userB},
		DayNumber:     1,
		StartedAt:     now,
		ExpiresAt:     now.Add(RoomLifetime),
		LastMessageAt: now,
		Status:        StatusActive,
		Decisions:     map[string]Decision{},
		CreatedAt:     now,
	}
}

func (r *Room) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID
func (r *Room) Other(userID string) string {
	for _, p := range r.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Open reports whether messages can still be exchanged
func (r *Room) Open() bool {
	return r.Status == StatusActive || r.Status == StatusConnected
}

// CurrentDay is the room day at now. Each extension pushes the schedule
// back by three days.
func (r *Room) CurrentDay(now time.Time) int {
	elapsed := now.Sub(r.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	d := int(elapsed/day) + 1 - r.ExtensionsUsed*int(ExtensionLength/day)
	if d < 1 {
		return 1
	}
	if d > FinalDay {
		return FinalDay
	}
	return d
}

// unlockMessage returns why t cannot be sent yet, or "" when it can.
// Connected rooms have every feature unlocked.
func (r *Room) unlockMessage(t MessageType, now time.Time) string {
	if r.Status == StatusConnected {
		return ""
	}
	d := r.CurrentDay(now)
	if r.DayNumber > d {
		d = r.DayNumber
	}
	switch {
	case t == MessageVoice && d < VoiceUnlockDay:
		return "Voice notes unlock on Day 3"
	case t == MessageImage && d < ImageUnlockDay:
		return "Images unlock on Day 5"
	}
	return ""
}

// outcome resolves the room once both participants decided. ok is false
// while a decision is missing.
func (r *Room) outcome() (Status, bool) {
	if len(r.Participants) != 2 {
		return "", false
	}
	a, b := r.Decisions[r.Participants[0]], r.Decisions[r.Participants[1]]
	if a == "" || b == "" {
		return "", false
	}
	if a == DecisionConnect && b == DecisionConnect {
		return StatusConnected, true
	}
	return StatusPassed, true
}

// Message is one chat message in a room
type Message struct {
	ID          string        `firestore:"id" json:"id"`
	RoomID      string        `firestore:"roomId" json:"roomId"`
	SenderID    string        `firestore:"senderId" json:"senderId"`
	Text        string        `firestore:"text" json:"text"`
	Type        MessageType   `firestore:"type" json:"type"`
	MediaURL    string        `firestore:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	DurationSec int           `firestore:"duration,omitempty" json:"duration,omitempty"`
	Status      MessageStatus `firestore:"status" json:"status"`
	CreatedAt   time.Time     `firestore:"createdAt" json:"createdAt"`
}

// OutgoingMessage is what a participant asks to send
type OutgoingMessage struct {
	RoomID      string
	Text        string
	Type        MessageType
	MediaURL    string
	DurationSec int
}

// Peer is the public part of the other participant
type Peer struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Photos []string `json:"photos,omitempty"`
}

func peerOf(id string, users map[string]*profile.UserProfile) *Peer {
	p := &Peer{ID: id}
	if u, ok := users[id]; ok {
		p.Name = u.Name
		p.Photos = u.Photos
	}
	return p
}

// RoomView is a room as listed for one participant
type RoomView struct {
	*Room
	OtherUser   *Peer    `json:"otherUser"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}

// DecisionResult is returned by Decide
type DecisionResult struct {
	RoomID        string    `json:"roomId"`
	Status        Status    `json:"status"`
	Extended      bool      `json:"extended,omitempty"`
	MutualMatch   bool      `json:"mutualMatch"`
	AwaitingOther bool      `json:"awaitingOther,omitempty"`
	DayNumber     int       `json:"dayNumber"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// DaySummary reports an AdvanceDays sweep
type DaySummary struct {
	Scanned   int `json:"scanned"`
	Updated   int `json:"updated"`
	Reminders int `json:"reminders"`
	Failed    int `json:"failed"`
}

// ExpirySummary reports an ExpireRooms sweep
type ExpirySummary struct {
	Scanned   int `json:"scanned"`
	Expired   int `json:"expired"`
	Connected int `json:"connected"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
}

// ArchiveSummary reports an ArchiveRooms sweep
type ArchiveSummary struct {
	Archived int `json:"archived"`
	Batches  int `json:"batches"`
}
