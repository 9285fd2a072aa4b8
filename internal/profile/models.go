// internal/profile/models.go

package profile

import "time"

// Gender of a user
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// LookingFor is the gender a user wants to be matched with
type LookingFor string

const (
	LookingForMale   LookingFor = "male"
	LookingForFemale LookingFor = "female"
	LookingForBoth   LookingFor = "both"
)

// PremiumTier of a paying user
type PremiumTier string

const (
	TierPlus PremiumTier = "plus"
	TierPro  PremiumTier = "pro"
)

const (
	// MinProfileCompleteness a user needs to take part in matching
	MinProfileCompleteness = 50

	DefaultMinAge = 18
	DefaultMaxAge = 50

	QuotaFree    = 5
	QuotaPremium = 7
	QuotaPro     = 10
)

// UserProfile is the read-only view of a user the engine works with
type UserProfile struct {
	ID                  string      `firestore:"-" json:"id"`
	Name                string      `firestore:"name" json:"name"`
	Age                 int         `firestore:"age" json:"age"`
	Gender              Gender      `firestore:"gender" json:"gender"`
	City                string      `firestore:"city" json:"city"`
	Interests           []string    `firestore:"interests" json:"interests"`
	Photos              []string    `firestore:"photos" json:"photos,omitempty"`
	ProfileCompleteness int         `firestore:"profileCompleteness" json:"profileCompleteness"`
	IsVerified          bool        `firestore:"isVerified" json:"isVerified"`
	IsPremium           bool        `firestore:"isPremium" json:"-"`
	PremiumTier         PremiumTier `firestore:"premiumTier" json:"-"`
	IsActive            bool        `firestore:"isActive" json:"-"`
	LastActiveAt        time.Time   `firestore:"lastActiveAt" json:"lastActiveAt"`
	FCMToken            string      `firestore:"fcmToken" json:"-"`
}

// Eligible reports whether the user takes part in weekly matching
func (u *UserProfile) Eligible() bool {
	return u.IsActive && u.ProfileCompleteness >= MinProfileCompleteness
}

// WeeklyQuota is the maximum number of matches the user receives per cycle
func (u *UserProfile) WeeklyQuota() int {
	switch {
	case u.IsPremium && u.PremiumTier == TierPro:
		return QuotaPro
	case u.IsPremium:
		return QuotaPremium
	default:
		return QuotaFree
	}
}

// Questionnaire holds a user's answers, each 1 to 5
type Questionnaire struct {
	Answers []int `firestore:"answers" json:"answers"`
}

// AgeRange is an inclusive age bound
type AgeRange struct {
	Min int `firestore:"min" json:"min"`
	Max int `firestore:"max" json:"max"`
}

// Preferences describe who a user wants to meet
type Preferences struct {
	UserID     string     `firestore:"-" json:"userId"`
	LookingFor LookingFor `firestore:"lookingFor" json:"lookingFor"`
	AgeRange   AgeRange   `firestore:"ageRange" json:"ageRange"`
	Cities     []string   `firestore:"cities" json:"cities,omitempty"`

	// Unbounded disables the age check. Set only on OpenPreferences.
	Unbounded bool `firestore:"-" json:"-"`
}

// OpenPreferences accept anyone. They stand in for a candidate who never saved preferences.
func OpenPreferences(userID string) *Preferences {
	return &Preferences{UserID: userID, LookingFor: LookingForBoth, Unbounded: true}
}

// Bounds returns the effective age bounds, applying defaults to an unset range
func (p *Preferences) Bounds() (int, int) {
	minAge, maxAge := p.AgeRange.Min, p.AgeRange.Max
	if minAge <= 0 {
		minAge = DefaultMinAge
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return minAge, maxAge
}

// AcceptsGender reports whether g satisfies lookingFor
func (p *Preferences) AcceptsGender(g Gender) bool {
	switch p.LookingFor {
	case LookingForBoth, "":
		return true
	default:
		return string(p.LookingFor) == string(g)
	}
}

// AcceptsAge reports whether age lies inside the range. Open preferences have no bound.
func (p *Preferences) AcceptsAge(age int) bool {
	if p.Unbounded {
		return true
	}
	minAge, maxAge := p.Bounds()
	return age >= minAge && age <= maxAge
}

// AcceptsCity reports whether city is in the optional cities filter
func (p *Preferences) AcceptsCity(city string) bool {
	if len(p.Cities) == 0 {
		return true
	}
	for _, c := range p.Cities {
		if c == city {
			return true
		}
	}
	return false
}

// Accepts reports whether u passes gender and age preferences
func (p *Preferences) Accepts(u *UserProfile) bool {
	return p.AcceptsGender(u.Gender) && p.AcceptsAge(u.Age)
}
