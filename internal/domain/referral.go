package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dchest/uniuri"
	"github.com/google/uuid"
)

// Referral codes use an unambiguous uppercase alphabet (no 0/O, 1/I/L).
const (
	ReferralCodeLength   = 8
	ReferralCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// NewReferralCode returns a random referral code.
func NewReferralCode() string {
	return uniuri.NewLenChars(ReferralCodeLength, []byte(ReferralCodeAlphabet))
}

// NormalizeReferralCode upper-cases and validates a referral code.
func NormalizeReferralCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != ReferralCodeLength {
		return "", ErrInvalidReferralCode
	}
	for _, ch := range code {
		if !strings.ContainsRune(ReferralCodeAlphabet, ch) {
			return "", ErrInvalidReferralCode
		}
	}
	return code, nil
}

// EventType identifies which counter a referral event credits.
type EventType string

const (
	EventWaitlistClient      EventType = "waitlist_client"
	EventWaitlistInfluencer  EventType = "waitlist_influencer"
	EventWaitlistPro         EventType = "waitlist_pro"
	EventAppDownload         EventType = "app_download"
	EventValidatedInfluencer EventType = "validated_influencer"
	EventValidatedPro        EventType = "validated_pro"
)

// Phase is the contest phase a referral is credited in.
type Phase int

const (
	PhaseWaitlist Phase = iota
	PhaseLaunched
)

var eventByPhase = map[Phase]map[Role]EventType{
	PhaseWaitlist: {
		RoleClient:     EventWaitlistClient,
		RoleInfluencer: EventWaitlistInfluencer,
		RoleBeautyPro:  EventWaitlistPro,
	},
	PhaseLaunched: {
		RoleClient:     EventAppDownload,
		RoleInfluencer: EventValidatedInfluencer,
		RoleBeautyPro:  EventValidatedPro,
	},
}

// EventFor maps a referred user's role to the event type credited in phase.
// ok is false for roles outside the map; such referrals award nothing.
func EventFor(phase Phase, role Role) (EventType, bool) {
	ev, ok := eventByPhase[phase][role]
	return ev, ok
}

// Column is the users column incremented by this event type.
func (e EventType) Column() (string, bool) {
	switch e {
	case EventWaitlistClient:
		return "waitlist_clients", true
	case EventWaitlistInfluencer:
		return "waitlist_influencers", true
	case EventWaitlistPro:
		return "waitlist_pros", true
	case EventAppDownload:
		return "app_downloads", true
	case EventValidatedInfluencer:
		return "validated_influencers", true
	case EventValidatedPro:
		return "validated_pros", true
	}
	return "", false
}

// ReferralEvent is an append-only record of one credited referral.
type ReferralEvent struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ReferrerID     uuid.UUID `db:"referrer_id" json:"referrer_id"`
	ReferredID     uuid.UUID `db:"referred_id" json:"referred_id"`
	Type           EventType `db:"event_type" json:"event_type"`
	PointsAwarded  int       `db:"points_awarded" json:"points_awarded"`
	IdempotencyKey string    `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IdempotencyKey is unique per (referrer, referred user, event type).
func IdempotencyKey(referrerID, referredID uuid.UUID, ev EventType) string {
	return fmt.Sprintf("%s_%s_%s", referrerID, referredID, ev)
}

// InsertResult is the outcome of an insert-if-absent.
type InsertResult int

const (
	Failed InsertResult = iota
	Inserted
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}
