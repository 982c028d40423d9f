package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"client", RoleClient, false},
		{" Client ", RoleClient, false},
		{"influencer", RoleInfluencer, false},
		{"beautypro", RoleBeautyPro, false},
		{"beauty_pro", RoleBeautyPro, false},
		{"beauty-pro", RoleBeautyPro, false},
		{"PRO", RoleBeautyPro, false},
		{"", "", true},
		{"admin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRole) {
					t.Fatalf("ParseRole(%q) err = %v, want ErrInvalidRole", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseRole(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("pro").Valid() {
		t.Error("alias must be normalized before use")
	}
}

func TestEventFor(t *testing.T) {
	ev, ok := EventFor(PhaseWaitlist, RoleBeautyPro)
	if !ok || ev != EventWaitlistPro {
		t.Errorf("waitlist beautypro = %q, %v", ev, ok)
	}
	ev, ok = EventFor(PhaseLaunched, RoleClient)
	if !ok || ev != EventAppDownload {
		t.Errorf("launched client = %q, %v", ev, ok)
	}
	if _, ok := EventFor(PhaseWaitlist, Role("admin")); ok {
		t.Error("unknown role must not map to an event")
	}
}

func TestEventType_Column(t *testing.T) {
	for _, phase := range []Phase{PhaseWaitlist, PhaseLaunched} {
		for _, r := range Roles {
			ev, _ := EventFor(phase, r)
			if _, ok := ev.Column(); !ok {
				t.Errorf("event %q has no column", ev)
			}
		}
	}
	if _, ok := EventType("bogus").Column(); ok {
		t.Error("bogus event must not have a column")
	}
}

func TestCounters_IncrementedAndTotal(t *testing.T) {
	var c Counters
	c = c.Incremented(EventWaitlistClient)
	c = c.Incremented(EventWaitlistClient)
	c = c.Incremented(EventValidatedPro)
	if c.WaitlistClients != 2 || c.ValidatedPros != 1 {
		t.Fatalf("unexpected counters %+v", c)
	}
	if c.Total() != 3 {
		t.Errorf("Total() = %d, want 3", c.Total())
	}
}

func TestCounters_Clamped(t *testing.T) {
	c := Counters{WaitlistClients: -3, AppDownloads: 2}.Clamped()
	if c.WaitlistClients != 0 || c.AppDownloads != 2 {
		t.Errorf("Clamped() = %+v", c)
	}
}

func TestIdempotencyKey(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	key := IdempotencyKey(a, b, EventWaitlistClient)
	want := a.String() + "_" + b.String() + "_waitlist_client"
	if key != want {
		t.Errorf("IdempotencyKey() = %q, want %q", key, want)
	}
	if IdempotencyKey(a, b, EventWaitlistPro) == key {
		t.Error("different event types must give different keys")
	}
}

func TestReferralCode(t *testing.T) {
	code := NewReferralCode()
	if len(code) != ReferralCodeLength {
		t.Fatalf("len = %d", len(code))
	}
	got, err := NormalizeReferralCode(" " + strings.ToLower(code) + " ")
	if err != nil || got != code {
		t.Errorf("NormalizeReferralCode() = %q, %v; want %q", got, err, code)
	}

	for _, bad := range []string{"", "ABC", "ABCDEFG0", "ABCDEFGHJ", "ABCD-FGH"} {
		if _, err := NormalizeReferralCode(bad); !errors.Is(err, ErrInvalidReferralCode) {
			t.Errorf("NormalizeReferralCode(%q) err = %v", bad, err)
		}
	}
}
