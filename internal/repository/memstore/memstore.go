// Package memstore is an in-memory implementation of the repository
// contracts, used by tests and local tooling.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/ranking"

	"github.com/google/uuid"
)

// ErrInjected is returned by operations forced to fail.
var ErrInjected = errors.New("memstore: injected failure")

type Store struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*domain.User
	events map[string]domain.ReferralEvent
	audit  []*domain.AuditLog
	auditN int64

	now func() time.Time

	// FailApplyRanking makes ApplyRanking fail after computing results.
	FailApplyRanking bool
	// FailAward makes Award fail before touching state.
	FailAward bool
}

func New() *Store {
	return &Store{
		users:  make(map[uuid.UUID]*domain.User),
		events: make(map[string]domain.ReferralEvent),
		now:    time.Now,
	}
}

// Put stores a copy of u as-is, for seeding tests.
func (s *Store) Put(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = &u
}

// Events returns a copy of every stored referral event.
func (s *Store) Events() []domain.ReferralEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReferralEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out
}

func (s *Store) Create(_ context.Context, u *domain.User, grant func(existingEarlyBirds int) domain.SignupGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := 0
	for _, other := range s.users {
		if other.Email == u.Email {
			return domain.ErrEmailTaken
		}
		if other.EarlyBird {
			existing++
		}
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for {
		u.ReferralCode = domain.NewReferralCode()
		if s.byCode(u.ReferralCode) == nil {
			break
		}
	}
	g := grant(existing)
	u.EarlyBird = g.Bonus > 0
	u.EarlyBirdBonus = g.Bonus
	u.ProvisionalPoints = g.Bonus
	u.Points = g.Bonus
	u.NextMilestone = g.NextMilestone
	u.CreatedAt = s.now()

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) byCode(code string) *domain.User {
	for _, u := range s.users {
		if u.ReferralCode == code {
			return u
		}
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetByReferralCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byCode(code)
	if u == nil {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) MarkVerified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.VerifiedAt != nil {
		return false, nil
	}
	u.VerifiedAt = &at
	return true, nil
}

func (s *Store) Leaderboard(_ context.Context, role domain.Role, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.User
	for _, u := range s.users {
		if role == "" || u.Role == role {
			res = append(res, *u)
		}
	}
	slices.SortFunc(res, func(a, b domain.User) int {
		if c := cmp.Compare(b.ProvisionalPoints, a.ProvisionalPoints); c != 0 {
			return c
		}
		if c := cmp.Compare(b.RefCount, a.RefCount); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) Award(_ context.Context, ev *domain.ReferralEvent, score func(c domain.Counters, bonus int) domain.PointsUpdate) (domain.InsertResult, *domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAward {
		return domain.Failed, nil, ErrInjected
	}
	if _, ok := ev.Type.Column(); !ok {
		return domain.Failed, nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if _, ok := s.events[ev.IdempotencyKey]; ok {
		return domain.AlreadyExists, nil, nil
	}
	u, ok := s.users[ev.ReferrerID]
	if !ok {
		return domain.Failed, nil, domain.ErrNotFound
	}
	if _, ok := s.users[ev.ReferredID]; !ok {
		return domain.Failed, nil, domain.ErrNotFound
	}

	now := s.now()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = now
	s.events[ev.IdempotencyKey] = *ev

	u.Counters = u.Counters.Incremented(ev.Type)
	u.RefCount++
	u.LastRefAt = &now
	upd := score(u.Counters, u.EarlyBirdBonus)
	u.ProvisionalPoints = upd.ProvisionalPoints
	u.Points = upd.ProvisionalPoints
	u.NextMilestone = upd.NextMilestone

	cp := *u
	return domain.Inserted, &cp, nil
}

func (s *Store) ListByReferrer(_ context.Context, referrerID uuid.UUID, limit int) ([]domain.ReferralEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.ReferralEvent
	for _, ev := range s.events {
		if ev.ReferrerID == referrerID {
			res = append(res, ev)
		}
	}
	slices.SortFunc(res, func(a, b domain.ReferralEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) ListUncredited(_ context.Context, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credited := make(map[uuid.UUID]bool, len(s.events))
	for _, ev := range s.events {
		credited[ev.ReferredID] = true
	}
	var res []domain.User
	for _, u := range s.users {
		if u.VerifiedAt != nil && u.ReferredBy != nil && !credited[u.ID] {
			res = append(res, *u)
		}
	}
	slices.SortFunc(res, func(a, b domain.User) int {
		return a.VerifiedAt.Compare(*b.VerifiedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) ApplyRanking(_ context.Context, compute func([]domain.User) []domain.RankResult) ([]domain.RankResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	results := compute(users)
	if s.FailApplyRanking {
		return nil, ErrInjected
	}
	for _, r := range results {
		u := s.users[r.UserID]
		u.FinalPoints = r.FinalPoints
		u.Rank = r.Rank
		u.EligibleForJackpot = r.EligibleForJackpot
		u.IsTopRank = r.IsTopRank
	}
	return results, nil
}

func (s *Store) Snapshot(_ context.Context, limit int) (*ranking.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := &ranking.Snapshot{Eligible: []domain.User{}}
	for _, u := range s.users {
		if u.IsTopRank {
			cp := *u
			snap.TopUser = &cp
		}
		if u.EligibleForJackpot {
			snap.JackpotEligibleCount++
			snap.Eligible = append(snap.Eligible, *u)
		}
	}
	slices.SortFunc(snap.Eligible, func(a, b domain.User) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	if len(snap.Eligible) > limit {
		snap.Eligible = snap.Eligible[:limit]
	}
	return snap, nil
}

// Audit is the audit-log view of a Store.
type Audit struct {
	s *Store
}

func (s *Store) Audit() *Audit {
	return &Audit{s: s}
}

func (a *Audit) Create(_ context.Context, log *domain.AuditLog) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditN++
	cp := *log
	cp.ID = s.auditN
	cp.CreatedAt = s.now()
	s.audit = append(s.audit, &cp)
	return nil
}

func (a *Audit) GetRecent(_ context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*domain.AuditLog
	for i := len(s.audit) - 1; i >= 0 && len(res) < limit; i-- {
		if category == "" || s.audit[i].Category == category {
			res = append(res, s.audit[i])
		}
	}
	return res, nil
}
