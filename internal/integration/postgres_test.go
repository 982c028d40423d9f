package integration

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"waitlist_contest/internal/config"
	"waitlist_contest/internal/db"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/points"
	"waitlist_contest/internal/ranking"
	"waitlist_contest/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE referral_events, audit_logs, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func noGrant(int) domain.SignupGrant { return domain.SignupGrant{} }

func createUser(t *testing.T, users *repository.UserRepository, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Role: role}
	if err := users.Create(context.Background(), u, noGrant); err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return u
}

func scoreWith(w points.Weights) func(domain.Counters, int) domain.PointsUpdate {
	return func(c domain.Counters, bonus int) domain.PointsUpdate {
		return domain.PointsUpdate{ProvisionalPoints: points.Calculate(c, bonus, w)}
	}
}

func event(referrer, referred uuid.UUID, ev domain.EventType, pts int) *domain.ReferralEvent {
	return &domain.ReferralEvent{
		ReferrerID:     referrer,
		ReferredID:     referred,
		Type:           ev,
		PointsAwarded:  pts,
		IdempotencyKey: domain.IdempotencyKey(referrer, referred, ev),
	}
}

func TestUserRepository_CreateAndLookups(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)

	u := createUser(t, users, "a@example.com", domain.RoleInfluencer)
	if u.ReferralCode == "" || u.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", u)
	}

	if err := users.Create(ctx, &domain.User{Email: "a@example.com", Role: domain.RoleClient}, noGrant); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}

	byCode, err := users.GetByReferralCode(ctx, u.ReferralCode)
	if err != nil || byCode.ID != u.ID || byCode.Role != domain.RoleInfluencer {
		t.Fatalf("by code = %+v, %v", byCode, err)
	}
	if _, err := users.GetByEmail(ctx, "ghost@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing email: %v", err)
	}

	first, err := users.MarkVerified(ctx, u.ID, time.Now())
	if err != nil || !first {
		t.Fatalf("mark verified = %v, %v", first, err)
	}
	again, err := users.MarkVerified(ctx, u.ID, time.Now())
	if err != nil || again {
		t.Fatalf("second mark verified = %v, %v", again, err)
	}
	if _, err := users.MarkVerified(ctx, uuid.New(), time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("mark unknown: %v", err)
	}
}

func TestUserRepository_EarlyBirdCapUnderConcurrency(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	schedule := config.DefaultRewards()
	schedule.EarlyBirdCap = 5

	grant := func(existing int) domain.SignupGrant {
		return domain.SignupGrant{Bonus: schedule.EarlyBirdBonusFor(existing)}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &domain.User{Email: uuid.NewString() + "@example.com", Role: domain.RoleClient}
			if err := users.Create(ctx, u, grant); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	var birds int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE early_bird`).Scan(&birds); err != nil {
		t.Fatalf("count: %v", err)
	}
	if birds != schedule.EarlyBirdCap {
		t.Fatalf("early birds = %d; want %d", birds, schedule.EarlyBirdCap)
	}
}

func TestReferralRepository_AwardIdempotent(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	referrals := repository.NewReferralRepository(pool)
	w := config.DefaultRewards().PreLaunch

	a := createUser(t, users, "a@example.com", domain.RoleClient)
	b := createUser(t, users, "b@example.com", domain.RoleBeautyPro)

	res, referrer, err := referrals.Award(ctx, event(a.ID, b.ID, domain.EventWaitlistPro, w.WaitlistPro), scoreWith(w))
	if err != nil || res != domain.Inserted {
		t.Fatalf("first award = %s, %v", res, err)
	}
	if referrer.WaitlistPros != 1 || referrer.ProvisionalPoints != w.WaitlistPro || referrer.Points != w.WaitlistPro || referrer.LastRefAt == nil {
		t.Fatalf("referrer = %+v", referrer)
	}

	res, _, err = referrals.Award(ctx, event(a.ID, b.ID, domain.EventWaitlistPro, w.WaitlistPro), scoreWith(w))
	if err != nil || res != domain.AlreadyExists {
		t.Fatalf("second award = %s, %v", res, err)
	}

	got, _ := users.GetByID(ctx, a.ID)
	if got.WaitlistPros != 1 || got.RefCount != 1 {
		t.Fatalf("after duplicate = %+v", got.Counters)
	}
	events, err := referrals.ListByReferrer(ctx, a.ID, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %v, %v", events, err)
	}

	res, _, err = referrals.Award(ctx, event(uuid.New(), b.ID, domain.EventWaitlistPro, 1), scoreWith(w))
	if !errors.Is(err, domain.ErrNotFound) || res != domain.Failed {
		t.Fatalf("unknown referrer = %s, %v", res, err)
	}
}

func TestReferralRepository_ListUncredited(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	referrals := repository.NewReferralRepository(pool)
	w := config.DefaultRewards().PreLaunch

	a := createUser(t, users, "a@example.com", domain.RoleClient)
	b := &domain.User{Email: "b@example.com", Role: domain.RoleClient, ReferredBy: &a.ID}
	if err := users.Create(ctx, b, noGrant); err != nil {
		t.Fatalf("create b: %v", err)
	}
	c := &domain.User{Email: "c@example.com", Role: domain.RoleClient, ReferredBy: &a.ID}
	if err := users.Create(ctx, c, noGrant); err != nil {
		t.Fatalf("create c: %v", err)
	}

	pending, err := referrals.ListUncredited(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("unverified users listed: %v, %v", pending, err)
	}

	for _, u := range []*domain.User{a, b, c} {
		if _, err := users.MarkVerified(ctx, u.ID, time.Now()); err != nil {
			t.Fatalf("verify %s: %v", u.Email, err)
		}
	}
	if _, _, err := referrals.Award(ctx, event(a.ID, c.ID, domain.EventWaitlistClient, w.WaitlistClient), scoreWith(w)); err != nil {
		t.Fatalf("award c: %v", err)
	}

	pending, err = referrals.ListUncredited(ctx, 10)
	if err != nil {
		t.Fatalf("list uncredited: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("pending = %v; want only b", pending)
	}
}

func TestReferralRepository_ConcurrentAwardsRecomputeFromFreshCounters(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	referrals := repository.NewReferralRepository(pool)
	w := config.DefaultRewards().PreLaunch

	referrer := createUser(t, users, "ref@example.com", domain.RoleClient)
	roles := []domain.Role{domain.RoleClient, domain.RoleInfluencer, domain.RoleBeautyPro}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		role := roles[i%len(roles)]
		referred := createUser(t, users, uuid.NewString()+"@example.com", role)
		ev, _ := domain.EventFor(domain.PhaseWaitlist, role)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := referrals.Award(ctx, event(referrer.ID, referred.ID, ev, w.For(ev)), scoreWith(w)); err != nil {
					t.Errorf("award: %v", err)
				}
			}()
		}
	}
	wg.Wait()

	got, _ := users.GetByID(ctx, referrer.ID)
	if got.Total() != 30 || got.RefCount != 30 {
		t.Fatalf("counters = %+v refCount=%d", got.Counters, got.RefCount)
	}
	if want := points.Calculate(got.Counters, got.EarlyBirdBonus, w); got.ProvisionalPoints != want {
		t.Fatalf("provisional points = %d; want %d", got.ProvisionalPoints, want)
	}
}

func TestRankingRepository_ApplyAndSnapshot(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	referrals := repository.NewReferralRepository(pool)
	rankings := repository.NewRankingRepository(pool)
	schedule := config.DefaultRewards()
	w := schedule.PreLaunch

	empty, err := rankings.Snapshot(ctx, 20)
	if err != nil || empty.Eligible == nil || len(empty.Eligible) != 0 || empty.TopUser != nil {
		t.Fatalf("snapshot of empty table = %+v, %v", empty, err)
	}

	a := createUser(t, users, "a@example.com", domain.RoleClient)
	b := createUser(t, users, "b@example.com", domain.RoleClient)
	c := createUser(t, users, "c@example.com", domain.RoleBeautyPro)
	for _, referred := range []*domain.User{b, c} {
		ev, _ := domain.EventFor(domain.PhaseLaunched, referred.Role)
		if _, _, err := referrals.Award(ctx, event(a.ID, referred.ID, ev, w.For(ev)), scoreWith(w)); err != nil {
			t.Fatalf("award: %v", err)
		}
	}

	compute := func(all []domain.User) []domain.RankResult {
		return ranking.Compute(all, schedule.Final(), schedule.JackpotThreshold)
	}
	results, err := rankings.ApplyRanking(ctx, compute)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(results) != 3 || results[0].UserID != a.ID || !results[0].IsTopRank {
		t.Fatalf("results = %+v", results)
	}

	top, _ := users.GetByID(ctx, a.ID)
	wantFinal := schedule.PostLaunch.AppDownload + schedule.PostLaunch.ValidatedPro
	if top.FinalPoints != wantFinal || top.Rank != 1 || !top.IsTopRank || !top.EligibleForJackpot {
		t.Fatalf("top = %+v", top)
	}
	bUser, _ := users.GetByID(ctx, b.ID)
	if bUser.Rank != 2 || bUser.IsTopRank {
		t.Fatalf("b = rank %d top %v; want rank 2 (earlier signup)", bUser.Rank, bUser.IsTopRank)
	}

	snap, err := rankings.Snapshot(ctx, 20)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.TopUser == nil || snap.TopUser.ID != a.ID || snap.JackpotEligibleCount != 1 || len(snap.Eligible) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	again, err := rankings.ApplyRanking(ctx, compute)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	for i := range results {
		if results[i] != again[i] {
			t.Fatalf("run not idempotent at %d: %+v vs %+v", i, results[i], again[i])
		}
	}
}

func TestAuditRepository(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	audit := repository.NewAuditRepository(pool)

	if err := audit.Create(ctx, &domain.AuditLog{Action: domain.AuditActionRankingRun, Category: domain.AuditCategoryAdmin, Details: map[string]any{"total_users": 3}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := audit.Create(ctx, &domain.AuditLog{Action: domain.AuditActionSignup, Category: domain.AuditCategoryWaitlist}); err != nil {
		t.Fatalf("create: %v", err)
	}
	logs, err := audit.GetRecent(ctx, domain.AuditCategoryAdmin, 10)
	if err != nil || len(logs) != 1 || logs[0].Details["total_users"] != float64(3) {
		t.Fatalf("logs = %+v, %v", logs, err)
	}
}
