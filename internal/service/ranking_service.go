package service

import (
	"context"
	"fmt"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/points"
	"waitlist_contest/internal/ranking"

	"github.com/google/uuid"
)

const (
	rankingLockKey = "ranking:lock"
	rankingLockTTL = 10 * time.Minute

	// SnapshotLimit is how many jackpot-eligible users the snapshot lists.
	SnapshotLimit = 20
)

// RankingMode names how a run commits its results.
const RankingModeAtomic = "atomic"

// RankingService runs the final ranking over the whole population.
type RankingService struct {
	store    RankingStore
	locks    cache.Store
	schedule points.Schedule
	audit    *AuditService
	pub      Publisher
	now      func() time.Time
}

func NewRankingService(store RankingStore, locks cache.Store, schedule points.Schedule, audit *AuditService, pub Publisher) *RankingService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &RankingService{
		store:    store,
		locks:    locks,
		schedule: schedule,
		audit:    audit,
		pub:      pub,
		now:      time.Now,
	}
}

// RunResult is returned by a completed ranking run.
type RunResult struct {
	Stats       ranking.Stats `json:"stats"`
	FailedUsers int           `json:"failedUsers"`
	Mode        string        `json:"mode"`
	DurationMS  int64         `json:"durationMs"`
}

// Run recomputes final points and ranks for every user in one transaction.
// A second run while one is in flight fails with domain.ErrRankingInProgress.
func (s *RankingService) Run(ctx context.Context) (*RunResult, error) {
	log := logger.WithContext(ctx)

	token := uuid.NewString()
	ok, err := s.locks.SetNX(ctx, rankingLockKey, token, rankingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire ranking lock: %w", err)
	}
	if !ok {
		RankingRuns.WithLabelValues("rejected").Inc()
		return nil, domain.ErrRankingInProgress
	}
	defer s.release(token)

	start := s.now()
	final := s.schedule.Final()
	threshold := s.schedule.JackpotThreshold

	results, err := s.store.ApplyRanking(ctx, func(users []domain.User) []domain.RankResult {
		return ranking.Compute(users, final, threshold)
	})
	if err != nil {
		RankingRuns.WithLabelValues("failed").Inc()
		s.audit.LogRankingRun(ctx, map[string]any{"mode": RankingModeAtomic}, err)
		log.Error("ranking run failed", "error", err)
		return nil, fmt.Errorf("apply ranking: %w", err)
	}

	elapsed := s.now().Sub(start)
	stats := ranking.Summarize(results, s.now())
	RankingRuns.WithLabelValues("ok").Inc()
	RankingDuration.Observe(elapsed.Seconds())

	details := map[string]any{
		"mode":                   RankingModeAtomic,
		"total_users":            stats.TotalUsers,
		"jackpot_eligible_count": stats.JackpotEligibleCount,
		"duration_ms":            elapsed.Milliseconds(),
	}
	if stats.TopUser != nil {
		details["top_user_id"] = stats.TopUser.UserID
		details["top_user_points"] = stats.TopUser.FinalPoints
	}
	s.audit.LogRankingRun(ctx, details, nil)
	log.Info("ranking run completed",
		"total_users", stats.TotalUsers,
		"jackpot_eligible", stats.JackpotEligibleCount,
		"duration", elapsed,
	)

	s.pub.Publish(EventRankingCompleted, stats)
	return &RunResult{
		Stats:       stats,
		FailedUsers: 0,
		Mode:        RankingModeAtomic,
		DurationMS:  elapsed.Milliseconds(),
	}, nil
}

// release drops the run lock if this run still holds it.
func (s *RankingService) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	held, err := s.locks.Get(ctx, rankingLockKey)
	if err != nil || held != token {
		return
	}
	if err := s.locks.Delete(ctx, rankingLockKey); err != nil {
		logger.Warn("failed to release ranking lock", "error", err)
	}
}

// Snapshot reads the persisted result of the last run without recomputing.
func (s *RankingService) Snapshot(ctx context.Context) (*ranking.Snapshot, error) {
	return s.store.Snapshot(ctx, SnapshotLimit)
}
