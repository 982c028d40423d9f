// Package scheduler runs the timed jobs: the one-shot ranking at launch,
// referral credit retries and periodic cache upkeep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/service"

	"github.com/go-co-op/gocron/v2"
)

// ErrInPast is returned when a one-shot job is scheduled for a past instant.
var ErrInPast = errors.New("scheduler: start time already passed")

// Ranker runs the final ranking.
type Ranker interface {
	Run(ctx context.Context) (*service.RunResult, error)
}

// Reconciler retries referral credits that were never recorded.
type Reconciler interface {
	Reconcile(ctx context.Context) (service.ReconcileResult, error)
}

// Sweeper drops expired cache entries and reports how many.
type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	sched gocron.Scheduler
	now   func() time.Time
}

func New() (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched, now: time.Now}, nil
}

// RankAt runs r once at the given instant.
func (s *Scheduler) RankAt(at time.Time, r Ranker) error {
	if !at.After(s.now()) {
		return ErrInPast
	}
	_, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			ctx := logger.WithRequestID(context.Background(), "launch-ranking")
			res, err := r.Run(ctx)
			if err != nil {
				logger.Error("[Scheduler] launch ranking failed", "error", err)
				return
			}
			logger.Info("[Scheduler] launch ranking completed",
				"total_users", res.Stats.TotalUsers,
				"jackpot_eligible", res.Stats.JackpotEligibleCount,
			)
		}),
		gocron.WithName("launch-ranking"),
	)
	if err != nil {
		return err
	}
	logger.Info("[Scheduler] launch ranking scheduled", "at", at)
	return nil
}

// SweepEvery evicts expired entries from sw on a fixed interval.
func (s *Scheduler) SweepEvery(every time.Duration, sw Sweeper) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if n := sw.Sweep(); n > 0 {
				logger.Debug("[Scheduler] cache sweep", "evicted", n)
			}
		}),
		gocron.WithName("cache-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// ReconcileEvery retries uncredited referral awards on a fixed interval.
func (s *Scheduler) ReconcileEvery(every time.Duration, r Reconciler) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx := logger.WithRequestID(context.Background(), "referral-reconcile")
			if _, err := r.Reconcile(ctx); err != nil {
				logger.Error("[Scheduler] referral reconcile failed", "error", err)
			}
		}),
		gocron.WithName("referral-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
