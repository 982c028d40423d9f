// Package ranking computes final points and the launch-time total order.
package ranking

import (
	"cmp"
	"slices"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/points"

	"github.com/google/uuid"
)

// Compute recomputes final points for every user and ranks them.
//
// Order is final points descending, then signup time ascending, then user id,
// so no two users compare equal and ranks are exactly 1..len(users).
// The input slice is not modified. Results are returned in rank order.
func Compute(users []domain.User, w points.Weights, jackpotThreshold int) []domain.RankResult {
	if len(users) == 0 {
		return nil
	}

	type entry struct {
		id        uuid.UUID
		points    int
		createdAt time.Time
	}

	entries := make([]entry, len(users))
	for i := range users {
		u := &users[i]
		entries[i] = entry{
			id:        u.ID,
			points:    points.Calculate(u.Counters, u.EarlyBirdBonus, w),
			createdAt: u.CreatedAt,
		}
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.points, a.points); c != 0 {
			return c
		}
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.id.String(), b.id.String())
	})

	results := make([]domain.RankResult, len(entries))
	for i, e := range entries {
		results[i] = domain.RankResult{
			UserID:             e.id,
			FinalPoints:        e.points,
			Rank:               i + 1,
			EligibleForJackpot: e.points >= jackpotThreshold,
			IsTopRank:          i == 0,
		}
	}
	return results
}

// Stats summarizes a ranking run.
type Stats struct {
	TotalUsers           int                `json:"totalUsers"`
	TopUser              *domain.RankResult `json:"topUser"`
	JackpotEligibleCount int                `json:"jackpotEligibleCount"`
	Timestamp            time.Time          `json:"timestamp"`
}

// Summarize builds Stats from Compute output.
func Summarize(results []domain.RankResult, at time.Time) Stats {
	s := Stats{TotalUsers: len(results), Timestamp: at}
	for i := range results {
		if results[i].IsTopRank {
			top := results[i]
			s.TopUser = &top
		}
		if results[i].EligibleForJackpot {
			s.JackpotEligibleCount++
		}
	}
	return s
}

// Snapshot is the persisted outcome of the last ranking run.
type Snapshot struct {
	TopUser              *domain.User  `json:"topUser"`
	JackpotEligibleCount int           `json:"jackpotEligibleCount"`
	Eligible             []domain.User `json:"eligible"`
}
