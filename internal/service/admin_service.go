package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminService provides waitlist statistics for operators
type AdminService struct {
	db *pgxpool.Pool
}

// NewAdminService creates a new admin service
func NewAdminService(db *pgxpool.Pool) *AdminService {
	return &AdminService{db: db}
}

// Stats represents waitlist statistics
type Stats struct {
	TotalUsers      int64            `json:"total_users"`
	VerifiedUsers   int64            `json:"verified_users"`
	EarlyBirds      int64            `json:"early_birds"`
	SignupsToday    int64            `json:"signups_today"`
	SignupsWeek     int64            `json:"signups_week"`
	UsersByRole     map[string]int64 `json:"users_by_role"`
	ReferralEvents  int64            `json:"referral_events"`
	ReferralsToday  int64            `json:"referrals_today"`
	TotalPoints     int64            `json:"total_points"` // Sum of provisional points
	RankedUsers     int64            `json:"ranked_users"`
	JackpotEligible int64            `json:"jackpot_eligible"`
}

// GetStats returns waitlist statistics
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{UsersByRole: map[string]int64{}}
	today := time.Now().Truncate(24 * time.Hour)
	weekAgo := today.Add(-7 * 24 * time.Hour)

	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE verified_at IS NOT NULL),
		       COUNT(*) FILTER (WHERE early_bird),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(*) FILTER (WHERE created_at >= $2),
		       COALESCE(SUM(provisional_points), 0),
		       COUNT(*) FILTER (WHERE rank > 0),
		       COUNT(*) FILTER (WHERE eligible_for_jackpot)
		FROM users
	`, today, weekAgo).Scan(
		&stats.TotalUsers,
		&stats.VerifiedUsers,
		&stats.EarlyBirds,
		&stats.SignupsToday,
		&stats.SignupsWeek,
		&stats.TotalPoints,
		&stats.RankedUsers,
		&stats.JackpotEligible,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		stats.UsersByRole[role] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Referral events
	_ = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM referral_events`).Scan(&stats.ReferralEvents)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM referral_events WHERE created_at >= $1
	`, today).Scan(&stats.ReferralsToday)

	return stats, nil
}
