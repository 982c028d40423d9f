package service

import (
	"context"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/ranking"

	"github.com/google/uuid"
)

// UserStore is implemented by repository.UserRepository and memstore.Store.
type UserStore interface {
	Create(ctx context.Context, u *domain.User, grant func(existingEarlyBirds int) domain.SignupGrant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Leaderboard(ctx context.Context, role domain.Role, limit int) ([]domain.User, error)
}

// ReferralStore is implemented by repository.ReferralRepository and memstore.Store.
type ReferralStore interface {
	Award(ctx context.Context, ev *domain.ReferralEvent, score func(c domain.Counters, bonus int) domain.PointsUpdate) (domain.InsertResult, *domain.User, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit int) ([]domain.ReferralEvent, error)
	// ListUncredited returns verified, referred users with no referral event
	// recorded for them, oldest verification first.
	ListUncredited(ctx context.Context, limit int) ([]domain.User, error)
}

// RankingStore is implemented by repository.RankingRepository and memstore.Store.
type RankingStore interface {
	ApplyRanking(ctx context.Context, compute func([]domain.User) []domain.RankResult) ([]domain.RankResult, error)
	Snapshot(ctx context.Context, limit int) (*ranking.Snapshot, error)
}

// AuditStore is implemented by repository.AuditRepository and memstore.Audit.
type AuditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	GetRecent(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error)
}

// Publisher pushes live events to connected clients.
type Publisher interface {
	Publish(eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Live event types
const (
	EventPointsUpdated    = "points_updated"
	EventRankingCompleted = "ranking_completed"
)
