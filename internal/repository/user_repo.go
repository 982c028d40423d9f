package repository

import (
	"context"
	"fmt"
	"time"

	"waitlist_contest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, role, referral_code, referred_by, verified_at,
	waitlist_clients, waitlist_influencers, waitlist_pros,
	app_downloads, validated_influencers, validated_pros, ref_count,
	early_bird, early_bird_bonus,
	provisional_points, points, final_points, rank, next_milestone,
	eligible_for_jackpot, is_top_rank, last_ref_at, created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(
		&u.ID, &u.Email, &role, &u.ReferralCode, &u.ReferredBy, &u.VerifiedAt,
		&u.WaitlistClients, &u.WaitlistInfluencers, &u.WaitlistPros,
		&u.AppDownloads, &u.ValidatedInfluencers, &u.ValidatedPros, &u.RefCount,
		&u.EarlyBird, &u.EarlyBirdBonus,
		&u.ProvisionalPoints, &u.Points, &u.FinalPoints, &u.Rank, &u.NextMilestone,
		&u.EligibleForJackpot, &u.IsTopRank, &u.LastRefAt, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	res := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// Create inserts u with a fresh referral code. The early-bird count and the
// insert share one transaction under an advisory lock, so the cap is exact.
func (r *UserRepository) Create(ctx context.Context, u *domain.User, grant func(existingEarlyBirds int) domain.SignupGrant) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, signupLockKey); err != nil {
		return err
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE early_bird`).Scan(&existing); err != nil {
		return err
	}
	g := grant(existing)
	u.EarlyBird = g.Bonus > 0
	u.EarlyBirdBonus = g.Bonus
	u.ProvisionalPoints = g.Bonus
	u.Points = g.Bonus
	u.NextMilestone = g.NextMilestone

	// Try up to 5 times in case of referral code collision
	for i := 0; i < 5; i++ {
		u.ReferralCode = domain.NewReferralCode()
		_, err = tx.Exec(ctx, `SAVEPOINT create_user`)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO users (id, email, role, referral_code, referred_by,
				early_bird, early_bird_bonus, provisional_points, points, next_milestone)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING created_at`,
			u.ID, u.Email, string(u.Role), u.ReferralCode, u.ReferredBy,
			u.EarlyBird, u.EarlyBirdBonus, u.ProvisionalPoints, u.Points, u.NextMilestone,
		).Scan(&u.CreatedAt)
		if err == nil {
			return tx.Commit(ctx)
		}
		code, constraint := pgCode(err)
		if code != pgUniqueViolation {
			return fmt.Errorf("insert user: %w", err)
		}
		if constraint != "users_referral_code_key" {
			return domain.ErrEmailTaken
		}
		if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT create_user`); rbErr != nil {
			return rbErr
		}
	}
	return fmt.Errorf("insert user: referral code collisions: %w", err)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, notFound(err)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	return u, notFound(err)
}

func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	return u, notFound(err)
}

// MarkVerified sets verified_at once. It reports false if already verified.
func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET verified_at = $1 WHERE id = $2 AND verified_at IS NULL`,
		at, id,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// Leaderboard returns users by provisional points, then referral count,
// then signup time. An empty role selects every role.
func (r *UserRepository) Leaderboard(ctx context.Context, role domain.Role, limit int) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY provisional_points DESC, ref_count DESC, created_at ASC
		LIMIT $2`, string(role), limit)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}
