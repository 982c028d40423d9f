package repository

import (
	"context"
	"fmt"

	"waitlist_contest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Award credits ev to its referrer in one transaction:
// insert-if-absent of the event, counter increment, points recompute.
// A duplicate idempotency key returns AlreadyExists and changes nothing.
// A missing referrer returns domain.ErrNotFound.
func (r *ReferralRepository) Award(ctx context.Context, ev *domain.ReferralEvent, score func(c domain.Counters, bonus int) domain.PointsUpdate) (domain.InsertResult, *domain.User, error) {
	column, ok := ev.Type.Column()
	if !ok {
		return domain.Failed, nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Failed, nil, err
	}
	defer tx.Rollback(ctx)

	// waits while a ranking run holds the exclusive lock
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, rankingLockKey); err != nil {
		return domain.Failed, nil, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO referral_events (id, referrer_id, referred_id, event_type, points_awarded, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		ev.ID, ev.ReferrerID, ev.ReferredID, string(ev.Type), ev.PointsAwarded, ev.IdempotencyKey,
	)
	if err != nil {
		if code, _ := pgCode(err); code == pgForeignKeyViolation {
			return domain.Failed, nil, domain.ErrNotFound
		}
		return domain.Failed, nil, fmt.Errorf("insert referral event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.AlreadyExists, nil, nil
	}

	// row lock on the referrer serializes concurrent awards to the same user
	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET `+column+` = `+column+` + 1, ref_count = ref_count + 1, last_ref_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, ev.ReferrerID))
	if err != nil {
		return domain.Failed, nil, notFound(err)
	}

	upd := score(u.Counters, u.EarlyBirdBonus)
	if _, err := tx.Exec(ctx, `
		UPDATE users SET provisional_points = $1, points = $1, next_milestone = $2
		WHERE id = $3`, upd.ProvisionalPoints, upd.NextMilestone, u.ID); err != nil {
		return domain.Failed, nil, err
	}
	u.ProvisionalPoints = upd.ProvisionalPoints
	u.Points = upd.ProvisionalPoints
	u.NextMilestone = upd.NextMilestone

	if err := tx.QueryRow(ctx, `SELECT created_at FROM referral_events WHERE id = $1`, ev.ID).Scan(&ev.CreatedAt); err != nil {
		return domain.Failed, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Failed, nil, err
	}
	return domain.Inserted, u, nil
}

// ListByReferrer returns the newest events credited to referrerID.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit int) ([]domain.ReferralEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, referrer_id, referred_id, event_type, points_awarded, idempotency_key, created_at
		 FROM referral_events
		 WHERE referrer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		referrerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ReferralEvent
	for rows.Next() {
		var ev domain.ReferralEvent
		var evType string
		if err := rows.Scan(&ev.ID, &ev.ReferrerID, &ev.ReferredID, &evType, &ev.PointsAwarded, &ev.IdempotencyKey, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(evType)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListUncredited returns verified users with a referrer but no event row
// naming them as the referred user.
func (r *ReferralRepository) ListUncredited(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.verified_at IS NOT NULL
		  AND u.referred_by IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM referral_events e WHERE e.referred_id = u.id)
		ORDER BY u.verified_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}
