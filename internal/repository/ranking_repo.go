package repository

import (
	"context"
	"errors"
	"fmt"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/ranking"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RankingRepository struct {
	db *pgxpool.Pool
}

func NewRankingRepository(db *pgxpool.Pool) *RankingRepository {
	return &RankingRepository{db: db}
}

// ApplyRanking reads every user, passes them to compute and writes the
// results back, all in one transaction holding the exclusive ranking lock.
// Either every user is updated or none is. Awards wait on the lock, so the
// users read after acquiring it form a consistent snapshot.
func (r *RankingRepository) ApplyRanking(ctx context.Context, compute func([]domain.User) []domain.RankResult) ([]domain.RankResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, rankingLockKey); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, err
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	results := compute(users)

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(`
			UPDATE users
			SET final_points = $1, rank = $2, eligible_for_jackpot = $3, is_top_rank = $4
			WHERE id = $5`,
			res.FinalPoints, res.Rank, res.EligibleForJackpot, res.IsTopRank, res.UserID)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range results {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("update user %s: %w", results[i].UserID, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// Snapshot reads the persisted ranking without recomputing it.
func (r *RankingRepository) Snapshot(ctx context.Context, limit int) (*ranking.Snapshot, error) {
	snap := &ranking.Snapshot{}

	top, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE is_top_rank LIMIT 1`))
	switch {
	case err == nil:
		snap.TopUser = top
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE eligible_for_jackpot`).Scan(&snap.JackpotEligibleCount); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE eligible_for_jackpot
		ORDER BY rank ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	snap.Eligible, err = scanUsers(rows)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
