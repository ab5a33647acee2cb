package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// ProgressRepo stores XP and level per user.
type ProgressRepo struct{ Pool PgxPool }

// NewProgressRepo constructs a ProgressRepo with the given pool.
func NewProgressRepo(p PgxPool) *ProgressRepo { return &ProgressRepo{Pool: p} }

// Get loads a user's progress or domain.ErrNotFound.
func (r *ProgressRepo) Get(ctx domain.Context, userID string) (domain.UserProgress, error) {
	ctx, span := otel.Tracer("repo.progress").Start(ctx, "progress.Get")
	defer span.End()
	p, err := scanProgress(r.Pool.QueryRow(ctx, `SELECT user_id, xp, level, level_name, updated_at FROM user_progress WHERE user_id=$1`, userID))
	if err != nil {
		return domain.UserProgress{}, notFound("progress.get", err)
	}
	return p, nil
}

// Update locks the user's row (creating it at level 1 when absent), applies mutate, and
// writes the result in the same transaction.
func (r *ProgressRepo) Update(ctx domain.Context, userID string, mutate domain.ProgressMutator) (before, after domain.UserProgress, err error) {
	ctx, span := otel.Tracer("repo.progress").Start(ctx, "progress.Update")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return before, after, fmt.Errorf("op=progress.update: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) && err == nil {
			err = fmt.Errorf("op=progress.update: rollback: %w", rbErr)
		}
	}()

	ins := `INSERT INTO user_progress (user_id, xp, level, level_name, updated_at) VALUES ($1, 0, 1, $2, $3)
	ON CONFLICT (user_id) DO NOTHING`
	if _, err = tx.Exec(ctx, ins, userID, domain.LevelName(1), nowUTC()); err != nil {
		return before, after, fmt.Errorf("op=progress.update: ensure row: %w", err)
	}
	before, err = scanProgress(tx.QueryRow(ctx, `SELECT user_id, xp, level, level_name, updated_at FROM user_progress WHERE user_id=$1 FOR UPDATE`, userID))
	if err != nil {
		return before, after, fmt.Errorf("op=progress.update: lock: %w", err)
	}
	after, err = mutate(before)
	if err != nil {
		return before, after, fmt.Errorf("op=progress.update: %w", err)
	}
	after.UserID = userID
	after.UpdatedAt = nowUTC()
	upd := `UPDATE user_progress SET xp=$2, level=$3, level_name=$4, updated_at=$5 WHERE user_id=$1`
	if _, err = tx.Exec(ctx, upd, userID, after.XP, after.Level, after.LevelName, after.UpdatedAt); err != nil {
		return before, after, fmt.Errorf("op=progress.update: write: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return before, after, fmt.Errorf("op=progress.update: commit: %w", err)
	}
	return before, after, nil
}

// ListPage returns up to limit rows with user_id greater than afterUserID, ordered by user_id.
func (r *ProgressRepo) ListPage(ctx domain.Context, afterUserID string, limit int) ([]domain.UserProgress, error) {
	ctx, span := otel.Tracer("repo.progress").Start(ctx, "progress.ListPage")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT user_id, xp, level, level_name, updated_at FROM user_progress WHERE user_id > $1 ORDER BY user_id LIMIT $2`, afterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=progress.list_page: %w", err)
	}
	defer rows.Close()
	var out []domain.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("op=progress.list_page: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=progress.list_page: %w", err)
	}
	return out, nil
}

func scanProgress(row pgx.Row) (domain.UserProgress, error) {
	var p domain.UserProgress
	err := row.Scan(&p.UserID, &p.XP, &p.Level, &p.LevelName, &p.UpdatedAt)
	return p, err
}
