package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

type documentStore interface {
	Create(ctx context.Context, d domain.Document) (domain.Document, error)
	Get(ctx context.Context, id string) (domain.Document, error)
}

// store groups the persistence handles used by coachctl.
type store struct {
	// pool is nil when a command runs against fakes; migrate requires it.
	pool      *pgxpool.Pool
	progress  domain.ProgressRepository
	documents documentStore
}
