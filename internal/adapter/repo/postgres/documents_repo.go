package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// DocumentRepo reads résumé owner records written by the upload flow.
type DocumentRepo struct{ Pool PgxPool }

// NewDocumentRepo constructs a DocumentRepo with the given pool.
func NewDocumentRepo(p PgxPool) *DocumentRepo { return &DocumentRepo{Pool: p} }

// Create inserts a document and returns it with id and timestamp filled in.
func (r *DocumentRepo) Create(ctx domain.Context, d domain.Document) (domain.Document, error) {
	ctx, span := otel.Tracer("repo.documents").Start(ctx, "documents.Create")
	defer span.End()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = nowUTC()
	q := `INSERT INTO documents (id, user_id, title, created_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.Pool.Exec(ctx, q, d.ID, d.UserID, d.Title, d.CreatedAt); err != nil {
		return domain.Document{}, fmt.Errorf("op=document.create: %w", err)
	}
	return d, nil
}

// Get loads a document by id.
func (r *DocumentRepo) Get(ctx domain.Context, id string) (domain.Document, error) {
	ctx, span := otel.Tracer("repo.documents").Start(ctx, "documents.Get")
	defer span.End()
	var d domain.Document
	err := r.Pool.QueryRow(ctx, `SELECT id, user_id, title, created_at FROM documents WHERE id=$1`, id).
		Scan(&d.ID, &d.UserID, &d.Title, &d.CreatedAt)
	if err != nil {
		return domain.Document{}, notFound("document.get", err)
	}
	return d, nil
}
