package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

const analysisColumns = `id, document_id, title, summary, keywords, suggestion, score, impact, brevity, ats, style, content_hash, created_at`

// AnalysisRepo persists the append-only analysis history.
type AnalysisRepo struct{ Pool PgxPool }

// NewAnalysisRepo constructs an AnalysisRepo with the given pool.
func NewAnalysisRepo(p PgxPool) *AnalysisRepo { return &AnalysisRepo{Pool: p} }

// Create appends a record. Rows are never updated afterwards.
func (r *AnalysisRepo) Create(ctx domain.Context, rec domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	ctx, span := otel.Tracer("repo.analysis").Start(ctx, "analysis.Create")
	defer span.End()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = nowUTC()
	a := rec.Analysis
	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	q := `INSERT INTO analysis_records (` + analysisColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.Pool.Exec(ctx, q, rec.ID, rec.DocumentID, rec.Title, a.Summary, keywords, a.Suggestion,
		a.Score, a.Details.Impact, a.Details.Brevity, a.Details.ATS, a.Details.Style, rec.ContentHash, rec.CreatedAt)
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("op=analysis.create: %w", err)
	}
	return rec, nil
}

// LatestValidByHash returns the newest record with this hash that may serve as a cache source.
func (r *AnalysisRepo) LatestValidByHash(ctx domain.Context, contentHash string) (domain.AnalysisRecord, error) {
	ctx, span := otel.Tracer("repo.analysis").Start(ctx, "analysis.LatestValidByHash")
	defer span.End()
	span.SetAttributes(attribute.String("content_hash", contentHash))
	q := `SELECT ` + analysisColumns + ` FROM analysis_records
	WHERE content_hash=$1 AND score > 0 AND summary <> ''
	ORDER BY created_at DESC LIMIT 1`
	rec, err := scanAnalysis(r.Pool.QueryRow(ctx, q, contentHash))
	if err != nil {
		return domain.AnalysisRecord{}, notFound("analysis.latest_valid", err)
	}
	return rec, nil
}

// ListByDocument returns a document's history, newest first.
func (r *AnalysisRepo) ListByDocument(ctx domain.Context, documentID string, limit int) ([]domain.AnalysisRecord, error) {
	ctx, span := otel.Tracer("repo.analysis").Start(ctx, "analysis.ListByDocument")
	defer span.End()
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + analysisColumns + ` FROM analysis_records WHERE document_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=analysis.list: %w", err)
	}
	defer rows.Close()
	var out []domain.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("op=analysis.list: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=analysis.list: %w", err)
	}
	return out, nil
}

func scanAnalysis(row pgx.Row) (domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	a := &rec.Analysis
	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.Title, &a.Summary, &a.Keywords, &a.Suggestion,
		&a.Score, &a.Details.Impact, &a.Details.Brevity, &a.Details.ATS, &a.Details.Style, &rec.ContentHash, &rec.CreatedAt)
	return rec, err
}
