package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// InterviewRepo persists interview sessions and their transcripts.
type InterviewRepo struct{ Pool PgxPool }

// NewInterviewRepo constructs an InterviewRepo with the given pool.
func NewInterviewRepo(p PgxPool) *InterviewRepo { return &InterviewRepo{Pool: p} }

// CreateSession inserts an open session.
func (r *InterviewRepo) CreateSession(ctx domain.Context, s domain.InterviewSession) (domain.InterviewSession, error) {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.CreateSession")
	defer span.End()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = nowUTC()
	s.IsCompleted = false
	s.Evaluation, s.AnalyzedAt = nil, nil
	q := `INSERT INTO interview_sessions (id, user_id, position, is_completed, created_at) VALUES ($1,$2,$3,false,$4)`
	if _, err := r.Pool.Exec(ctx, q, s.ID, s.UserID, s.Position, s.CreatedAt); err != nil {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.create_session: %w", err)
	}
	return s, nil
}

// GetSession loads a session with its evaluation, if any.
func (r *InterviewRepo) GetSession(ctx domain.Context, id string) (domain.InterviewSession, error) {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.GetSession")
	defer span.End()
	q := `SELECT id, user_id, position, is_completed, score, summary, strengths, improvements, cultural_fit, roadmap, created_at, analyzed_at
	FROM interview_sessions WHERE id=$1`
	var (
		s                                domain.InterviewSession
		score                            *int
		summary, culturalFit             *string
		strengths, improvements, roadmap []string
	)
	err := r.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.Position, &s.IsCompleted, &score, &summary,
		&strengths, &improvements, &culturalFit, &roadmap, &s.CreatedAt, &s.AnalyzedAt)
	if err != nil {
		return domain.InterviewSession{}, notFound("interview.get_session", err)
	}
	if s.IsCompleted {
		s.Evaluation = &domain.InterviewEvaluation{
			Score:        deref(score),
			Summary:      deref(summary),
			Strengths:    strengths,
			Improvements: improvements,
			CulturalFit:  deref(culturalFit),
			Roadmap:      roadmap,
		}
	}
	return s, nil
}

// AppendMessage adds one transcript turn.
func (r *InterviewRepo) AppendMessage(ctx domain.Context, m domain.InterviewMessage) (domain.InterviewMessage, error) {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.AppendMessage")
	defer span.End()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = nowUTC()
	q := `INSERT INTO interview_messages (id, session_id, role, content, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, m.ID, m.SessionID, string(m.Role), m.Content, m.CreatedAt); err != nil {
		return domain.InterviewMessage{}, fmt.Errorf("op=interview.append_message: %w", err)
	}
	return m, nil
}

// ListMessages returns the transcript in insertion order.
func (r *InterviewRepo) ListMessages(ctx domain.Context, sessionID string) ([]domain.InterviewMessage, error) {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.ListMessages")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT id, session_id, role, content, created_at FROM interview_messages WHERE session_id=$1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("op=interview.list_messages: %w", err)
	}
	defer rows.Close()
	var out []domain.InterviewMessage
	for rows.Next() {
		var m domain.InterviewMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=interview.list_messages: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=interview.list_messages: %w", err)
	}
	return out, nil
}

// CountMessages returns the number of stored turns.
func (r *InterviewRepo) CountMessages(ctx domain.Context, sessionID string) (int, error) {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.CountMessages")
	defer span.End()
	var n int
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM interview_messages WHERE session_id=$1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=interview.count_messages: %w", err)
	}
	return n, nil
}

// Complete writes the evaluation only if the session is still open.
func (r *InterviewRepo) Complete(ctx domain.Context, sessionID string, e domain.InterviewEvaluation, analyzedAt time.Time) error {
	ctx, span := otel.Tracer("repo.interview").Start(ctx, "interview.Complete")
	defer span.End()
	q := `UPDATE interview_sessions
	SET is_completed=true, score=$2, summary=$3, strengths=$4, improvements=$5, cultural_fit=$6, roadmap=$7, analyzed_at=$8
	WHERE id=$1 AND is_completed=false`
	tag, err := r.Pool.Exec(ctx, q, sessionID, e.Score, e.Summary, nonNil(e.Strengths), nonNil(e.Improvements),
		e.CulturalFit, nonNil(e.Roadmap), analyzedAt.UTC())
	if err != nil {
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=interview.complete: session already completed or missing: %w", domain.ErrConflict)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
