package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/usecase"
	"github.com/fairyhunter13/ai-career-coach/pkg/textx"
)

type interviewRequest struct {
	Position     string `json:"position" validate:"max=120"`
	Message      string `json:"message" validate:"max=8000"`
	Start        bool   `json:"start"`
	SessionID    string `json:"sessionId" validate:"omitempty,resid"`
	Retry        bool   `json:"retry"`
	CaptchaToken string `json:"captchaToken"`
}

// InterviewHandler starts, continues or retries an interview, streaming the interviewer's turn.
func (s *Server) InterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewRequest
		if details, err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		starting := req.Start || req.SessionID == ""
		if starting && !s.verifyHuman(w, r, req.CaptchaToken) {
			return
		}
		if !starting && !req.Retry && textx.SanitizeText(req.Message) == "" {
			writeError(w, r, fmt.Errorf("%w: message required", domain.ErrInvalidArgument), map[string]string{"message": "required"})
			return
		}
		if !s.admit(w, r, scopeInterview) {
			return
		}

		sw := newStreamWriter(w)
		ctx, user := r.Context(), userIDFrom(r)
		var err error
		switch {
		case starting:
			_, err = s.Interviews.Start(ctx, user, textx.SanitizeText(req.Position), sw)
		case req.Retry:
			_, err = s.Interviews.Retry(ctx, user, req.SessionID, sw)
		default:
			_, err = s.Interviews.Reply(ctx, user, req.SessionID, textx.SanitizeText(req.Message), sw)
		}
		sw.finish(r, err)
	}
}

type completeRequest struct {
	SessionID string `json:"sessionId" validate:"required,resid"`
}

type evaluationBody struct {
	Score        int      `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	CulturalFit  string   `json:"culturalFit"`
	Roadmap      []string `json:"roadmap"`
}

func toEvaluationBody(e domain.InterviewEvaluation) evaluationBody {
	orEmpty := func(v []string) []string {
		if v == nil {
			return []string{}
		}
		return v
	}
	return evaluationBody{
		Score: e.Score, Summary: e.Summary, CulturalFit: e.CulturalFit,
		Strengths: orEmpty(e.Strengths), Improvements: orEmpty(e.Improvements), Roadmap: orEmpty(e.Roadmap),
	}
}

// CompleteInterviewHandler evaluates a finished interview and awards XP.
func (s *Server) CompleteInterviewHandler() http.HandlerFunc {
	type xpBody struct {
		Gained    int    `json:"gained"`
		Total     int    `json:"total"`
		LeveledUp bool   `json:"leveledUp"`
		Level     int    `json:"level"`
		LevelName string `json:"levelName"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeRequest
		if details, err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		res, err := s.Interviews.Complete(r.Context(), userIDFrom(r), req.SessionID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"analysis": toEvaluationBody(res.Evaluation),
			"xp": xpBody{
				Gained: res.XP.Gained, Total: res.XP.NewXP, LeveledUp: res.XP.LeveledUp,
				Level: res.XP.NewLevel, LevelName: res.XP.NewLevelName,
			},
		})
	}
}

// GetInterviewHandler returns a session with its transcript.
func (s *Server) GetInterviewHandler() http.HandlerFunc {
	type messageBody struct {
		ID        string    `json:"id"`
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
	}
	type sessionBody struct {
		ID          string          `json:"id"`
		Position    string          `json:"position"`
		Status      string          `json:"status"`
		CreatedAt   time.Time       `json:"createdAt"`
		AnalyzedAt  *time.Time      `json:"analyzedAt,omitempty"`
		Evaluation  *evaluationBody `json:"analysis,omitempty"`
		Messages    []messageBody   `json:"messages"`
		CanComplete bool            `json:"canComplete"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, r, fmt.Errorf("%w: invalid session id", domain.ErrInvalidArgument), nil)
			return
		}
		t, err := s.Interviews.Get(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := sessionBody{
			ID: t.Session.ID, Position: t.Session.Position, Status: sessionStatus(t),
			CreatedAt: t.Session.CreatedAt, AnalyzedAt: t.Session.AnalyzedAt,
			Messages: make([]messageBody, 0, len(t.Messages)),
		}
		if t.Session.Evaluation != nil {
			ev := toEvaluationBody(*t.Session.Evaluation)
			out.Evaluation = &ev
		}
		for _, m := range t.Messages {
			out.Messages = append(out.Messages, messageBody{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
		}
		out.CanComplete = !t.Session.IsCompleted && len(t.Messages) >= s.minMessages()
		writeJSON(w, http.StatusOK, out)
	}
}

func sessionStatus(t usecase.Transcript) string {
	switch {
	case t.Session.IsCompleted:
		return "COMPLETED"
	case len(t.Messages) == 0:
		return "NEW"
	default:
		return "ACTIVE"
	}
}

func (s *Server) minMessages() int {
	if s.Cfg.InterviewMinMessages > 0 {
		return s.Cfg.InterviewMinMessages
	}
	return 10
}
