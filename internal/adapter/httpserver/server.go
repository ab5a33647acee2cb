package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/config"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/usecase"
)

// AnalysisAPI is the résumé analysis surface used by the handlers.
type AnalysisAPI interface {
	GetOrCreate(ctx context.Context, userID, documentID, rawText, title string) (domain.AnalysisResult, error)
	History(ctx context.Context, userID, documentID string, limit int) ([]domain.AnalysisRecord, error)
}

// InterviewAPI is the interview surface used by the handlers.
type InterviewAPI interface {
	Start(ctx context.Context, userID, position string, w usecase.TurnWriter) (usecase.Turn, error)
	Reply(ctx context.Context, userID, sessionID, message string, w usecase.TurnWriter) (usecase.Turn, error)
	Retry(ctx context.Context, userID, sessionID string, w usecase.TurnWriter) (usecase.Turn, error)
	Complete(ctx context.Context, userID, sessionID string) (usecase.Completion, error)
	Get(ctx context.Context, userID, sessionID string) (usecase.Transcript, error)
}

// ProgressAPI reads a user's progression.
type ProgressAPI interface {
	Get(ctx context.Context, userID string) (domain.UserProgress, error)
}

// Admission decides whether a caller may start another expensive operation.
type Admission interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Analysis   AnalysisAPI
	Interviews InterviewAPI
	Progress   ProgressAPI
	Admission  Admission
	Bots       domain.BotVerifier
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	now        func() time.Time
}

// NewServer constructs a Server. bots and the checks may be nil.
func NewServer(cfg config.Config, analysis AnalysisAPI, interviews InterviewAPI, progress ProgressAPI, admission Admission, bots domain.BotVerifier, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{
		Cfg: cfg, Analysis: analysis, Interviews: interviews, Progress: progress,
		Admission: admission, Bots: bots, DBCheck: dbCheck, RedisCheck: redisCheck, now: time.Now,
	}
}

func (s *Server) maxBody() int64 {
	if s.Cfg.MaxBodyKB <= 0 {
		return 512 << 10
	}
	return s.Cfg.MaxBodyKB << 10
}

// ReadyzHandler probes the database and Redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name string
			fn   func(context.Context) error
		}{{"db", s.DBCheck}, {"redis", s.RedisCheck}}
		checks := make([]check, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: p.name, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
