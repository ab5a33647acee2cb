package httpserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/ai-career-coach/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-career-coach/internal/config"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/usecase"
)

const testSecret = "test-secret"

type fakeAnalysis struct {
	res     domain.AnalysisResult
	err     error
	history []domain.AnalysisRecord
	gotText string
	gotUser string
	calls   int
}

func (f *fakeAnalysis) GetOrCreate(_ context.Context, userID, _ string, rawText, _ string) (domain.AnalysisResult, error) {
	f.calls++
	f.gotText, f.gotUser = rawText, userID
	return f.res, f.err
}

func (f *fakeAnalysis) History(context.Context, string, string, int) ([]domain.AnalysisRecord, error) {
	return f.history, f.err
}

type fakeInterviews struct {
	mu         sync.Mutex
	chunks     []string
	err        error
	last       string
	message    string
	completion usecase.Completion
	transcript usecase.Transcript
}

func (f *fakeInterviews) turn(kind, sessionID string, w usecase.TurnWriter) (usecase.Turn, error) {
	f.mu.Lock()
	f.last = kind
	f.mu.Unlock()
	if sessionID == "" {
		sessionID = "sess-new"
	}
	w.Begin(sessionID)
	for _, c := range f.chunks {
		_ = w.WriteChunk(c)
	}
	if f.err != nil {
		return usecase.Turn{}, f.err
	}
	return usecase.Turn{SessionID: sessionID}, nil
}

func (f *fakeInterviews) Start(_ context.Context, _ string, _ string, w usecase.TurnWriter) (usecase.Turn, error) {
	return f.turn("start", "", w)
}

func (f *fakeInterviews) Reply(_ context.Context, _ string, sessionID, message string, w usecase.TurnWriter) (usecase.Turn, error) {
	f.message = message
	return f.turn("reply", sessionID, w)
}

func (f *fakeInterviews) Retry(_ context.Context, _ string, sessionID string, w usecase.TurnWriter) (usecase.Turn, error) {
	return f.turn("retry", sessionID, w)
}

func (f *fakeInterviews) Complete(context.Context, string, string) (usecase.Completion, error) {
	return f.completion, f.err
}

func (f *fakeInterviews) Get(context.Context, string, string) (usecase.Transcript, error) {
	return f.transcript, f.err
}

type fakeProgress struct {
	p   domain.UserProgress
	err error
}

func (f *fakeProgress) Get(_ context.Context, userID string) (domain.UserProgress, error) {
	p := f.p
	p.UserID = userID
	return p, f.err
}

type fakeAdmission struct {
	dec  domain.RateDecision
	err  error
	keys []string
}

func (f *fakeAdmission) Check(_ context.Context, key string, _ int, _ time.Duration) (domain.RateDecision, error) {
	f.keys = append(f.keys, key)
	return f.dec, f.err
}

type fakeBots struct {
	ok  bool
	err error
}

func (f fakeBots) Verify(context.Context, string, string) (bool, error) { return f.ok, f.err }

func allowAll() *fakeAdmission {
	return &fakeAdmission{dec: domain.RateDecision{Allowed: true, Remaining: 4, ResetTime: time.Now().Add(time.Minute)}}
}

func testConfig() config.Config {
	return config.Config{
		AnalysisLimit: 5, AnalysisWindow: time.Minute,
		InterviewLimit: 5, InterviewWindow: time.Minute,
		MaxBodyKB: 64, InterviewMinMessages: 10,
	}
}

// newRouter mounts the /v1 routes behind the bearer authenticator.
func newRouter(srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	auth := httpserver.NewAuthenticator(testSecret, "")
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/cv/analyze", srv.AnalyzeCVHandler())
		r.Get("/documents/{id}/analyses", srv.AnalysisHistoryHandler())
		r.Post("/interview", srv.InterviewHandler())
		r.Post("/interview/complete", srv.CompleteInterviewHandler())
		r.Get("/interview/{id}", srv.GetInterviewHandler())
		r.Get("/progress", srv.ProgressHandler())
	})
	return r
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := httpserver.IssueToken(testSecret, "", user, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token(t, "user-1"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
