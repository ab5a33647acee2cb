package usecase_test

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

type fakeDocs struct{ docs map[string]domain.Document }

func (f *fakeDocs) Get(_ context.Context, id string) (domain.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return d, nil
}

type fakeAnalyses struct {
	mu   sync.Mutex
	rows []domain.AnalysisRecord
	seq  int
}

func (f *fakeAnalyses) Create(_ context.Context, r domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = fmt.Sprintf("a%d", f.seq)
	r.CreatedAt = time.Unix(int64(f.seq), 0)
	f.rows = append(f.rows, r)
	return r, nil
}

func (f *fakeAnalyses) LatestValidByHash(_ context.Context, hash string) (domain.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].ContentHash == hash && f.rows[i].Analysis.Valid() {
			return f.rows[i], nil
		}
	}
	return domain.AnalysisRecord{}, domain.ErrNotFound
}

func (f *fakeAnalyses) ListByDocument(_ context.Context, docID string, _ int) ([]domain.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AnalysisRecord
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].DocumentID == docID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

type fakeInterviews struct {
	mu       sync.Mutex
	sessions map[string]domain.InterviewSession
	msgs     map[string][]domain.InterviewMessage
	seq      int
	counts   int
	lists    int
}

func newFakeInterviews() *fakeInterviews {
	return &fakeInterviews{sessions: map[string]domain.InterviewSession{}, msgs: map[string][]domain.InterviewMessage{}}
}

func (f *fakeInterviews) CreateSession(_ context.Context, s domain.InterviewSession) (domain.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	s.ID = fmt.Sprintf("s%d", f.seq)
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeInterviews) GetSession(_ context.Context, id string) (domain.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.InterviewSession{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeInterviews) AppendMessage(_ context.Context, m domain.InterviewMessage) (domain.InterviewMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	m.ID = fmt.Sprintf("m%d", f.seq)
	f.msgs[m.SessionID] = append(f.msgs[m.SessionID], m)
	return m, nil
}

func (f *fakeInterviews) ListMessages(_ context.Context, id string) ([]domain.InterviewMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return append([]domain.InterviewMessage(nil), f.msgs[id]...), nil
}

func (f *fakeInterviews) CountMessages(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	return len(f.msgs[id]), nil
}

func (f *fakeInterviews) Complete(_ context.Context, id string, e domain.InterviewEvaluation, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.IsCompleted {
		return domain.ErrConflict
	}
	s.IsCompleted, s.Evaluation, s.AnalyzedAt = true, &e, &at
	f.sessions[id] = s
	return nil
}

// seed adds n alternating messages starting with ASSISTANT.
func (f *fakeInterviews) seed(sessionID string, n int) {
	for i := 0; i < n; i++ {
		role := domain.RoleAssistant
		if i%2 == 1 {
			role = domain.RoleUser
		}
		_, _ = f.AppendMessage(context.Background(), domain.InterviewMessage{SessionID: sessionID, Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
}

type fakeProgress struct {
	mu   sync.Mutex
	rows map[string]domain.UserProgress
}

func newFakeProgress() *fakeProgress { return &fakeProgress{rows: map[string]domain.UserProgress{}} }

func (f *fakeProgress) Get(_ context.Context, userID string) (domain.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return domain.UserProgress{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProgress) Update(_ context.Context, userID string, mutate domain.ProgressMutator) (domain.UserProgress, domain.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before, ok := f.rows[userID]
	if !ok {
		before = domain.UserProgress{UserID: userID, Level: 1, LevelName: domain.LevelName(1)}
	}
	after, err := mutate(before)
	if err != nil {
		return before, after, err
	}
	f.rows[userID] = after
	return before, after, nil
}

func (f *fakeProgress) ListPage(_ context.Context, afterUserID string, limit int) ([]domain.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		if id > afterUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.UserProgress, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.rows[id])
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
	err    error
}

func (p *fakePublisher) PublishProgress(_ context.Context, ev domain.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// fakeGen answers Generate with text/err and streams chunks, failing with streamErr after failAfter chunks.
type fakeGen struct {
	mu        sync.Mutex
	text      string
	err       error
	chunks    []string
	streamErr error
	failAfter int
	calls     int
	streams   int
	lastReq   domain.GenerateRequest
	ctxErr    error
}

func (g *fakeGen) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastReq = req
	return g.text, g.err
}

func (g *fakeGen) GenerateStream(ctx context.Context, req domain.GenerateRequest) iter.Seq2[string, error] {
	g.mu.Lock()
	g.streams++
	g.lastReq = req
	g.mu.Unlock()
	return func(yield func(string, error) bool) {
		for i, c := range g.chunks {
			if g.streamErr != nil && i == g.failAfter {
				yield("", g.streamErr)
				return
			}
			g.ctxErr = ctx.Err()
			if !yield(c, nil) {
				return
			}
		}
		if g.streamErr != nil && g.failAfter >= len(g.chunks) {
			yield("", g.streamErr)
		}
	}
}

// recWriter records a streamed turn.
type recWriter struct {
	sessionID string
	chunks    []string
	failAt    int
	cancel    context.CancelFunc
}

func (w *recWriter) Begin(id string) { w.sessionID = id }

func (w *recWriter) WriteChunk(c string) error {
	if w.failAt > 0 && len(w.chunks) >= w.failAt {
		if w.cancel != nil {
			w.cancel()
		}
		return fmt.Errorf("client gone")
	}
	w.chunks = append(w.chunks, c)
	return nil
}
