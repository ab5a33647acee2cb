package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai"
	obsmetrics "github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/config"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/observability"
)

const (
	maxEvaluationItems = 5
	defaultPosition    = "Software Engineer"
)

var errAlreadyCompleted = fmt.Errorf("%w: interview already completed", domain.ErrInvalidArgument)

// TurnWriter receives a streamed assistant turn.
type TurnWriter interface {
	// Begin is called once with the session id before any chunk is written.
	Begin(sessionID string)
	// WriteChunk forwards one chunk. An error means the caller went away; the turn is still completed and stored.
	WriteChunk(chunk string) error
}

// Turn is a stored assistant turn.
type Turn struct {
	SessionID string
	Message   domain.InterviewMessage
}

// Completion is the outcome of a completed interview.
type Completion struct {
	Session    domain.InterviewSession
	Evaluation domain.InterviewEvaluation
	XP         domain.XPResult
}

// Transcript is a session with its messages in order.
type Transcript struct {
	Session  domain.InterviewSession
	Messages []domain.InterviewMessage
}

// InterviewService drives mock interviews: NEW -> ACTIVE -> COMPLETED.
type InterviewService struct {
	Repo        domain.InterviewRepository
	Gen         domain.Generator
	Progress    *ProgressService
	Locks       domain.TurnLocker
	Prompts     config.Prompts
	XPReward    int
	MinMessages int
	now         func() time.Time
}

// NewInterviewService constructs an InterviewService. locks may be nil to disable turn locking.
func NewInterviewService(repo domain.InterviewRepository, gen domain.Generator, progress *ProgressService, locks domain.TurnLocker, prompts config.Prompts, xpReward, minMessages int) *InterviewService {
	if minMessages <= 0 {
		minMessages = 10
	}
	return &InterviewService{
		Repo: repo, Gen: gen, Progress: progress, Locks: locks, Prompts: prompts,
		XPReward: xpReward, MinMessages: minMessages, now: time.Now,
	}
}

// Start opens a session and streams the first question.
// If the stream fails the session stays ACTIVE with no messages; Retry asks again.
func (s *InterviewService) Start(ctx domain.Context, userID, position string, w TurnWriter) (Turn, error) {
	position = strings.TrimSpace(position)
	if position == "" {
		position = defaultPosition
	}
	sess, err := s.Repo.CreateSession(ctx, domain.InterviewSession{UserID: userID, Position: position})
	if err != nil {
		return Turn{}, fmt.Errorf("op=interview.start: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("interview started", "session_id", sess.ID, "position", position)
	w.Begin(sess.ID)

	unlock, err := s.lock(ctx, sess.ID)
	if err != nil {
		return Turn{SessionID: sess.ID}, err
	}
	defer unlock()
	msg, err := s.streamTurn(ctx, "start", sess, nil, w)
	return Turn{SessionID: sess.ID, Message: msg}, err
}

// Reply stores the candidate's answer and streams the next question.
// The answer is stored before the provider is called, so a failed stream leaves it unanswered until Retry.
func (s *InterviewService) Reply(ctx domain.Context, userID, sessionID, message string, w TurnWriter) (Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Turn{}, fmt.Errorf("%w: message required", domain.ErrInvalidArgument)
	}
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer unlock()

	sess, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return Turn{}, err
	}
	history, err := s.Repo.ListMessages(ctx, sessionID)
	if err != nil {
		return Turn{}, fmt.Errorf("op=interview.reply: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Role != domain.RoleAssistant {
		return Turn{}, fmt.Errorf("%w: previous turn has no question; retry it first", domain.ErrConflict)
	}
	w.Begin(sessionID)
	userMsg, err := s.Repo.AppendMessage(ctx, domain.InterviewMessage{SessionID: sessionID, Role: domain.RoleUser, Content: message})
	if err != nil {
		return Turn{}, fmt.Errorf("op=interview.reply: %w", err)
	}
	msg, err := s.streamTurn(ctx, "reply", sess, append(history, userMsg), w)
	return Turn{SessionID: sessionID, Message: msg}, err
}

// Retry regenerates the assistant turn missing after a failed stream.
func (s *InterviewService) Retry(ctx domain.Context, userID, sessionID string, w TurnWriter) (Turn, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer unlock()

	sess, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return Turn{}, err
	}
	history, err := s.Repo.ListMessages(ctx, sessionID)
	if err != nil {
		return Turn{}, fmt.Errorf("op=interview.retry: %w", err)
	}
	if n := len(history); n > 0 && history[n-1].Role == domain.RoleAssistant {
		return Turn{}, fmt.Errorf("%w: last turn already answered", domain.ErrConflict)
	}
	w.Begin(sessionID)
	msg, err := s.streamTurn(ctx, "retry", sess, history, w)
	return Turn{SessionID: sessionID, Message: msg}, err
}

// Complete scores the interview once it has enough messages and grants XP.
// A second call is rejected and never re-scores.
func (s *InterviewService) Complete(ctx domain.Context, userID, sessionID string) (Completion, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return Completion{}, err
	}
	defer unlock()

	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return Completion{}, err
	}
	if sess.IsCompleted {
		return Completion{}, errAlreadyCompleted
	}
	n, err := s.Repo.CountMessages(ctx, sessionID)
	if err != nil {
		return Completion{}, fmt.Errorf("op=interview.complete: %w", err)
	}
	if n < s.MinMessages {
		return Completion{}, fmt.Errorf("%w: interview needs at least %d messages, has %d", domain.ErrInvalidArgument, s.MinMessages, n)
	}
	history, err := s.Repo.ListMessages(ctx, sessionID)
	if err != nil {
		return Completion{}, fmt.Errorf("op=interview.complete: %w", err)
	}

	pctx := context.WithoutCancel(ctx)
	out, err := s.Gen.Generate(pctx, domain.GenerateRequest{
		Prompt: config.Render(s.Prompts.Evaluation.User, map[string]string{
			"position":   sess.Position,
			"transcript": renderTranscript(history),
		}),
		SystemInstruction: strings.TrimSpace(s.Prompts.Evaluation.System),
		Schema:            domain.EvaluationSchema(),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("op=interview.complete: %w", err)
	}
	var eval domain.InterviewEvaluation
	if err := ai.DecodeJSON(out, &eval); err != nil {
		return Completion{}, fmt.Errorf("op=interview.complete: %w", err)
	}
	eval = normalizeEvaluation(eval)

	analyzedAt := s.now().UTC()
	if err := s.Repo.Complete(pctx, sessionID, eval, analyzedAt); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return Completion{}, errAlreadyCompleted
		}
		return Completion{}, fmt.Errorf("op=interview.complete: %w", err)
	}
	obsmetrics.ObserveInterviewCompleted(eval.Score)

	xp, err := s.Progress.AddXP(pctx, userID, s.XPReward, ReasonInterview)
	if err != nil {
		return Completion{}, err
	}
	sess.IsCompleted = true
	sess.Evaluation = &eval
	sess.AnalyzedAt = &analyzedAt
	observability.LoggerFromContext(ctx).Info("interview completed", "session_id", sessionID, "score", eval.Score, "leveled_up", xp.LeveledUp)
	return Completion{Session: sess, Evaluation: eval, XP: xp}, nil
}

// Get returns an owned session with its transcript.
func (s *InterviewService) Get(ctx domain.Context, userID, sessionID string) (Transcript, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return Transcript{}, err
	}
	msgs, err := s.Repo.ListMessages(ctx, sessionID)
	if err != nil {
		return Transcript{}, fmt.Errorf("op=interview.get: %w", err)
	}
	return Transcript{Session: sess, Messages: msgs}, nil
}

// streamTurn streams the next assistant turn to w and stores it once the stream has ended.
// Provider work and the final write use a context detached from the caller's cancellation.
func (s *InterviewService) streamTurn(ctx domain.Context, kind string, sess domain.InterviewSession, history []domain.InterviewMessage, w TurnWriter) (domain.InterviewMessage, error) {
	lg := observability.LoggerFromContext(ctx)
	pctx := context.WithoutCancel(ctx)

	prompt := config.Render(s.Prompts.Interview.Opening, map[string]string{"position": sess.Position})
	if len(history) > 0 {
		prompt = config.Render(s.Prompts.Interview.Next, map[string]string{"transcript": renderTranscript(history)})
	}
	req := domain.GenerateRequest{
		Prompt:            prompt,
		SystemInstruction: config.Render(s.Prompts.Interview.System, map[string]string{"position": sess.Position}),
	}

	var sb strings.Builder
	detached := false
	for chunk, err := range s.Gen.GenerateStream(pctx, req) {
		if err != nil {
			obsmetrics.ObserveTurn(kind, "error")
			lg.Error("interview stream failed", "session_id", sess.ID, "kind", kind, "streamed_bytes", sb.Len(), "error", err)
			return domain.InterviewMessage{}, fmt.Errorf("op=interview.%s: %w", kind, err)
		}
		sb.WriteString(chunk)
		if detached {
			continue
		}
		if werr := w.WriteChunk(chunk); werr != nil {
			detached = true
			lg.Info("client left mid-stream; draining", "session_id", sess.ID, "error", werr)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		obsmetrics.ObserveTurn(kind, "error")
		return domain.InterviewMessage{}, fmt.Errorf("op=interview.%s: empty reply: %w", kind, domain.ErrProviderUnavailable)
	}
	msg, err := s.Repo.AppendMessage(pctx, domain.InterviewMessage{SessionID: sess.ID, Role: domain.RoleAssistant, Content: text})
	if err != nil {
		obsmetrics.ObserveTurn(kind, "error")
		return domain.InterviewMessage{}, fmt.Errorf("op=interview.%s: %w", kind, err)
	}
	obsmetrics.ObserveTurn(kind, "ok")
	return msg, nil
}

func (s *InterviewService) lock(ctx domain.Context, sessionID string) (func(), error) {
	if s.Locks == nil {
		return func() {}, nil
	}
	unlock, ok, err := s.Locks.TryLock(ctx, "interview:"+sessionID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("turn lock unavailable; continuing unlocked", "session_id", sessionID, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: another turn is in progress for this session", domain.ErrConflict)
	}
	return unlock, nil
}

func (s *InterviewService) ownedSession(ctx domain.Context, userID, sessionID string) (domain.InterviewSession, error) {
	if sessionID == "" {
		return domain.InterviewSession{}, fmt.Errorf("%w: session id required", domain.ErrInvalidArgument)
	}
	sess, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.InterviewSession{}, fmt.Errorf("op=interview.session: %w", domain.ErrNotFound)
		}
		return domain.InterviewSession{}, fmt.Errorf("op=interview.session: %w", err)
	}
	if sess.UserID != userID {
		return domain.InterviewSession{}, fmt.Errorf("%w: session not owned by caller", domain.ErrInvalidArgument)
	}
	return sess, nil
}

func (s *InterviewService) activeSession(ctx domain.Context, userID, sessionID string) (domain.InterviewSession, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return domain.InterviewSession{}, err
	}
	if sess.IsCompleted {
		return domain.InterviewSession{}, errAlreadyCompleted
	}
	return sess, nil
}

func renderTranscript(msgs []domain.InterviewMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		speaker := "Candidate"
		if m.Role == domain.RoleAssistant {
			speaker = "Interviewer"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func normalizeEvaluation(e domain.InterviewEvaluation) domain.InterviewEvaluation {
	e.Score = clampScore(e.Score)
	e.Summary = strings.TrimSpace(e.Summary)
	e.CulturalFit = strings.TrimSpace(e.CulturalFit)
	e.Strengths = cleanList(e.Strengths, maxEvaluationItems)
	e.Improvements = cleanList(e.Improvements, maxEvaluationItems)
	e.Roadmap = cleanList(e.Roadmap, 0)
	return e
}

// cleanList trims entries, drops blanks, and caps the length when limit > 0.
func cleanList(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
