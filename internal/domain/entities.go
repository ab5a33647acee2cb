package domain

import (
	"context"
	"errors"
	"iter"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is the validation failure class (400).
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	// ErrProviderUnavailable means every configured model failed; retryable.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrParseFailure means the provider answered but the payload did not fit the expected shape.
	ErrParseFailure = errors.New("ai response parse failure")
	// ErrContentRejected means the provider's safety filter blocked the request.
	ErrContentRejected = errors.New("content rejected by provider")
	ErrInternal        = errors.New("internal error")
)

// Role of an interview message author.
type Role string

const (
	RoleAssistant Role = "ASSISTANT"
	RoleUser      Role = "USER"
)

// Document is the uploaded résumé an analysis belongs to.
type Document struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

// SubScores are the analysis detail scores, each in [0,100].
type SubScores struct {
	Impact  int `json:"impact"`
	Brevity int `json:"brevity"`
	ATS     int `json:"ats"`
	Style   int `json:"style"`
}

// Analysis is the structured résumé feedback.
type Analysis struct {
	Summary    string    `json:"summary"`
	Keywords   []string  `json:"keywords"`
	Suggestion string    `json:"suggestion"`
	Score      int       `json:"score"`
	Details    SubScores `json:"details"`
}

// Valid reports whether the analysis may serve as a cache source.
func (a Analysis) Valid() bool { return a.Score > 0 && a.Summary != "" }

// AnalysisRecord is an append-only analysis history row.
// Invariants: ContentHash is the hex SHA-256 of the analysed text; rows are never mutated.
type AnalysisRecord struct {
	ID          string
	DocumentID  string
	Title       string
	Analysis    Analysis
	ContentHash string
	CreatedAt   time.Time
}

// AnalysisResult is what GetOrCreate hands back to the caller.
type AnalysisResult struct {
	Record AnalysisRecord
	Cached bool
	// XP is nil on cache hits; no reward is granted for duplicates.
	XP       *XPResult
	Progress UserProgress
}

// InterviewEvaluation holds the fields written when a session completes.
type InterviewEvaluation struct {
	Score        int      `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	CulturalFit  string   `json:"culturalFit"`
	Roadmap      []string `json:"roadmap"`
}

// InterviewSession is a mock interview owned by a user.
// Invariants: Evaluation and AnalyzedAt are nil until IsCompleted flips to true exactly once.
type InterviewSession struct {
	ID          string
	UserID      string
	Position    string
	IsCompleted bool
	Evaluation  *InterviewEvaluation
	CreatedAt   time.Time
	AnalyzedAt  *time.Time
}

// InterviewMessage is one turn of the transcript.
type InterviewMessage struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// UserProgress is the gamification state of a user.
// Invariants: XP never decreases; Level and LevelName are derivable from XP.
type UserProgress struct {
	UserID    string
	XP        int
	Level     int
	LevelName string
	UpdatedAt time.Time
}

// XPResult describes a single XP award.
type XPResult struct {
	Gained       int
	OldLevel     int
	NewLevel     int
	LeveledUp    bool
	NewXP        int
	NewLevelName string
}

// ProgressEvent is published after each XP award.
type ProgressEvent struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Gained    int       `json:"gained"`
	TotalXP   int       `json:"totalXp"`
	Level     int       `json:"level"`
	LevelName string    `json:"levelName"`
	LeveledUp bool      `json:"leveledUp"`
	At        time.Time `json:"at"`
}

// RateDecision is the outcome of an admission check. A denial is a normal result, not an error.
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns how long the caller should wait before the window resets.
func (d RateDecision) RetryAfter(now time.Time) time.Duration {
	if d.ResetTime.After(now) {
		return d.ResetTime.Sub(now)
	}
	return 0
}

// GenerateRequest is a single prompt for the generation facade.
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
	// Schema asks the provider for a JSON answer constrained to this shape.
	Schema *Schema
}

// Repositories (ports)

type DocumentRepository interface {
	Get(ctx Context, id string) (Document, error)
}

type AnalysisRepository interface {
	Create(ctx Context, r AnalysisRecord) (AnalysisRecord, error)
	// LatestValidByHash returns the newest record with this hash whose score>0 and summary is non-empty.
	LatestValidByHash(ctx Context, contentHash string) (AnalysisRecord, error)
	ListByDocument(ctx Context, documentID string, limit int) ([]AnalysisRecord, error)
}

type InterviewRepository interface {
	CreateSession(ctx Context, s InterviewSession) (InterviewSession, error)
	GetSession(ctx Context, id string) (InterviewSession, error)
	AppendMessage(ctx Context, m InterviewMessage) (InterviewMessage, error)
	ListMessages(ctx Context, sessionID string) ([]InterviewMessage, error)
	CountMessages(ctx Context, sessionID string) (int, error)
	// Complete stores the evaluation only while the session is still open; otherwise ErrConflict.
	Complete(ctx Context, sessionID string, eval InterviewEvaluation, analyzedAt time.Time) error
}

// ProgressMutator computes the next state from the locked current one.
type ProgressMutator func(cur UserProgress) (UserProgress, error)

type ProgressRepository interface {
	Get(ctx Context, userID string) (UserProgress, error)
	// Update runs mutate against the row locked inside one transaction, creating it at level 1 if absent.
	Update(ctx Context, userID string, mutate ProgressMutator) (before, after UserProgress, err error)
	// ListPage returns progress rows ordered by user id, starting after afterUserID.
	ListPage(ctx Context, afterUserID string, limit int) ([]UserProgress, error)
}

// Generator is the generation facade port.
type Generator interface {
	Generate(ctx Context, req GenerateRequest) (string, error)
	// GenerateStream yields text chunks; a terminal error is yielded as the last element.
	GenerateStream(ctx Context, req GenerateRequest) iter.Seq2[string, error]
}

// AdmissionStore holds fixed-window counters.
type AdmissionStore interface {
	Check(ctx Context, key string, limit int, window time.Duration) (RateDecision, error)
}

// TurnLocker serialises turns on one interview session.
type TurnLocker interface {
	// TryLock returns ok=false when another turn holds the key.
	TryLock(ctx Context, key string) (unlock func(), ok bool, err error)
}

// EventPublisher emits progress events to downstream consumers.
type EventPublisher interface {
	PublishProgress(ctx Context, ev ProgressEvent) error
}

// BotVerifier checks an opaque anti-bot token.
type BotVerifier interface {
	Verify(ctx Context, token, remoteIP string) (bool, error)
}

// Context is an alias to context.Context so ports read naturally.
type Context = context.Context
