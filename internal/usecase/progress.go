// Package usecase contains the coach's application services.
package usecase

import (
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/observability"
)

// Reasons attached to progress events.
const (
	ReasonCVAnalysis = "cv_analysis"
	ReasonInterview  = "interview_completed"
)

// ProgressService is the only writer of XP and level.
type ProgressService struct {
	Repo   domain.ProgressRepository
	Events domain.EventPublisher
	now    func() time.Time
}

// NewProgressService constructs a ProgressService. events may be nil.
func NewProgressService(repo domain.ProgressRepository, events domain.EventPublisher) *ProgressService {
	return &ProgressService{Repo: repo, Events: events, now: time.Now}
}

// AddXP adds amount to the user's XP and recomputes the level in one locked update.
func (s *ProgressService) AddXP(ctx domain.Context, userID string, amount int, reason string) (domain.XPResult, error) {
	if userID == "" {
		return domain.XPResult{}, fmt.Errorf("%w: user id required", domain.ErrInvalidArgument)
	}
	if amount < 0 {
		return domain.XPResult{}, fmt.Errorf("%w: negative xp amount %d", domain.ErrInvalidArgument, amount)
	}
	before, after, err := s.Repo.Update(ctx, userID, func(cur domain.UserProgress) (domain.UserProgress, error) {
		cur.XP += amount
		cur.Level = domain.LevelFromXP(cur.XP).Level
		cur.LevelName = domain.LevelName(cur.Level)
		return cur, nil
	})
	if err != nil {
		return domain.XPResult{}, fmt.Errorf("op=progress.add_xp: %w", err)
	}
	// Rows written before a threshold change may carry a stale level; compare derived levels.
	oldLevel := domain.LevelFromXP(before.XP).Level
	res := domain.XPResult{
		Gained:       amount,
		OldLevel:     oldLevel,
		NewLevel:     after.Level,
		LeveledUp:    after.Level > oldLevel,
		NewXP:        after.XP,
		NewLevelName: after.LevelName,
	}
	obsmetrics.ObserveXP(reason, amount, res.LeveledUp)
	s.publish(ctx, userID, reason, res)
	return res, nil
}

func (s *ProgressService) publish(ctx domain.Context, userID, reason string, res domain.XPResult) {
	if s.Events == nil {
		return
	}
	ev := domain.ProgressEvent{
		UserID:    userID,
		Reason:    reason,
		Gained:    res.Gained,
		TotalXP:   res.NewXP,
		Level:     res.NewLevel,
		LevelName: res.NewLevelName,
		LeveledUp: res.LeveledUp,
		At:        s.now().UTC(),
	}
	if err := s.Events.PublishProgress(ctx, ev); err != nil {
		observability.LoggerFromContext(ctx).Warn("progress event publish failed", "reason", reason, "error", err)
	}
}

// Get returns the user's progress, repairing a level that no longer matches XP.
// Users without a row get a zero snapshot at level 1.
func (s *ProgressService) Get(ctx domain.Context, userID string) (domain.UserProgress, error) {
	p, err := s.Repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserProgress{UserID: userID, Level: 1, LevelName: domain.LevelName(1)}, nil
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("op=progress.get: %w", err)
	}
	if !levelDiverged(p) {
		return p, nil
	}
	fixed, err := s.Reconcile(ctx, userID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("level repair failed", "error", err)
		p.Level = domain.LevelFromXP(p.XP).Level
		p.LevelName = domain.LevelName(p.Level)
		return p, nil
	}
	return fixed, nil
}

// Reconcile rewrites level and level name from XP under the row lock. XP is untouched.
func (s *ProgressService) Reconcile(ctx domain.Context, userID string) (domain.UserProgress, error) {
	_, after, err := s.Repo.Update(ctx, userID, func(cur domain.UserProgress) (domain.UserProgress, error) {
		cur.Level = domain.LevelFromXP(cur.XP).Level
		cur.LevelName = domain.LevelName(cur.Level)
		return cur, nil
	})
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("op=progress.reconcile: %w", err)
	}
	return after, nil
}

// ReconcileAll walks every progress row in pages of batch and repairs diverged levels.
// It returns the number of rows repaired.
func (s *ProgressService) ReconcileAll(ctx domain.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 500
	}
	fixed, after := 0, ""
	for {
		page, err := s.Repo.ListPage(ctx, after, batch)
		if err != nil {
			return fixed, fmt.Errorf("op=progress.reconcile_all: %w", err)
		}
		for _, p := range page {
			if !levelDiverged(p) {
				continue
			}
			if _, err := s.Reconcile(ctx, p.UserID); err != nil {
				return fixed, err
			}
			fixed++
		}
		if len(page) < batch {
			return fixed, nil
		}
		after = page[len(page)-1].UserID
	}
}

func levelDiverged(p domain.UserProgress) bool {
	lvl := domain.LevelFromXP(p.XP).Level
	return p.Level != lvl || p.LevelName != domain.LevelName(lvl)
}
