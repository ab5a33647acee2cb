package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
)

// Reconciler repairs stored levels that no longer match stored XP.
type Reconciler interface {
	ReconcileAll(ctx context.Context, batch int) (int, error)
}

// LevelReconciler periodically runs a full level reconciliation pass.
type LevelReconciler struct {
	progress Reconciler
	batch    int
	interval time.Duration
}

// NewLevelReconciler returns nil when progress is nil or interval is not positive; Run on nil is a no-op.
func NewLevelReconciler(progress Reconciler, interval time.Duration, batch int) *LevelReconciler {
	if progress == nil || interval <= 0 {
		return nil
	}
	if batch <= 0 {
		batch = 500
	}
	return &LevelReconciler{progress: progress, batch: batch, interval: interval}
}

func (s *LevelReconciler) Run(ctx context.Context) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("level reconciler stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *LevelReconciler) sweepOnce(ctx context.Context) int {
	ctx, span := otel.Tracer("progress.reconciler").Start(ctx, "LevelReconciler.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Int("progress.batch", s.batch))

	fixed, err := s.progress.ReconcileAll(ctx, s.batch)
	if fixed > 0 {
		observability.LevelsReconciledTotal.Add(float64(fixed))
		slog.Warn("level reconciler repaired diverged levels", slog.Int("fixed", fixed))
	}
	span.SetAttributes(attribute.Int("progress.fixed", fixed))
	if err != nil {
		span.RecordError(err)
		slog.Error("level reconciliation failed", slog.Any("error", err))
	}
	return fixed
}
