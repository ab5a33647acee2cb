// Package ratelimiter implements per-user fixed-window admission control.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	obsctx "github.com/fairyhunter13/ai-career-coach/internal/observability"
)

// Controller answers "may this key proceed now?" against an injected store.
type Controller struct {
	store domain.AdmissionStore
	now   func() time.Time
}

// NewController wraps store. A nil store admits everything.
func NewController(store domain.AdmissionStore) *Controller {
	return &Controller{store: store, now: time.Now}
}

// Check consumes one unit from the fixed window identified by key.
// Store failures fail open so an outage of the shared counter does not take the API down.
func (c *Controller) Check(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if key == "" || limit <= 0 || window <= 0 {
		return domain.RateDecision{}, fmt.Errorf("%w: admission key, limit and window are required", domain.ErrInvalidArgument)
	}
	if c == nil || c.store == nil {
		return domain.RateDecision{Allowed: true, Remaining: limit, ResetTime: time.Now().Add(window)}, nil
	}
	d, err := c.store.Check(ctx, key, limit, window)
	if err != nil {
		obsctx.LoggerFromContext(ctx).Error("admission store error; failing open",
			slog.String("key", key), slog.Any("error", err))
		return domain.RateDecision{Allowed: true, Remaining: limit - 1, ResetTime: c.now().Add(window)}, nil
	}
	if !d.Allowed {
		observability.AdmissionDenied(scopeOf(key))
	}
	return d, nil
}

// Key builds the admission key for a scope and user.
func Key(scope, userID string) string { return scope + ":" + userID }

func scopeOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
