// Package ai is the generation facade: one entry point for blocking and
// streaming calls with ordered fallback across models.
package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	obsctx "github.com/fairyhunter13/ai-career-coach/internal/observability"
)

// Backend talks to one provider for one model per call.
type Backend interface {
	Generate(ctx context.Context, model string, req domain.GenerateRequest) (string, error)
	Stream(ctx context.Context, model string, req domain.GenerateRequest) iter.Seq2[string, error]
}

var errEmptyResponse = errors.New("empty response")

// Facade implements domain.Generator.
type Facade struct {
	backend   Backend
	models    []string
	counter   *tokencount.Counter
	maxTokens int
}

// Option configures a Facade.
type Option func(*Facade)

// WithPromptBudget truncates prompts longer than maxTokens before they are sent.
func WithPromptBudget(c *tokencount.Counter, maxTokens int) Option {
	return func(f *Facade) {
		f.counter = c
		f.maxTokens = maxTokens
	}
}

// New builds a facade trying models in the given order.
func New(backend Backend, models []string, opts ...Option) (*Facade, error) {
	clean := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			clean = append(clean, m)
		}
	}
	if backend == nil || len(clean) == 0 {
		return nil, fmt.Errorf("op=ai.New: %w: backend and at least one model are required", domain.ErrInvalidArgument)
	}
	f := &Facade{backend: backend, models: clean}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Models returns the fallback order.
func (f *Facade) Models() []string { return append([]string(nil), f.models...) }

func (f *Facade) prepare(ctx context.Context, req domain.GenerateRequest) domain.GenerateRequest {
	if f.counter == nil || f.maxTokens <= 0 {
		return req
	}
	if out, cut := f.counter.Truncate(req.Prompt, f.maxTokens); cut {
		obsctx.LoggerFromContext(ctx).Warn("prompt truncated to token budget", slog.Int("max_tokens", f.maxTokens))
		req.Prompt = out
	}
	return req
}

// Generate tries each model in order and returns the first non-empty answer.
// Every failure, safety rejections included, moves on to the next model.
func (f *Facade) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	ctx, span := otel.Tracer("ai.facade").Start(ctx, "ai.Generate")
	defer span.End()
	lg := obsctx.LoggerFromContext(ctx)
	req = f.prepare(ctx, req)

	var lastErr error
	for i, model := range f.models {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("op=ai.Generate: %w", err)
		}
		start := time.Now()
		text, err := f.backend.Generate(ctx, model, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyResponse
		}
		if err == nil {
			observability.ObserveAIAttempt(model, "blocking", "ok", time.Since(start))
			span.SetAttributes(attribute.String("ai.model", model), attribute.Int("ai.attempt", i+1))
			lg.Debug("generation succeeded", slog.String("model", model), slog.Int("attempt", i+1))
			return text, nil
		}
		observability.ObserveAIAttempt(model, "blocking", outcome(err), time.Since(start))
		lg.Warn("model attempt failed, trying next",
			slog.String("model", model),
			slog.Int("attempt", i+1),
			slog.Int("models", len(f.models)),
			slog.Any("error", err))
		lastErr = err
	}
	err := f.exhausted("ai.Generate", lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all models failed")
	return "", err
}

// GenerateStream commits to the first model that yields a chunk and never
// switches models afterwards. When no model produces a chunk the sequence
// yields a single error wrapping domain.ErrProviderUnavailable, or
// domain.ErrContentRejected when the last model refused. A failure after
// chunks were delivered is yielded as the terminal element.
func (f *Facade) GenerateStream(ctx context.Context, req domain.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("ai.facade").Start(ctx, "ai.GenerateStream")
		defer span.End()
		lg := obsctx.LoggerFromContext(ctx)
		req := f.prepare(ctx, req)

		var lastErr error
		for i, model := range f.models {
			if err := ctx.Err(); err != nil {
				yield("", fmt.Errorf("op=ai.GenerateStream: %w", err))
				return
			}
			start := time.Now()
			started := false
			var streamErr error
			for chunk, err := range f.backend.Stream(ctx, model, req) {
				if err != nil {
					streamErr = err
					break
				}
				if chunk == "" {
					continue
				}
				if !started {
					started = true
					span.SetAttributes(attribute.String("ai.model", model), attribute.Int("ai.attempt", i+1))
				}
				if !yield(chunk, nil) {
					observability.ObserveAIAttempt(model, "stream", "abandoned", time.Since(start))
					return
				}
			}

			if started {
				if streamErr != nil {
					observability.ObserveAIAttempt(model, "stream", "interrupted", time.Since(start))
					span.RecordError(streamErr)
					span.SetStatus(codes.Error, "stream interrupted")
					lg.Error("stream failed after first chunk", slog.String("model", model), slog.Any("error", streamErr))
					yield("", fmt.Errorf("op=ai.GenerateStream: model=%s interrupted: %w", model, streamErr))
					return
				}
				observability.ObserveAIAttempt(model, "stream", "ok", time.Since(start))
				return
			}

			if streamErr == nil {
				streamErr = errEmptyResponse
			}
			observability.ObserveAIAttempt(model, "stream", outcome(streamErr), time.Since(start))
			lg.Warn("model stream failed before first chunk, trying next",
				slog.String("model", model),
				slog.Int("attempt", i+1),
				slog.Int("models", len(f.models)),
				slog.Any("error", streamErr))
			lastErr = streamErr
		}
		err := f.exhausted("ai.GenerateStream", lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "all models failed")
		yield("", err)
	}
}

func (f *Facade) exhausted(op string, lastErr error) error {
	if lastErr == nil {
		lastErr = errEmptyResponse
	}
	// A rejection from the last model is reported as such, not as an outage.
	if errors.Is(lastErr, domain.ErrContentRejected) || errors.Is(lastErr, domain.ErrProviderUnavailable) {
		return fmt.Errorf("op=%s: all %d models failed: %w", op, len(f.models), lastErr)
	}
	return fmt.Errorf("op=%s: all %d models failed: %w: %w", op, len(f.models), domain.ErrProviderUnavailable, lastErr)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, errEmptyResponse):
		return "empty"
	case errors.Is(err, domain.ErrContentRejected):
		return "rejected"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
