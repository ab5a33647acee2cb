// Package gemini adapts google.golang.org/genai to the generation facade.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Config for the Gemini backend.
type Config struct {
	APIKey string
	// Timeout bounds one HTTP exchange, including a full stream.
	Timeout time.Duration
	// MinInterval paces outbound calls across all models.
	MinInterval time.Duration
}

// Backend implements ai.Backend on the Gemini API.
type Backend struct {
	models  modelsAPI
	limiter *rate.Limiter
}

// New creates a genai client with an instrumented HTTP transport.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("op=gemini.New: %w: api key is required", domain.ErrInvalidArgument)
	}
	hc := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, fmt.Errorf("op=gemini.New: %w", err)
	}
	return newBackend(client.Models, cfg.MinInterval), nil
}

func newBackend(m modelsAPI, minInterval time.Duration) *Backend {
	lim := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		lim = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Backend{models: m, limiter: lim}
}

// Generate performs one blocking call against model.
func (b *Backend) Generate(ctx context.Context, model string, req domain.GenerateRequest) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("op=gemini.Generate: %w", err)
	}
	resp, err := b.models.GenerateContent(ctx, model, genai.Text(req.Prompt), contentConfig(req))
	if err != nil {
		return "", fmt.Errorf("op=gemini.Generate: model=%s: %w", model, classify(err))
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("op=gemini.Generate: model=%s: %w", model, err)
	}
	return text, nil
}

// Stream yields text deltas for model as they arrive.
func (b *Backend) Stream(ctx context.Context, model string, req domain.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := b.limiter.Wait(ctx); err != nil {
			yield("", fmt.Errorf("op=gemini.Stream: %w", err))
			return
		}
		for resp, err := range b.models.GenerateContentStream(ctx, model, genai.Text(req.Prompt), contentConfig(req)) {
			if err != nil {
				yield("", fmt.Errorf("op=gemini.Stream: model=%s: %w", model, classify(err)))
				return
			}
			text, err := responseText(resp)
			if err != nil {
				yield("", fmt.Errorf("op=gemini.Stream: model=%s: %w", model, err))
				return
			}
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func contentConfig(req domain.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toSchema(req.Schema)
	}
	return cfg
}

func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             schemaType(s.Type),
		Description:      s.Description,
		Required:         s.Required,
		PropertyOrdering: s.Order,
		Items:            toSchema(s.Items),
	}
	if s.MaxItems > 0 {
		n := int64(s.MaxItems)
		out.MaxItems = &n
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toSchema(v)
		}
	}
	return out
}

func schemaType(t domain.SchemaType) genai.Type {
	switch t {
	case domain.SchemaObject:
		return genai.TypeObject
	case domain.SchemaArray:
		return genai.TypeArray
	case domain.SchemaInteger:
		return genai.TypeInteger
	case domain.SchemaNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

// responseText joins the non-thought text parts of the first candidate.
// Safety blocks surface as domain.ErrContentRejected.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", nil
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" && pf.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", domain.ErrContentRejected, pf.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", nil
	}
	c := resp.Candidates[0]
	switch c.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return "", fmt.Errorf("%w: finish reason %s", domain.ErrContentRejected, c.FinishReason)
	}
	if c.Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// classify maps quota and overload answers to domain.ErrProviderUnavailable.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusServiceUnavailable,
			apiErr.Status == "RESOURCE_EXHAUSTED",
			apiErr.Status == "UNAVAILABLE":
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "overloaded", "resource exhausted", "rate limit"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
	}
	return err
}
