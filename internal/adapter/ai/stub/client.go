// Package stub is a deterministic offline generation backend for local development and tests.
package stub

import (
	"context"
	"encoding/json"
	"iter"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// Backend answers every model the same way, without network access.
type Backend struct {
	// Latency simulates provider think time per call.
	Latency time.Duration
}

// New returns a stub with a small simulated latency.
func New() *Backend { return &Backend{Latency: 20 * time.Millisecond} }

func (b *Backend) wait(ctx context.Context) error {
	if b.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate returns a canned JSON document shaped by the request schema, or a canned question.
func (b *Backend) Generate(ctx context.Context, _ string, req domain.GenerateRequest) (string, error) {
	if err := b.wait(ctx); err != nil {
		return "", err
	}
	if req.Schema == nil {
		return question(req.Prompt), nil
	}
	var payload any
	if _, ok := req.Schema.Properties["culturalFit"]; ok {
		payload = domain.InterviewEvaluation{
			Score:        72,
			Summary:      "Clear communicator with solid fundamentals.",
			Strengths:    []string{"Structured answers", "Ownership mindset"},
			Improvements: []string{"Quantify impact", "Deeper system design trade-offs"},
			CulturalFit:  "Collaborative and curious.",
			Roadmap:      []string{"Practice STAR stories", "Review distributed systems basics"},
		}
	} else {
		payload = domain.Analysis{
			Summary:    "Experienced engineer with a clear delivery track record.",
			Keywords:   []string{"go", "postgresql", "kubernetes"},
			Suggestion: "Lead each bullet with a measurable outcome.",
			Score:      78,
			Details:    domain.SubScores{Impact: 74, Brevity: 80, ATS: 82, Style: 76},
		}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Stream yields the canned answer word by word.
func (b *Backend) Stream(ctx context.Context, model string, req domain.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := b.Generate(ctx, model, req)
		if err != nil {
			yield("", err)
			return
		}
		for _, w := range strings.SplitAfter(text, " ") {
			if !yield(w, nil) {
				return
			}
		}
	}
}

func question(prompt string) string {
	if strings.Contains(prompt, "transcript") {
		return "Thanks. Can you walk me through a recent technical decision you made and its trade-offs?"
	}
	return "Welcome! To start, could you tell me about yourself and why this role interests you?"
}
