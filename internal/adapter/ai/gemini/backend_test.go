package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

var _ ai.Backend = (*Backend)(nil)

type fakeModels struct {
	resp    *genai.GenerateContentResponse
	err     error
	stream  []*genai.GenerateContentResponse
	midErr  error
	lastCfg *genai.GenerateContentConfig
	lastMod string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastMod, f.lastCfg = model, cfg
	return f.resp, f.err
}

func (f *fakeModels) GenerateContentStream(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.lastMod, f.lastCfg = model, cfg
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		for _, r := range f.stream {
			if !yield(r, nil) {
				return
			}
		}
		if f.midErr != nil {
			yield(nil, f.midErr)
		}
	}
}

func textResp(parts ...string) *genai.GenerateContentResponse {
	ps := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		ps = append(ps, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: ps}}}}
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerate_SchemaRequestsJSON(t *testing.T) {
	fm := &fakeModels{resp: textResp(`{"score":`, `90}`)}
	b := newBackend(fm, 0)
	out, err := b.Generate(context.Background(), "gemini-x", domain.GenerateRequest{
		Prompt:            "analyse",
		SystemInstruction: "be strict",
		Schema:            domain.AnalysisSchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":90}`, out)
	assert.Equal(t, "gemini-x", fm.lastMod)
	require.NotNil(t, fm.lastCfg)
	assert.Equal(t, "application/json", fm.lastCfg.ResponseMIMEType)
	require.NotNil(t, fm.lastCfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, fm.lastCfg.ResponseSchema.Type)
	assert.Equal(t, genai.TypeArray, fm.lastCfg.ResponseSchema.Properties["keywords"].Type)
	require.NotNil(t, fm.lastCfg.SystemInstruction)
	assert.Equal(t, "be strict", fm.lastCfg.SystemInstruction.Parts[0].Text)
}

func TestGenerate_PlainTextHasNoSchema(t *testing.T) {
	fm := &fakeModels{resp: textResp("hello")}
	b := newBackend(fm, 0)
	_, err := b.Generate(context.Background(), "m", domain.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Empty(t, fm.lastCfg.ResponseMIMEType)
	assert.Nil(t, fm.lastCfg.ResponseSchema)
	assert.Nil(t, fm.lastCfg.SystemInstruction)
}

func TestToSchema_MaxItems(t *testing.T) {
	s := toSchema(domain.EvaluationSchema())
	require.NotNil(t, s.Properties["strengths"].MaxItems)
	assert.Equal(t, int64(5), *s.Properties["strengths"].MaxItems)
	assert.Nil(t, s.Properties["roadmap"].MaxItems)
	assert.Equal(t, genai.TypeInteger, s.Properties["score"].Type)
}

func TestGenerate_ClassifiesQuota(t *testing.T) {
	fm := &fakeModels{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "quota exhausted"}}
	b := newBackend(fm, 0)
	_, err := b.Generate(context.Background(), "m", domain.GenerateRequest{Prompt: "p"})
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)

	var apiErr genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"503", genai.APIError{Code: http.StatusServiceUnavailable}, true},
		{"status unavailable", genai.APIError{Code: 500, Status: "UNAVAILABLE"}, true},
		{"bad request", genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, false},
		{"overloaded text", errors.New("model is overloaded"), true},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unavailable, errors.Is(classify(tt.err), domain.ErrProviderUnavailable))
		})
	}
}

func TestResponseText_SafetyBlocks(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	})
	require.ErrorIs(t, err, domain.ErrContentRejected)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	})
	require.ErrorIs(t, err, domain.ErrContentRejected)
}

func TestResponseText_SkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
		{Text: "thinking...", Thought: true},
		{Text: "answer"},
	}}}}}
	out, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	out, err = responseText(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStream_YieldsDeltas(t *testing.T) {
	fm := &fakeModels{stream: []*genai.GenerateContentResponse{textResp("Hello"), textResp(""), textResp(" there")}}
	b := newBackend(fm, 0)
	var sb strings.Builder
	for c, err := range b.Stream(context.Background(), "m", domain.GenerateRequest{Prompt: "p"}) {
		require.NoError(t, err)
		sb.WriteString(c)
	}
	assert.Equal(t, "Hello there", sb.String())
}

func TestStream_ErrorIsClassified(t *testing.T) {
	fm := &fakeModels{stream: []*genai.GenerateContentResponse{textResp("Hi")}, midErr: genai.APIError{Code: http.StatusServiceUnavailable}}
	b := newBackend(fm, 0)
	var gotErr error
	for _, err := range b.Stream(context.Background(), "m", domain.GenerateRequest{Prompt: "p"}) {
		if err != nil {
			gotErr = err
		}
	}
	require.ErrorIs(t, gotErr, domain.ErrProviderUnavailable)
}

func TestPacing(t *testing.T) {
	fm := &fakeModels{resp: textResp("x")}
	b := newBackend(fm, 30*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := b.Generate(context.Background(), "m", domain.GenerateRequest{Prompt: "p"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}
