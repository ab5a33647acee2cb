package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai"
	obsmetrics "github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/config"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/observability"
)

// AnalysisService analyses résumé text, reusing earlier results for identical content.
type AnalysisService struct {
	Documents domain.DocumentRepository
	Analyses  domain.AnalysisRepository
	Gen       domain.Generator
	Progress  *ProgressService
	Prompts   config.Prompts
	XPReward  int
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(docs domain.DocumentRepository, analyses domain.AnalysisRepository, gen domain.Generator, progress *ProgressService, prompts config.Prompts, xpReward int) *AnalysisService {
	return &AnalysisService{Documents: docs, Analyses: analyses, Gen: gen, Progress: progress, Prompts: prompts, XPReward: xpReward}
}

// GetOrCreate returns an analysis for rawText attached to documentID.
// A previous valid analysis of identical text is copied to a new row with Cached=true and no XP.
// Otherwise the model is asked, the result stored, and XP granted.
func (s *AnalysisService) GetOrCreate(ctx domain.Context, userID, documentID, rawText, title string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: raw text required", domain.ErrInvalidArgument)
	}
	if documentID == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: document id required", domain.ErrInvalidArgument)
	}
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if title == "" {
		title = doc.Title
	}
	lg := observability.LoggerFromContext(ctx)
	hash := ContentHash(rawText)

	cached, err := s.Analyses.LatestValidByHash(ctx, hash)
	switch {
	case err == nil:
		obsmetrics.ObserveCache(true)
		rec, err := s.Analyses.Create(ctx, domain.AnalysisRecord{
			DocumentID:  documentID,
			Title:       title,
			Analysis:    cached.Analysis,
			ContentHash: hash,
		})
		if err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_or_create: %w", err)
		}
		lg.Info("analysis cache hit", "document_id", documentID, "source_id", cached.ID)
		progress, err := s.Progress.Get(ctx, userID)
		if err != nil {
			return domain.AnalysisResult{}, err
		}
		return domain.AnalysisResult{Record: rec, Cached: true, Progress: progress}, nil
	case errors.Is(err, domain.ErrNotFound):
		obsmetrics.ObserveCache(false)
	default:
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_or_create: %w", err)
	}

	analysis, err := s.analyse(ctx, rawText)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	rec, err := s.Analyses.Create(ctx, domain.AnalysisRecord{
		DocumentID:  documentID,
		Title:       title,
		Analysis:    analysis,
		ContentHash: hash,
	})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_or_create: %w", err)
	}
	obsmetrics.ObserveAnalysisScore(analysis.Score)

	xp, err := s.Progress.AddXP(ctx, userID, s.XPReward, ReasonCVAnalysis)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	lg.Info("analysis created", "document_id", documentID, "score", analysis.Score, "leveled_up", xp.LeveledUp)
	return domain.AnalysisResult{
		Record: rec,
		XP:     &xp,
		Progress: domain.UserProgress{
			UserID:    userID,
			XP:        xp.NewXP,
			Level:     xp.NewLevel,
			LevelName: xp.NewLevelName,
		},
	}, nil
}

// History lists a document's analyses, newest first.
func (s *AnalysisService) History(ctx domain.Context, userID, documentID string, limit int) ([]domain.AnalysisRecord, error) {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	recs, err := s.Analyses.ListByDocument(ctx, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=analysis.history: %w", err)
	}
	return recs, nil
}

func (s *AnalysisService) ownedDocument(ctx domain.Context, userID, documentID string) (domain.Document, error) {
	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrInvalidArgument, documentID)
		}
		return domain.Document{}, fmt.Errorf("op=analysis.document: %w", err)
	}
	if doc.UserID != userID {
		return domain.Document{}, fmt.Errorf("%w: document %s not owned by caller", domain.ErrInvalidArgument, documentID)
	}
	return doc, nil
}

func (s *AnalysisService) analyse(ctx domain.Context, rawText string) (domain.Analysis, error) {
	out, err := s.Gen.Generate(ctx, domain.GenerateRequest{
		Prompt:            config.Render(s.Prompts.Analysis.User, map[string]string{"text": rawText}),
		SystemInstruction: strings.TrimSpace(s.Prompts.Analysis.System),
		Schema:            domain.AnalysisSchema(),
	})
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("op=analysis.generate: %w", err)
	}
	var a domain.Analysis
	if err := ai.DecodeJSON(out, &a); err != nil {
		return domain.Analysis{}, fmt.Errorf("op=analysis.decode: %w", err)
	}
	return normalizeAnalysis(a), nil
}

func normalizeAnalysis(a domain.Analysis) domain.Analysis {
	a.Summary = strings.TrimSpace(a.Summary)
	a.Suggestion = strings.TrimSpace(a.Suggestion)
	kw := make([]string, 0, len(a.Keywords))
	for _, k := range a.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	a.Keywords = kw
	a.Score = clampScore(a.Score)
	a.Details.Impact = clampScore(a.Details.Impact)
	a.Details.Brevity = clampScore(a.Details.Brevity)
	a.Details.ATS = clampScore(a.Details.ATS)
	a.Details.Style = clampScore(a.Details.Style)
	return a
}

// ContentHash is the hex SHA-256 of the raw text, the analysis cache key.
func ContentHash(rawText string) string {
	h := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(h[:])
}

func clampScore(v int) int { return min(max(v, 0), 100) }
