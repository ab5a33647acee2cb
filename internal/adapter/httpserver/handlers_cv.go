package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/pkg/textx"
)

type analyzeRequest struct {
	RawText      string `json:"rawText" validate:"required"`
	Title        string `json:"title" validate:"max=200"`
	DocumentID   string `json:"documentId" validate:"required,resid"`
	CaptchaToken string `json:"captchaToken"`
}

type analysisBody struct {
	Summary    string           `json:"summary"`
	Keywords   []string         `json:"keywords"`
	Suggestion string           `json:"suggestion"`
	Score      int              `json:"score"`
	Details    domain.SubScores `json:"details"`
}

type analyzeResponse struct {
	Success   bool         `json:"success"`
	ID        string       `json:"id"`
	Title     string       `json:"title,omitempty"`
	Analysis  analysisBody `json:"analysis"`
	Cached    bool         `json:"cached"`
	XPGained  int          `json:"xpGained"`
	LevelUp   bool         `json:"levelUp"`
	NewLevel  int          `json:"newLevel"`
	LevelName string       `json:"levelName"`
}

func toAnalysisBody(a domain.Analysis) analysisBody {
	kw := a.Keywords
	if kw == nil {
		kw = []string{}
	}
	return analysisBody{Summary: a.Summary, Keywords: kw, Suggestion: a.Suggestion, Score: a.Score, Details: a.Details}
}

// isText reports whether the payload sniffs as text rather than a binary document pasted as a string.
func isText(s string) bool {
	for mt := mimetype.Detect([]byte(s)); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

// AnalyzeCVHandler analyses résumé text, serving identical text from the analysis cache.
func (s *Server) AnalyzeCVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if details, err := decodeJSON(w, r, s.maxBody(), &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if !isText(req.RawText) {
			writeError(w, r, fmt.Errorf("%w: rawText must be plain text", domain.ErrInvalidArgument), map[string]string{"rawText": "not_text"})
			return
		}
		text := textx.SanitizeText(req.RawText)
		if text == "" {
			writeError(w, r, fmt.Errorf("%w: rawText is empty", domain.ErrInvalidArgument), map[string]string{"rawText": "required"})
			return
		}
		if !s.verifyHuman(w, r, req.CaptchaToken) || !s.admit(w, r, scopeAnalysis) {
			return
		}
		res, err := s.Analysis.GetOrCreate(r.Context(), userIDFrom(r), req.DocumentID, text, textx.SanitizeText(req.Title))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := analyzeResponse{
			Success:   true,
			ID:        res.Record.ID,
			Title:     res.Record.Title,
			Analysis:  toAnalysisBody(res.Record.Analysis),
			Cached:    res.Cached,
			NewLevel:  res.Progress.Level,
			LevelName: res.Progress.LevelName,
		}
		if res.XP != nil {
			out.XPGained = res.XP.Gained
			out.LevelUp = res.XP.LeveledUp
			out.NewLevel = res.XP.NewLevel
			out.LevelName = res.XP.NewLevelName
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// AnalysisHistoryHandler lists a document's analyses, newest first.
func (s *Server) AnalysisHistoryHandler() http.HandlerFunc {
	type item struct {
		ID        string       `json:"id"`
		Title     string       `json:"title,omitempty"`
		Analysis  analysisBody `json:"analysis"`
		CreatedAt string       `json:"createdAt"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "id")
		if !validID(docID) {
			writeError(w, r, fmt.Errorf("%w: invalid document id", domain.ErrInvalidArgument), nil)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, r, fmt.Errorf("%w: limit must be between 1 and 100", domain.ErrInvalidArgument), map[string]string{"limit": "range"})
				return
			}
			limit = n
		}
		recs, err := s.Analysis.History(r.Context(), userIDFrom(r), docID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		items := make([]item, 0, len(recs))
		for _, rec := range recs {
			items = append(items, item{ID: rec.ID, Title: rec.Title, Analysis: toAnalysisBody(rec.Analysis), CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")})
		}
		writeJSON(w, http.StatusOK, map[string]any{"documentId": docID, "items": items})
	}
}

// ProgressHandler returns the caller's XP and level.
func (s *Server) ProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Progress.Get(r.Context(), userIDFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		info := domain.LevelFromXP(p.XP)
		writeJSON(w, http.StatusOK, map[string]any{
			"xp":              p.XP,
			"level":           p.Level,
			"levelName":       p.LevelName,
			"xpIntoLevel":     info.XPIntoLevel,
			"xpForNextLevel":  info.XPForNextLevel,
			"progressPercent": info.ProgressPercent,
		})
	}
}
