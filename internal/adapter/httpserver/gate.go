package httpserver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/service/ratelimiter"
)

// Admission scopes.
const (
	scopeAnalysis  = "analysis"
	scopeInterview = "interview"
)

// admit runs the per-user fixed window for scope, writing the rate limit headers.
// On denial it writes a 429 and returns false.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, scope string) bool {
	if s.Admission == nil {
		return true
	}
	limit, window := s.Cfg.AnalysisLimit, s.Cfg.AnalysisWindow
	if scope == scopeInterview {
		limit, window = s.Cfg.InterviewLimit, s.Cfg.InterviewWindow
	}
	dec, err := s.Admission.Check(r.Context(), ratelimiter.Key(scope, userIDFrom(r)), limit, window)
	if err != nil {
		writeError(w, r, err, nil)
		return false
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
	if !dec.ResetTime.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetTime.Unix(), 10))
	}
	if dec.Allowed {
		return true
	}
	wait := dec.RetryAfter(s.now())
	h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	writeError(w, r, fmt.Errorf("%w: %s limit reached, retry in %s", domain.ErrRateLimited, scope, wait.Round(time.Second)),
		map[string]any{"retryAfterSeconds": int(math.Ceil(wait.Seconds())), "resetTime": dec.ResetTime.UTC()})
	return false
}

// verifyHuman checks the anti-bot token when a verifier is configured.
func (s *Server) verifyHuman(w http.ResponseWriter, r *http.Request, token string) bool {
	if s.Bots == nil {
		return true
	}
	ok, err := s.Bots.Verify(r.Context(), token, clientIP(r))
	if err != nil {
		// The verifier being unreachable is not the caller's fault.
		writeError(w, r, fmt.Errorf("bot check: %w", errors.Join(err, domain.ErrProviderUnavailable)), nil)
		return false
	}
	if !ok {
		writeError(w, r, fmt.Errorf("%w: bot verification failed", domain.ErrInvalidArgument), map[string]string{"captchaToken": "invalid"})
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
