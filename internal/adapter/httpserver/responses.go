// Package httpserver contains the coach's HTTP handlers and middleware.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// providerRetryAfter is the wait suggested when every model failed.
const providerRetryAfter = 30

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a domain error to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrContentRejected):
		return http.StatusBadRequest, "CONTENT_REJECTED"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE"
	case errors.Is(err, domain.ErrParseFailure):
		return http.StatusInternalServerError, "PARSE_FAILURE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// userMessage is the short reason shown to callers. Internal details stay in the logs.
func userMessage(code string, err error) string {
	switch code {
	case "INTERNAL":
		return "internal error"
	case "PARSE_FAILURE":
		return "could not process AI response"
	case "PROVIDER_UNAVAILABLE":
		return "AI service is busy, try again shortly"
	case "CONTENT_REJECTED":
		return "content was rejected by the AI safety filter"
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status, code := errorStatus(err)
	if m, ok := details.(map[string]string); ok && len(m) == 0 {
		details = nil
	}
	if status == http.StatusServiceUnavailable && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(providerRetryAfter))
	}
	lg := LoggerFrom(r)
	if status >= 500 {
		lg.Error("request failed", "code", code, "error", err)
	} else {
		lg.Info("request rejected", "code", code, "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: userMessage(code, err), Details: details}})
}
