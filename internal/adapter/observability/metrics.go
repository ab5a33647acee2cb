package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of generation attempts by model, mode and outcome",
		},
		[]string{"model", "mode", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Generation attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"model", "mode"},
	)

	AnalysisCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_total",
			Help: "Analysis cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)
	AdmissionDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_denied_total",
			Help: "Requests rejected by the per-user admission controller",
		},
		[]string{"scope"},
	)
	XPAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "XP granted by reason",
		},
		[]string{"reason"},
	)
	LevelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Number of level-ups",
		},
	)
	InterviewTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_turns_total",
			Help: "Interview turns by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	InterviewsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interviews_completed_total",
			Help: "Number of interviews evaluated",
		},
	)
	InterviewScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_score",
			Help:    "Distribution of interview evaluation scores [0,100]",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	AnalysisScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_score",
			Help:    "Distribution of fresh résumé analysis scores [0,100]",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	LevelsReconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "levels_reconciled_total",
			Help: "Progress rows whose stored level was repaired",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers the collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AnalysisCacheTotal,
			AdmissionDeniedTotal,
			XPAwardedTotal,
			LevelUpsTotal,
			InterviewTurnsTotal,
			InterviewsCompletedTotal,
			InterviewScoreHistogram,
			AnalysisScoreHistogram,
			LevelsReconciledTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAIAttempt records one model attempt.
func ObserveAIAttempt(model, mode, outcome string, dur time.Duration) {
	AIRequestsTotal.WithLabelValues(model, mode, outcome).Inc()
	AIRequestDuration.WithLabelValues(model, mode).Observe(dur.Seconds())
}

// ObserveCache records an analysis cache lookup.
func ObserveCache(hit bool) {
	if hit {
		AnalysisCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	AnalysisCacheTotal.WithLabelValues("miss").Inc()
}

// AdmissionDenied counts a rejected request for scope.
func AdmissionDenied(scope string) {
	AdmissionDeniedTotal.WithLabelValues(scope).Inc()
}

// ObserveXP records an award and a possible level-up.
func ObserveXP(reason string, gained int, leveledUp bool) {
	XPAwardedTotal.WithLabelValues(reason).Add(float64(gained))
	if leveledUp {
		LevelUpsTotal.Inc()
	}
}

// ObserveTurn records an interview turn outcome.
func ObserveTurn(kind, outcome string) {
	InterviewTurnsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveInterviewCompleted records a finished evaluation.
func ObserveInterviewCompleted(score int) {
	InterviewsCompletedTotal.Inc()
	if score >= 0 && score <= 100 {
		InterviewScoreHistogram.Observe(float64(score))
	}
}

// ObserveAnalysisScore records the overall score of a fresh analysis.
func ObserveAnalysisScore(score int) {
	if score >= 0 && score <= 100 {
		AnalysisScoreHistogram.Observe(float64(score))
	}
}
