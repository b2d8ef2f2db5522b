package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/config"
	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/session"
)

// NewHTTPServer wires all routes for the API service. The identity
// middleware attaches the bearer user when one is present; handlers
// that need one enforce it themselves.
func NewHTTPServer(cfg *config.App, handlers *Handlers, verifier *identity.Verifier, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/subjects", handlers.Subjects)
	mux.HandleFunc("GET /v1/subjects/{subject}/tests", handlers.Tests)

	mux.HandleFunc("POST /v1/sessions", handlers.StartSession)
	mux.HandleFunc("POST /v1/sessions/retry", handlers.RetrySession)
	mux.HandleFunc("GET /v1/sessions/current", handlers.SessionSnapshot)
	mux.HandleFunc("GET /v1/sessions/current/question", handlers.CurrentQuestion)
	mux.HandleFunc("POST /v1/sessions/current/answer", handlers.SelectAnswer)
	mux.HandleFunc("POST /v1/sessions/current/next", handlers.Next)
	mux.HandleFunc("POST /v1/sessions/current/previous", handlers.Previous)
	mux.HandleFunc("POST /v1/sessions/current/finish", handlers.Finish)
	mux.HandleFunc("DELETE /v1/sessions/current", handlers.ResetSession)
	mux.HandleFunc("POST /v1/retry", handlers.MarkRetry)

	mux.HandleFunc("GET /v1/leaderboard", handlers.Board)
	mux.HandleFunc("GET /v1/leaderboard/live", handlers.LiveBoard)
	mux.HandleFunc("GET /v1/leaderboard/stats", handlers.BoardStats)
	mux.HandleFunc("GET /v1/leaderboard/rank", handlers.MyRank)
	mux.HandleFunc("GET /v1/leaderboard/export", handlers.ExportBoard)

	mux.HandleFunc("GET /v1/history", handlers.History)
	mux.HandleFunc("GET /v1/history/stats", handlers.HistoryStats)
	mux.HandleFunc("GET /v1/history/export", handlers.ExportHistory)
	mux.HandleFunc("GET /v1/history/{id}", handlers.HistoryResult)
	mux.HandleFunc("DELETE /v1/history/{id}", handlers.DeleteHistoryResult)
	mux.HandleFunc("GET /v1/results/last", handlers.LastResult)

	mux.HandleFunc("GET /ws/sessions", handlers.SessionEvents)

	var handler http.Handler = mux
	if verifier != nil {
		handler = verifier.Middleware(handler)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}
}

// CountingRecorder wraps the persistence recorder so every finished
// session, including timer-driven timeouts, lands in the metrics.
type CountingRecorder struct {
	inner session.Recorder
}

// WrapRecorder decorates inner with finish counting.
func WrapRecorder(inner session.Recorder) *CountingRecorder {
	return &CountingRecorder{inner: inner}
}

func (c *CountingRecorder) Record(ctx context.Context, outcome session.Outcome) error {
	sessionsFinished.WithLabelValues(string(outcome.Reason)).Inc()
	if c.inner == nil {
		return nil
	}
	return c.inner.Record(ctx, outcome)
}
