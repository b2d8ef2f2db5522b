package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/cache"
	"github.com/dotest/exam-platform/internal/catalog"
	"github.com/dotest/exam-platform/internal/docstore"
	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/leaderboard"
	"github.com/dotest/exam-platform/internal/question"
	"github.com/dotest/exam-platform/internal/scoring"
	"github.com/dotest/exam-platform/internal/session"
	httperrors "github.com/dotest/exam-platform/pkg/http/errors"
)

// Handlers provides the REST endpoints for the exam platform.
type Handlers struct {
	sessions    *session.Manager
	catalog     *catalog.Service
	leaderboard *leaderboard.Service
	history     *history.Service
	cache       *cache.Store
	now         func() time.Time
	logger      zerolog.Logger
}

// NewHandlers creates the REST handler set. cacheStore may be nil.
func NewHandlers(
	sessions *session.Manager,
	catalogSvc *catalog.Service,
	leaderboardSvc *leaderboard.Service,
	historySvc *history.Service,
	cacheStore *cache.Store,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		sessions:    sessions,
		catalog:     catalogSvc,
		leaderboard: leaderboardSvc,
		history:     historySvc,
		cache:       cacheStore,
		now:         time.Now,
		logger:      logger.With().Str("component", "http").Logger(),
	}
}

// questionView is a question as served to clients: no correct key.
type questionView struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Options []question.Option `json:"options"`
	Marks   int               `json:"marks"`
}

func toQuestionView(q question.Question) questionView {
	return questionView{ID: q.ID, Text: q.Text, Options: q.Options, Marks: q.Marks}
}

// Subjects handles GET /v1/subjects
func (h *Handlers) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.catalog.Subjects(r.Context())
	if err != nil {
		h.respondStoreError(w, err, "failed to list subjects")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"subjects": subjects})
}

// Tests handles GET /v1/subjects/{subject}/tests
func (h *Handlers) Tests(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	tests, err := h.catalog.Tests(r.Context(), subject)
	if err != nil {
		h.respondStoreError(w, err, "failed to list tests")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"tests": tests})
}

type startSessionRequest struct {
	Subject string `json:"subject"`
	TestID  string `json:"testId"`
}

// StartSession handles POST /v1/sessions
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	h.startSession(w, r, req)
}

// RetrySession handles POST /v1/sessions/retry: consumes the pending
// retake marker and starts a fresh session for that test.
func (h *Handlers) RetrySession(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if h.cache == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "No retake pending")
		return
	}

	retry, err := h.cache.TakeRetryRequest(r.Context(), user.ID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("retry request lookup failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeBackendUnavailable, "Cache unavailable")
		return
	}
	if retry == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "No retake pending")
		return
	}
	h.startSession(w, r, startSessionRequest{Subject: retry.Subject, TestID: retry.TestID})
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, req startSessionRequest) {
	if req.Subject == "" || req.TestID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "subject and testId are required")
		return
	}

	questions, err := h.catalog.Questions(r.Context(), req.Subject, req.TestID)
	if err != nil {
		h.respondStoreError(w, err, "failed to load test")
		return
	}
	if questions == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Test not found")
		return
	}

	sess, err := h.sessions.Start(r.Context(), session.StartRequest{
		User:      identity.FromContext(r.Context()),
		Subject:   req.Subject,
		TestID:    req.TestID,
		Questions: questions,
	})
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	sessionsStarted.Inc()
	h.respondJSON(w, http.StatusCreated, sess.Snapshot())
}

// SessionSnapshot handles GET /v1/sessions/current
func (h *Handlers) SessionSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, sess.Snapshot())
}

// CurrentQuestion handles GET /v1/sessions/current/question
func (h *Handlers) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	q, index := sess.CurrentQuestion()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"index":    index,
		"question": toQuestionView(q),
	})
}

// SelectAnswer handles POST /v1/sessions/current/answer
func (h *Handlers) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Option string `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "option is required")
		return
	}

	if err := sess.SelectAnswer(req.Option); err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sess.Snapshot())
}

// Next handles POST /v1/sessions/current/next
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := sess.Next(r.Context()); err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sess.Snapshot())
}

// Previous handles POST /v1/sessions/current/previous
func (h *Handlers) Previous(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := sess.Previous(); err != nil {
		h.respondSessionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sess.Snapshot())
}

// Finish handles POST /v1/sessions/current/finish
func (h *Handlers) Finish(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.activeSession(w, r)
	if !ok {
		return
	}
	if err := sess.Finish(r.Context(), session.ReasonUserSubmitted); err != nil {
		h.respondSessionError(w, err)
		return
	}

	snap := sess.Snapshot()
	band := scoring.Grade(snap.Summary.Percentage)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session": snap,
		"grade":   band,
		"message": scoring.GradeMessage(band),
	})
}

// ResetSession handles DELETE /v1/sessions/current
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Reset(identity.FromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// MarkRetry handles POST /v1/retry: records which test the user wants
// to retake so the next session start can pick it up.
func (h *Handlers) MarkRetry(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if h.cache == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeBackendUnavailable, "Cache unavailable")
		return
	}

	var req cache.RetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.TestID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "subject and testId are required")
		return
	}

	if err := h.cache.SetRetryRequest(r.Context(), user.ID, req); err != nil {
		h.logger.Warn().Err(err).Msg("failed to store retry request")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeBackendUnavailable, "Cache unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Board handles GET /v1/leaderboard
func (h *Handlers) Board(w http.ResponseWriter, r *http.Request) {
	subject, testID, window, ok := h.boardParams(w, r)
	if !ok {
		return
	}

	entries, err := h.boardEntries(r.Context(), subject, testID, window)
	if err != nil {
		h.respondStoreError(w, err, "failed to load leaderboard")
		return
	}

	if limit := queryInt(r, "limit"); limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subject": subject,
		"testId":  testID,
		"window":  window,
		"entries": entries,
	})
}

// LiveBoard handles GET /v1/leaderboard/live: the board derived from
// raw attempts by grouping per user, bypassing the reconciled entries.
func (h *Handlers) LiveBoard(w http.ResponseWriter, r *http.Request) {
	subject, testID, _, ok := h.boardParams(w, r)
	if !ok {
		return
	}

	results, err := h.history.ForTest(r.Context(), subject, testID)
	if err != nil {
		h.respondStoreError(w, err, "failed to load attempts")
		return
	}

	attempts := make([]leaderboard.Entry, 0, len(results))
	for _, res := range results {
		attempts = append(attempts, leaderboard.Entry{
			UserID:           res.UserID,
			DisplayName:      res.UserName,
			ScorePercent:     res.ScorePercent,
			TimeSpentMinutes: res.TimeSpentMinutes,
			RecordedAt:       res.RecordedAt,
			Subject:          res.Subject,
			TestID:           res.TestID,
		})
	}

	entries := leaderboard.BestPerUser(attempts)
	if limit := queryInt(r, "limit"); limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subject": subject,
		"testId":  testID,
		"entries": entries,
	})
}

// BoardStats handles GET /v1/leaderboard/stats
func (h *Handlers) BoardStats(w http.ResponseWriter, r *http.Request) {
	subject, testID, window, ok := h.boardParams(w, r)
	if !ok {
		return
	}

	entries, err := h.boardEntries(r.Context(), subject, testID, window)
	if err != nil {
		h.respondStoreError(w, err, "failed to load leaderboard")
		return
	}
	h.respondJSON(w, http.StatusOK, leaderboard.ComputeStats(entries))
}

// MyRank handles GET /v1/leaderboard/rank
func (h *Handlers) MyRank(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	subject, testID, window, paramsOK := h.boardParams(w, r)
	if !paramsOK {
		return
	}

	rank, err := h.leaderboard.UserRank(r.Context(), subject, testID, window, user.ID)
	if err != nil {
		h.respondStoreError(w, err, "failed to compute rank")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"rank": rank})
}

// ExportBoard handles GET /v1/leaderboard/export
func (h *Handlers) ExportBoard(w http.ResponseWriter, r *http.Request) {
	subject, testID, window, ok := h.boardParams(w, r)
	if !ok {
		return
	}

	entries, err := h.boardEntries(r.Context(), subject, testID, window)
	if err != nil {
		h.respondStoreError(w, err, "failed to load leaderboard")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_%s_leaderboard.csv", subject, testID))
	if err := leaderboard.WriteCSV(w, subject, testID, window, entries); err != nil {
		h.logger.Warn().Err(err).Msg("leaderboard export failed mid-stream")
		return
	}
	exportsServed.WithLabelValues("leaderboard").Inc()
}

// History handles GET /v1/history
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	results, err := h.history.List(r.Context(), user.ID, historyFilter(r), queryInt(r, "limit"))
	if err != nil {
		h.respondStoreError(w, err, "failed to load history")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// HistoryStats handles GET /v1/history/stats
func (h *Handlers) HistoryStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	results, err := h.history.List(r.Context(), user.ID, historyFilter(r), 0)
	if err != nil {
		h.respondStoreError(w, err, "failed to load history")
		return
	}
	h.respondJSON(w, http.StatusOK, history.ComputeStats(results, h.now()))
}

// ExportHistory handles GET /v1/history/export
func (h *Handlers) ExportHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	results, err := h.history.List(r.Context(), user.ID, historyFilter(r), 0)
	if err != nil {
		h.respondStoreError(w, err, "failed to load history")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=test_history.csv")
	if err := history.WriteCSV(w, results); err != nil {
		h.logger.Warn().Err(err).Msg("history export failed mid-stream")
		return
	}
	exportsServed.WithLabelValues("history").Inc()
}

// HistoryResult handles GET /v1/history/{id}
func (h *Handlers) HistoryResult(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondStoreError(w, err, "failed to load result")
		return
	}
	if result == nil || result.UserID != user.ID {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Result not found")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// DeleteHistoryResult handles DELETE /v1/history/{id}
func (h *Handlers) DeleteHistoryResult(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	result, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "failed to load result")
		return
	}
	if result == nil || result.UserID != user.ID {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Result not found")
		return
	}

	if err := h.history.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err, "failed to delete result")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LastResult handles GET /v1/results/last: cached copy first, history
// fallback on a miss.
func (h *Handlers) LastResult(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		cached, err := h.cache.LastResult(r.Context(), user.ID)
		if err != nil {
			h.logger.Warn().Err(err).Msg("last result cache lookup failed")
		} else if cached != nil {
			h.respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	results, err := h.history.List(r.Context(), user.ID, history.Filter{}, 1)
	if err != nil {
		h.respondStoreError(w, err, "failed to load last result")
		return
	}
	if len(results) == 0 {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "No results yet")
		return
	}
	h.respondJSON(w, http.StatusOK, results[0])
}

// boardEntries serves the reconciled board, caching full views.
func (h *Handlers) boardEntries(ctx context.Context, subject, testID, window string) ([]leaderboard.Entry, error) {
	if h.cache != nil {
		cached, err := h.cache.Board(ctx, subject, testID, window)
		if err != nil {
			h.logger.Warn().Err(err).Msg("board cache lookup failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	entries, err := h.leaderboard.Board(ctx, subject, testID, window, 0)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetBoard(ctx, subject, testID, window, entries); err != nil {
			h.logger.Warn().Err(err).Msg("board cache store failed")
		}
	}
	return entries, nil
}

func (h *Handlers) boardParams(w http.ResponseWriter, r *http.Request) (subject, testID, window string, ok bool) {
	subject = r.URL.Query().Get("subject")
	testID = r.URL.Query().Get("testId")
	if subject == "" || testID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "subject and testId are required")
		return "", "", "", false
	}

	window = r.URL.Query().Get("window")
	if window == "" {
		window = leaderboard.WindowAll
	}
	switch window {
	case leaderboard.WindowAll, leaderboard.WindowWeekly, leaderboard.WindowMonthly:
	default:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "window must be all, weekly or monthly")
		return "", "", "", false
	}
	return subject, testID, window, true
}

func (h *Handlers) activeSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Active(identity.FromContext(r.Context()))
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoActiveSession, "No active session")
		return nil, false
	}
	return sess, true
}

func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	user := identity.FromContext(r.Context())
	if user == nil || user.ID == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return nil, false
	}
	return user, true
}

func (h *Handlers) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "Test has no questions")
	case errors.Is(err, session.ErrInvalidOption):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "Option is not offered by this question")
	case errors.Is(err, session.ErrAlreadyAtFirst):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "Already at the first question")
	case errors.Is(err, session.ErrNoActiveSession):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoActiveSession, "No active session")
	case errors.Is(err, session.ErrNotActive):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeSessionNotActive, "Session is not active")
	default:
		h.logger.Error().Err(err).Msg("session command failed")
		httperrors.RespondInternalError(w, "Session command failed")
	}
}

func (h *Handlers) respondStoreError(w http.ResponseWriter, err error, message string) {
	h.logger.Error().Err(err).Msg(message)
	if errors.Is(err, docstore.ErrUnavailable) {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeBackendUnavailable, "Backend unavailable")
		return
	}
	httperrors.RespondInternalError(w, message)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("response encode failed")
	}
}

func historyFilter(r *http.Request) history.Filter {
	q := r.URL.Query()
	filter := history.Filter{
		Subject: q.Get("subject"),
		Search:  q.Get("search"),
	}
	if v := q.Get("minScore"); v != "" {
		if score, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinScore = score
		}
	}
	if v := q.Get("since"); v != "" {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = since
		}
	}
	return filter
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
