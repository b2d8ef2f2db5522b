package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotest/exam-platform/internal/catalog"
	"github.com/dotest/exam-platform/internal/config"
	"github.com/dotest/exam-platform/internal/docstore"
	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/leaderboard"
	"github.com/dotest/exam-platform/internal/results"
	"github.com/dotest/exam-platform/internal/session"
)

type fixture struct {
	handler  http.Handler
	verifier *identity.Verifier
	store    *docstore.MemoryStore
	sessions *session.Manager
}

func newServerFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := docstore.NewMemoryStore()

	catalogSvc := catalog.NewService(store, logger, catalog.ServiceOptions{})
	leaderboardSvc := leaderboard.NewService(store, logger, leaderboard.ServiceOptions{})
	historySvc := history.NewService(store, logger, history.ServiceOptions{})

	recorder := results.NewRecorder(historySvc, leaderboardSvc, nil, logger)
	sessions := session.NewManager(session.RealClock{}, WrapRecorder(recorder),
		session.Options{Duration: 30 * time.Minute}, logger)
	t.Cleanup(sessions.Shutdown)

	handlers := NewHandlers(sessions, catalogSvc, leaderboardSvc, historySvc, nil, logger)
	verifier := identity.NewVerifier(identity.VerifierConfig{Secret: []byte("test-secret")})
	srv := NewHTTPServer(&config.App{}, handlers, verifier, logger)

	seedCatalogTest(t, store)
	return &fixture{handler: srv.Handler, verifier: verifier, store: store, sessions: sessions}
}

func seedCatalogTest(t *testing.T, store *docstore.MemoryStore) {
	t.Helper()
	err := store.SetDocument(context.Background(), "tests", "Python/test1", map[string]interface{}{
		"subject": "Python",
		"testId":  "test1",
		"questions": []interface{}{
			map[string]interface{}{
				"id":       "q1",
				"question": "2 + 2?",
				"options":  map[string]interface{}{"A": "3", "B": "4"},
				"answer":   "B",
			},
			map[string]interface{}{
				"id":       "q2",
				"question": "3 * 3?",
				"options":  map[string]interface{}{"A": "9", "B": "6"},
				"answer":   "A",
			},
		},
	})
	require.NoError(t, err)
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	token, err := f.verifier.Issue(identity.User{ID: "u1", DisplayName: "Asha"}, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestCatalogEndpoints(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/subjects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subjects struct {
		Subjects []string `json:"subjects"`
	}
	decode(t, rec, &subjects)
	assert.Equal(t, []string{"Python"}, subjects.Subjects)

	rec = f.do(t, http.MethodGet, "/v1/subjects/Python/tests", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tests struct {
		Tests []catalog.TestInfo `json:"tests"`
	}
	decode(t, rec, &tests)
	require.Len(t, tests.Tests, 1)
	assert.Equal(t, 2, tests.Tests[0].QuestionCount)
}

func TestFullSessionFlow(t *testing.T) {
	f := newServerFixture(t)
	token := f.token(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", token,
		map[string]string{"subject": "Python", "testId": "test1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var snap session.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, session.StateActive, snap.State)
	assert.Equal(t, 2, snap.QuestionCount)

	rec = f.do(t, http.MethodGet, "/v1/sessions/current/question", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctKey")

	rec = f.do(t, http.MethodPost, "/v1/sessions/current/answer", token,
		map[string]string{"option": "B"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/sessions/current/next", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/sessions/current/answer", token,
		map[string]string{"option": "B"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Next on the last question submits.
	rec = f.do(t, http.MethodPost, "/v1/sessions/current/next", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var finished session.Snapshot
	decode(t, rec, &finished)
	assert.Equal(t, session.StateFinished, finished.State)
	require.NotNil(t, finished.Summary)
	assert.Equal(t, 1, finished.Summary.CorrectCount)
	assert.InDelta(t, 50.0, finished.Summary.Percentage, 1e-9)

	rec = f.do(t, http.MethodGet, "/v1/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Results []history.Result `json:"results"`
	}
	decode(t, rec, &hist)
	require.Len(t, hist.Results, 1)
	assert.InDelta(t, 50.0, hist.Results[0].ScorePercent, 1e-9)

	rec = f.do(t, http.MethodGet, "/v1/leaderboard?subject=Python&testId=test1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Entries []leaderboard.Entry `json:"entries"`
	}
	decode(t, rec, &board)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "u1", board.Entries[0].UserID)

	rec = f.do(t, http.MethodGet, "/v1/leaderboard/live?subject=Python&testId=test1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &board)
	require.Len(t, board.Entries, 1)

	rec = f.do(t, http.MethodGet, "/v1/results/last", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/leaderboard/rank?subject=Python&testId=test1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rank struct {
		Rank int `json:"rank"`
	}
	decode(t, rec, &rank)
	assert.Equal(t, 1, rank.Rank)
}

func TestFinishResponseCarriesGrade(t *testing.T) {
	f := newServerFixture(t)
	token := f.token(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", token,
		map[string]string{"subject": "Python", "testId": "test1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/sessions/current/finish", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Grade   string `json:"grade"`
		Message string `json:"message"`
	}
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Grade)
	assert.NotEmpty(t, resp.Message)
}

func TestStartUnknownTestIs404(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/sessions", "",
		map[string]string{"subject": "Python", "testId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandsWithoutSessionAre404(t *testing.T) {
	f := newServerFixture(t)
	token := f.token(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/sessions/current"},
		{http.MethodPost, "/v1/sessions/current/next"},
		{http.MethodPost, "/v1/sessions/current/finish"},
	} {
		rec := f.do(t, tc.method, tc.path, token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		assert.Contains(t, rec.Body.String(), "no_active_session")
	}
}

func TestHistoryRequiresAuth(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBoardRejectsUnknownWindow(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/leaderboard?subject=Python&testId=test1&window=daily", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryExportIsCSV(t *testing.T) {
	f := newServerFixture(t)
	token := f.token(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", token,
		map[string]string{"subject": "Python", "testId": "test1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/sessions/current/finish", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/history/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "Date,Subject,Test Name"))
}

func TestDeleteHistoryEnforcesOwnership(t *testing.T) {
	f := newServerFixture(t)
	token := f.token(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", token,
		map[string]string{"subject": "Python", "testId": "test1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/sessions/current/finish", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/history", token, nil)
	var hist struct {
		Results []history.Result `json:"results"`
	}
	decode(t, rec, &hist)
	require.Len(t, hist.Results, 1)
	id := hist.Results[0].ID

	other, err := f.verifier.Issue(identity.User{ID: "u2", DisplayName: "Ravi"}, time.Hour)
	require.NoError(t, err)
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v1/history/%s", id), other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v1/history/%s", id), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
