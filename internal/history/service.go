package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/docstore"
)

const defaultCollection = "testResults"

// Filter narrows a history listing. Zero values mean "no constraint".
type Filter struct {
	Subject  string
	MinScore float64
	Since    time.Time
	Search   string
}

// ServiceOptions configures the history service.
type ServiceOptions struct {
	Collection string
}

// Service persists finished attempts and serves the dashboard's history,
// statistics and export views. There is exactly one implementation of
// history loading and statistics; every view goes through it.
type Service struct {
	store      docstore.Store
	logger     zerolog.Logger
	collection string
}

// NewService constructs a history service instance.
func NewService(store docstore.Store, logger zerolog.Logger, opts ServiceOptions) *Service {
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	return &Service{
		store:      store,
		logger:     logger.With().Str("component", "history").Logger(),
		collection: collection,
	}
}

// Save appends a finished attempt and returns its generated id.
func (s *Service) Save(ctx context.Context, result Result) (string, error) {
	id, err := s.store.AddDocument(ctx, s.collection, resultToDoc(result))
	if err != nil {
		return "", fmt.Errorf("save test result: %w", err)
	}
	return id, nil
}

// List returns the user's results newest-first, filtered and limited.
// limit <= 0 returns everything.
func (s *Service) List(ctx context.Context, userID string, filter Filter, limit int) ([]Result, error) {
	docs, err := s.store.Query(ctx, s.collection,
		[]docstore.Filter{{Field: "userId", Op: docstore.OpEqual, Value: userID}},
		&docstore.Order{Field: "timestamp", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		r := resultFromDoc(doc.ID, doc.Data)
		if !matches(r, filter) {
			continue
		}
		results = append(results, r)
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

// ForTest returns every stored attempt for one test across all users,
// newest first. The leaderboard's grouped view is derived from it.
func (s *Service) ForTest(ctx context.Context, subject, testID string) ([]Result, error) {
	docs, err := s.store.Query(ctx, s.collection,
		[]docstore.Filter{
			{Field: "subject", Op: docstore.OpEqual, Value: subject},
			{Field: "testId", Op: docstore.OpEqual, Value: testID},
		},
		&docstore.Order{Field: "timestamp", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("list test attempts: %w", err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, resultFromDoc(doc.ID, doc.Data))
	}
	return results, nil
}

// Get fetches a single stored result, or nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	data, err := s.store.GetDocument(ctx, s.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get test result: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	r := resultFromDoc(id, data)
	return &r, nil
}

// Delete removes one stored result.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, s.collection, id); err != nil {
		return fmt.Errorf("delete test result: %w", err)
	}
	return nil
}

func matches(r Result, f Filter) bool {
	if f.Subject != "" && r.Subject != f.Subject {
		return false
	}
	if r.ScorePercent < f.MinScore {
		return false
	}
	if !f.Since.IsZero() && r.RecordedAt.Before(f.Since) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Subject), needle) &&
			!strings.Contains(strings.ToLower(r.TestID), needle) {
			return false
		}
	}
	return true
}

// Stats aggregates a user's filtered history for the dashboard header.
type Stats struct {
	TotalTests       int     `json:"totalTests"`
	AverageScore     float64 `json:"averageScore"`
	BestScore        float64 `json:"bestScore"`
	TotalQuestions   int     `json:"totalQuestions"`
	TotalCorrect     int     `json:"totalCorrect"`
	TotalTimeMinutes int     `json:"totalTimeMinutes"`
	StreakDays       int     `json:"streakDays"`
}

// ComputeStats derives dashboard statistics from a result set.
func ComputeStats(results []Result, today time.Time) Stats {
	stats := Stats{TotalTests: len(results)}
	if len(results) == 0 {
		return stats
	}

	var scoreSum float64
	for _, r := range results {
		scoreSum += r.ScorePercent
		if r.ScorePercent > stats.BestScore {
			stats.BestScore = r.ScorePercent
		}
		stats.TotalQuestions += r.TotalQuestions
		stats.TotalCorrect += r.CorrectAnswers
		stats.TotalTimeMinutes += r.TimeSpentMinutes
	}
	stats.AverageScore = scoreSum / float64(len(results))
	stats.StreakDays = Streak(results, today)
	return stats
}

// Streak counts consecutive calendar days with at least one completed test,
// ending today or yesterday. A run that stopped the day before yesterday or
// earlier scores zero: it is broken, not paused.
func Streak(results []Result, today time.Time) int {
	if len(results) == 0 {
		return 0
	}

	days := make(map[string]bool, len(results))
	for _, r := range results {
		if !r.RecordedAt.IsZero() {
			days[dayKey(r.RecordedAt)] = true
		}
	}

	// Anchor on today, or yesterday when no test was taken yet today.
	anchor := today
	if !days[dayKey(anchor)] {
		anchor = anchor.AddDate(0, 0, -1)
		if !days[dayKey(anchor)] {
			return 0
		}
	}

	streak := 0
	for days[dayKey(anchor)] {
		streak++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return streak
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
