package leaderboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/docstore"
)

// Supported leaderboard windows.
const (
	WindowAll     = "all"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
)

const defaultCollection = "leaderboard"

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN       int
	Collection string
}

// Service keeps one best entry per (subject, test, user) in the document
// store and serves ranked boards from it.
type Service struct {
	store      docstore.Store
	logger     zerolog.Logger
	topN       int
	collection string
	now        func() time.Time
}

// NewService constructs a leaderboard service instance.
func NewService(store docstore.Store, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	return &Service{
		store:      store,
		logger:     logger.With().Str("component", "leaderboard").Logger(),
		topN:       topN,
		collection: collection,
		now:        time.Now,
	}
}

// Record reconciles a finished attempt against the user's stored entry and
// persists the winner. Read-then-conditionally-write, best-effort: two
// concurrent finishes for one user may race, which is accepted.
func (s *Service) Record(ctx context.Context, attempt Entry) error {
	id := entryID(attempt.Subject, attempt.TestID, attempt.UserID)

	data, err := s.store.GetDocument(ctx, s.collection, id)
	if err != nil {
		return fmt.Errorf("read existing entry: %w", err)
	}

	var existing *Entry
	if data != nil {
		e := entryFromDoc(data)
		existing = &e
	}

	winner := Reconcile(existing, attempt)
	if winner == nil {
		s.logger.Debug().
			Str("user_id", attempt.UserID).
			Str("test_id", attempt.TestID).
			Msg("existing entry is better, keeping it")
		return nil
	}

	if err := s.store.SetDocument(ctx, s.collection, id, entryToDoc(*winner)); err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	return nil
}

// Board returns the ranked leaderboard for one test, windowed and limited.
func (s *Service) Board(ctx context.Context, subject, testID, window string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	entries, err := s.fetch(ctx, subject, testID, window)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// UserRank returns the user's 1-based position on the full board, or 0.
func (s *Service) UserRank(ctx context.Context, subject, testID, window, userID string) (int, error) {
	entries, err := s.fetch(ctx, subject, testID, window)
	if err != nil {
		return 0, err
	}
	return Rank(entries, userID), nil
}

func (s *Service) fetch(ctx context.Context, subject, testID, window string) ([]Entry, error) {
	docs, err := s.store.Query(ctx, s.collection, []docstore.Filter{
		{Field: "subject", Op: docstore.OpEqual, Value: subject},
		{Field: "testId", Op: docstore.OpEqual, Value: testID},
	}, &docstore.Order{Field: "score", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	cutoff := s.windowCutoff(window)
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e := entryFromDoc(doc.Data)
		if !cutoff.IsZero() && e.RecordedAt.Before(cutoff) {
			continue
		}
		entries = append(entries, e)
	}

	// The backend only orders by score; apply the full comparator here.
	Sort(entries)
	return entries, nil
}

func (s *Service) windowCutoff(window string) time.Time {
	now := s.now()
	switch window {
	case WindowWeekly:
		return now.AddDate(0, 0, -7)
	case WindowMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// Stats summarizes a board for the header widgets.
type Stats struct {
	Participants      int            `json:"participants"`
	AverageScore      float64        `json:"averageScore"`
	MedianScore       float64        `json:"medianScore"`
	TopScore          float64        `json:"topScore"`
	AverageTime       float64        `json:"averageTimeMinutes"`
	ScoreDistribution map[string]int `json:"scoreDistribution"`
}

// ComputeStats derives aggregate stats from a sorted board.
func ComputeStats(entries []Entry) Stats {
	stats := Stats{ScoreDistribution: map[string]int{
		"90-100": 0, "80-89": 0, "70-79": 0, "60-69": 0, "50-59": 0, "0-49": 0,
	}}
	if len(entries) == 0 {
		return stats
	}

	stats.Participants = len(entries)
	scores := make([]float64, 0, len(entries))
	var scoreSum, timeSum float64
	for _, e := range entries {
		scores = append(scores, e.ScorePercent)
		scoreSum += e.ScorePercent
		timeSum += float64(e.TimeSpentMinutes)
		stats.TopScore = math.Max(stats.TopScore, e.ScorePercent)
		stats.ScoreDistribution[bucket(e.ScorePercent)]++
	}
	stats.AverageScore = scoreSum / float64(len(entries))
	stats.AverageTime = timeSum / float64(len(entries))

	// Entries arrive sorted by score descending; the middle element of the
	// ascending view is the same index from the other end.
	stats.MedianScore = scores[(len(scores)-1)/2]
	return stats
}

func bucket(score float64) string {
	switch {
	case score >= 90:
		return "90-100"
	case score >= 80:
		return "80-89"
	case score >= 70:
		return "70-79"
	case score >= 60:
		return "60-69"
	case score >= 50:
		return "50-59"
	default:
		return "0-49"
	}
}

func entryID(subject, testID, userID string) string {
	return subject + "/" + testID + "/" + userID
}

func entryToDoc(e Entry) map[string]interface{} {
	return map[string]interface{}{
		"userId":    e.UserID,
		"userName":  e.DisplayName,
		"score":     round2(e.ScorePercent),
		"timeSpent": e.TimeSpentMinutes,
		"timestamp": e.RecordedAt.UTC(),
		"subject":   e.Subject,
		"testId":    e.TestID,
	}
}

func entryFromDoc(data map[string]interface{}) Entry {
	return Entry{
		UserID:           docstore.AsString(data["userId"]),
		DisplayName:      docstore.AsString(data["userName"]),
		ScorePercent:     docstore.AsFloat(data["score"]),
		TimeSpentMinutes: docstore.AsInt(data["timeSpent"]),
		RecordedAt:       docstore.AsTime(data["timestamp"]),
		Subject:          docstore.AsString(data["subject"]),
		TestID:           docstore.AsString(data["testId"]),
	}
}

// Stored scores carry 2-decimal precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
