package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/cache"
	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/leaderboard"
	"github.com/dotest/exam-platform/internal/session"
)

// Recorder fans a finished attempt out to the history log, the
// leaderboard reconciler and the result cache. Anonymous attempts are
// scored but never persisted.
type Recorder struct {
	history     *history.Service
	leaderboard *leaderboard.Service
	cache       *cache.Store
	logger      zerolog.Logger
}

var _ session.Recorder = (*Recorder)(nil)

// NewRecorder constructs the persistence fan-out. cache may be nil when
// Redis is not configured.
func NewRecorder(historySvc *history.Service, leaderboardSvc *leaderboard.Service, cacheStore *cache.Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		history:     historySvc,
		leaderboard: leaderboardSvc,
		cache:       cacheStore,
		logger:      logger.With().Str("component", "recorder").Logger(),
	}
}

// Record persists one outcome. Each destination is attempted
// independently so a failing backend never hides the others; the
// combined error is returned for the caller to log.
func (r *Recorder) Record(ctx context.Context, outcome session.Outcome) error {
	if outcome.User == nil || outcome.User.ID == "" {
		r.logger.Debug().Str("session_id", outcome.SessionID).Msg("anonymous attempt not persisted")
		return nil
	}

	result := history.Result{
		UserID:           outcome.User.ID,
		UserName:         outcome.User.Name(),
		UserEmail:        outcome.User.Email,
		Subject:          outcome.Subject,
		TestID:           outcome.TestID,
		ScorePercent:     outcome.Summary.Percentage,
		TotalQuestions:   outcome.Summary.TotalQuestions,
		CorrectAnswers:   outcome.Summary.CorrectCount,
		TimeSpentMinutes: outcome.TimeSpentMinutes,
		RecordedAt:       outcome.FinishedAt,
		Questions:        outcome.Questions,
		Answers:          outcome.Answers,
	}

	var errs []error
	if id, err := r.history.Save(ctx, result); err != nil {
		errs = append(errs, fmt.Errorf("history: %w", err))
	} else {
		result.ID = id
	}

	entry := leaderboard.Entry{
		UserID:           outcome.User.ID,
		DisplayName:      outcome.User.Name(),
		ScorePercent:     outcome.Summary.Percentage,
		TimeSpentMinutes: outcome.TimeSpentMinutes,
		RecordedAt:       outcome.FinishedAt,
		Subject:          outcome.Subject,
		TestID:           outcome.TestID,
	}
	if err := r.leaderboard.Record(ctx, entry); err != nil {
		errs = append(errs, fmt.Errorf("leaderboard: %w", err))
	}

	if r.cache != nil {
		if err := r.cache.SetLastResult(ctx, outcome.User.ID, result); err != nil {
			errs = append(errs, fmt.Errorf("result cache: %w", err))
		}
		if err := r.cache.InvalidateBoard(ctx, outcome.Subject, outcome.TestID); err != nil {
			errs = append(errs, fmt.Errorf("board cache: %w", err))
		}
	}

	return errors.Join(errs...)
}
