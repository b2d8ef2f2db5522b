package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/leaderboard"
)

const (
	defaultResultTTL = 24 * time.Hour
	defaultBoardTTL  = 5 * time.Minute
)

// Store provides Redis-backed caching for the result page and the
// leaderboard views, so repeated reads skip the document store.
type Store struct {
	client    *redis.Client
	resultTTL time.Duration
	boardTTL  time.Duration
}

// Options configures cache TTLs.
type Options struct {
	ResultTTL time.Duration
	BoardTTL  time.Duration
}

func NewStore(client *redis.Client, opts Options) *Store {
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = defaultResultTTL
	}
	if opts.BoardTTL <= 0 {
		opts.BoardTTL = defaultBoardTTL
	}
	return &Store{client: client, resultTTL: opts.ResultTTL, boardTTL: opts.BoardTTL}
}

func resultKey(userID string) string {
	return "lastresult:" + userID
}

// SetLastResult stores the user's most recent finished attempt so the
// result page can re-render without a store round trip.
func (s *Store) SetLastResult(ctx context.Context, userID string, result history.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, resultKey(userID), data, s.resultTTL).Err()
}

// LastResult returns the cached attempt, or nil on a miss.
func (s *Store) LastResult(ctx context.Context, userID string) (*history.Result, error) {
	data, err := s.client.Get(ctx, resultKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var result history.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetryRequest marks which test the user asked to retake.
type RetryRequest struct {
	Subject string `json:"subject"`
	TestID  string `json:"testId"`
}

func retryKey(userID string) string {
	return "retry:" + userID
}

// SetRetryRequest records a pending retake for the user.
func (s *Store) SetRetryRequest(ctx context.Context, userID string, req RetryRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, retryKey(userID), data, s.resultTTL).Err()
}

// TakeRetryRequest returns and clears the pending retake, or nil when
// none is pending.
func (s *Store) TakeRetryRequest(ctx context.Context, userID string) (*RetryRequest, error) {
	data, err := s.client.GetDel(ctx, retryKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var req RetryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func boardKey(subject, testID, window string) string {
	return strings.Join([]string{"board", subject, testID, window}, ":")
}

// SetBoard caches a sorted leaderboard view.
func (s *Store) SetBoard(ctx context.Context, subject, testID, window string, entries []leaderboard.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, boardKey(subject, testID, window), data, s.boardTTL).Err()
}

// Board returns the cached view, or nil on a miss.
func (s *Store) Board(ctx context.Context, subject, testID, window string) ([]leaderboard.Entry, error) {
	data, err := s.client.Get(ctx, boardKey(subject, testID, window)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var entries []leaderboard.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// InvalidateBoard drops every cached window for one test, called after
// a new best entry lands.
func (s *Store) InvalidateBoard(ctx context.Context, subject, testID string) error {
	keys := make([]string, 0, 3)
	for _, w := range []string{leaderboard.WindowAll, leaderboard.WindowWeekly, leaderboard.WindowMonthly} {
		keys = append(keys, boardKey(subject, testID, w))
	}
	return s.client.Del(ctx, keys...).Err()
}
