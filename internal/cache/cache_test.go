package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/leaderboard"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, Options{}), mr
}

func TestLastResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	result := history.Result{
		UserID:       "u1",
		Subject:      "Python",
		TestID:       "test1",
		ScorePercent: 80,
		RecordedAt:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SetLastResult(ctx, "u1", result))

	got, err := store.LastResult(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Python", got.Subject)
	assert.Equal(t, 80.0, got.ScorePercent)
}

func TestLastResultMissReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.LastResult(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRetryRequestIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetRetryRequest(ctx, "u1", RetryRequest{Subject: "Python", TestID: "test1"}))

	req, err := store.TakeRetryRequest(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "test1", req.TestID)

	req, err = store.TakeRetryRequest(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestBoardRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	entries := []leaderboard.Entry{
		{UserID: "u1", DisplayName: "Asha", ScorePercent: 90},
	}
	require.NoError(t, store.SetBoard(ctx, "Python", "test1", leaderboard.WindowAll, entries))

	got, err := store.Board(ctx, "Python", "test1", leaderboard.WindowAll)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)

	mr.FastForward(6 * time.Minute)
	got, err = store.Board(ctx, "Python", "test1", leaderboard.WindowAll)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidateBoardDropsAllWindows(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	entries := []leaderboard.Entry{{UserID: "u1", ScorePercent: 70}}
	require.NoError(t, store.SetBoard(ctx, "Python", "test1", leaderboard.WindowAll, entries))
	require.NoError(t, store.SetBoard(ctx, "Python", "test1", leaderboard.WindowWeekly, entries))

	require.NoError(t, store.InvalidateBoard(ctx, "Python", "test1"))

	got, err := store.Board(ctx, "Python", "test1", leaderboard.WindowAll)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Board(ctx, "Python", "test1", leaderboard.WindowWeekly)
	require.NoError(t, err)
	assert.Nil(t, got)
}
