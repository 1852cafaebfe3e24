package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

type fakeLeaderboardCache struct {
	invalidated []leaderboard.Period
	invErr      error
}

func (f *fakeLeaderboardCache) Get(_ context.Context, _ leaderboard.Period) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeLeaderboardCache) Set(_ context.Context, _ leaderboard.Period, _ []*leaderboard.Entry, _ time.Duration) error {
	return nil
}

func (f *fakeLeaderboardCache) Invalidate(_ context.Context, period leaderboard.Period) error {
	f.invalidated = append(f.invalidated, period)
	return f.invErr
}

func TestOnXPGained_InvalidatesCurrentWeeklyPeriod(t *testing.T) {
	cache := &fakeLeaderboardCache{}
	handler := NewOnXPGainedHandler(cache, nil)

	err := handler.Handle(shared.NewXPGainedEvent(testUserID, 100, 250, "lesson_completed", "licao-criacao"))
	require.NoError(t, err)

	require.Len(t, cache.invalidated, 1)
	_, _, wantKey := timeutil.WeekWindow(timeutil.Now())
	assert.Equal(t, leaderboard.PeriodWeekly, cache.invalidated[0].Type)
	assert.Equal(t, wantKey, cache.invalidated[0].Key)
}

// Сбой сброса кеша не превращается в ошибку доставки: кеш истечёт по TTL.
func TestOnXPGained_CacheFailureIsSwallowed(t *testing.T) {
	cache := &fakeLeaderboardCache{invErr: errors.New("redis down")}
	handler := NewOnXPGainedHandler(cache, nil)

	err := handler.Handle(shared.NewXPGainedEvent(testUserID, 100, 250, "lesson_completed", "licao-criacao"))
	assert.NoError(t, err)
}

func TestOnXPGained_NilCacheIsNoOp(t *testing.T) {
	handler := NewOnXPGainedHandler(nil, nil)

	err := handler.Handle(shared.NewXPGainedEvent(testUserID, 100, 250, "lesson_completed", "licao-criacao"))
	assert.NoError(t, err)
}
