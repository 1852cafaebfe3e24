package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

const testUserID = shared.UserID("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b")

func TestNewUserProgress(t *testing.T) {
	p := NewUserProgress(testUserID)

	assert.Equal(t, testUserID, p.UserID)
	assert.Equal(t, shared.XP(0), p.TotalXP)
	assert.Equal(t, shared.Level(1), p.Level)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.True(t, p.LastActivityDate.IsZero())
}

func TestApplyCompletion_FirstActivity(t *testing.T) {
	p := NewUserProgress(testUserID)
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, timeutil.SaoPauloTZ)

	delta, err := p.ApplyCompletion(100, at, timeutil.SaoPauloTZ)
	require.NoError(t, err)

	assert.Equal(t, 100, delta.XPGained)
	assert.Equal(t, 100, delta.NewTotalXP)
	assert.Equal(t, 1, delta.NewStreak)
	assert.False(t, delta.StreakReset)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.BestStreak)
	assert.Equal(t, timeutil.Date(2026, 3, 10), p.LastActivityDate)
}

func TestApplyCompletion_NegativeXP(t *testing.T) {
	p := NewUserProgress(testUserID)

	_, err := p.ApplyCompletion(-10, time.Now(), timeutil.SaoPauloTZ)
	assert.ErrorIs(t, err, shared.ErrInvalidXPAmount)
	assert.Equal(t, shared.XP(0), p.TotalXP)
}

func TestApplyCompletion_StreakRules(t *testing.T) {
	tests := []struct {
		name       string
		firstDay   time.Time
		secondDay  time.Time
		wantStreak int
		wantReset  bool
	}{
		{
			name:       "same day keeps streak",
			firstDay:   time.Date(2026, 3, 10, 8, 0, 0, 0, timeutil.SaoPauloTZ),
			secondDay:  time.Date(2026, 3, 10, 22, 0, 0, 0, timeutil.SaoPauloTZ),
			wantStreak: 1,
		},
		{
			name:       "next day increments",
			firstDay:   time.Date(2026, 3, 10, 23, 59, 0, 0, timeutil.SaoPauloTZ),
			secondDay:  time.Date(2026, 3, 11, 0, 1, 0, 0, timeutil.SaoPauloTZ),
			wantStreak: 2,
		},
		{
			name:       "skipped day resets to one",
			firstDay:   time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.SaoPauloTZ),
			secondDay:  time.Date(2026, 3, 12, 12, 0, 0, 0, timeutil.SaoPauloTZ),
			wantStreak: 1,
			wantReset:  true,
		},
		{
			name:       "week gap resets to one",
			firstDay:   time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.SaoPauloTZ),
			secondDay:  time.Date(2026, 3, 20, 12, 0, 0, 0, timeutil.SaoPauloTZ),
			wantStreak: 1,
			wantReset:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewUserProgress(testUserID)
			_, err := p.ApplyCompletion(50, tt.firstDay, timeutil.SaoPauloTZ)
			require.NoError(t, err)

			delta, err := p.ApplyCompletion(50, tt.secondDay, timeutil.SaoPauloTZ)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStreak, delta.NewStreak)
			assert.Equal(t, tt.wantReset, delta.StreakReset)
			assert.Equal(t, tt.wantStreak, p.CurrentStreak)
		})
	}
}

// При переводе часов на летнее время между соседними полуночами
// остаётся 23 часа. День всё равно один, серия должна вырасти.
func TestApplyCompletion_StreakAcrossSpringForward(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}

	p := NewUserProgress(testUserID)
	// В США часы переводятся 2026-03-08 в 02:00.
	_, err = p.ApplyCompletion(50, time.Date(2026, 3, 8, 1, 0, 0, 0, ny), ny)
	require.NoError(t, err)

	delta, err := p.ApplyCompletion(50, time.Date(2026, 3, 9, 1, 0, 0, 0, ny), ny)
	require.NoError(t, err)

	assert.Equal(t, 2, delta.NewStreak)
	assert.False(t, delta.StreakReset)
}

// Дни серии считаются по календарю Сан-Паулу: полночь UTC и полночь
// UTC-3 - это разные календарные дни.
func TestApplyCompletion_DayBoundaryIsSaoPaulo(t *testing.T) {
	p := NewUserProgress(testUserID)

	// 2026-03-11 01:00 UTC = 2026-03-10 22:00 в Сан-Паулу.
	first := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)
	// 2026-03-11 04:00 UTC = 2026-03-11 01:00 в Сан-Паулу - уже следующий день.
	second := time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC)

	_, err := p.ApplyCompletion(50, first, timeutil.SaoPauloTZ)
	require.NoError(t, err)

	delta, err := p.ApplyCompletion(50, second, timeutil.SaoPauloTZ)
	require.NoError(t, err)
	assert.Equal(t, 2, delta.NewStreak)
}

func TestApplyCompletion_BestStreakSurvivesReset(t *testing.T) {
	p := NewUserProgress(testUserID)
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, timeutil.SaoPauloTZ)

	for i := 0; i < 5; i++ {
		_, err := p.ApplyCompletion(10, day.AddDate(0, 0, i), timeutil.SaoPauloTZ)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, p.CurrentStreak)
	assert.Equal(t, 5, p.BestStreak)

	// Пропуск двух дней сбрасывает текущую серию, но не лучшую.
	_, err := p.ApplyCompletion(10, day.AddDate(0, 0, 7), timeutil.SaoPauloTZ)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 5, p.BestStreak)
}

func TestApplyCompletion_LevelUp(t *testing.T) {
	p := NewUserProgress(testUserID)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.SaoPauloTZ)

	// Уровень 2 требует 100 XP.
	delta, err := p.ApplyCompletion(150, at, timeutil.SaoPauloTZ)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(1), delta.OldLevel)
	assert.Equal(t, shared.Level(2), delta.NewLevel)
	assert.True(t, delta.LeveledUp)
	assert.Equal(t, shared.Level(2), p.Level)
}

func TestApplyCompletion_ZeroXPStillCountsActivity(t *testing.T) {
	p := NewUserProgress(testUserID)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.SaoPauloTZ)

	delta, err := p.ApplyCompletion(0, at, timeutil.SaoPauloTZ)
	require.NoError(t, err)

	assert.Equal(t, 0, delta.XPGained)
	assert.Equal(t, 1, delta.NewStreak)
	assert.False(t, p.LastActivityDate.IsZero())
}

func TestApplyCompletion_LevelNeverDemotes(t *testing.T) {
	p := NewUserProgress(testUserID)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.SaoPauloTZ)

	prev := shared.Level(0)
	for i := 0; i < 50; i++ {
		delta, err := p.ApplyCompletion(75, at.AddDate(0, 0, i), timeutil.SaoPauloTZ)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, delta.NewLevel, prev)
		prev = delta.NewLevel
	}
}
