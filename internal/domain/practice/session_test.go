package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

const (
	testUserID = shared.UserID("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b")
	testWeekID = shared.WeekID("genesis-01")
)

func testQuestions(n int) []Question {
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{
			ID:          "q" + string(rune('a'+i)),
			Kind:        KindTrueFalse,
			Prompt:      "Test prompt",
			CorrectBool: true,
		}
	}
	return questions
}

func newTestSession(t *testing.T, now time.Time) *Session {
	t.Helper()
	session, err := NewSession(testUserID, testWeekID, testQuestions(10), 120*time.Second, now)
	require.NoError(t, err)
	return session
}

func TestScoringConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultScoringConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*ScoringConfig)
	}{
		{"zero questions", func(c *ScoringConfig) { c.TotalQuestions = 0 }},
		{"zero time limit", func(c *ScoringConfig) { c.TimeLimit = 0 }},
		{"three star above question count", func(c *ScoringConfig) { c.ThreeStarCorrect = 11 }},
		{"two star above three star", func(c *ScoringConfig) { c.TwoStarCorrect = 11 }},
		{"one star above two star", func(c *ScoringConfig) { c.OneStarCorrect = 9 }},
		{"zero one star", func(c *ScoringConfig) { c.OneStarCorrect = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestScoringConfig_Score(t *testing.T) {
	cfg := DefaultScoringConfig()

	tests := []struct {
		name    string
		correct int
		elapsed time.Duration
		want    shared.Stars
	}{
		{"perfect within time", 10, 100 * time.Second, shared.ThreeStars},
		{"perfect exactly at limit", 10, 120 * time.Second, shared.ThreeStars},
		{"perfect over time drops to two", 10, 121 * time.Second, shared.TwoStars},
		{"eight correct", 8, 60 * time.Second, shared.TwoStars},
		{"nine correct within time", 9, 60 * time.Second, shared.TwoStars},
		{"five correct", 5, 60 * time.Second, shared.OneStar},
		{"seven correct", 7, 60 * time.Second, shared.OneStar},
		{"four correct", 4, 60 * time.Second, shared.NoStars},
		{"zero correct", 0, 10 * time.Second, shared.NoStars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Score(tt.correct, tt.elapsed))
		})
	}
}

// Больше правильных ответов при том же времени - никогда не меньше
// звёзд; меньше времени при тех же ответах - никогда не меньше звёзд.
func TestScoringConfig_ScoreIsMonotonic(t *testing.T) {
	cfg := DefaultScoringConfig()
	elapsedGrid := []time.Duration{
		0, 30 * time.Second, 119 * time.Second, 120 * time.Second, 121 * time.Second, 300 * time.Second,
	}

	for _, elapsed := range elapsedGrid {
		prev := shared.NoStars
		for correct := 0; correct <= cfg.TotalQuestions; correct++ {
			stars := cfg.Score(correct, elapsed)
			assert.GreaterOrEqual(t, stars, prev,
				"correct=%d elapsed=%s", correct, elapsed)
			prev = stars
		}
	}

	for correct := 0; correct <= cfg.TotalQuestions; correct++ {
		prev := shared.ThreeStars
		for _, elapsed := range elapsedGrid {
			stars := cfg.Score(correct, elapsed)
			assert.LessOrEqual(t, stars, prev,
				"correct=%d elapsed=%s", correct, elapsed)
			prev = stars
		}
	}
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	session := newTestSession(t, now)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, StateRunning, session.State)
	assert.Equal(t, now, session.StartedAt)
	assert.Len(t, session.Questions, 10)
}

func TestNewSession_NoQuestions(t *testing.T) {
	_, err := NewSession(testUserID, testWeekID, nil, 120*time.Second, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewSession_InvalidQuestion(t *testing.T) {
	questions := testQuestions(10)
	questions[3].Prompt = ""

	_, err := NewSession(testUserID, testWeekID, questions, 120*time.Second, time.Now())
	assert.Error(t, err)
}

func TestFinalize_WithinTime(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	session := newTestSession(t, start)

	result, err := session.Finalize(cfg, 10, 90, start.Add(95*time.Second))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, session.State)
	assert.Equal(t, shared.ThreeStars, result.StarsEarned)
	assert.True(t, result.IsMastered)
	assert.True(t, result.CompletedWithinTime)
	assert.False(t, result.TimedOut)
	assert.Equal(t, 95, result.TimeSpentSeconds)
	assert.Equal(t, 150, result.XPReward(cfg))
}

// Серверное время - источник истины: клиент не может сократить
// затраченное время, но может его увеличить.
func TestFinalize_ClientClockOnlyRaisesElapsed(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Клиент заявляет 30 секунд, сервер насчитал 110 - верим серверу.
	session := newTestSession(t, start)
	result, err := session.Finalize(cfg, 10, 30, start.Add(110*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 110, result.TimeSpentSeconds)

	// Клиент заявляет 130 секунд, сервер насчитал 60 - верим худшему.
	session = newTestSession(t, start)
	result, err = session.Finalize(cfg, 10, 130, start.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 130, result.TimeSpentSeconds)
	assert.False(t, result.CompletedWithinTime)
	assert.Equal(t, shared.TwoStars, result.StarsEarned)
}

// Таймаут закрывает сессию, но результат всё равно вычисляется:
// накопленные правильные ответы не пропадают.
func TestFinalize_TimeoutStillYieldsResult(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	session := newTestSession(t, start)

	result, err := session.Finalize(cfg, 9, 0, start.Add(200*time.Second))
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, session.State)
	assert.True(t, result.TimedOut)
	assert.False(t, result.CompletedWithinTime)
	assert.Equal(t, shared.TwoStars, result.StarsEarned)
	assert.False(t, result.IsMastered)
}

// Допуск к лимиту: чуть позже дедлайна - ещё не таймаут.
func TestFinalize_TimeTolerance(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	session := newTestSession(t, start)
	result, err := session.Finalize(cfg, 8, 0, start.Add(124*time.Second))
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, StateCompleted, session.State)
	// Лимит всё равно превышен - трёх звёзд не будет.
	assert.False(t, result.CompletedWithinTime)

	session = newTestSession(t, start)
	result, err = session.Finalize(cfg, 8, 0, start.Add(126*time.Second))
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestFinalize_AlreadyClosed(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	session := newTestSession(t, start)

	_, err := session.Finalize(cfg, 10, 0, start.Add(60*time.Second))
	require.NoError(t, err)

	_, err = session.Finalize(cfg, 10, 0, start.Add(70*time.Second))
	assert.ErrorIs(t, err, shared.ErrSessionAlreadyClosed)
}

func TestFinalize_CorrectAnswersCappedAndNonNegative(t *testing.T) {
	cfg := DefaultScoringConfig()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	session := newTestSession(t, start)
	_, err := session.Finalize(cfg, -1, 0, start.Add(60*time.Second))
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
	assert.Equal(t, StateRunning, session.State)

	result, err := session.Finalize(cfg, 25, 0, start.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 10, result.CorrectAnswers)
}

func TestSession_IsExpired(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	session := newTestSession(t, start)

	assert.False(t, session.IsExpired(start.Add(120*time.Second), 5*time.Second))
	assert.False(t, session.IsExpired(start.Add(125*time.Second), 5*time.Second))
	assert.True(t, session.IsExpired(start.Add(126*time.Second), 5*time.Second))
}
