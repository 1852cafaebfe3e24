package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

const testUserID = shared.UserID("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b")

func TestRequirement_IsSatisfied(t *testing.T) {
	snapshot := Snapshot{
		UserID:             testUserID,
		TotalXP:            1500,
		Level:              5,
		CurrentStreak:      7,
		LessonsCompleted:   12,
		WeeksMastered:      1,
		PracticesCompleted: 3,
	}

	tests := []struct {
		name string
		req  Requirement
		want bool
	}{
		{"streak met", Requirement{RequireStreak, 7}, true},
		{"streak not met", Requirement{RequireStreak, 8}, false},
		{"lessons met", Requirement{RequireLessons, 10}, true},
		{"xp met exactly", Requirement{RequireXP, 1500}, true},
		{"xp not met", Requirement{RequireXP, 1501}, false},
		{"mastery met", Requirement{RequireMastery, 1}, true},
		{"practices not met", Requirement{RequirePractices, 10}, false},
		{"level met", Requirement{RequireLevel, 5}, true},
		{"unknown kind never satisfied", Requirement{"unknown", 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.IsSatisfied(snapshot))
		})
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	evaluator := NewEvaluator(DefaultCatalog())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	snapshot := Snapshot{
		UserID:           testUserID,
		TotalXP:          1200,
		Level:            4,
		CurrentStreak:    7,
		LessonsCompleted: 10,
	}

	unlocks := evaluator.Evaluate(snapshot, map[string]bool{}, now)

	codes := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		codes = append(codes, u.Code)
		assert.Equal(t, testUserID, u.UserID)
		assert.Equal(t, now, u.UnlockedAt)
	}
	assert.Equal(t, []string{"first_lesson", "streak_7", "ten_lessons", "xp_1000"}, codes)
}

// Повторная оценка того же снимка после фиксации разблокировок
// не даёт новых достижений.
func TestEvaluator_EvaluateIsIdempotent(t *testing.T) {
	evaluator := NewEvaluator(DefaultCatalog())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	snapshot := Snapshot{UserID: testUserID, LessonsCompleted: 1, TotalXP: 50, Level: 1, CurrentStreak: 1}

	unlocked := map[string]bool{}
	first := evaluator.Evaluate(snapshot, unlocked, now)
	require.NotEmpty(t, first)
	for _, u := range first {
		unlocked[u.Code] = true
	}

	second := evaluator.Evaluate(snapshot, unlocked, now.Add(time.Hour))
	assert.Empty(t, second)
}

// Итоговое множество разблокировок не зависит от порядка, в котором
// пользователь достиг порогов.
func TestEvaluator_OrderIndependence(t *testing.T) {
	evaluator := NewEvaluator(DefaultCatalog())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	final := Snapshot{
		UserID:           testUserID,
		TotalXP:          1100,
		Level:            4,
		CurrentStreak:    7,
		LessonsCompleted: 10,
	}

	// Путь А: сначала серия, потом уроки.
	pathA := map[string]bool{}
	for _, s := range []Snapshot{
		{UserID: testUserID, CurrentStreak: 7, TotalXP: 300, Level: 2, LessonsCompleted: 3},
		final,
	} {
		for _, u := range evaluator.Evaluate(s, pathA, now) {
			pathA[u.Code] = true
		}
	}

	// Путь B: сначала уроки и XP, потом серия.
	pathB := map[string]bool{}
	for _, s := range []Snapshot{
		{UserID: testUserID, CurrentStreak: 2, TotalXP: 1100, Level: 4, LessonsCompleted: 10},
		final,
	} {
		for _, u := range evaluator.Evaluate(s, pathB, now) {
			pathB[u.Code] = true
		}
	}

	assert.Equal(t, pathA, pathB)
}

func TestEvaluator_SecretAchievement(t *testing.T) {
	evaluator := NewEvaluator(DefaultCatalog())

	secret, ok := evaluator.Get("streak_100")
	require.True(t, ok)
	assert.True(t, secret.IsSecret)

	unlocks := evaluator.Evaluate(
		Snapshot{UserID: testUserID, CurrentStreak: 100, LessonsCompleted: 1},
		map[string]bool{"first_lesson": true, "streak_7": true, "streak_30": true},
		time.Now(),
	)

	codes := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		codes = append(codes, u.Code)
	}
	assert.Contains(t, codes, "streak_100")
}

func TestDefaultCatalog_CodesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range DefaultCatalog() {
		assert.False(t, seen[a.Code], "duplicate code %s", a.Code)
		seen[a.Code] = true
		assert.NotEmpty(t, a.Title)
		assert.Greater(t, a.XPReward, 0)
	}
}
