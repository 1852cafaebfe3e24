package achievement

import (
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Category представляет категорию достижения.
type Category string

const (
	// CategoryStreak - достижения за серии дней.
	CategoryStreak Category = "streak"
	// CategoryStudy - достижения за уроки.
	CategoryStudy Category = "study"
	// CategoryPractice - достижения за практики.
	CategoryPractice Category = "practice"
	// CategoryProgress - достижения за XP и уровень.
	CategoryProgress Category = "progress"
)

// RequirementKind представляет вид условия разблокировки.
type RequirementKind string

const (
	// RequireStreak - серия дней ≥ порога.
	RequireStreak RequirementKind = "streak"
	// RequireLessons - завершено уроков ≥ порога.
	RequireLessons RequirementKind = "lessons_completed"
	// RequireXP - суммарный XP ≥ порога.
	RequireXP RequirementKind = "total_xp"
	// RequireMastery - недель на три звезды ≥ порога.
	RequireMastery RequirementKind = "weeks_mastered"
	// RequirePractices - завершено практик ≥ порога.
	RequirePractices RequirementKind = "practices_completed"
	// RequireLevel - уровень ≥ порога.
	RequireLevel RequirementKind = "level"
)

// Requirement - условие разблокировки достижения.
type Requirement struct {
	// Kind - вид условия.
	Kind RequirementKind `json:"kind"`

	// Threshold - пороговое значение.
	Threshold int `json:"threshold"`
}

// Snapshot - снимок прогресса пользователя, против которого
// проверяются условия. Собирается из ProgressStore перед оценкой.
type Snapshot struct {
	UserID             shared.UserID
	TotalXP            int
	Level              int
	CurrentStreak      int
	LessonsCompleted   int
	WeeksMastered      int
	PracticesCompleted int
}

// IsSatisfied проверяет условие против снимка прогресса.
// Чистая функция: порядок и повторность проверок не влияют на результат.
func (r Requirement) IsSatisfied(s Snapshot) bool {
	switch r.Kind {
	case RequireStreak:
		return s.CurrentStreak >= r.Threshold
	case RequireLessons:
		return s.LessonsCompleted >= r.Threshold
	case RequireXP:
		return s.TotalXP >= r.Threshold
	case RequireMastery:
		return s.WeeksMastered >= r.Threshold
	case RequirePractices:
		return s.PracticesCompleted >= r.Threshold
	case RequireLevel:
		return s.Level >= r.Threshold
	}
	return false
}

// Achievement - запись каталога достижений.
type Achievement struct {
	// Code - уникальный код достижения.
	Code string `json:"code"`

	// Category - категория.
	Category Category `json:"category"`

	// Title - название.
	Title string `json:"title"`

	// Description - описание условия для пользователя.
	Description string `json:"description"`

	// Requirement - условие разблокировки.
	Requirement Requirement `json:"requirement"`

	// XPReward - награда XP за разблокировку.
	XPReward int `json:"xp_reward"`

	// IsSecret - скрытое достижение: не показывается до разблокировки.
	IsSecret bool `json:"is_secret"`
}

// Unlock - запись о разблокированном достижении.
// Первичный ключ (UserID, Code) в хранилище делает разблокировку
// идемпотентной: повторная вставка - no-op.
type Unlock struct {
	// UserID - пользователь.
	UserID shared.UserID `json:"user_id"`

	// Code - код достижения.
	Code string `json:"code"`

	// UnlockedAt - когда разблокировано.
	UnlockedAt time.Time `json:"unlocked_at"`
}

// DefaultCatalog возвращает встроенный каталог достижений.
func DefaultCatalog() []Achievement {
	return []Achievement{
		{Code: "first_lesson", Category: CategoryStudy, Title: "Primeiro Passo", Description: "Complete sua primeira lição", Requirement: Requirement{RequireLessons, 1}, XPReward: 50},
		{Code: "ten_lessons", Category: CategoryStudy, Title: "Caminhante", Description: "Complete 10 lições", Requirement: Requirement{RequireLessons, 10}, XPReward: 150},
		{Code: "fifty_lessons", Category: CategoryStudy, Title: "Peregrino", Description: "Complete 50 lições", Requirement: Requirement{RequireLessons, 50}, XPReward: 500},
		{Code: "streak_7", Category: CategoryStreak, Title: "Semana Fiel", Description: "7 dias seguidos de estudo", Requirement: Requirement{RequireStreak, 7}, XPReward: 100},
		{Code: "streak_30", Category: CategoryStreak, Title: "Mês Constante", Description: "30 dias seguidos de estudo", Requirement: Requirement{RequireStreak, 30}, XPReward: 500},
		{Code: "streak_100", Category: CategoryStreak, Title: "Perseverança", Description: "100 dias seguidos de estudo", Requirement: Requirement{RequireStreak, 100}, XPReward: 2000, IsSecret: true},
		{Code: "first_mastery", Category: CategoryPractice, Title: "Três Estrelas", Description: "Domine sua primeira semana", Requirement: Requirement{RequireMastery, 1}, XPReward: 200},
		{Code: "five_masteries", Category: CategoryPractice, Title: "Mestre", Description: "Domine 5 semanas", Requirement: Requirement{RequireMastery, 5}, XPReward: 750},
		{Code: "ten_practices", Category: CategoryPractice, Title: "Praticante", Description: "Complete 10 práticas", Requirement: Requirement{RequirePractices, 10}, XPReward: 200},
		{Code: "xp_1000", Category: CategoryProgress, Title: "Mil Pontos", Description: "Acumule 1000 XP", Requirement: Requirement{RequireXP, 1000}, XPReward: 100},
		{Code: "xp_10000", Category: CategoryProgress, Title: "Dez Mil", Description: "Acumule 10000 XP", Requirement: Requirement{RequireXP, 10000}, XPReward: 500},
		{Code: "level_5", Category: CategoryProgress, Title: "Nível 5", Description: "Alcance o nível 5", Requirement: Requirement{RequireLevel, 5}, XPReward: 150},
		{Code: "level_10", Category: CategoryProgress, Title: "Nível 10", Description: "Alcance o nível 10", Requirement: Requirement{RequireLevel, 10}, XPReward: 400},
	}
}
