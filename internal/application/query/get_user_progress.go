package query

import (
	"context"
	"errors"
	"time"

	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER PROGRESS QUERY
// Возвращает накопленный прогресс пользователя: XP, уровень, серию
// и счётчики. Для нового пользователя возвращается пустой прогресс.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserProgressQuery содержит параметры запроса прогресса.
type GetUserProgressQuery struct {
	// UserID - пользователь.
	UserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q GetUserProgressQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return errors.New("user_id is required")
	}
	return nil
}

// GetUserProgressResult содержит прогресс пользователя.
type GetUserProgressResult struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// TotalXP - суммарный XP за всё время.
	TotalXP int `json:"total_xp"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// LevelProgress - прогресс до следующего уровня в процентах (0-100).
	LevelProgress int `json:"level_progress"`

	// XPToNextLevel - XP до следующего уровня.
	XPToNextLevel int `json:"xp_to_next_level"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"current_streak"`

	// BestStreak - лучшая серия за всё время.
	BestStreak int `json:"best_streak"`

	// LastActivityDate - дата последней активности.
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`

	// UnitsCompleted - всего завершено юнитов.
	UnitsCompleted int `json:"units_completed"`

	// LessonsCompleted - всего завершено уроков.
	LessonsCompleted int `json:"lessons_completed"`

	// WeeksMastered - недель пройдено на три звезды.
	WeeksMastered int `json:"weeks_mastered"`

	// PracticesCompleted - всего завершено практик.
	PracticesCompleted int `json:"practices_completed"`
}

// GetUserProgressHandler обрабатывает запросы прогресса.
type GetUserProgressHandler struct {
	progressRepo progress.Repository
}

// NewGetUserProgressHandler создаёт новый обработчик.
func NewGetUserProgressHandler(progressRepo progress.Repository) *GetUserProgressHandler {
	return &GetUserProgressHandler{progressRepo: progressRepo}
}

// Handle выполняет запрос прогресса.
func (h *GetUserProgressHandler) Handle(ctx context.Context, query GetUserProgressQuery) (*GetUserProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserProgress", shared.ErrValidation, err.Error(), err)
	}

	p, err := h.progressRepo.GetByUserID(ctx, query.UserID)
	if errors.Is(err, shared.ErrProgressNotFound) {
		p = progress.NewUserProgress(query.UserID)
	} else if err != nil {
		return nil, err
	}

	toNext := (p.Level + 1).RequiredXP() - p.TotalXP.Int()
	if toNext < 0 {
		toNext = 0
	}
	result := &GetUserProgressResult{
		UserID:             p.UserID.String(),
		TotalXP:            p.TotalXP.Int(),
		Level:              p.Level.Int(),
		LevelProgress:      p.TotalXP.ProgressToNextLevel(),
		XPToNextLevel:      toNext,
		CurrentStreak:      p.CurrentStreak,
		BestStreak:         p.BestStreak,
		UnitsCompleted:     p.UnitsCompleted,
		LessonsCompleted:   p.LessonsCompleted,
		WeeksMastered:      p.WeeksMastered,
		PracticesCompleted: p.PracticesCompleted,
	}
	if !p.LastActivityDate.IsZero() {
		t := p.LastActivityDate
		result.LastActivityDate = &t
	}
	return result, nil
}
