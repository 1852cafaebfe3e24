package query

import (
	"context"
	"errors"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PRACTICE STATUS QUERY
// Возвращает состояние практики недели: разблокирована ли, пройдена
// ли на три звезды, лучший результат.
// ══════════════════════════════════════════════════════════════════════════════

// GetPracticeStatusQuery содержит параметры запроса статуса практики.
type GetPracticeStatusQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// WeekID - неделя.
	WeekID shared.WeekID
}

// Validate проверяет корректность параметров запроса.
func (q GetPracticeStatusQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return errors.New("user_id is required")
	}
	if !q.WeekID.IsValid() {
		return errors.New("week_id is invalid")
	}
	return nil
}

// GetPracticeStatusResult содержит статус практики недели.
type GetPracticeStatusResult struct {
	// WeekID - неделя.
	WeekID string `json:"week_id"`

	// IsUnlocked - все уроки недели завершены, практика доступна.
	IsUnlocked bool `json:"is_unlocked"`

	// IsMastered - неделя пройдена на три звезды (терминально).
	IsMastered bool `json:"is_mastered"`

	// StarsEarned - звёзды лучшей попытки (0, если попыток не было).
	StarsEarned int `json:"stars_earned"`

	// BestCorrectAnswers - правильных ответов в лучшей попытке.
	BestCorrectAnswers int `json:"best_correct_answers"`

	// AttemptsCompleted - завершённых попыток по всем неделям.
	AttemptsCompleted int `json:"attempts_completed"`

	// LessonsCompleted - завершено уроков недели.
	LessonsCompleted int `json:"lessons_completed"`

	// TotalLessons - всего уроков в неделе.
	TotalLessons int `json:"total_lessons"`
}

// GetPracticeStatusHandler обрабатывает запросы статуса практики.
type GetPracticeStatusHandler struct {
	contentRepo    study.ContentRepository
	completionRepo study.CompletionRepository
	resultRepo     practice.ResultRepository
}

// NewGetPracticeStatusHandler создаёт новый обработчик.
func NewGetPracticeStatusHandler(
	contentRepo study.ContentRepository,
	completionRepo study.CompletionRepository,
	resultRepo practice.ResultRepository,
) *GetPracticeStatusHandler {
	return &GetPracticeStatusHandler{
		contentRepo:    contentRepo,
		completionRepo: completionRepo,
		resultRepo:     resultRepo,
	}
}

// Handle выполняет запрос статуса практики.
func (h *GetPracticeStatusHandler) Handle(ctx context.Context, query GetPracticeStatusQuery) (*GetPracticeStatusResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetPracticeStatus", shared.ErrValidation, err.Error(), err)
	}

	week, err := h.contentRepo.GetWeek(ctx, query.WeekID)
	if err != nil {
		return nil, err
	}

	unlocked, err := h.completionRepo.IsWeekCompleted(ctx, query.UserID, query.WeekID)
	if err != nil {
		return nil, err
	}

	completions, err := h.completionRepo.GetWeekCompletions(ctx, query.UserID, query.WeekID)
	if err != nil {
		return nil, err
	}
	status := study.ComputeWeekStatus(week, completions, true, false)

	result := &GetPracticeStatusResult{
		WeekID:           query.WeekID.String(),
		IsUnlocked:       unlocked,
		LessonsCompleted: status.LessonsCompleted,
		TotalLessons:     week.TotalLessons(),
	}

	best, err := h.resultRepo.GetBest(ctx, query.UserID, query.WeekID)
	if err != nil {
		return nil, err
	}
	if best != nil {
		result.StarsEarned = best.StarsEarned.Int()
		result.BestCorrectAnswers = best.CorrectAnswers
		result.IsMastered = best.IsMastered
	}

	attempts, err := h.resultRepo.CountCompleted(ctx, query.UserID)
	if err == nil {
		result.AttemptsCompleted = attempts
	}

	return result, nil
}
