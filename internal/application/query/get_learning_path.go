package query

import (
	"context"
	"errors"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNING PATH QUERY
// Возвращает проекцию статусов недели: каждый урок и этап в состоянии
// locked, current или completed. Статусы вычисляются из записей о
// завершении при каждом запросе и нигде не хранятся.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearningPathQuery содержит параметры запроса пути обучения.
type GetLearningPathQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// WeekID - неделя.
	WeekID shared.WeekID
}

// Validate проверяет корректность параметров запроса.
func (q GetLearningPathQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return errors.New("user_id is required")
	}
	if !q.WeekID.IsValid() {
		return errors.New("week_id is invalid")
	}
	return nil
}

// GetLearningPathResult содержит проекцию статусов недели.
type GetLearningPathResult struct {
	// Week - статусы недели, уроков и этапов.
	Week study.WeekStatus `json:"week"`

	// IsMastered - неделя пройдена на три звезды.
	IsMastered bool `json:"is_mastered"`

	// PracticeUnlocked - все уроки завершены, практика доступна.
	PracticeUnlocked bool `json:"practice_unlocked"`
}

// GetLearningPathHandler обрабатывает запросы пути обучения.
type GetLearningPathHandler struct {
	contentRepo    study.ContentRepository
	completionRepo study.CompletionRepository
	resultRepo     practice.ResultRepository
}

// NewGetLearningPathHandler создаёт новый обработчик.
func NewGetLearningPathHandler(
	contentRepo study.ContentRepository,
	completionRepo study.CompletionRepository,
	resultRepo practice.ResultRepository,
) *GetLearningPathHandler {
	return &GetLearningPathHandler{
		contentRepo:    contentRepo,
		completionRepo: completionRepo,
		resultRepo:     resultRepo,
	}
}

// Handle выполняет запрос пути обучения.
func (h *GetLearningPathHandler) Handle(ctx context.Context, query GetLearningPathQuery) (*GetLearningPathResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLearningPath", shared.ErrValidation, err.Error(), err)
	}

	week, err := h.contentRepo.GetWeek(ctx, query.WeekID)
	if err != nil {
		return nil, err
	}

	prevWeekDone := true
	if prev, err := h.contentRepo.GetPreviousWeek(ctx, query.WeekID); err != nil {
		return nil, err
	} else if prev != nil {
		prevWeekDone, err = h.completionRepo.IsWeekCompleted(ctx, query.UserID, prev.ID)
		if err != nil {
			return nil, err
		}
	}

	completions, err := h.completionRepo.GetWeekCompletions(ctx, query.UserID, query.WeekID)
	if err != nil {
		return nil, err
	}

	mastered, err := h.resultRepo.IsMastered(ctx, query.UserID, query.WeekID)
	if err != nil {
		return nil, err
	}

	status := study.ComputeWeekStatus(week, completions, prevWeekDone, mastered)
	return &GetLearningPathResult{
		Week:             status,
		IsMastered:       mastered,
		PracticeUnlocked: status.Completed,
	}, nil
}
