package study

import (
	"context"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository определяет операции чтения учебного контента.
// Контент создаётся внешним генератором уроков и для движка доступен
// только на чтение.
type ContentRepository interface {
	// GetWeek возвращает неделю со всеми уроками и этапами.
	// Возвращает ErrWeekNotFound, если неделя не найдена.
	GetWeek(ctx context.Context, weekID shared.WeekID) (*Week, error)

	// GetPreviousWeek возвращает неделю, предшествующую данной по порядку.
	// Возвращает (nil, nil) для первой недели.
	GetPreviousWeek(ctx context.Context, weekID shared.WeekID) (*Week, error)

	// ListWeeks возвращает все недели в порядке прохождения.
	ListWeeks(ctx context.Context) ([]*Week, error)
}

// CompletionRepository определяет операции для работы с прогрессом
// прохождения этапов.
type CompletionRepository interface {
	// GetWeekCompletions возвращает прогресс пользователя по всем этапам недели.
	GetWeekCompletions(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (CompletionSet, error)

	// SaveCompletion сохраняет или обновляет запись о прогрессе этапа.
	SaveCompletion(ctx context.Context, userID shared.UserID, weekID shared.WeekID, c StageCompletion) error

	// IsWeekCompleted проверяет, завершены ли все уроки недели.
	IsWeekCompleted(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error)

	// CountCompletedLessons возвращает количество завершённых пользователем
	// уроков по всем неделям.
	CountCompletedLessons(ctx context.Context, userID shared.UserID) (int, error)
}
