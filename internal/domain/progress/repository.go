package progress

import (
	"context"
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с прогрессом пользователей.
//
// Запись прогресса и соответствующая запись журнала XP должны сохраняться
// в одной транзакции (одно UPDATE на строку пользователя), иначе под
// конкурентными запросами одного пользователя возможна потеря обновлений.
type Repository interface {
	// GetByUserID возвращает прогресс пользователя.
	// Возвращает ErrProgressNotFound, если записи ещё нет.
	GetByUserID(ctx context.Context, userID shared.UserID) (*UserProgress, error)

	// GetOrCreate возвращает прогресс пользователя, создавая пустую
	// запись при первом обращении.
	GetOrCreate(ctx context.Context, userID shared.UserID) (*UserProgress, error)

	// ApplyCompletion атомарно применяет завершение: обновляет строку
	// прогресса и добавляет событие в журнал XP в одной транзакции.
	// Строка блокируется SELECT ... FOR UPDATE на время применения.
	ApplyCompletion(ctx context.Context, userID shared.UserID, event XPEvent, apply func(*UserProgress) (CompletionDelta, error)) (CompletionDelta, error)

	// GetByUserIDs возвращает прогресс нескольких пользователей.
	GetByUserIDs(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]*UserProgress, error)
}

// XPEventRepository определяет операции чтения журнала XP.
// Журнал питает лидерборды по периодам.
type XPEventRepository interface {
	// SumByPeriod возвращает суммы XP по пользователям за окно периода
	// [from, to) вместе с временем последней активности внутри окна.
	SumByPeriod(ctx context.Context, window shared.TimeRange) ([]PeriodSum, error)

	// SumForUser возвращает сумму XP пользователя за окно периода.
	SumForUser(ctx context.Context, userID shared.UserID, window shared.TimeRange) (int, error)

	// ListForUser возвращает события пользователя за окно периода.
	ListForUser(ctx context.Context, userID shared.UserID, window shared.TimeRange) ([]XPEvent, error)
}

// PeriodSum - агрегат журнала XP по одному пользователю за период.
type PeriodSum struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// TotalXP - сумма XP за период.
	TotalXP int

	// DailyXP - сумма XP за последние 24 часа (для отображения).
	DailyXP int

	// LastActivityAt - последняя активность внутри периода.
	// Используется при разрешении ничьих в лидерборде.
	LastActivityAt time.Time
}
