package practice

import (
	"context"
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository определяет операции для работы с открытыми сессиями.
type SessionRepository interface {
	// Create сохраняет новую сессию.
	// Возвращает ErrSessionAlreadyRunning, если для пары (пользователь,
	// неделя) уже существует открытая сессия.
	Create(ctx context.Context, session *Session) error

	// GetRunning возвращает открытую сессию пары (пользователь, неделя).
	// Возвращает ErrSessionNotFound, если открытой сессии нет.
	GetRunning(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (*Session, error)

	// Close переводит сессию в терминальное состояние.
	// Возвращает ErrSessionAlreadyClosed, если сессию уже закрыли
	// (в том числе конкурентным запросом).
	Close(ctx context.Context, sessionID string, state State) error

	// HasClosed проверяет, есть ли у пары (пользователь, неделя)
	// сессия в терминальном состоянии. Нужно, чтобы отличить повторное
	// завершение от завершения без открытой сессии.
	HasClosed(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error)

	// DeleteExpired удаляет сессии, открытые раньше порога.
	// Используется фоновой задачей очистки.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int, error)
}

// ResultRepository определяет операции для работы с результатами практик.
type ResultRepository interface {
	// Save сохраняет результат практики.
	Save(ctx context.Context, result Result) error

	// GetBest возвращает лучший результат пары (пользователь, неделя).
	// Возвращает (nil, nil), если попыток ещё не было.
	GetBest(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (*Result, error)

	// IsMastered проверяет терминальное состояние мастерства недели.
	IsMastered(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error)

	// CountCompleted возвращает количество завершённых практик пользователя.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)

	// CountMastered возвращает количество недель, пройденных на три звезды.
	CountMastered(ctx context.Context, userID shared.UserID) (int, error)
}

// SessionGuard обеспечивает инвариант "не более одной открытой сессии
// на пару (пользователь, неделя)". Обычно реализуется через Redis SET NX.
type SessionGuard interface {
	// Acquire пытается захватить замок сессии.
	// Возвращает false, если замок уже занят другой сессией.
	Acquire(ctx context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string, ttl time.Duration) (bool, error)

	// Release освобождает замок, если он принадлежит этой сессии.
	Release(ctx context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string) error
}

// QuestionSource поставляет снимок вопросов для недели.
// Контент генерируется внешним сервисом и доступен только на чтение.
type QuestionSource interface {
	// QuestionsForWeek возвращает вопросы недели в фиксированном порядке.
	QuestionsForWeek(ctx context.Context, weekID shared.WeekID, count int) ([]Question, error)
}
