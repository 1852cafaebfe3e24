package achievement

import (
	"context"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с достижениями.
type Repository interface {
	// GetCatalog возвращает каталог достижений.
	GetCatalog(ctx context.Context) ([]Achievement, error)

	// GetUnlocks возвращает разблокированные достижения пользователя,
	// отсортированные по времени разблокировки (новые первыми).
	GetUnlocks(ctx context.Context, userID shared.UserID, limit int) ([]Unlock, error)

	// GetUnlockedCodes возвращает множество кодов разблокированных
	// достижений пользователя.
	GetUnlockedCodes(ctx context.Context, userID shared.UserID) (map[string]bool, error)

	// SaveUnlock сохраняет разблокировку. Идемпотентна: повторная
	// вставка той же пары (пользователь, код) возвращает
	// ErrAchievementUnlocked и не создаёт вторую запись.
	SaveUnlock(ctx context.Context, unlock Unlock) error
}
