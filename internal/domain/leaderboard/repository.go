package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// SeasonRepository определяет операции для работы с сезонами.
type SeasonRepository interface {
	// GetByID возвращает сезон по идентификатору.
	// Возвращает ErrSeasonNotFound, если сезон не найден.
	GetByID(ctx context.Context, seasonID string) (*Season, error)

	// List возвращает все сезоны, новые первыми.
	List(ctx context.Context) ([]*Season, error)
}

// Cache кеширует собранные рейтинги с ограниченным TTL.
// Контракт свежести: изменения ранга становятся видимыми не позже,
// чем через TTL (5 секунд по умолчанию).
type Cache interface {
	// Get возвращает кешированный рейтинг периода.
	// Возвращает (nil, nil) при промахе кеша.
	Get(ctx context.Context, period Period) ([]*Entry, error)

	// Set сохраняет рейтинг периода с TTL.
	Set(ctx context.Context, period Period, entries []*Entry, ttl time.Duration) error

	// Invalidate сбрасывает кеш периода.
	Invalidate(ctx context.Context, period Period) error
}
