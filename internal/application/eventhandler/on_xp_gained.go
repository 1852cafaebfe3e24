package eventhandler

import (
	"context"
	"time"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/logger"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP GAINED HANDLER
// Сбрасывает кеш недельного лидерборда при начислении XP, чтобы
// изменение ранга стало видимым раньше истечения TTL. Годовой и
// сезонные кеши живут до TTL: их окна большие, а изменение одной
// строки редко меняет топ.
// ═══════════════════════════════════════════════════════════════════════════

// OnXPGainedHandler сбрасывает кеш лидерборда после начисления XP.
type OnXPGainedHandler struct {
	cache leaderboard.Cache
	log   *logger.Logger
}

// NewOnXPGainedHandler создаёт новый обработчик.
func NewOnXPGainedHandler(cache leaderboard.Cache, log *logger.Logger) *OnXPGainedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnXPGainedHandler{
		cache: cache,
		log:   log.With(logger.Component("on_xp_gained")),
	}
}

// EventTypes возвращает типы событий, запускающие сброс кеша.
func (h *OnXPGainedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventXPGained}
}

// Handle обрабатывает событие начисления XP.
// Реализует интерфейс shared.EventHandler.
func (h *OnXPGainedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	from, to, key := timeutil.WeekWindow(timeutil.Now())
	period := leaderboard.Period{
		Type:   leaderboard.PeriodWeekly,
		Key:    key,
		Window: shared.TimeRange{From: from, To: to},
	}
	if err := h.cache.Invalidate(ctx, period); err != nil {
		h.log.Warn("leaderboard cache invalidation failed",
			logger.String("period", period.String()),
			logger.Err(err),
		)
	}
	return nil
}
