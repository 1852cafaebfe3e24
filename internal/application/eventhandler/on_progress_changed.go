// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/logger"
	"github.com/deoglory/study-engine/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS CHANGED HANDLER
// Перепроверяет достижения после каждого события прогресса или счёта.
//
// Контракт:
// 1. Оценка идемпотентна — повторная доставка события не создаёт
//    вторую разблокировку (первичный ключ по паре пользователь+код).
// 2. Оценка не зависит от порядка событий — снимок читается из
//    хранилища, а не из события.
// 3. Сбой оценки никогда не роняет исходный запрос — обработчик
//    логирует, повторяет с backoff и в худшем случае молча сдаётся:
//    следующее событие прогресса перепроверит всё заново.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressChangedHandler перепроверяет достижения пользователя.
type OnProgressChangedHandler struct {
	progressRepo    progress.Repository
	resultRepo      practice.ResultRepository
	achievementRepo achievement.Repository
	evaluator       *achievement.Evaluator
	eventPublisher  shared.EventPublisher

	retrier *retry.Retrier
	log     *logger.Logger
	timeout time.Duration
}

// NewOnProgressChangedHandler создаёт новый обработчик.
func NewOnProgressChangedHandler(
	progressRepo progress.Repository,
	resultRepo practice.ResultRepository,
	achievementRepo achievement.Repository,
	evaluator *achievement.Evaluator,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *OnProgressChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnProgressChangedHandler{
		progressRepo:    progressRepo,
		resultRepo:      resultRepo,
		achievementRepo: achievementRepo,
		evaluator:       evaluator,
		eventPublisher:  eventPublisher,
		retrier:         retry.EvaluationRetrier(),
		log:             log.With(logger.Component("on_progress_changed")),
		timeout:         30 * time.Second,
	}
}

// EventTypes возвращает типы событий, запускающие перепроверку.
func (h *OnProgressChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventLessonCompleted,
		shared.EventWeekCompleted,
		shared.EventPracticeCompleted,
		shared.EventPracticeTimedOut,
		shared.EventWeekMastered,
		shared.EventLevelUp,
		shared.EventStreakUpdated,
	}
}

// Handle обрабатывает событие прогресса.
// Реализует интерфейс shared.EventHandler. Всегда возвращает nil:
// сбой оценки достижений не является ошибкой доставки события.
func (h *OnProgressChangedHandler) Handle(event shared.Event) error {
	userID := shared.UserID(event.AggregateID())
	if userID.IsEmpty() {
		h.log.Warn("event without aggregate id", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.evaluate(ctx, userID)
	})
	if err != nil {
		h.log.Error("achievement evaluation failed",
			logger.UserID(userID.String()),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
	return nil
}

// evaluate строит снимок прогресса и разблокирует новые достижения.
func (h *OnProgressChangedHandler) evaluate(ctx context.Context, userID shared.UserID) error {
	snapshot, err := h.buildSnapshot(ctx, userID)
	if err != nil {
		return err
	}

	unlocked, err := h.achievementRepo.GetUnlockedCodes(ctx, userID)
	if err != nil {
		return fmt.Errorf("get unlocked codes: %w", err)
	}

	newUnlocks := h.evaluator.Evaluate(snapshot, unlocked, time.Now().UTC())
	for _, unlock := range newUnlocks {
		if err := h.saveAndReward(ctx, unlock); err != nil {
			return err
		}
	}
	return nil
}

// buildSnapshot читает снимок прогресса из хранилища.
// Счётчики в событиях игнорируются: только хранилище гарантирует
// независимость оценки от порядка доставки. Счётчики практик читаются
// из результатов, а не из профиля: строки результатов - первоисточник.
func (h *OnProgressChangedHandler) buildSnapshot(ctx context.Context, userID shared.UserID) (achievement.Snapshot, error) {
	p, err := h.progressRepo.GetByUserID(ctx, userID)
	if err != nil {
		return achievement.Snapshot{}, fmt.Errorf("get progress: %w", err)
	}
	mastered, err := h.resultRepo.CountMastered(ctx, userID)
	if err != nil {
		return achievement.Snapshot{}, fmt.Errorf("count mastered: %w", err)
	}
	completed, err := h.resultRepo.CountCompleted(ctx, userID)
	if err != nil {
		return achievement.Snapshot{}, fmt.Errorf("count completed: %w", err)
	}
	return achievement.Snapshot{
		UserID:             userID,
		TotalXP:            p.TotalXP.Int(),
		Level:              p.Level.Int(),
		CurrentStreak:      p.CurrentStreak,
		LessonsCompleted:   p.LessonsCompleted,
		WeeksMastered:      mastered,
		PracticesCompleted: completed,
	}, nil
}

// saveAndReward сохраняет разблокировку и начисляет награду XP.
func (h *OnProgressChangedHandler) saveAndReward(ctx context.Context, unlock achievement.Unlock) error {
	if err := h.achievementRepo.SaveUnlock(ctx, unlock); err != nil {
		if errors.Is(err, shared.ErrAchievementUnlocked) {
			// Конкурентный обработчик успел первым - это не ошибка.
			return nil
		}
		return fmt.Errorf("save unlock %s: %w", unlock.Code, err)
	}

	def, ok := h.evaluator.Get(unlock.Code)
	if !ok {
		return nil
	}

	if def.XPReward > 0 {
		xpEvent := progress.XPEvent{
			UserID:     unlock.UserID,
			Amount:     def.XPReward,
			Source:     progress.SourceAchievement,
			RefID:      unlock.Code,
			OccurredAt: unlock.UnlockedAt,
		}
		_, err := h.progressRepo.ApplyCompletion(ctx, unlock.UserID, xpEvent, func(p *progress.UserProgress) (progress.CompletionDelta, error) {
			// Награда за достижение не трогает серию: начисляется
			// только XP. Передаём нулевую сумму в календарную логику
			// через прямое сложение.
			d := progress.CompletionDelta{
				OldLevel:  p.Level,
				OldStreak: p.CurrentStreak,
				XPGained:  def.XPReward,
			}
			p.TotalXP = p.TotalXP.Add(def.XPReward)
			p.Level = p.TotalXP.Level()
			d.NewTotalXP = p.TotalXP.Int()
			d.NewLevel = p.Level
			d.LeveledUp = d.NewLevel > d.OldLevel
			d.NewStreak = p.CurrentStreak
			return d, nil
		})
		if err != nil {
			return fmt.Errorf("apply achievement reward %s: %w", unlock.Code, err)
		}
	}

	h.log.Info("achievement unlocked",
		logger.UserID(unlock.UserID.String()),
		logger.String("code", unlock.Code),
		logger.XPAmount(def.XPReward),
	)

	_ = h.eventPublisher.Publish(shared.NewAchievementUnlockedEvent(
		unlock.UserID.String(), unlock.Code, def.XPReward,
	))
	return nil
}
