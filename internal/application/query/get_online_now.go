package query

import (
	"context"
	"sort"
	"time"

	"github.com/deoglory/study-engine/internal/domain/presence"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ONLINE NOW QUERY
// Возвращает снимок онлайн-множества. Только для отображения:
// присутствие никогда не влияет на очки или ранжирование.
// ══════════════════════════════════════════════════════════════════════════════

// GetOnlineNowQuery содержит параметры запроса онлайн-пользователей.
type GetOnlineNowQuery struct {
	// Limit - количество записей (0 = без ограничения).
	Limit int
}

// OnlineUserDTO - DTO для онлайн-пользователя.
type OnlineUserDTO struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"current_streak"`
}

// GetOnlineNowResult содержит снимок онлайн-множества.
type GetOnlineNowResult struct {
	// Users - онлайн-пользователи.
	Users []OnlineUserDTO `json:"users"`

	// TotalOnline - размер онлайн-множества.
	TotalOnline int `json:"total_online"`

	// GeneratedAt - время генерации снимка.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetOnlineNowHandler обрабатывает запросы онлайн-множества.
type GetOnlineNowHandler struct {
	tracker      presence.Tracker
	progressRepo progress.Repository
}

// NewGetOnlineNowHandler создаёт новый обработчик.
func NewGetOnlineNowHandler(tracker presence.Tracker, progressRepo progress.Repository) *GetOnlineNowHandler {
	return &GetOnlineNowHandler{tracker: tracker, progressRepo: progressRepo}
}

// Handle выполняет запрос онлайн-множества.
func (h *GetOnlineNowHandler) Handle(ctx context.Context, query GetOnlineNowQuery) (*GetOnlineNowResult, error) {
	userIDs, err := h.tracker.OnlineUserIDs(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetOnlineNow", shared.ErrServiceUnavailable, "presence snapshot failed", err)
	}

	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	total := len(userIDs)
	if query.Limit > 0 && len(userIDs) > query.Limit {
		userIDs = userIDs[:query.Limit]
	}

	result := &GetOnlineNowResult{
		Users:       make([]OnlineUserDTO, 0, len(userIDs)),
		TotalOnline: total,
		GeneratedAt: time.Now().UTC(),
	}

	// Профили обогащают снимок, но их отсутствие не ломает список.
	profiles, err := h.progressRepo.GetByUserIDs(ctx, userIDs)
	if err != nil {
		profiles = nil
	}
	for _, id := range userIDs {
		dto := OnlineUserDTO{UserID: id.String()}
		if p, ok := profiles[id]; ok {
			dto.Level = p.Level.Int()
			dto.CurrentStreak = p.CurrentStreak
		}
		result.Users = append(result.Users, dto)
	}

	return result, nil
}
