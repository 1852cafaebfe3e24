package query

import (
	"context"
	"errors"
	"time"

	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENTS QUERY
// Возвращает каталог достижений с отметками разблокировки.
// Секретные достижения скрываются до разблокировки: виден только
// факт существования, без названия и условия.
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementsQuery содержит параметры запроса достижений.
type GetAchievementsQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// Limit - ограничение списка недавних разблокировок
	// (0 = значение по умолчанию).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetAchievementsQuery) Validate() error {
	if q.UserID.IsEmpty() {
		return errors.New("user_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	return nil
}

// AchievementDTO - DTO для достижения каталога.
type AchievementDTO struct {
	// Code - уникальный код достижения.
	Code string `json:"code"`

	// Category - категория (streak, study, practice, progress).
	Category string `json:"category"`

	// Title - название. Пустое для скрытого секретного достижения.
	Title string `json:"title,omitempty"`

	// Description - описание условия. Пустое для скрытого секретного.
	Description string `json:"description,omitempty"`

	// XPReward - награда XP за разблокировку.
	XPReward int `json:"xp_reward"`

	// IsSecret - секретное достижение.
	IsSecret bool `json:"is_secret"`

	// IsUnlocked - разблокировано пользователем.
	IsUnlocked bool `json:"is_unlocked"`

	// UnlockedAt - время разблокировки.
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// GetAchievementsResult содержит каталог с отметками разблокировки.
type GetAchievementsResult struct {
	// Achievements - каталог целиком.
	Achievements []AchievementDTO `json:"achievements"`

	// UnlockedCount - разблокировано достижений.
	UnlockedCount int `json:"unlocked_count"`

	// TotalCount - всего достижений в каталоге.
	TotalCount int `json:"total_count"`

	// Recent - недавние разблокировки, новые первыми (не более Limit).
	Recent []AchievementDTO `json:"recent"`
}

// GetAchievementsHandler обрабатывает запросы достижений.
type GetAchievementsHandler struct {
	repo achievement.Repository
}

// NewGetAchievementsHandler создаёт новый обработчик.
func NewGetAchievementsHandler(repo achievement.Repository) *GetAchievementsHandler {
	return &GetAchievementsHandler{repo: repo}
}

// Handle выполняет запрос достижений.
func (h *GetAchievementsHandler) Handle(ctx context.Context, query GetAchievementsQuery) (*GetAchievementsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetAchievements", shared.ErrValidation, err.Error(), err)
	}

	catalog, err := h.repo.GetCatalog(ctx)
	if err != nil {
		return nil, err
	}

	unlocks, err := h.repo.GetUnlocks(ctx, query.UserID, query.Limit)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.Code] = u.UnlockedAt
	}

	codes, err := h.repo.GetUnlockedCodes(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]AchievementDTO, len(catalog))
	result := &GetAchievementsResult{
		Achievements: make([]AchievementDTO, 0, len(catalog)),
		TotalCount:   len(catalog),
	}
	for _, a := range catalog {
		dto := AchievementDTO{
			Code:        a.Code,
			Category:    string(a.Category),
			Title:       a.Title,
			Description: a.Description,
			XPReward:    a.XPReward,
			IsSecret:    a.IsSecret,
			IsUnlocked:  codes[a.Code],
		}
		if at, ok := unlockedAt[a.Code]; ok {
			t := at
			dto.UnlockedAt = &t
		}
		if a.IsSecret && !dto.IsUnlocked {
			dto.Title = ""
			dto.Description = ""
		}
		if dto.IsUnlocked {
			result.UnlockedCount++
		}
		byCode[a.Code] = dto
		result.Achievements = append(result.Achievements, dto)
	}

	result.Recent = make([]AchievementDTO, 0, len(unlocks))
	for _, u := range unlocks {
		if dto, ok := byCode[u.Code]; ok {
			result.Recent = append(result.Recent, dto)
		}
	}

	return result, nil
}
