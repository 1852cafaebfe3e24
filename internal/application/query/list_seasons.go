package query

import (
	"context"
	"time"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SEASONS QUERY
// Возвращает сезоны лидерборда, новые первыми. Закрытые сезоны
// остаются запрашиваемыми: их рейтинг доступен и после окончания.
// ══════════════════════════════════════════════════════════════════════════════

// SeasonDTO - DTO для сезона.
type SeasonDTO struct {
	// ID - идентификатор сезона.
	ID string `json:"id"`

	// Name - название сезона.
	Name string `json:"name"`

	// StartDate - начало сезона.
	StartDate time.Time `json:"start_date"`

	// EndDate - конец сезона (исключительно).
	EndDate time.Time `json:"end_date"`

	// IsActive - сезон идёт сейчас.
	IsActive bool `json:"is_active"`
}

// ListSeasonsResult содержит список сезонов.
type ListSeasonsResult struct {
	// Seasons - сезоны, новые первыми.
	Seasons []SeasonDTO `json:"seasons"`
}

// ListSeasonsHandler обрабатывает запросы списка сезонов.
type ListSeasonsHandler struct {
	seasonRepo leaderboard.SeasonRepository
}

// NewListSeasonsHandler создаёт новый обработчик.
func NewListSeasonsHandler(seasonRepo leaderboard.SeasonRepository) *ListSeasonsHandler {
	return &ListSeasonsHandler{seasonRepo: seasonRepo}
}

// Handle выполняет запрос списка сезонов.
func (h *ListSeasonsHandler) Handle(ctx context.Context) (*ListSeasonsResult, error) {
	seasons, err := h.seasonRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := timeutil.Now()
	result := &ListSeasonsResult{Seasons: make([]SeasonDTO, 0, len(seasons))}
	for _, s := range seasons {
		result.Seasons = append(result.Seasons, SeasonDTO{
			ID:        s.ID,
			Name:      s.Name,
			StartDate: s.StartDate,
			EndDate:   s.EndDate,
			IsActive:  s.IsActive(now),
		})
	}
	return result, nil
}
