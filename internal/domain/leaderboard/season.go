package leaderboard

import (
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON
// ══════════════════════════════════════════════════════════════════════════════

// Season представляет ограниченный датами соревновательный период.
// Закрытый сезон остаётся доступным для исторических запросов.
type Season struct {
	// ID - идентификатор сезона.
	ID string `json:"id"`

	// Name - название сезона.
	Name string `json:"name"`

	// StartDate - начало окна (включительно).
	StartDate time.Time `json:"start_date"`

	// EndDate - конец окна (исключительно).
	EndDate time.Time `json:"end_date"`
}

// IsActive проверяет, открыт ли сезон на момент now.
func (s Season) IsActive(now time.Time) bool {
	return !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// Window возвращает окно сезона как TimeRange.
func (s Season) Window() shared.TimeRange {
	return shared.TimeRange{From: s.StartDate, To: s.EndDate}
}

// Validate проверяет корректность сезона.
func (s Season) Validate() error {
	if s.ID == "" || s.Name == "" {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrInvalidEntity, "season without id or name")
	}
	if !s.StartDate.Before(s.EndDate) {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrInvalidEntity, "season start must precede end")
	}
	return nil
}
