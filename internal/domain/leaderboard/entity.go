// Package leaderboard содержит доменную модель рейтингов движка.
// Лидерборд - это проекция над журналом XP, а не отдельная хранимая
// сущность: каждый запрос пересчитывается из сумм за окно периода.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIODS
// ══════════════════════════════════════════════════════════════════════════════

// PeriodType представляет тип периода лидерборда.
type PeriodType string

const (
	// PeriodWeekly - текущая ISO-неделя ("geral").
	PeriodWeekly PeriodType = "weekly"
	// PeriodAnnual - календарный год, выбираемый параметром year.
	PeriodAnnual PeriodType = "annual"
	// PeriodSeasonal - ограниченный датами сезон.
	PeriodSeasonal PeriodType = "seasonal"
)

// IsValid проверяет, что тип периода известен.
func (pt PeriodType) IsValid() bool {
	switch pt {
	case PeriodWeekly, PeriodAnnual, PeriodSeasonal:
		return true
	}
	return false
}

// String возвращает строковое представление.
func (pt PeriodType) String() string {
	return string(pt)
}

// ParsePeriodType разбирает строку в PeriodType.
func ParsePeriodType(s string) (PeriodType, error) {
	pt := PeriodType(s)
	if !pt.IsValid() {
		return "", shared.ErrInvalidPeriod
	}
	return pt, nil
}

// Period представляет разрешённый период: тип, ключ и окно времени.
type Period struct {
	// Type - тип периода.
	Type PeriodType

	// Key - человекочитаемый ключ ("2026-W36", "2026", ID сезона).
	Key string

	// Window - полуоткрытое окно времени [From, To).
	Window shared.TimeRange
}

// String возвращает представление для логов и ключей кеша.
func (p Period) String() string {
	return fmt.Sprintf("%s:%s", p.Type, p.Key)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну строку лидерборда.
// Проекция: пересчитывается при каждом запросе, не хранится.
type Entry struct {
	// Rank - позиция в рейтинге (с 1).
	Rank shared.Rank `json:"rank"`

	// UserID - идентификатор пользователя.
	UserID shared.UserID `json:"user_id"`

	// TotalXP - XP за окно периода.
	TotalXP int `json:"total_xp"`

	// Level - текущий уровень (из общего прогресса, не периода).
	Level int `json:"level"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"current_streak"`

	// DailyXP - XP за последние 24 часа. Только для отображения,
	// не участвует в сортировке.
	DailyXP int `json:"daily_xp"`

	// IsOnline - онлайн-бейдж. Только для отображения, никогда
	// не влияет на ранжирование.
	IsOnline bool `json:"is_online"`

	// LastActivityAt - последняя активность внутри периода.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking представляет отсортированный список строк лидерборда.
type Ranking struct {
	entries []*Entry
	byID    map[shared.UserID]*Entry
}

// NewRanking создаёт пустой Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.UserID]*Entry),
	}
}

// Add добавляет запись в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrInvalidInput, "nil entry")
	}
	if _, exists := r.byID[entry.UserID]; exists {
		return shared.NewDomainError("leaderboard", "Add", shared.ErrAlreadyExists, "duplicate user in ranking")
	}
	r.entries = append(r.entries, entry)
	r.byID[entry.UserID] = entry
	return nil
}

// Sort сортирует записи и присваивает ранги.
//
// Порядок: XP по убыванию; при равном XP выше тот, кто достиг суммы
// раньше (более ранний LastActivityAt); при полном равенстве - по
// UserID, чтобы повторные запросы с теми же данными возвращали
// идентичный порядок.
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.TotalXP != b.TotalXP {
			return a.TotalXP > b.TotalXP
		}
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.Before(b.LastActivityAt)
		}
		return a.UserID < b.UserID
	})
	for i, entry := range r.entries {
		entry.Rank = shared.Rank(i + 1)
	}
}

// GetByID возвращает запись по ID пользователя.
func (r *Ranking) GetByID(userID shared.UserID) *Entry {
	return r.byID[userID]
}

// Top возвращает топ-N записей.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]*Entry, n)
	copy(result, r.entries[:n])
	return result
}

// All возвращает все записи.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Count возвращает количество записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}
