package progress

import (
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS (единственный владелец XP, уровня и серии)
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress представляет накопленный прогресс пользователя.
// Мутируется только событиями завершения; все остальные компоненты
// читают его или добавляют события в журнал.
type UserProgress struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// TotalXP - суммарный XP за всё время.
	TotalXP shared.XP

	// Level - уровень, монотонная функция от TotalXP.
	Level shared.Level

	// CurrentStreak - текущая серия календарных дней с активностью.
	CurrentStreak int

	// BestStreak - лучшая серия за всё время.
	BestStreak int

	// LastActivityDate - дата последней активности (начало дня).
	LastActivityDate time.Time

	// UnitsCompleted - всего завершено юнитов.
	UnitsCompleted int

	// LessonsCompleted - всего завершено уроков.
	LessonsCompleted int

	// WeeksMastered - недель пройдено на три звезды.
	WeeksMastered int

	// PracticesCompleted - всего завершено практик (с любым результатом).
	PracticesCompleted int

	// CreatedAt - когда создана запись.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewUserProgress создаёт пустой прогресс для нового пользователя.
func NewUserProgress(userID shared.UserID) *UserProgress {
	now := time.Now().UTC()
	return &UserProgress{
		UserID:    userID,
		TotalXP:   0,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CompletionDelta описывает, что изменилось после применения завершения.
type CompletionDelta struct {
	// XPGained - начислено XP.
	XPGained int

	// NewTotalXP - новый суммарный XP.
	NewTotalXP int

	// OldLevel - уровень до начисления.
	OldLevel shared.Level

	// NewLevel - уровень после начисления.
	NewLevel shared.Level

	// LeveledUp - уровень вырос.
	LeveledUp bool

	// OldStreak - серия до применения.
	OldStreak int

	// NewStreak - серия после применения.
	NewStreak int

	// StreakReset - серия была сброшена из-за пропущенного дня.
	StreakReset bool
}

// ApplyCompletion применяет событие завершения: начисляет XP и
// обновляет серию по календарным дням в переданной временной зоне.
//
// Правила серии:
//   - тот же день  → серия не меняется;
//   - следующий день → серия +1;
//   - пропуск дня  → серия сбрасывается в 1.
func (p *UserProgress) ApplyCompletion(xpAmount int, at time.Time, loc *time.Location) (CompletionDelta, error) {
	if xpAmount < 0 {
		return CompletionDelta{}, shared.ErrInvalidXPAmount
	}

	local := at.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	delta := CompletionDelta{
		OldLevel:  p.Level,
		OldStreak: p.CurrentStreak,
		XPGained:  xpAmount,
	}

	p.TotalXP = p.TotalXP.Add(xpAmount)
	p.Level = p.TotalXP.Level()

	if p.LastActivityDate.IsZero() {
		p.CurrentStreak = 1
	} else {
		lastLocal := p.LastActivityDate.In(loc)
		lastDay := time.Date(lastLocal.Year(), lastLocal.Month(), lastLocal.Day(), 0, 0, 0, 0, loc)

		daysDiff := daysBetween(lastDay, day)
		switch daysDiff {
		case 0:
			// Тот же день - серия уже учтена.
		case 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
			delta.StreakReset = true
		}
	}
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}

	p.LastActivityDate = day
	p.UpdatedAt = at.UTC()

	delta.NewTotalXP = p.TotalXP.Int()
	delta.NewLevel = p.Level
	delta.LeveledUp = p.Level > delta.OldLevel
	delta.NewStreak = p.CurrentStreak
	return delta, nil
}

// daysBetween возвращает количество календарных дней между двумя
// началами дня. Округление до суток компенсирует переводы часов:
// в зонах с летним временем интервал между соседними полуночами
// бывает 23 или 25 часов.
func daysBetween(from, to time.Time) int {
	const day = 24 * time.Hour
	return int(to.Sub(from).Round(day) / day)
}

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENT LOG
// ══════════════════════════════════════════════════════════════════════════════

// XPSource представляет источник начисления XP.
type XPSource string

const (
	// SourceLesson - завершение урока.
	SourceLesson XPSource = "lesson_completed"
	// SourcePractice - завершение практики.
	SourcePractice XPSource = "practice_completed"
	// SourceAchievement - награда за достижение.
	SourceAchievement XPSource = "achievement_unlocked"
)

// XPEvent - одна запись в журнале начислений XP.
// Журнал питает лидерборды по периодам и dailyXp.
type XPEvent struct {
	// ID - идентификатор записи.
	ID string

	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// Amount - начислено XP.
	Amount int

	// Source - источник начисления.
	Source XPSource

	// RefID - ссылка на сущность-источник (урок, неделя, достижение).
	RefID string

	// OccurredAt - когда произошло начисление.
	OccurredAt time.Time
}
