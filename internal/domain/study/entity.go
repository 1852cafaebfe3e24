package study

import (
	"strings"
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT ENTITIES (недели, уроки, этапы)
// ══════════════════════════════════════════════════════════════════════════════

// StageType представляет тип этапа урока.
// Порядок этапов фиксирован: estude → medite → responda.
type StageType string

const (
	// StageEstude - этап изучения материала.
	StageEstude StageType = "estude"
	// StageMedite - этап размышления над материалом.
	StageMedite StageType = "medite"
	// StageResponda - этап с вопросами по материалу.
	StageResponda StageType = "responda"
)

// StageOrder - канонический порядок этапов внутри урока.
var StageOrder = []StageType{StageEstude, StageMedite, StageResponda}

// IsValid проверяет, что тип этапа известен.
func (st StageType) IsValid() bool {
	switch st {
	case StageEstude, StageMedite, StageResponda:
		return true
	}
	return false
}

// String возвращает строковое представление.
func (st StageType) String() string {
	return string(st)
}

// Index возвращает позицию этапа в каноническом порядке (-1 для неизвестных).
func (st StageType) Index() int {
	for i, t := range StageOrder {
		if t == st {
			return i
		}
	}
	return -1
}

// ParseStageType разбирает строку в StageType.
func ParseStageType(s string) (StageType, error) {
	st := StageType(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", shared.NewDomainError("study", "ParseStageType", shared.ErrInvalidInput, "unknown stage type")
	}
	return st, nil
}

// Stage представляет этап урока.
type Stage struct {
	// Type - тип этапа.
	Type StageType

	// TotalUnits - количество юнитов в этапе.
	TotalUnits int
}

// Lesson представляет урок внутри недели.
type Lesson struct {
	// ID - идентификатор урока.
	ID shared.LessonID

	// WeekID - идентификатор недели.
	WeekID shared.WeekID

	// Title - название урока.
	Title string

	// Order - порядковый номер внутри недели (с нуля).
	Order int

	// Stages - этапы в каноническом порядке.
	Stages []Stage

	// XPReward - XP за завершение урока.
	XPReward int
}

// Stage возвращает этап по типу.
func (l *Lesson) Stage(t StageType) (Stage, bool) {
	for _, s := range l.Stages {
		if s.Type == t {
			return s, true
		}
	}
	return Stage{}, false
}

// TotalUnits возвращает суммарное количество юнитов во всех этапах.
func (l *Lesson) TotalUnits() int {
	total := 0
	for _, s := range l.Stages {
		total += s.TotalUnits
	}
	return total
}

// Week представляет учебную неделю - упорядоченный набор уроков.
type Week struct {
	// ID - идентификатор недели.
	ID shared.WeekID

	// Title - название недели.
	Title string

	// Order - глобальный порядковый номер недели (с нуля).
	Order int

	// Lessons - уроки в порядке прохождения.
	Lessons []*Lesson

	// PublishedAt - когда неделя стала доступна.
	PublishedAt time.Time
}

// Lesson возвращает урок по идентификатору.
func (w *Week) Lesson(id shared.LessonID) (*Lesson, bool) {
	for _, l := range w.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// TotalLessons возвращает количество уроков в неделе.
func (w *Week) TotalLessons() int {
	return len(w.Lessons)
}

// Validate проверяет целостность недели: уроки упорядочены,
// этапы каждого урока идут в каноническом порядке.
func (w *Week) Validate() error {
	if !w.ID.IsValid() {
		return shared.NewDomainError("study", "Validate", shared.ErrInvalidID, "invalid week ID")
	}
	for i, l := range w.Lessons {
		if l.Order != i {
			return shared.NewDomainError("study", "Validate", shared.ErrInvalidEntity, "lesson order mismatch")
		}
		if len(l.Stages) == 0 {
			return shared.NewDomainError("study", "Validate", shared.ErrInvalidEntity, "lesson has no stages")
		}
		for j, s := range l.Stages {
			if s.Type.Index() != j {
				return shared.NewDomainError("study", "Validate", shared.ErrInvalidEntity, "stage order mismatch")
			}
			if s.TotalUnits <= 0 {
				return shared.NewDomainError("study", "Validate", shared.ErrInvalidEntity, "stage has no units")
			}
		}
	}
	return nil
}
