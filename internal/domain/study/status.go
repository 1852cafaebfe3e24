package study

import (
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS PROJECTION (машина состояний уроков и этапов)
// ══════════════════════════════════════════════════════════════════════════════
//
// Статусы уроков и этапов - вычисляемая проекция над записями о завершении,
// а не хранимое состояние. Это исключает расхождение между хранилищем
// и отображаемым состоянием.

// Status представляет статус урока или этапа.
// Переходы однонаправленные: locked → current → completed.
type Status string

const (
	// StatusLocked - недоступно: предыдущий урок или этап не завершён.
	StatusLocked Status = "locked"
	// StatusCurrent - доступно для прохождения прямо сейчас.
	StatusCurrent Status = "current"
	// StatusCompleted - завершено.
	StatusCompleted Status = "completed"
)

// StageCompletion представляет запись о прогрессе пользователя в одном этапе.
type StageCompletion struct {
	// LessonID - идентификатор урока.
	LessonID shared.LessonID

	// StageType - тип этапа.
	StageType StageType

	// CompletedUnits - сколько юнитов завершено.
	CompletedUnits int

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// CompletionSet - прогресс пользователя по одной неделе,
// индексированный по (урок, этап).
type CompletionSet map[shared.LessonID]map[StageType]StageCompletion

// Get возвращает запись о завершении этапа (нулевую, если её ещё нет).
func (cs CompletionSet) Get(lessonID shared.LessonID, st StageType) StageCompletion {
	if byStage, ok := cs[lessonID]; ok {
		if c, ok := byStage[st]; ok {
			return c
		}
	}
	return StageCompletion{LessonID: lessonID, StageType: st}
}

// Put записывает прогресс этапа.
func (cs CompletionSet) Put(c StageCompletion) {
	byStage, ok := cs[c.LessonID]
	if !ok {
		byStage = make(map[StageType]StageCompletion)
		cs[c.LessonID] = byStage
	}
	byStage[c.StageType] = c
}

// StageStatus представляет вычисленный статус одного этапа.
type StageStatus struct {
	Type           StageType `json:"type"`
	Status         Status    `json:"status"`
	CompletedUnits int       `json:"completed_units"`
	TotalUnits     int       `json:"total_units"`
}

// LessonStatus представляет вычисленный статус одного урока.
type LessonStatus struct {
	LessonID shared.LessonID `json:"lesson_id"`
	Title    string          `json:"title"`
	Status   Status          `json:"status"`
	Stages   []StageStatus   `json:"stages"`

	// Golden - декорация мастерства: неделя пройдена на три звезды.
	Golden bool `json:"golden"`
}

// WeekStatus представляет вычисленный статус недели целиком.
type WeekStatus struct {
	WeekID           shared.WeekID  `json:"week_id"`
	Title            string         `json:"title"`
	Lessons          []LessonStatus `json:"lessons"`
	LessonsCompleted int            `json:"lessons_completed"`
	TotalLessons     int            `json:"total_lessons"`

	// Completed - все уроки недели завершены.
	Completed bool `json:"completed"`
}

// stageCompleted проверяет инвариант завершённости: этап завершён
// тогда и только тогда, когда completedUnits == totalUnits.
func stageCompleted(stage Stage, c StageCompletion) bool {
	return c.CompletedUnits >= stage.TotalUnits
}

// lessonCompleted проверяет, что все этапы урока завершены.
func lessonCompleted(lesson *Lesson, cs CompletionSet) bool {
	for _, stage := range lesson.Stages {
		if !stageCompleted(stage, cs.Get(lesson.ID, stage.Type)) {
			return false
		}
	}
	return true
}

// ComputeWeekStatus вычисляет проекцию статусов недели из записей о завершении.
// Чистая функция: одинаковый вход всегда даёт одинаковый выход.
//
// Правила:
//   - первый урок недели разблокирован, если сама неделя разблокирована
//     (prevWeekDone для первой недели всегда true);
//   - каждый следующий урок разблокирован после завершения предыдущего;
//   - внутри урока этап становится current, только когда все предыдущие
//     этапы завершены;
//   - mastered проставляет декорацию golden на все уроки и этапы.
func ComputeWeekStatus(week *Week, cs CompletionSet, prevWeekDone, mastered bool) WeekStatus {
	ws := WeekStatus{
		WeekID:       week.ID,
		Title:        week.Title,
		Lessons:      make([]LessonStatus, 0, len(week.Lessons)),
		TotalLessons: len(week.Lessons),
	}

	prevLessonDone := prevWeekDone
	for _, lesson := range week.Lessons {
		done := lessonCompleted(lesson, cs)
		ls := LessonStatus{
			LessonID: lesson.ID,
			Title:    lesson.Title,
			Stages:   make([]StageStatus, 0, len(lesson.Stages)),
			Golden:   mastered,
		}

		switch {
		case done:
			ls.Status = StatusCompleted
			ws.LessonsCompleted++
		case prevLessonDone:
			ls.Status = StatusCurrent
		default:
			ls.Status = StatusLocked
		}

		prevStageDone := true
		for _, stage := range lesson.Stages {
			c := cs.Get(lesson.ID, stage.Type)
			st := StageStatus{
				Type:           stage.Type,
				CompletedUnits: c.CompletedUnits,
				TotalUnits:     stage.TotalUnits,
			}
			if st.CompletedUnits > stage.TotalUnits {
				st.CompletedUnits = stage.TotalUnits
			}

			stDone := stageCompleted(stage, c)
			switch {
			case stDone:
				st.Status = StatusCompleted
			case prevStageDone && ls.Status != StatusLocked:
				st.Status = StatusCurrent
			default:
				st.Status = StatusLocked
			}

			prevStageDone = stDone
			ls.Stages = append(ls.Stages, st)
		}

		ws.Lessons = append(ws.Lessons, ls)
		prevLessonDone = done
	}

	ws.Completed = ws.LessonsCompleted == ws.TotalLessons && ws.TotalLessons > 0
	return ws
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT COMPLETION (доменная операция)
// ══════════════════════════════════════════════════════════════════════════════

// UnitCompletionResult описывает, что изменилось после завершения юнита.
type UnitCompletionResult struct {
	// Completion - новое состояние этапа.
	Completion StageCompletion

	// StageCompleted - этап завершён этим юнитом.
	StageCompleted bool

	// LessonCompleted - урок завершён этим юнитом.
	LessonCompleted bool

	// WeekCompleted - неделя завершена этим юнитом.
	WeekCompleted bool
}

// CompleteUnit применяет завершение одного юнита к прогрессу пользователя.
//
// Проверки:
//   - urok должен быть current (не locked и не completed);
//   - этап должен быть current внутри урока;
//   - unitIndex должен быть следующим незавершённым юнитом
//     (повторное завершение того же юнита - no-op, не ошибка).
func CompleteUnit(
	week *Week,
	cs CompletionSet,
	prevWeekDone bool,
	lessonID shared.LessonID,
	stageType StageType,
	unitIndex int,
	now time.Time,
) (UnitCompletionResult, error) {
	lesson, ok := week.Lesson(lessonID)
	if !ok {
		return UnitCompletionResult{}, shared.ErrLessonNotFound
	}
	stage, ok := lesson.Stage(stageType)
	if !ok {
		return UnitCompletionResult{}, shared.NewDomainError("study", "CompleteUnit", shared.ErrInvalidInput, "unknown stage for lesson")
	}
	if unitIndex < 0 || unitIndex >= stage.TotalUnits {
		return UnitCompletionResult{}, shared.ErrUnitOutOfRange
	}

	status := ComputeWeekStatus(week, cs, prevWeekDone, false)
	var ls *LessonStatus
	for i := range status.Lessons {
		if status.Lessons[i].LessonID == lessonID {
			ls = &status.Lessons[i]
			break
		}
	}
	if ls == nil {
		return UnitCompletionResult{}, shared.ErrLessonNotFound
	}
	if ls.Status == StatusLocked {
		return UnitCompletionResult{}, shared.ErrLessonLocked
	}

	c := cs.Get(lessonID, stageType)
	if c.CompletedUnits >= stage.TotalUnits {
		// Этап уже завершён: регрессия запрещена, повтор игнорируется.
		return UnitCompletionResult{Completion: c}, shared.ErrStageRegression
	}

	var stStatus Status
	for _, st := range ls.Stages {
		if st.Type == stageType {
			stStatus = st.Status
			break
		}
	}
	if stStatus == StatusLocked {
		return UnitCompletionResult{}, shared.ErrStageLocked
	}

	if unitIndex < c.CompletedUnits {
		// Юнит уже завершён ранее - идемпотентный no-op.
		return UnitCompletionResult{Completion: c}, nil
	}
	if unitIndex > c.CompletedUnits {
		return UnitCompletionResult{}, shared.ErrUnitOutOfRange
	}

	c.CompletedUnits++
	c.UpdatedAt = now
	cs.Put(c)

	result := UnitCompletionResult{
		Completion:     c,
		StageCompleted: c.CompletedUnits == stage.TotalUnits,
	}
	if result.StageCompleted {
		result.LessonCompleted = lessonCompleted(lesson, cs)
	}
	if result.LessonCompleted {
		after := ComputeWeekStatus(week, cs, prevWeekDone, false)
		result.WeekCompleted = after.Completed
	}
	return result, nil
}
