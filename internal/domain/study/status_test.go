package study

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// testWeek строит неделю из двух уроков, в каждом по три этапа
// с двумя юнитами (estude, medite, responda).
func testWeek() *Week {
	makeLesson := func(id shared.LessonID, order int) *Lesson {
		return &Lesson{
			ID:     id,
			WeekID: "genesis-01",
			Title:  "Lição " + string(id),
			Order:  order,
			Stages: []Stage{
				{Type: StageEstude, TotalUnits: 2},
				{Type: StageMedite, TotalUnits: 2},
				{Type: StageResponda, TotalUnits: 2},
			},
			XPReward: 100,
		}
	}
	return &Week{
		ID:    "genesis-01",
		Title: "Gênesis - Semana 1",
		Order: 0,
		Lessons: []*Lesson{
			makeLesson("licao-criacao", 0),
			makeLesson("licao-queda", 1),
		},
	}
}

// completeStage отмечает все юниты этапа завершёнными.
func completeStage(cs CompletionSet, lessonID shared.LessonID, st StageType, units int) {
	cs.Put(StageCompletion{LessonID: lessonID, StageType: st, CompletedUnits: units})
}

func completeLesson(cs CompletionSet, lessonID shared.LessonID) {
	for _, st := range StageOrder {
		completeStage(cs, lessonID, st, 2)
	}
}

func TestParseStageType(t *testing.T) {
	st, err := ParseStageType("  Estude ")
	require.NoError(t, err)
	assert.Equal(t, StageEstude, st)

	_, err = ParseStageType("review")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestWeek_Validate(t *testing.T) {
	assert.NoError(t, testWeek().Validate())

	w := testWeek()
	w.Lessons[1].Order = 5
	assert.Error(t, w.Validate())

	w = testWeek()
	w.Lessons[0].Stages = []Stage{
		{Type: StageMedite, TotalUnits: 2},
		{Type: StageEstude, TotalUnits: 2},
	}
	assert.Error(t, w.Validate())

	w = testWeek()
	w.Lessons[0].Stages[0].TotalUnits = 0
	assert.Error(t, w.Validate())
}

func TestComputeWeekStatus_FreshWeek(t *testing.T) {
	ws := ComputeWeekStatus(testWeek(), CompletionSet{}, true, false)

	require.Len(t, ws.Lessons, 2)
	assert.Equal(t, StatusCurrent, ws.Lessons[0].Status)
	assert.Equal(t, StatusLocked, ws.Lessons[1].Status)
	assert.Equal(t, 0, ws.LessonsCompleted)
	assert.False(t, ws.Completed)

	// Внутри текущего урока открыт только первый этап.
	first := ws.Lessons[0]
	assert.Equal(t, StatusCurrent, first.Stages[0].Status)
	assert.Equal(t, StatusLocked, first.Stages[1].Status)
	assert.Equal(t, StatusLocked, first.Stages[2].Status)

	// В заблокированном уроке заблокированы все этапы.
	for _, st := range ws.Lessons[1].Stages {
		assert.Equal(t, StatusLocked, st.Status)
	}
}

func TestComputeWeekStatus_LockedWeek(t *testing.T) {
	ws := ComputeWeekStatus(testWeek(), CompletionSet{}, false, false)

	assert.Equal(t, StatusLocked, ws.Lessons[0].Status)
	assert.Equal(t, StatusLocked, ws.Lessons[1].Status)
}

func TestComputeWeekStatus_SequentialUnlock(t *testing.T) {
	cs := CompletionSet{}
	completeStage(cs, "licao-criacao", StageEstude, 2)

	ws := ComputeWeekStatus(testWeek(), cs, true, false)
	first := ws.Lessons[0]
	assert.Equal(t, StatusCurrent, first.Status)
	assert.Equal(t, StatusCompleted, first.Stages[0].Status)
	assert.Equal(t, StatusCurrent, first.Stages[1].Status)
	assert.Equal(t, StatusLocked, first.Stages[2].Status)

	completeLesson(cs, "licao-criacao")
	ws = ComputeWeekStatus(testWeek(), cs, true, false)
	assert.Equal(t, StatusCompleted, ws.Lessons[0].Status)
	assert.Equal(t, StatusCurrent, ws.Lessons[1].Status)
	assert.Equal(t, 1, ws.LessonsCompleted)
}

func TestComputeWeekStatus_Completed(t *testing.T) {
	cs := CompletionSet{}
	completeLesson(cs, "licao-criacao")
	completeLesson(cs, "licao-queda")

	ws := ComputeWeekStatus(testWeek(), cs, true, false)
	assert.True(t, ws.Completed)
	assert.Equal(t, 2, ws.LessonsCompleted)
}

func TestComputeWeekStatus_GoldenDecoration(t *testing.T) {
	cs := CompletionSet{}
	completeLesson(cs, "licao-criacao")
	completeLesson(cs, "licao-queda")

	ws := ComputeWeekStatus(testWeek(), cs, true, true)
	for _, ls := range ws.Lessons {
		assert.True(t, ls.Golden)
	}
}

// Лишние юниты в записи (больше, чем в контенте) не ломают отображение.
func TestComputeWeekStatus_ClampsOvercount(t *testing.T) {
	cs := CompletionSet{}
	completeStage(cs, "licao-criacao", StageEstude, 7)

	ws := ComputeWeekStatus(testWeek(), cs, true, false)
	st := ws.Lessons[0].Stages[0]
	assert.Equal(t, 2, st.CompletedUnits)
	assert.Equal(t, StatusCompleted, st.Status)
}

// Проекция - чистая функция: повторный вызов с тем же входом
// даёт идентичный результат.
func TestComputeWeekStatus_Deterministic(t *testing.T) {
	cs := CompletionSet{}
	completeStage(cs, "licao-criacao", StageEstude, 2)
	completeStage(cs, "licao-criacao", StageMedite, 1)

	first := ComputeWeekStatus(testWeek(), cs, true, false)
	second := ComputeWeekStatus(testWeek(), cs, true, false)
	assert.Equal(t, first, second)
}

func TestCompleteUnit_HappyPath(t *testing.T) {
	cs := CompletionSet{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	result, err := CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completion.CompletedUnits)
	assert.False(t, result.StageCompleted)

	result, err = CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Completion.CompletedUnits)
	assert.True(t, result.StageCompleted)
	assert.False(t, result.LessonCompleted)
}

func TestCompleteUnit_LessonAndWeekCompletion(t *testing.T) {
	cs := CompletionSet{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	completeLesson(cs, "licao-criacao")
	completeStage(cs, "licao-queda", StageEstude, 2)
	completeStage(cs, "licao-queda", StageMedite, 2)
	completeStage(cs, "licao-queda", StageResponda, 1)

	result, err := CompleteUnit(testWeek(), cs, true, "licao-queda", StageResponda, 1, now)
	require.NoError(t, err)
	assert.True(t, result.StageCompleted)
	assert.True(t, result.LessonCompleted)
	assert.True(t, result.WeekCompleted)
}

func TestCompleteUnit_Errors(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("unknown lesson", func(t *testing.T) {
		_, err := CompleteUnit(testWeek(), CompletionSet{}, true, "licao-inexistente", StageEstude, 0, now)
		assert.ErrorIs(t, err, shared.ErrLessonNotFound)
	})

	t.Run("unit index out of range", func(t *testing.T) {
		_, err := CompleteUnit(testWeek(), CompletionSet{}, true, "licao-criacao", StageEstude, 2, now)
		assert.ErrorIs(t, err, shared.ErrUnitOutOfRange)

		_, err = CompleteUnit(testWeek(), CompletionSet{}, true, "licao-criacao", StageEstude, -1, now)
		assert.ErrorIs(t, err, shared.ErrUnitOutOfRange)
	})

	t.Run("locked lesson", func(t *testing.T) {
		_, err := CompleteUnit(testWeek(), CompletionSet{}, true, "licao-queda", StageEstude, 0, now)
		assert.ErrorIs(t, err, shared.ErrLessonLocked)
	})

	t.Run("locked week locks first lesson", func(t *testing.T) {
		_, err := CompleteUnit(testWeek(), CompletionSet{}, false, "licao-criacao", StageEstude, 0, now)
		assert.ErrorIs(t, err, shared.ErrLessonLocked)
	})

	t.Run("locked stage", func(t *testing.T) {
		_, err := CompleteUnit(testWeek(), CompletionSet{}, true, "licao-criacao", StageMedite, 0, now)
		assert.ErrorIs(t, err, shared.ErrStageLocked)
	})

	t.Run("skipping a unit", func(t *testing.T) {
		cs := CompletionSet{}
		_, err := CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 1, now)
		assert.ErrorIs(t, err, shared.ErrUnitOutOfRange)
	})

	t.Run("completed stage rejects regression", func(t *testing.T) {
		cs := CompletionSet{}
		completeStage(cs, "licao-criacao", StageEstude, 2)

		result, err := CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 0, now)
		assert.ErrorIs(t, err, shared.ErrStageRegression)
		// Запись не изменилась.
		assert.Equal(t, 2, result.Completion.CompletedUnits)
	})
}

// Повторное завершение уже пройденного юнита - no-op без ошибки.
func TestCompleteUnit_IdempotentRepeat(t *testing.T) {
	cs := CompletionSet{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 0, now)
	require.NoError(t, err)

	result, err := CompleteUnit(testWeek(), cs, true, "licao-criacao", StageEstude, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completion.CompletedUnits)
	assert.False(t, result.StageCompleted)
}
