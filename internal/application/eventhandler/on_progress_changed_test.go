package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

const testUserID = "6f1e0c2a-8f4b-4d2e-9a3b-1c5d7e9f0a2b"

// ─── Фейки хранилищ ─────────────────────────────────────────────────────────

type fakeProgressRepo struct {
	mu       sync.Mutex
	profiles map[shared.UserID]*progress.UserProgress
	journal  []progress.XPEvent
	getErr   error
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{profiles: map[shared.UserID]*progress.UserProgress{}}
}

func (f *fakeProgressRepo) GetByUserID(_ context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProgressRepo) GetOrCreate(_ context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		p = progress.NewUserProgress(userID)
		f.profiles[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProgressRepo) ApplyCompletion(_ context.Context, userID shared.UserID, event progress.XPEvent, apply func(*progress.UserProgress) (progress.CompletionDelta, error)) (progress.CompletionDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		p = progress.NewUserProgress(userID)
		f.profiles[userID] = p
	}
	delta, err := apply(p)
	if err != nil {
		return progress.CompletionDelta{}, err
	}
	if event.Amount > 0 {
		f.journal = append(f.journal, event)
	}
	return delta, nil
}

func (f *fakeProgressRepo) GetByUserIDs(_ context.Context, userIDs []shared.UserID) (map[shared.UserID]*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[shared.UserID]*progress.UserProgress{}
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

type fakeResultRepo struct {
	mastered  int
	completed int
	countErr  error
}

func (f *fakeResultRepo) Save(_ context.Context, _ practice.Result) error { return nil }

func (f *fakeResultRepo) GetBest(_ context.Context, _ shared.UserID, _ shared.WeekID) (*practice.Result, error) {
	return nil, nil
}

func (f *fakeResultRepo) IsMastered(_ context.Context, _ shared.UserID, _ shared.WeekID) (bool, error) {
	return false, nil
}

func (f *fakeResultRepo) CountCompleted(_ context.Context, _ shared.UserID) (int, error) {
	return f.completed, f.countErr
}

func (f *fakeResultRepo) CountMastered(_ context.Context, _ shared.UserID) (int, error) {
	return f.mastered, f.countErr
}

type fakeAchievementRepo struct {
	mu      sync.Mutex
	catalog []achievement.Achievement
	unlocks []achievement.Unlock
	saveErr error
}

func (f *fakeAchievementRepo) GetCatalog(_ context.Context) ([]achievement.Achievement, error) {
	return f.catalog, nil
}

func (f *fakeAchievementRepo) GetUnlocks(_ context.Context, userID shared.UserID, limit int) ([]achievement.Unlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []achievement.Unlock
	for _, u := range f.unlocks {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAchievementRepo) GetUnlockedCodes(_ context.Context, userID shared.UserID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := map[string]bool{}
	for _, u := range f.unlocks {
		if u.UserID == userID {
			codes[u.Code] = true
		}
	}
	return codes, nil
}

func (f *fakeAchievementRepo) SaveUnlock(_ context.Context, unlock achievement.Unlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, u := range f.unlocks {
		if u.UserID == unlock.UserID && u.Code == unlock.Code {
			return shared.ErrAchievementUnlocked
		}
	}
	f.unlocks = append(f.unlocks, unlock)
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (f *fakeBus) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeBus) published(eventType shared.EventType) []shared.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []shared.Event
	for _, e := range f.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type progressChangedFixture struct {
	progress     *fakeProgressRepo
	results      *fakeResultRepo
	achievements *fakeAchievementRepo
	bus          *fakeBus
	handler      *OnProgressChangedHandler
}

func newProgressChangedFixture() *progressChangedFixture {
	f := &progressChangedFixture{
		progress:     newFakeProgressRepo(),
		results:      &fakeResultRepo{},
		achievements: &fakeAchievementRepo{catalog: achievement.DefaultCatalog()},
		bus:          &fakeBus{},
	}
	f.handler = NewOnProgressChangedHandler(
		f.progress,
		f.results,
		f.achievements,
		achievement.NewEvaluator(achievement.DefaultCatalog()),
		f.bus,
		nil,
	)
	return f
}

// ─── Тесты ──────────────────────────────────────────────────────────────────

func TestOnProgressChanged_UnlocksFromStoredSnapshot(t *testing.T) {
	f := newProgressChangedFixture()
	f.progress.profiles[testUserID] = &progress.UserProgress{
		UserID:           testUserID,
		TotalXP:          100,
		Level:            2,
		LessonsCompleted: 1,
	}

	err := f.handler.Handle(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100))
	require.NoError(t, err)

	codes, err := f.achievements.GetUnlockedCodes(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, codes["first_lesson"])
	assert.Len(t, codes, 1)

	// Награда 50 XP начислена и записана в журнал.
	p, err := f.progress.GetByUserID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 150, p.TotalXP.Int())
	require.Len(t, f.progress.journal, 1)
	assert.Equal(t, 50, f.progress.journal[0].Amount)
	assert.Equal(t, progress.SourceAchievement, f.progress.journal[0].Source)
	assert.Equal(t, "first_lesson", f.progress.journal[0].RefID)

	require.Len(t, f.bus.published(shared.EventAchievementUnlocked), 1)
}

func TestOnProgressChanged_RedeliveryIsIdempotent(t *testing.T) {
	f := newProgressChangedFixture()
	f.progress.profiles[testUserID] = &progress.UserProgress{
		UserID:           testUserID,
		TotalXP:          100,
		Level:            2,
		LessonsCompleted: 1,
	}
	event := shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100)

	require.NoError(t, f.handler.Handle(event))
	require.NoError(t, f.handler.Handle(event))

	codes, err := f.achievements.GetUnlockedCodes(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Len(t, codes, 1)
	// Повторная доставка не начисляет награду второй раз.
	assert.Len(t, f.progress.journal, 1)
	assert.Len(t, f.bus.published(shared.EventAchievementUnlocked), 1)
}

// Конкурентный обработчик успел сохранить разблокировку первым:
// ErrAlreadyExists не считается сбоем, награда не дублируется.
func TestOnProgressChanged_ConcurrentUnlockTolerated(t *testing.T) {
	f := newProgressChangedFixture()
	f.progress.profiles[testUserID] = &progress.UserProgress{
		UserID:           testUserID,
		Level:            1,
		LessonsCompleted: 1,
	}
	f.achievements.saveErr = shared.ErrAchievementUnlocked

	err := f.handler.Handle(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100))
	require.NoError(t, err)

	assert.Empty(t, f.progress.journal)
	assert.Empty(t, f.bus.published(shared.EventAchievementUnlocked))
}

func TestOnProgressChanged_RewardDoesNotTouchStreak(t *testing.T) {
	f := newProgressChangedFixture()
	lastActivity := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.progress.profiles[testUserID] = &progress.UserProgress{
		UserID:           testUserID,
		TotalXP:          100,
		Level:            2,
		CurrentStreak:    5,
		BestStreak:       5,
		LastActivityDate: lastActivity,
		LessonsCompleted: 1,
	}

	require.NoError(t, f.handler.Handle(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100)))

	p, err := f.progress.GetByUserID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentStreak)
	assert.Equal(t, lastActivity, p.LastActivityDate)
	assert.Equal(t, 150, p.TotalXP.Int())
}

// Счётчики мастерства читаются из результатов практик, а не из
// счётчиков профиля.
func TestOnProgressChanged_MasteryCountedFromResults(t *testing.T) {
	f := newProgressChangedFixture()
	f.progress.profiles[testUserID] = &progress.UserProgress{
		UserID:  testUserID,
		TotalXP: 150,
		Level:   2,
	}
	f.results.mastered = 1
	f.results.completed = 3

	require.NoError(t, f.handler.Handle(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))

	codes, err := f.achievements.GetUnlockedCodes(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, codes["first_mastery"])
}

// Сбой хранилища не превращается в ошибку доставки: обработчик
// молчит, следующее событие перепроверит всё заново.
func TestOnProgressChanged_StorageFailureIsSwallowed(t *testing.T) {
	f := newProgressChangedFixture()
	f.progress.getErr = errors.New("connection refused")

	err := f.handler.Handle(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100))
	assert.NoError(t, err)
	assert.Empty(t, f.achievements.unlocks)
}

func TestOnProgressChanged_IgnoresEventWithoutAggregate(t *testing.T) {
	f := newProgressChangedFixture()

	err := f.handler.Handle(shared.NewLessonCompletedEvent("", "genesis-01", "licao-criacao", 100))
	assert.NoError(t, err)
	assert.Empty(t, f.achievements.unlocks)
}

func TestOnProgressChanged_EventTypes(t *testing.T) {
	f := newProgressChangedFixture()

	types := f.handler.EventTypes()
	assert.Contains(t, types, shared.EventLessonCompleted)
	assert.Contains(t, types, shared.EventWeekMastered)
	assert.Contains(t, types, shared.EventStreakUpdated)
	assert.NotContains(t, types, shared.EventXPGained)
}
