package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// In-memory fakes backing the handler tests. Each fake implements the
// corresponding repository contract closely enough to exercise the
// handler logic, including the invariants the real storage enforces
// (running-session uniqueness, first writer wins on close).

type fakeContentRepo struct {
	weeks []*study.Week
}

func (f *fakeContentRepo) GetWeek(_ context.Context, weekID shared.WeekID) (*study.Week, error) {
	for _, w := range f.weeks {
		if w.ID == weekID {
			return w, nil
		}
	}
	return nil, shared.ErrWeekNotFound
}

func (f *fakeContentRepo) GetPreviousWeek(_ context.Context, weekID shared.WeekID) (*study.Week, error) {
	for i, w := range f.weeks {
		if w.ID == weekID {
			if i == 0 {
				return nil, nil
			}
			return f.weeks[i-1], nil
		}
	}
	return nil, shared.ErrWeekNotFound
}

func (f *fakeContentRepo) ListWeeks(_ context.Context) ([]*study.Week, error) {
	return f.weeks, nil
}

type fakeCompletionRepo struct {
	content *fakeContentRepo
	data    map[shared.UserID]map[shared.WeekID]study.CompletionSet
}

func newFakeCompletionRepo(content *fakeContentRepo) *fakeCompletionRepo {
	return &fakeCompletionRepo{
		content: content,
		data:    make(map[shared.UserID]map[shared.WeekID]study.CompletionSet),
	}
}

func (f *fakeCompletionRepo) set(userID shared.UserID, weekID shared.WeekID) study.CompletionSet {
	byWeek, ok := f.data[userID]
	if !ok {
		byWeek = make(map[shared.WeekID]study.CompletionSet)
		f.data[userID] = byWeek
	}
	cs, ok := byWeek[weekID]
	if !ok {
		cs = study.CompletionSet{}
		byWeek[weekID] = cs
	}
	return cs
}

func (f *fakeCompletionRepo) GetWeekCompletions(_ context.Context, userID shared.UserID, weekID shared.WeekID) (study.CompletionSet, error) {
	return f.set(userID, weekID), nil
}

func (f *fakeCompletionRepo) SaveCompletion(_ context.Context, userID shared.UserID, weekID shared.WeekID, c study.StageCompletion) error {
	f.set(userID, weekID).Put(c)
	return nil
}

func (f *fakeCompletionRepo) IsWeekCompleted(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	week, err := f.content.GetWeek(ctx, weekID)
	if err != nil {
		return false, err
	}
	status := study.ComputeWeekStatus(week, f.set(userID, weekID), true, false)
	return status.Completed, nil
}

func (f *fakeCompletionRepo) CountCompletedLessons(ctx context.Context, userID shared.UserID) (int, error) {
	total := 0
	for _, week := range f.content.weeks {
		status := study.ComputeWeekStatus(week, f.set(userID, week.ID), true, false)
		total += status.LessonsCompleted
	}
	return total, nil
}

type fakeProgressRepo struct {
	mu       sync.Mutex
	profiles map[shared.UserID]*progress.UserProgress
	events   []progress.XPEvent
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{profiles: make(map[shared.UserID]*progress.UserProgress)}
}

func (f *fakeProgressRepo) GetByUserID(_ context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p, nil
}

func (f *fakeProgressRepo) GetOrCreate(_ context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		p = progress.NewUserProgress(userID)
		f.profiles[userID] = p
	}
	return p, nil
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
		event.ID = fmt.Sprintf("evt-%d", len(f.events)+1)
		f.events = append(f.events, event)
	}
	return delta, nil
}

func (f *fakeProgressRepo) GetByUserIDs(_ context.Context, userIDs []shared.UserID) (map[shared.UserID]*progress.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[shared.UserID]*progress.UserProgress, len(userIDs))
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

type fakeResultRepo struct {
	results []practice.Result
}

func (f *fakeResultRepo) Save(_ context.Context, result practice.Result) error {
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultRepo) GetBest(_ context.Context, userID shared.UserID, weekID shared.WeekID) (*practice.Result, error) {
	var best *practice.Result
	for i := range f.results {
		r := f.results[i]
		if r.UserID != userID || r.WeekID != weekID {
			continue
		}
		if best == nil || r.StarsEarned > best.StarsEarned {
			best = &r
		}
	}
	return best, nil
}

func (f *fakeResultRepo) IsMastered(_ context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	for _, r := range f.results {
		if r.UserID == userID && r.WeekID == weekID && r.IsMastered {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeResultRepo) CountCompleted(_ context.Context, userID shared.UserID) (int, error) {
	count := 0
	for _, r := range f.results {
		if r.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeResultRepo) CountMastered(_ context.Context, userID shared.UserID) (int, error) {
	mastered := map[shared.WeekID]bool{}
	for _, r := range f.results {
		if r.UserID == userID && r.IsMastered {
			mastered[r.WeekID] = true
		}
	}
	return len(mastered), nil
}

type fakeSessionRepo struct {
	sessions map[string]*practice.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*practice.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *practice.Session) error {
	for _, s := range f.sessions {
		if s.UserID == session.UserID && s.WeekID == session.WeekID && s.State == practice.StateRunning {
			return shared.ErrSessionAlreadyRunning
		}
	}
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionRepo) GetRunning(_ context.Context, userID shared.UserID, weekID shared.WeekID) (*practice.Session, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.WeekID == weekID && s.State == practice.StateRunning {
			copied := *s
			copied.State = practice.StateRunning
			return &copied, nil
		}
	}
	return nil, shared.ErrSessionNotFound
}

func (f *fakeSessionRepo) Close(_ context.Context, sessionID string, state practice.State) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.State.IsTerminal() {
		return shared.ErrSessionAlreadyClosed
	}
	s.State = state
	return nil
}

func (f *fakeSessionRepo) HasClosed(_ context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.WeekID == weekID && s.State.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessionRepo) DeleteExpired(_ context.Context, olderThan time.Time) (int, error) {
	deleted := 0
	for id, s := range f.sessions {
		if s.StartedAt.Before(olderThan) {
			delete(f.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeSessionGuard struct {
	locks map[string]string
}

func newFakeSessionGuard() *fakeSessionGuard {
	return &fakeSessionGuard{locks: make(map[string]string)}
}

func guardKey(userID shared.UserID, weekID shared.WeekID) string {
	return userID.String() + "/" + weekID.String()
}

func (f *fakeSessionGuard) Acquire(_ context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string, _ time.Duration) (bool, error) {
	key := guardKey(userID, weekID)
	if _, held := f.locks[key]; held {
		return false, nil
	}
	f.locks[key] = sessionID
	return true, nil
}

func (f *fakeSessionGuard) Release(_ context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string) error {
	key := guardKey(userID, weekID)
	if f.locks[key] == sessionID {
		delete(f.locks, key)
	}
	return nil
}

type fakeQuestionSource struct {
	err error
}

func (f *fakeQuestionSource) QuestionsForWeek(_ context.Context, weekID shared.WeekID, count int) ([]practice.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	questions := make([]practice.Question, count)
	for i := range questions {
		questions[i] = practice.Question{
			ID:          fmt.Sprintf("%s-q%d", weekID, i+1),
			Kind:        practice.KindTrueFalse,
			Prompt:      fmt.Sprintf("Pergunta %d", i+1),
			CorrectBool: i%2 == 0,
		}
	}
	return questions, nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (f *fakeEventBus) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventBus) published(eventType shared.EventType) []shared.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []shared.Event
	for _, e := range f.events {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}
