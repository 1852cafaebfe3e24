package practice

import (
	"time"

	"github.com/google/uuid"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// ScoringConfig содержит настраиваемые параметры практики.
// Пороговые значения - наблюдаемый контракт, а не константы движка,
// поэтому они приходят из конфигурации.
type ScoringConfig struct {
	// TotalQuestions - количество вопросов в сессии.
	TotalQuestions int

	// TimeLimit - лимит времени на сессию.
	TimeLimit time.Duration

	// ThreeStarCorrect - правильных ответов для трёх звёзд
	// (дополнительно требуется уложиться в лимит времени).
	ThreeStarCorrect int

	// TwoStarCorrect - правильных ответов для двух звёзд.
	TwoStarCorrect int

	// OneStarCorrect - правильных ответов для одной звезды.
	OneStarCorrect int

	// TimeTolerance - допуск к лимиту времени при сверке с сервером.
	TimeTolerance time.Duration

	// XPPerStar - XP за каждую заработанную звезду.
	XPPerStar int
}

// DefaultScoringConfig возвращает параметры по умолчанию:
// 10 вопросов, 120 секунд, пороги 10/8/5.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TotalQuestions:   10,
		TimeLimit:        120 * time.Second,
		ThreeStarCorrect: 10,
		TwoStarCorrect:   8,
		OneStarCorrect:   5,
		TimeTolerance:    5 * time.Second,
		XPPerStar:        50,
	}
}

// Validate проверяет согласованность порогов.
// Монотонность звёзд гарантируется только при убывающих порогах.
func (c ScoringConfig) Validate() error {
	if c.TotalQuestions <= 0 || c.TimeLimit <= 0 {
		return shared.NewDomainError("practice", "Validate", shared.ErrInvalidInput, "question count and time limit must be positive")
	}
	if c.ThreeStarCorrect > c.TotalQuestions {
		return shared.NewDomainError("practice", "Validate", shared.ErrInvalidInput, "three star threshold exceeds question count")
	}
	if c.ThreeStarCorrect < c.TwoStarCorrect || c.TwoStarCorrect < c.OneStarCorrect || c.OneStarCorrect < 1 {
		return shared.NewDomainError("practice", "Validate", shared.ErrInvalidInput, "star thresholds must be non-increasing")
	}
	return nil
}

// Score вычисляет количество звёзд по правильным ответам и времени.
//
// Свойство упорядоченности: больше правильных ответов и меньше времени
// никогда не дают меньше звёзд.
func (c ScoringConfig) Score(correctAnswers int, elapsed time.Duration) shared.Stars {
	withinTime := elapsed <= c.TimeLimit
	switch {
	case correctAnswers >= c.ThreeStarCorrect && withinTime:
		return shared.ThreeStars
	case correctAnswers >= c.TwoStarCorrect:
		return shared.TwoStars
	case correctAnswers >= c.OneStarCorrect:
		return shared.OneStar
	default:
		return shared.NoStars
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE SESSION (NotStarted → Running → Completed | TimedOut)
// ══════════════════════════════════════════════════════════════════════════════

// State представляет состояние сессии практики.
type State string

const (
	// StateRunning - сессия открыта, таймер идёт.
	StateRunning State = "running"
	// StateCompleted - сессия завершена явным вызовом complete.
	StateCompleted State = "completed"
	// StateTimedOut - сессия закрыта по истечении времени.
	StateTimedOut State = "timed_out"
)

// IsTerminal возвращает true для конечных состояний.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateTimedOut
}

// Session представляет одну попытку практики.
// Эфемерна: существует от start до complete/таймаута, после чего
// остаётся только терминальная запись Result.
//
// Инвариант: не более одной Running-сессии на пару (пользователь, неделя).
// Обеспечивается инфраструктурой (Redis SET NX + частичный уникальный
// индекс в БД), доменная модель лишь проверяет переходы.
type Session struct {
	// ID - идентификатор сессии.
	ID string

	// UserID - владелец сессии.
	UserID shared.UserID

	// WeekID - неделя, к которой привязана практика.
	WeekID shared.WeekID

	// Questions - снимок вопросов в фиксированном порядке.
	Questions []Question

	// TimeLimit - лимит времени.
	TimeLimit time.Duration

	// StartedAt - серверное время старта. Источник истины для
	// вычисления затраченного времени: клиентский таймер не доверен.
	StartedAt time.Time

	// State - текущее состояние.
	State State
}

// NewSession открывает новую сессию практики.
func NewSession(userID shared.UserID, weekID shared.WeekID, questions []Question, timeLimit time.Duration, now time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, shared.NewDomainError("practice", "NewSession", shared.ErrInvalidInput, "session needs at least one question")
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekID:    weekID,
		Questions: questions,
		TimeLimit: timeLimit,
		StartedAt: now.UTC(),
		State:     StateRunning,
	}, nil
}

// Elapsed возвращает серверное затраченное время на момент now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.UTC().Sub(s.StartedAt)
}

// IsExpired проверяет, истёк ли лимит времени с учётом допуска.
func (s *Session) IsExpired(now time.Time, tolerance time.Duration) bool {
	return s.Elapsed(now) > s.TimeLimit+tolerance
}

// Result - терминальная запись о завершённой практике.
type Result struct {
	// SessionID - идентификатор сессии.
	SessionID string

	// UserID - пользователь.
	UserID shared.UserID

	// WeekID - неделя.
	WeekID shared.WeekID

	// StarsEarned - заработано звёзд (0-3).
	StarsEarned shared.Stars

	// CorrectAnswers - правильных ответов.
	CorrectAnswers int

	// TotalQuestions - всего вопросов.
	TotalQuestions int

	// TimeSpentSeconds - затрачено секунд (серверное значение).
	TimeSpentSeconds int

	// CompletedWithinTime - уложился ли в лимит.
	CompletedWithinTime bool

	// IsMastered - заработаны три звезды (терминальное состояние недели).
	IsMastered bool

	// TimedOut - сессия закрыта по таймауту.
	TimedOut bool

	// CompletedAt - когда завершена.
	CompletedAt time.Time
}

// Finalize закрывает сессию и вычисляет результат.
//
// Затраченное время берётся с сервера (now - StartedAt); клиентское
// значение используется только как нижняя граница при сверке, чтобы
// отклонить подделанные быстрые завершения. Если серверное время
// превышает лимит с допуском, сессия закрывается по таймауту, но
// всё равно даёт результат из накопленных правильных ответов.
func (s *Session) Finalize(cfg ScoringConfig, correctAnswers, clientSeconds int, now time.Time) (Result, error) {
	if s.State.IsTerminal() {
		return Result{}, shared.ErrSessionAlreadyClosed
	}
	if correctAnswers < 0 {
		return Result{}, shared.NewDomainError("practice", "Finalize", shared.ErrNegativeValue, "correct answers cannot be negative")
	}
	if correctAnswers > len(s.Questions) {
		correctAnswers = len(s.Questions)
	}

	elapsed := s.Elapsed(now)
	if clientSeconds > 0 && time.Duration(clientSeconds)*time.Second > elapsed {
		// Клиент сообщил больше, чем прошло по серверу - верим худшему.
		elapsed = time.Duration(clientSeconds) * time.Second
	}

	timedOut := elapsed > s.TimeLimit+cfg.TimeTolerance
	if timedOut {
		s.State = StateTimedOut
	} else {
		s.State = StateCompleted
	}

	stars := cfg.Score(correctAnswers, elapsed)
	result := Result{
		SessionID:           s.ID,
		UserID:              s.UserID,
		WeekID:              s.WeekID,
		StarsEarned:         stars,
		CorrectAnswers:      correctAnswers,
		TotalQuestions:      len(s.Questions),
		TimeSpentSeconds:    int(elapsed / time.Second),
		CompletedWithinTime: elapsed <= s.TimeLimit,
		IsMastered:          stars.IsMastery(),
		TimedOut:            timedOut,
		CompletedAt:         now.UTC(),
	}
	return result, nil
}

// XPReward возвращает XP за результат.
func (r Result) XPReward(cfg ScoringConfig) int {
	return r.StarsEarned.Int() * cfg.XPPerStar
}
