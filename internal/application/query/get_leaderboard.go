// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
	"github.com/deoglory/study-engine/internal/domain/presence"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Собирает рейтинг периода из журнала XP: суммы за окно, сортировка,
// онлайн-бейджи. Результат кешируется с коротким TTL; при сбое
// агрегации запрос деградирует до пустого списка вместо ошибки.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Period - тип периода: weekly, annual или seasonal.
	Period string

	// Year - год для annual-периода (0 = текущий год).
	Year int

	// SeasonID - идентификатор сезона для seasonal-периода.
	SeasonID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// RequestingUserID - пользователь, запрашивающий рейтинг.
	// Его строка возвращается отдельно, даже если он вне топа.
	RequestingUserID shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Period == "" {
		q.Period = string(leaderboard.PeriodWeekly)
	}
	if _, err := leaderboard.ParsePeriodType(q.Period); err != nil {
		return err
	}
	if q.Period == string(leaderboard.PeriodSeasonal) && q.SeasonID == "" {
		return errors.New("season_id is required for seasonal period")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	return nil
}

// LeaderboardEntryDTO - DTO для строки лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (с 1).
	Rank int `json:"rank"`

	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// TotalXP - XP за окно периода.
	TotalXP int `json:"total_xp"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"current_streak"`

	// DailyXP - XP за последние 24 часа.
	DailyXP int `json:"daily_xp"`

	// IsOnline - онлайн-бейдж (только отображение).
	IsOnline bool `json:"is_online"`

	// LastActivityAt - последняя активность внутри периода.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Period - разрешённый период ("weekly:2026-W36").
	Period string `json:"period"`

	// Entries - строки рейтинга.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Me - строка запрашивающего пользователя (nil, если активности
	// за период не было).
	Me *LeaderboardEntryDTO `json:"me,omitempty"`

	// TotalCount - общее число участников периода.
	TotalCount int `json:"total_count"`

	// Degraded - true, если агрегация не удалась и список пуст
	// по причине сбоя, а не отсутствия активности.
	Degraded bool `json:"degraded"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	xpEvents     progress.XPEventRepository
	progressRepo progress.Repository
	seasonRepo   leaderboard.SeasonRepository
	cache        leaderboard.Cache
	tracker      presence.Tracker

	cacheTTL   time.Duration
	maxEntries int
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
func NewGetLeaderboardHandler(
	xpEvents progress.XPEventRepository,
	progressRepo progress.Repository,
	seasonRepo leaderboard.SeasonRepository,
	cache leaderboard.Cache,
	tracker presence.Tracker,
	cacheTTL time.Duration,
	maxEntries int,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		xpEvents:     xpEvents,
		progressRepo: progressRepo,
		seasonRepo:   seasonRepo,
		cache:        cache,
		tracker:      tracker,
		cacheTTL:     cacheTTL,
		maxEntries:   maxEntries,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	period, err := h.resolvePeriod(ctx, query)
	if err != nil {
		return nil, err
	}

	entries, err := h.load(ctx, period)
	if err != nil {
		// Сбой агрегации не должен ронять страницу: возвращаем пустой
		// список и помечаем результат как деградированный.
		return &GetLeaderboardResult{
			Period:      period.String(),
			Entries:     []LeaderboardEntryDTO{},
			Degraded:    true,
			GeneratedAt: time.Now().UTC(),
		}, nil
	}

	result := &GetLeaderboardResult{
		Period:      period.String(),
		Entries:     make([]LeaderboardEntryDTO, 0, query.Limit),
		TotalCount:  len(entries),
		GeneratedAt: time.Now().UTC(),
	}
	for i, e := range entries {
		dto := toEntryDTO(e)
		if i < query.Limit {
			result.Entries = append(result.Entries, dto)
		}
		if !query.RequestingUserID.IsEmpty() && e.UserID == query.RequestingUserID {
			me := dto
			result.Me = &me
		}
	}
	return result, nil
}

// WarmWeekly пересобирает недельный рейтинг и кладёт его в кеш.
// Вызывается фоновой задачей прогрева.
func (h *GetLeaderboardHandler) WarmWeekly(ctx context.Context) error {
	now := timeutil.Now()
	from, to, key := timeutil.WeekWindow(now)
	period := leaderboard.Period{
		Type:   leaderboard.PeriodWeekly,
		Key:    key,
		Window: shared.TimeRange{From: from, To: to},
	}

	entries, err := h.aggregate(ctx, period)
	if err != nil {
		return err
	}
	if h.cache != nil {
		return h.cache.Set(ctx, period, entries, h.cacheTTL)
	}
	return nil
}

// resolvePeriod разрешает параметры запроса в окно времени.
func (h *GetLeaderboardHandler) resolvePeriod(ctx context.Context, query GetLeaderboardQuery) (leaderboard.Period, error) {
	now := timeutil.Now()
	switch leaderboard.PeriodType(query.Period) {
	case leaderboard.PeriodWeekly:
		from, to, key := timeutil.WeekWindow(now)
		return leaderboard.Period{
			Type:   leaderboard.PeriodWeekly,
			Key:    key,
			Window: shared.TimeRange{From: from, To: to},
		}, nil

	case leaderboard.PeriodAnnual:
		year := query.Year
		if year == 0 {
			year = now.Year()
		}
		from, to, key := timeutil.YearWindow(year)
		return leaderboard.Period{
			Type:   leaderboard.PeriodAnnual,
			Key:    key,
			Window: shared.TimeRange{From: from, To: to},
		}, nil

	case leaderboard.PeriodSeasonal:
		season, err := h.seasonRepo.GetByID(ctx, query.SeasonID)
		if err != nil {
			return leaderboard.Period{}, err
		}
		return leaderboard.Period{
			Type:   leaderboard.PeriodSeasonal,
			Key:    season.ID,
			Window: season.Window(),
		}, nil

	default:
		return leaderboard.Period{}, shared.ErrInvalidPeriod
	}
}

// load возвращает отсортированный рейтинг периода: из кеша, либо
// пересчётом из журнала XP с последующим прогревом кеша.
func (h *GetLeaderboardHandler) load(ctx context.Context, period leaderboard.Period) ([]*leaderboard.Entry, error) {
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, period); err == nil && cached != nil {
			return cached, nil
		}
	}

	entries, err := h.aggregate(ctx, period)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, period, entries, h.cacheTTL)
	}
	return entries, nil
}

// aggregate пересчитывает рейтинг из журнала XP.
func (h *GetLeaderboardHandler) aggregate(ctx context.Context, period leaderboard.Period) ([]*leaderboard.Entry, error) {
	sums, err := h.xpEvents.SumByPeriod(ctx, period.Window)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrLeaderboardDegraded, "xp aggregation failed", err)
	}

	ranking := leaderboard.NewRanking()
	userIDs := make([]shared.UserID, 0, len(sums))
	for _, sum := range sums {
		userIDs = append(userIDs, sum.UserID)
		if err := ranking.Add(&leaderboard.Entry{
			UserID:         sum.UserID,
			TotalXP:        sum.TotalXP,
			DailyXP:        sum.DailyXP,
			LastActivityAt: sum.LastActivityAt,
		}); err != nil {
			return nil, err
		}
	}

	// Уровень и серия берутся из общего прогресса, не из окна периода.
	if profiles, err := h.progressRepo.GetByUserIDs(ctx, userIDs); err == nil {
		for _, e := range ranking.All() {
			if p, ok := profiles[e.UserID]; ok {
				e.Level = p.Level.Int()
				e.CurrentStreak = p.CurrentStreak
			}
		}
	}

	// Онлайн-бейджи не критичны: при сбое трекера строки просто
	// остаются без бейджа.
	if h.tracker != nil {
		if states, err := h.tracker.OnlineStates(ctx, userIDs); err == nil {
			for _, e := range ranking.All() {
				e.IsOnline = states[e.UserID]
			}
		}
	}

	ranking.Sort()
	if h.maxEntries > 0 && ranking.Count() > h.maxEntries {
		return ranking.Top(h.maxEntries), nil
	}
	return ranking.All(), nil
}

// toEntryDTO конвертирует доменную строку в DTO.
func toEntryDTO(e *leaderboard.Entry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:           e.Rank.Int(),
		UserID:         e.UserID.String(),
		TotalXP:        e.TotalXP,
		Level:          e.Level,
		CurrentStreak:  e.CurrentStreak,
		DailyXP:        e.DailyXP,
		IsOnline:       e.IsOnline,
		LastActivityAt: e.LastActivityAt,
	}
}
