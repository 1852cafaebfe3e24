// Package presence содержит контракты отслеживания онлайн-статуса.
// Присутствие - только для отображения (онлайн-бейдж в лидерборде),
// никогда не влияет на подсчёт очков или ранжирование.
package presence

import (
	"context"
	"time"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// Record представляет подключённого пользователя.
// Эфемерна: живёт в памяти и в Redis, не персистится.
type Record struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID `json:"user_id"`

	// ConnectedAt - время подключения.
	ConnectedAt time.Time `json:"connected_at"`

	// LastHeartbeatAt - время последнего heartbeat.
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}

// IsStale проверяет, просрочен ли heartbeat.
func (r Record) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastHeartbeatAt) > timeout
}

// Tracker определяет операции отслеживания онлайн-статуса.
// Снимок лениво согласован: допускается отставание в пределах
// таймаута heartbeat. Обычно реализуется через Redis sorted set,
// чтобы несколько инстансов видели одно множество.
type Tracker interface {
	// MarkOnline отмечает пользователя как онлайн (или продлевает
	// его присутствие по heartbeat).
	MarkOnline(ctx context.Context, userID shared.UserID) error

	// MarkOffline убирает пользователя из онлайн-множества.
	MarkOffline(ctx context.Context, userID shared.UserID) error

	// IsOnline проверяет, онлайн ли пользователь.
	IsOnline(ctx context.Context, userID shared.UserID) (bool, error)

	// OnlineUserIDs возвращает снимок онлайн-множества.
	OnlineUserIDs(ctx context.Context) ([]shared.UserID, error)

	// OnlineCount возвращает размер онлайн-множества.
	OnlineCount(ctx context.Context) (int, error)

	// OnlineStates возвращает онлайн-статусы для списка пользователей.
	OnlineStates(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]bool, error)

	// PruneStale удаляет записи с просроченным heartbeat.
	// Вызывается фоновой задачей очистки.
	PruneStale(ctx context.Context) (int, error)
}
