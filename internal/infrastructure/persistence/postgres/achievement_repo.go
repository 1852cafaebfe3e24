package postgres

import (
	"context"
	"fmt"

	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository. The catalog
// ships with the binary; only unlocks live in PostgreSQL.
type AchievementRepository struct {
	conn    *Connection
	catalog []achievement.Achievement
}

// NewAchievementRepository creates a new AchievementRepository backed by
// the built-in catalog.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{
		conn:    conn,
		catalog: achievement.DefaultCatalog(),
	}
}

// GetCatalog returns the achievement catalog.
func (r *AchievementRepository) GetCatalog(_ context.Context) ([]achievement.Achievement, error) {
	out := make([]achievement.Achievement, len(r.catalog))
	copy(out, r.catalog)
	return out, nil
}

// GetUnlocks returns a user's unlocks, newest first.
func (r *AchievementRepository) GetUnlocks(ctx context.Context, userID shared.UserID, limit int) ([]achievement.Unlock, error) {
	query := `
		SELECT user_id, code, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1
		ORDER BY unlocked_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("get unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []achievement.Unlock
	for rows.Next() {
		var u achievement.Unlock
		var uid string
		if err := rows.Scan(&uid, &u.Code, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		u.UserID = shared.UserID(uid)
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocks: %w", err)
	}
	return unlocks, nil
}

// GetUnlockedCodes returns the set of achievement codes the user has unlocked.
func (r *AchievementRepository) GetUnlockedCodes(ctx context.Context, userID shared.UserID) (map[string]bool, error) {
	query := `SELECT code FROM achievement_unlocks WHERE user_id = $1`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("get unlocked codes: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codes: %w", err)
	}
	return codes, nil
}

// SaveUnlock inserts an unlock record. A duplicate (user, code) pair maps
// to ErrAchievementUnlocked so re-evaluation stays idempotent.
func (r *AchievementRepository) SaveUnlock(ctx context.Context, unlock achievement.Unlock) error {
	query := `
		INSERT INTO achievement_unlocks (user_id, code, unlocked_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.conn.Exec(ctx, query,
		unlock.UserID.String(), unlock.Code, unlock.UnlockedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAchievementUnlocked
		}
		return fmt.Errorf("save unlock: %w", err)
	}
	return nil
}
