package postgres

import (
	"context"
	"fmt"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SeasonRepository implements leaderboard.SeasonRepository for PostgreSQL.
type SeasonRepository struct {
	conn *Connection
}

// NewSeasonRepository creates a new SeasonRepository.
func NewSeasonRepository(conn *Connection) *SeasonRepository {
	return &SeasonRepository{conn: conn}
}

// GetByID returns a season by its identifier.
func (r *SeasonRepository) GetByID(ctx context.Context, seasonID string) (*leaderboard.Season, error) {
	query := `SELECT id, name, start_date, end_date FROM seasons WHERE id = $1`

	var s leaderboard.Season
	row := r.conn.QueryRow(ctx, query, seasonID)
	if err := row.Scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSeasonNotFound
		}
		return nil, fmt.Errorf("get season: %w", err)
	}
	return &s, nil
}

// List returns all seasons, newest first.
func (r *SeasonRepository) List(ctx context.Context) ([]*leaderboard.Season, error) {
	query := `SELECT id, name, start_date, end_date FROM seasons ORDER BY start_date DESC`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*leaderboard.Season
	for rows.Next() {
		var s leaderboard.Season
		if err := rows.Scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		seasons = append(seasons, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seasons: %w", err)
	}
	return seasons, nil
}
