package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// LeagueStore implements domain.LeagueStore using PostgreSQL.
type LeagueStore struct {
	pool *pgxpool.Pool
}

// NewLeagueStore creates a LeagueStore backed by the given pool.
func NewLeagueStore(pool *pgxpool.Pool) *LeagueStore {
	return &LeagueStore{pool: pool}
}

const leagueSelectCols = `id, name, sponsor_name, entry_fee, prize_pool,
	max_participants, participants, public, ends_at, created_at`

// GetByID returns a league by id.
func (s *LeagueStore) GetByID(ctx context.Context, id string) (domain.League, error) {
	query := fmt.Sprintf("SELECT %s FROM leagues WHERE id = $1", leagueSelectCols)

	var league domain.League
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&league.ID, &league.Name, &league.SponsorName, &league.EntryFee,
		&league.PrizePool, &league.MaxParticipants, &league.Participants,
		&league.Public, &league.EndsAt, &league.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.League{}, domain.ErrNotFound
		}
		return domain.League{}, fmt.Errorf("postgres: get league %s: %w", id, err)
	}
	return league, nil
}

// List returns public leagues, newest first.
func (s *LeagueStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.League, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leagues
		WHERE public
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, leagueSelectCols)

	rows, err := s.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leagues: %w", err)
	}
	defer rows.Close()

	var leagues []domain.League
	for rows.Next() {
		var league domain.League
		if err := rows.Scan(
			&league.ID, &league.Name, &league.SponsorName, &league.EntryFee,
			&league.PrizePool, &league.MaxParticipants, &league.Participants,
			&league.Public, &league.EndsAt, &league.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan league: %w", err)
		}
		leagues = append(leagues, league)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list leagues: %w", err)
	}
	return leagues, nil
}

// AddParticipant increments a league's participant count, bounded by its
// capacity.
func (s *LeagueStore) AddParticipant(ctx context.Context, id string) error {
	const query = `
		UPDATE leagues SET participants = participants + 1
		WHERE id = $1
		  AND (max_participants = 0 OR participants < max_participants)`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: add participant to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
