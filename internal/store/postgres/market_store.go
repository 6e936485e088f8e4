package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Outcomes are
// stored as a JSONB array on the market row.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, question, outcomes, total_staked, resolves_at,
	resolved, created_at`

// GetByID returns a prediction market by id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.PredictionMarket, error) {
	query := fmt.Sprintf("SELECT %s FROM prediction_markets WHERE id = $1", marketSelectCols)

	var market domain.PredictionMarket
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&market.ID, &market.Question, &market.Outcomes, &market.TotalStaked,
		&market.ResolvesAt, &market.Resolved, &market.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PredictionMarket{}, domain.ErrNotFound
		}
		return domain.PredictionMarket{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return market, nil
}

// ListOpen returns unresolved markets, soonest resolution first.
func (s *MarketStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.PredictionMarket, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM prediction_markets
		WHERE NOT resolved
		ORDER BY resolves_at ASC
		LIMIT $1 OFFSET $2`, marketSelectCols)

	rows, err := s.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.PredictionMarket
	for rows.Next() {
		var market domain.PredictionMarket
		if err := rows.Scan(
			&market.ID, &market.Question, &market.Outcomes, &market.TotalStaked,
			&market.ResolvesAt, &market.Resolved, &market.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, market)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	return markets, nil
}

// AddStake adds an amount to one outcome's stake and the market total. The
// update is rejected for resolved markets and out-of-range outcome indexes.
func (s *MarketStore) AddStake(ctx context.Context, id string, outcomeIndex int, amount float64) error {
	const query = `
		UPDATE prediction_markets SET
			total_staked = total_staked + $3,
			outcomes = jsonb_set(
				outcomes,
				ARRAY[$2::text, 'staked'],
				to_jsonb(COALESCE((outcomes->$2->>'staked')::float8, 0) + $3)
			)
		WHERE id = $1
		  AND NOT resolved
		  AND jsonb_array_length(outcomes) > $2`

	tag, err := s.pool.Exec(ctx, query, id, outcomeIndex, amount)
	if err != nil {
		return fmt.Errorf("postgres: add stake to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
