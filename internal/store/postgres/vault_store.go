package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// VaultStore implements domain.VaultStore using PostgreSQL.
type VaultStore struct {
	pool *pgxpool.Pool
}

// NewVaultStore creates a VaultStore backed by the given pool.
func NewVaultStore(pool *pgxpool.Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

const vaultSelectCols = `id, name, manager_id, strategy, total_value,
	followers, all_time_return, created_at`

// GetByID returns a vault by id.
func (s *VaultStore) GetByID(ctx context.Context, id string) (domain.Vault, error) {
	query := fmt.Sprintf("SELECT %s FROM vaults WHERE id = $1", vaultSelectCols)

	var vault domain.Vault
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&vault.ID, &vault.Name, &vault.ManagerID, &vault.Strategy,
		&vault.TotalValue, &vault.Followers, &vault.AllTimeReturn,
		&vault.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vault{}, domain.ErrNotFound
		}
		return domain.Vault{}, fmt.Errorf("postgres: get vault %s: %w", id, err)
	}
	return vault, nil
}

// List returns vaults ordered by total value.
func (s *VaultStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Vault, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vaults
		ORDER BY total_value DESC
		LIMIT $1 OFFSET $2`, vaultSelectCols)

	rows, err := s.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vaults: %w", err)
	}
	defer rows.Close()

	var vaults []domain.Vault
	for rows.Next() {
		var vault domain.Vault
		if err := rows.Scan(
			&vault.ID, &vault.Name, &vault.ManagerID, &vault.Strategy,
			&vault.TotalValue, &vault.Followers, &vault.AllTimeReturn,
			&vault.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan vault: %w", err)
		}
		vaults = append(vaults, vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list vaults: %w", err)
	}
	return vaults, nil
}

// AddFollower records a new follower and their deposit.
func (s *VaultStore) AddFollower(ctx context.Context, id string, amount float64) error {
	const query = `
		UPDATE vaults SET
			followers = followers + 1,
			total_value = total_value + $2
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("postgres: add follower to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
