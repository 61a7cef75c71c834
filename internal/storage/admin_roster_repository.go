package storage

import (
	"context"
	"fmt"

	"github.com/Arrogantx/slapper/internal/types"
)

// AdminRosterRepository reads and maintains the admin_addresses roster
type AdminRosterRepository struct {
	db *PostgresDB
}

// NewAdminRosterRepository creates a new admin roster repository
func NewAdminRosterRepository(db *PostgresDB) *AdminRosterRepository {
	return &AdminRosterRepository{db: db}
}

// IsAdmin calls the is_admin SQL function for the wallet
func (r *AdminRosterRepository) IsAdmin(ctx context.Context, wallet types.WalletAddress) (bool, error) {
	var isAdmin bool
	err := r.db.Pool().QueryRow(ctx, `SELECT is_admin($1)`, types.NormalizeAddress(wallet.String())).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to check admin status: %w", err)
	}
	return isAdmin, nil
}

// Add puts a wallet on the roster; adding an existing admin is a no-op
func (r *AdminRosterRepository) Add(ctx context.Context, wallet types.WalletAddress) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO admin_addresses (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
		types.NormalizeAddress(wallet.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

// Remove takes a wallet off the roster and reports whether it was present
func (r *AdminRosterRepository) Remove(ctx context.Context, wallet types.WalletAddress) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM admin_addresses WHERE address = $1`, types.NormalizeAddress(wallet.String()))
	if err != nil {
		return false, fmt.Errorf("failed to remove admin: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the roster in address order
func (r *AdminRosterRepository) List(ctx context.Context) ([]types.WalletAddress, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT address FROM admin_addresses ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []types.WalletAddress
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, types.WalletAddress(addr))
	}
	return admins, rows.Err()
}
