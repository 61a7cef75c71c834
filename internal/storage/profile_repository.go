package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
	"github.com/jackc/pgx/v5"
)

// ErrProfileNotFound is returned when a wallet has no profile row
var ErrProfileNotFound = errors.New("user profile not found")

// ProfileRepository handles user profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Ensure creates an empty profile for the wallet if none exists.
// It reports whether a row was created.
func (r *ProfileRepository) Ensure(ctx context.Context, wallet types.WalletAddress) (bool, error) {
	query := `
		INSERT INTO user_profiles (wallet_address)
		VALUES ($1)
		ON CONFLICT (wallet_address) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, types.NormalizeAddress(wallet.String()))
	if err != nil {
		return false, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Upsert creates the profile if needed and applies the non-nil patch fields
func (r *ProfileRepository) Upsert(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error) {
	query := `
		INSERT INTO user_profiles (wallet_address, nickname, twitter_username, twitter_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_address) DO UPDATE SET
			nickname         = COALESCE(EXCLUDED.nickname, user_profiles.nickname),
			twitter_username = COALESCE(EXCLUDED.twitter_username, user_profiles.twitter_username),
			twitter_id       = COALESCE(EXCLUDED.twitter_id, user_profiles.twitter_id),
			updated_at       = NOW()
		RETURNING wallet_address, nickname, twitter_username, twitter_id, created_at, updated_at
	`

	profile, err := scanProfile(r.db.Pool().QueryRow(ctx, query,
		types.NormalizeAddress(wallet.String()),
		patch.Nickname,
		patch.TwitterUsername,
		patch.TwitterID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return profile, nil
}

// Get returns the profile for a wallet, or ErrProfileNotFound
func (r *ProfileRepository) Get(ctx context.Context, wallet types.WalletAddress) (*models.UserProfile, error) {
	query := `
		SELECT wallet_address, nickname, twitter_username, twitter_id, created_at, updated_at
		FROM user_profiles
		WHERE wallet_address = $1
	`

	profile, err := scanProfile(r.db.Pool().QueryRow(ctx, query, types.NormalizeAddress(wallet.String())))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(&p.WalletAddress, &p.Nickname, &p.TwitterUsername, &p.TwitterID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}
