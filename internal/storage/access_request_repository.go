package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrRequestNotFound is returned when no access request matches
	ErrRequestNotFound = errors.New("access request not found")
	// ErrRequestExists is returned when the wallet already has a request row
	ErrRequestExists = errors.New("access request already exists")
	// ErrRequestNotPending is returned when a decision targets a resolved request
	ErrRequestNotPending = errors.New("access request is not pending")
)

const accessRequestColumns = `id, wallet_address, twitter_handle, status, created_at, resolved_at, resolved_by`

// AccessRequestRepository handles presale access request persistence
type AccessRequestRepository struct {
	db *PostgresDB
}

// NewAccessRequestRepository creates a new access request repository
func NewAccessRequestRepository(db *PostgresDB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

// GetByWallet returns the request for a wallet, or ErrRequestNotFound
func (r *AccessRequestRepository) GetByWallet(ctx context.Context, wallet types.WalletAddress) (*models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM presale_requests WHERE wallet_address = $1`

	req, err := scanAccessRequest(r.db.Pool().QueryRow(ctx, query, types.NormalizeAddress(wallet.String())))
	if err != nil {
		return nil, fmt.Errorf("failed to get request by wallet: %w", err)
	}
	return req, nil
}

// GetByID returns a request by id, or ErrRequestNotFound
func (r *AccessRequestRepository) GetByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRequestNotFound
	}

	query := `SELECT ` + accessRequestColumns + ` FROM presale_requests WHERE id = $1`

	req, err := scanAccessRequest(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get request by id: %w", err)
	}
	return req, nil
}

// Insert creates a pending request. A second request for the same wallet fails with ErrRequestExists.
func (r *AccessRequestRepository) Insert(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error) {
	req := &models.AccessRequest{
		ID:            uuid.New().String(),
		WalletAddress: types.NormalizeAddress(wallet.String()),
		SocialHandle:  handle,
		Status:        types.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO presale_requests (id, wallet_address, twitter_handle, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query, req.ID, req.WalletAddress, req.SocialHandle, req.Status, req.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrRequestExists
		}
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}

	return req, nil
}

// List returns every request ordered newest first
func (r *AccessRequestRepository) List(ctx context.Context) ([]*models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM presale_requests ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AccessRequest
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

// Resolve moves a pending request to approved or denied.
// The write is conditional on the row still being pending. When it is not,
// the current row is returned together with ErrRequestNotPending.
func (r *AccessRequestRepository) Resolve(ctx context.Context, id string, status types.RequestStatus, actor types.WalletAddress) (*models.AccessRequest, error) {
	if !status.IsResolved() {
		return nil, fmt.Errorf("invalid decision status: %s", status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRequestNotFound
	}

	query := `
		UPDATE presale_requests
		SET status = $2, resolved_at = NOW(), resolved_by = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + accessRequestColumns

	req, err := scanAccessRequest(r.db.Pool().QueryRow(ctx, query, id, status, types.NormalizeAddress(actor.String())))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrRequestNotFound) {
		return nil, fmt.Errorf("failed to resolve request: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrRequestNotPending
}

// scanAccessRequest scans one row, mapping pgx.ErrNoRows to ErrRequestNotFound
func scanAccessRequest(row pgx.Row) (*models.AccessRequest, error) {
	var req models.AccessRequest
	var status string
	var resolvedBy *string

	err := row.Scan(
		&req.ID,
		&req.WalletAddress,
		&req.SocialHandle,
		&status,
		&req.CreatedAt,
		&req.ResolvedAt,
		&resolvedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	parsed, err := types.ParseRequestStatus(status)
	if err != nil {
		return nil, err
	}
	req.Status = parsed
	if resolvedBy != nil {
		actor := types.WalletAddress(*resolvedBy)
		req.ResolvedBy = &actor
	}

	return &req, nil
}
