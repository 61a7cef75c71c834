// Package access derives a wallet's role from the admin roster and its presale request.
package access

import (
	"context"

	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// Backend is the subset of the backend client the gate reads from
type Backend interface {
	IsAdmin(ctx context.Context, wallet types.WalletAddress) (bool, error)
	RequestByWallet(ctx context.Context, wallet types.WalletAddress) (*models.AccessRequest, error)
}

// Access is the resolved access state for one wallet
type Access struct {
	Address       types.WalletAddress `json:"address,omitempty"`
	Role          types.Role          `json:"role"`
	RequestStatus types.RequestStatus `json:"requestStatus"`
	// Verified is false when the request status could not be read
	Verified bool `json:"verified"`
}

// IsAdmin reports whether the role grants admin privileges
func (a Access) IsAdmin() bool {
	return a.Role == types.RoleAdmin
}

// Anonymous is the access of a session with no wallet
var Anonymous = Access{Role: types.RoleAnonymous, RequestStatus: types.StatusNone, Verified: true}

// Gate resolves roles. It has no side effects and may be called concurrently.
type Gate struct {
	backend Backend
	logger  *logging.Logger
}

// NewGate creates an access gate
func NewGate(backend Backend, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Gate{backend: backend, logger: logger.WithField("component", "access")}
}

// Resolve computes the role for an address. Addresses compare case-insensitively.
//
// A failed admin check is treated as "not admin". A failed request lookup
// yields RoleConnected with Verified=false, which callers must render as
// "unable to verify" rather than as a checked "no request".
func (g *Gate) Resolve(ctx context.Context, address types.WalletAddress) Access {
	if address.IsZero() {
		return Anonymous
	}
	wallet := types.NormalizeAddress(address.String())
	logger := g.logger.WithField("wallet", wallet.String())

	isAdmin, err := g.backend.IsAdmin(ctx, wallet)
	if err != nil {
		logger.WithError(err).Warn("Admin check failed, treating wallet as non-admin")
		isAdmin = false
	}

	req, err := g.backend.RequestByWallet(ctx, wallet)
	if err != nil {
		logger.WithError(err).Warn("Request status check failed")
		role := types.RoleConnected
		if isAdmin {
			role = types.RoleAdmin
		}
		return Access{Address: wallet, Role: role, RequestStatus: types.StatusUnknown, Verified: false}
	}

	status := types.StatusNone
	if req != nil {
		status = req.Status
	}

	role := types.RoleForStatus(status)
	if isAdmin {
		role = types.RoleAdmin
	}

	return Access{Address: wallet, Role: role, RequestStatus: status, Verified: true}
}

// CheckAdmin runs only the privilege check, failing closed
func (g *Gate) CheckAdmin(ctx context.Context, address types.WalletAddress) bool {
	if address.IsZero() {
		return false
	}
	isAdmin, err := g.backend.IsAdmin(ctx, types.NormalizeAddress(address.String()))
	if err != nil {
		g.logger.WithError(err).WithField("wallet", address.String()).Warn("Admin check failed, denying")
		return false
	}
	return isAdmin
}
