package models

import (
	"time"

	"github.com/Arrogantx/slapper/internal/types"
)

// AccessRequest is a wallet's application for presale access.
// At most one row exists per wallet address.
type AccessRequest struct {
	ID            string               `json:"id" db:"id"`
	WalletAddress types.WalletAddress  `json:"walletAddress" db:"wallet_address"`
	SocialHandle  string               `json:"twitterHandle" db:"twitter_handle"`
	Status        types.RequestStatus  `json:"status" db:"status"`
	CreatedAt     time.Time            `json:"createdAt" db:"created_at"`
	ResolvedAt    *time.Time           `json:"resolvedAt,omitempty" db:"resolved_at"`
	ResolvedBy    *types.WalletAddress `json:"resolvedBy,omitempty" db:"resolved_by"`
}

// IsPending reports whether the request still awaits review
func (r *AccessRequest) IsPending() bool {
	return r.Status == types.StatusPending
}
