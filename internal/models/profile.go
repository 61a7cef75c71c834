// Package models provides data models for the AvaxSlap backend.
package models

import (
	"strings"
	"time"

	"github.com/Arrogantx/slapper/internal/types"
)

// AnonymousName is shown for authors with neither a nickname nor a linked Twitter account
const AnonymousName = "Anonymous"

// UserProfile is the display identity attached to a wallet
type UserProfile struct {
	WalletAddress   types.WalletAddress `json:"walletAddress" db:"wallet_address"`
	Nickname        *string             `json:"nickname,omitempty" db:"nickname"`
	TwitterUsername *string             `json:"twitterUsername,omitempty" db:"twitter_username"`
	TwitterID       *string             `json:"twitterId,omitempty" db:"twitter_id"`
	CreatedAt       time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time           `json:"updatedAt" db:"updated_at"`
}

// Author projects the profile onto the fields chat messages display
func (p *UserProfile) Author() AuthorProfile {
	return AuthorProfile{
		WalletAddress:   p.WalletAddress,
		Nickname:        p.Nickname,
		TwitterUsername: p.TwitterUsername,
	}
}

// ProfilePatch carries optional profile field updates; nil fields are left untouched
type ProfilePatch struct {
	Nickname        *string
	TwitterUsername *string
	TwitterID       *string
}

// IsEmpty reports whether the patch changes nothing
func (p ProfilePatch) IsEmpty() bool {
	return p.Nickname == nil && p.TwitterUsername == nil && p.TwitterID == nil
}

// AuthorProfile is the author data joined onto a chat message at read time
type AuthorProfile struct {
	WalletAddress   types.WalletAddress `json:"walletAddress"`
	Nickname        *string             `json:"nickname,omitempty"`
	TwitterUsername *string             `json:"twitterUsername,omitempty"`
}

// DisplayName resolves nickname, then Twitter username, then "Anonymous"
func (a AuthorProfile) DisplayName() string {
	if a.Nickname != nil && strings.TrimSpace(*a.Nickname) != "" {
		return *a.Nickname
	}
	if a.TwitterUsername != nil && strings.TrimSpace(*a.TwitterUsername) != "" {
		return *a.TwitterUsername
	}
	return AnonymousName
}
