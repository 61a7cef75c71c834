package models

import (
	"time"

	"github.com/Arrogantx/slapper/internal/types"
)

// ChatMessage is a TrollBox message with its author profile joined at read time
type ChatMessage struct {
	ID            string              `json:"id" db:"id"`
	Body          string              `json:"message" db:"message"`
	WalletAddress types.WalletAddress `json:"walletAddress" db:"wallet_address"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	Author        AuthorProfile       `json:"author"`
}

// DisplayName returns the author's current display name
func (m *ChatMessage) DisplayName() string {
	return m.Author.DisplayName()
}
