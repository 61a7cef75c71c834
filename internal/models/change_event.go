package models

import (
	"encoding/json"
	"time"
)

// Tables that publish row-change notifications
const (
	TableAccessRequests = "presale_requests"
	TableUserProfiles   = "user_profiles"
	TableChatMessages   = "chat_messages"
)

// ChangeOp is the kind of row change
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	// OpResync is emitted locally when a subscription reconnects and may have missed events
	OpResync ChangeOp = "resync"
)

// ChangeEvent is a row-change notification delivered over the realtime broker
type ChangeEvent struct {
	ID         string          `json:"id"`
	Table      string          `json:"table"`
	Op         ChangeOp        `json:"op"`
	RowID      string          `json:"rowId"`
	Wallet     string          `json:"wallet,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
