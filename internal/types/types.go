// Package types provides common type definitions for the AvaxSlap access gate and chat backend.
package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WalletAddress is a lowercase-normalized EVM account identifier.
// It is the identity key across requests, profiles, chat messages and the admin roster.
type WalletAddress string

// NormalizeAddress canonicalizes an address for storage or lookup (trim + lowercase).
// It does not validate the format; addresses are otherwise treated as opaque.
func NormalizeAddress(address string) WalletAddress {
	return WalletAddress(strings.ToLower(strings.TrimSpace(address)))
}

// ParseWalletAddress validates a 0x-prefixed 20-byte hex address and returns it normalized
func ParseWalletAddress(address string) (WalletAddress, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "", fmt.Errorf("wallet address cannot be empty")
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", fmt.Errorf("wallet address must be 0x-prefixed: %s", address)
	}
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("invalid wallet address format: %s", address)
	}
	return NormalizeAddress(trimmed), nil
}

// String returns the address as stored
func (a WalletAddress) String() string {
	return string(a)
}

// IsZero reports whether the address is absent
func (a WalletAddress) IsZero() bool {
	return a == ""
}

// Equal compares two addresses case-insensitively
func (a WalletAddress) Equal(other WalletAddress) bool {
	return NormalizeAddress(string(a)) == NormalizeAddress(string(other))
}

// Short renders the address as 0x1234...abcd for display
func (a WalletAddress) Short() string {
	s := string(a)
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// Checksum returns the EIP-55 mixed-case form of a valid hex address
func (a WalletAddress) Checksum() string {
	if !common.IsHexAddress(string(a)) {
		return string(a)
	}
	return common.HexToAddress(string(a)).Hex()
}

// RequestStatus represents the review state of a presale access request
type RequestStatus string

const (
	// StatusNone means no request row exists for the wallet
	StatusNone RequestStatus = "none"
	// StatusPending means the request awaits an admin decision
	StatusPending RequestStatus = "pending"
	// StatusApproved means the wallet may reach the deposit flow
	StatusApproved RequestStatus = "approved"
	// StatusDenied means the request was rejected
	StatusDenied RequestStatus = "denied"
	// StatusUnknown means the status could not be verified
	StatusUnknown RequestStatus = "unknown"
)

// IsResolved reports whether an admin has decided the request
func (s RequestStatus) IsResolved() bool {
	return s == StatusApproved || s == StatusDenied
}

// ParseRequestStatus parses a stored status value
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusDenied:
		return StatusDenied, nil
	default:
		return "", fmt.Errorf("unknown request status: %q", s)
	}
}

// Role is the caller's access state derived by the access gate
type Role string

const (
	// RoleAnonymous means no wallet is connected
	RoleAnonymous Role = "anonymous"
	// RoleConnected means a wallet is connected without any request or privilege
	RoleConnected Role = "connected"
	// RolePending means the connected wallet has a pending request
	RolePending Role = "pending"
	// RoleApproved means the connected wallet has an approved request
	RoleApproved Role = "approved"
	// RoleDenied means the connected wallet has a denied request
	RoleDenied Role = "denied"
	// RoleAdmin means the connected wallet is on the admin roster
	RoleAdmin Role = "admin"
)

// IsConnected reports whether the role implies a connected wallet
func (r Role) IsConnected() bool {
	return r != RoleAnonymous && r != ""
}

// RoleForStatus mirrors a request status into a role
func RoleForStatus(status RequestStatus) Role {
	switch status {
	case StatusPending:
		return RolePending
	case StatusApproved:
		return RoleApproved
	case StatusDenied:
		return RoleDenied
	default:
		return RoleConnected
	}
}

// ConnectorKind identifies a wallet connector
type ConnectorKind string

const (
	// ConnectorMetaMask is the MetaMask browser extension
	ConnectorMetaMask ConnectorKind = "metamask"
	// ConnectorWalletConnect is a WalletConnect v2 pairing
	ConnectorWalletConnect ConnectorKind = "walletconnect"
	// ConnectorCore is the Core wallet injected provider
	ConnectorCore ConnectorKind = "core"
)

// SupportedConnectors lists connectors in display order
var SupportedConnectors = []ConnectorKind{ConnectorCore, ConnectorMetaMask, ConnectorWalletConnect}

// ParseConnectorKind parses a connector name
func ParseConnectorKind(s string) (ConnectorKind, error) {
	kind := ConnectorKind(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedConnectors {
		if kind == supported {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unsupported wallet connector: %q", s)
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
