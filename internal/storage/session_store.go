package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Arrogantx/slapper/internal/types"
)

// Key prefixes for short-lived auth state
const (
	challengeKeyPrefix  = "wallet:challenge:"
	sessionKeyPrefix    = "wallet:session:"
	oauthStateKeyPrefix = "oauth:state:"
)

// Challenge is a one-time login message issued to a wallet
type Challenge struct {
	Address   types.WalletAddress `json:"address"`
	Connector types.ConnectorKind `json:"connector"`
	Nonce     string              `json:"nonce"`
	Message   string              `json:"message"`
	IssuedAt  time.Time           `json:"issuedAt"`
}

// OAuthState binds an in-flight OAuth authorization to the wallet that started it
type OAuthState struct {
	Wallet       types.WalletAddress `json:"wallet"`
	CodeVerifier string              `json:"codeVerifier"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// SessionStore keeps login challenges, live wallet sessions and OAuth states in Redis
type SessionStore struct {
	cache *RedisCache
}

// NewSessionStore creates a new session store
func NewSessionStore(cache *RedisCache) *SessionStore {
	return &SessionStore{cache: cache}
}

// PutChallenge stores a challenge for the address, replacing any earlier one
func (s *SessionStore) PutChallenge(ctx context.Context, c *Challenge, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	key := challengeKeyPrefix + string(types.NormalizeAddress(c.Address.String()))
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// ConsumeChallenge returns and deletes the challenge for the address.
// A second call for the same challenge returns ErrKeyNotFound.
func (s *SessionStore) ConsumeChallenge(ctx context.Context, address types.WalletAddress) (*Challenge, error) {
	raw, err := s.cache.Take(ctx, challengeKeyPrefix+string(types.NormalizeAddress(address.String())))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var c Challenge
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &c, nil
}

// RegisterSession marks a session id live for ttl
func (s *SessionStore) RegisterSession(ctx context.Context, sessionID string, address types.WalletAddress, ttl time.Duration) error {
	if err := s.cache.Set(ctx, sessionKeyPrefix+sessionID, address.String(), ttl); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

// SessionAddress returns the wallet bound to a live session id
func (s *SessionStore) SessionAddress(ctx context.Context, sessionID string) (types.WalletAddress, error) {
	val, err := s.cache.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return "", err
	}
	return types.WalletAddress(val), nil
}

// RevokeSession deletes a session id; revoking an unknown id is not an error
func (s *SessionStore) RevokeSession(ctx context.Context, sessionID string) error {
	if err := s.cache.Del(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// ErrStateExists is returned when an OAuth state value is already in use
var ErrStateExists = errors.New("oauth state already exists")

// PutOAuthState stores an OAuth state value. A state is never overwritten.
func (s *SessionStore) PutOAuthState(ctx context.Context, state string, st *OAuthState, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}
	stored, err := s.cache.SetNX(ctx, oauthStateKeyPrefix+state, data, ttl)
	if err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	if !stored {
		return ErrStateExists
	}
	return nil
}

// TakeOAuthState consumes an OAuth state value
func (s *SessionStore) TakeOAuthState(ctx context.Context, state string) (*OAuthState, error) {
	raw, err := s.cache.Take(ctx, oauthStateKeyPrefix+state)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var st OAuthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return &st, nil
}
