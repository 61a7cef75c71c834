package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Arrogantx/slapper/internal/types"
)

// Claims are the wallet session token claims
type Claims struct {
	Wallet    types.WalletAddress `json:"wallet"`
	Connector types.ConnectorKind `json:"connector"`
	jwt.RegisteredClaims
}

// SessionID returns the revocable session id carried in the jti claim
func (c *Claims) SessionID() string {
	return c.ID
}

// TokenIssuer signs and validates HS256 session tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the wallet and session id
func (i *TokenIssuer) Issue(wallet types.WalletAddress, connector types.ConnectorKind, sessionID string) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("JWT secret not initialized")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &Claims{
		Wallet:    types.NormalizeAddress(wallet.String()),
		Connector: connector,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    i.issuer,
			Subject:   types.NormalizeAddress(wallet.String()).String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate parses a token and returns its claims
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" || claims.Wallet.IsZero() {
		return nil, errors.New("token is missing session claims")
	}

	return claims, nil
}
