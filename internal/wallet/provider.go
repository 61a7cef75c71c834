// Package wallet implements wallet sign-in: connector catalogue, signed login
// challenges and revocable session tokens.
package wallet

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Arrogantx/slapper/internal/config"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/types"
)

// SessionStore keeps challenges and live session ids
type SessionStore interface {
	PutChallenge(ctx context.Context, c *storage.Challenge, ttl time.Duration) error
	ConsumeChallenge(ctx context.Context, address types.WalletAddress) (*storage.Challenge, error)
	RegisterSession(ctx context.Context, sessionID string, address types.WalletAddress, ttl time.Duration) error
	SessionAddress(ctx context.Context, sessionID string) (types.WalletAddress, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// ProfileEnsurer creates the wallet's profile on first sign-in
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, wallet types.WalletAddress) error
}

var connectorNames = map[types.ConnectorKind]string{
	types.ConnectorCore:          "Core",
	types.ConnectorMetaMask:      "MetaMask",
	types.ConnectorWalletConnect: "WalletConnect",
}

var chainNames = map[int64]string{
	43114: "Avalanche C-Chain",
	43113: "Avalanche Fuji Testnet",
}

// ConnectorInfo describes one enabled connector
type ConnectorInfo struct {
	Kind types.ConnectorKind `json:"kind"`
	Name string              `json:"name"`
}

// ChainInfo describes a supported chain
type ChainInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ConnectorConfig is what the front end needs to render the connect modal
type ConnectorConfig struct {
	AppName                string          `json:"appName"`
	AppDescription         string          `json:"appDescription"`
	AppURL                 string          `json:"appUrl"`
	WalletConnectProjectID string          `json:"walletConnectProjectId,omitempty"`
	Connectors             []ConnectorInfo `json:"connectors"`
	Chains                 []ChainInfo     `json:"chains"`
}

// ChallengeResult is returned to the wallet for signing
type ChallengeResult struct {
	Address   types.WalletAddress `json:"address"`
	Message   string              `json:"message"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// ConnectInput carries a signed challenge
type ConnectInput struct {
	Address   string `json:"address"`
	Connector string `json:"connector"`
	Signature string `json:"signature"`
}

// Session is a connected wallet session
type Session struct {
	Token     string              `json:"token"`
	Address   types.WalletAddress `json:"address"`
	Connector types.ConnectorKind `json:"connector"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Provider is the wallet session provider
type Provider struct {
	cfg        config.WalletConfig
	connectors []types.ConnectorKind
	sessions   SessionStore
	tokens     *TokenIssuer
	profiles   ProfileEnsurer
	logger     *logging.Logger
	now        func() time.Time
}

// NewProvider creates a wallet provider. Unknown connector names in cfg are skipped with a warning.
func NewProvider(cfg config.WalletConfig, sessions SessionStore, tokens *TokenIssuer, profiles ProfileEnsurer, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "wallet")

	var connectors []types.ConnectorKind
	for _, name := range cfg.Connectors {
		kind, err := types.ParseConnectorKind(name)
		if err != nil {
			logger.WithError(err).Warn("Skipping unknown wallet connector")
			continue
		}
		connectors = append(connectors, kind)
	}

	return &Provider{
		cfg:        cfg,
		connectors: connectors,
		sessions:   sessions,
		tokens:     tokens,
		profiles:   profiles,
		logger:     logger,
		now:        time.Now,
	}
}

// ConnectorConfig publishes the enabled connectors and supported chains
func (p *Provider) ConnectorConfig() ConnectorConfig {
	out := ConnectorConfig{
		AppName:        p.cfg.AppName,
		AppDescription: p.cfg.AppDescription,
		AppURL:         p.cfg.AppURL,
	}
	for _, kind := range p.connectors {
		out.Connectors = append(out.Connectors, ConnectorInfo{Kind: kind, Name: connectorNames[kind]})
		if kind == types.ConnectorWalletConnect {
			out.WalletConnectProjectID = p.cfg.WalletConnectProjectID
		}
	}
	for _, id := range p.cfg.ChainIDs {
		name, ok := chainNames[id]
		if !ok {
			name = "Chain " + strconv.FormatInt(id, 10)
		}
		out.Chains = append(out.Chains, ChainInfo{ID: id, Name: name})
	}
	return out
}

func (p *Provider) parseConnector(name string) (types.ConnectorKind, error) {
	kind, err := types.ParseConnectorKind(name)
	if err != nil {
		return "", apperrors.NewUnsupportedConnectorError(name)
	}
	for _, enabled := range p.connectors {
		if enabled == kind {
			return kind, nil
		}
	}
	return "", apperrors.NewUnsupportedConnectorError(name)
}

// Challenge issues a single-use login message for the address
func (p *Provider) Challenge(ctx context.Context, address, connector string) (*ChallengeResult, error) {
	wallet, err := types.ParseWalletAddress(address)
	if err != nil {
		return nil, apperrors.NewInvalidAddressError(address)
	}
	kind, err := p.parseConnector(connector)
	if err != nil {
		return nil, err
	}

	var chainID int64
	if len(p.cfg.ChainIDs) > 0 {
		chainID = p.cfg.ChainIDs[0]
	}

	now := p.now().UTC()
	nonce := uuid.New().String()
	c := &storage.Challenge{
		Address:   wallet,
		Connector: kind,
		Nonce:     nonce,
		Message:   challengeMessage(p.cfg.AppName, p.cfg.AppURL, wallet, chainID, nonce, now.Format(time.RFC3339)),
		IssuedAt:  now,
	}

	if err := p.sessions.PutChallenge(ctx, c, p.cfg.ChallengeTTL); err != nil {
		return nil, apperrors.NewCacheError("store challenge", err)
	}

	return &ChallengeResult{
		Address:   wallet,
		Message:   c.Message,
		ExpiresAt: now.Add(p.cfg.ChallengeTTL),
	}, nil
}

// Connect verifies a signed challenge and opens a session
func (p *Provider) Connect(ctx context.Context, in ConnectInput) (*Session, error) {
	wallet, err := types.ParseWalletAddress(in.Address)
	if err != nil {
		return nil, apperrors.NewInvalidAddressError(in.Address)
	}
	kind, err := p.parseConnector(in.Connector)
	if err != nil {
		return nil, err
	}

	challenge, err := p.sessions.ConsumeChallenge(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, apperrors.NewChallengeExpiredError(wallet.String())
		}
		return nil, apperrors.NewCacheError("consume challenge", err)
	}

	if challenge.Connector != kind {
		return nil, apperrors.NewInvalidParameterError("connector", "does not match the connector the challenge was issued for")
	}

	signer, err := RecoverSigner(challenge.Message, in.Signature)
	if err != nil || !signer.Equal(wallet) {
		p.logger.WithFields(map[string]interface{}{
			"wallet": wallet.String(),
			"signer": signer.String(),
		}).Warn("Wallet signature rejected")
		return nil, apperrors.NewSignatureMismatchError(wallet.String())
	}

	sessionID := uuid.New().String()
	token, expiresAt, err := p.tokens.Issue(wallet, kind, sessionID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue session token", err)
	}
	if err := p.sessions.RegisterSession(ctx, sessionID, wallet, p.tokens.TTL()); err != nil {
		return nil, apperrors.NewCacheError("register session", err)
	}

	if err := p.profiles.EnsureProfile(ctx, wallet); err != nil {
		p.logger.WithError(err).WithField("wallet", wallet.String()).Warn("Failed to create profile on connect")
	}

	p.logger.WithFields(map[string]interface{}{
		"wallet":    wallet.String(),
		"connector": string(kind),
	}).Info("Wallet connected")

	return &Session{Token: token, Address: wallet, Connector: kind, ExpiresAt: expiresAt}, nil
}

// Disconnect revokes the session behind a token. Unknown or expired tokens are ignored.
func (p *Provider) Disconnect(ctx context.Context, token string) error {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := p.sessions.RevokeSession(ctx, claims.SessionID()); err != nil {
		return apperrors.NewCacheError("revoke session", err)
	}
	return nil
}

// CurrentAddress returns the wallet behind a live token, or "" for an
// absent, invalid, expired or revoked token. Only store failures are errors.
func (p *Provider) CurrentAddress(ctx context.Context, token string) (types.WalletAddress, error) {
	if token == "" {
		return "", nil
	}
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return "", nil
	}

	addr, err := p.sessions.SessionAddress(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return "", nil
		}
		return "", apperrors.NewCacheError("session lookup", err)
	}
	if !addr.Equal(claims.Wallet) {
		return "", nil
	}
	return claims.Wallet, nil
}

// IsConnected reports whether the token belongs to a live session
func (p *Provider) IsConnected(ctx context.Context, token string) bool {
	addr, err := p.CurrentAddress(ctx, token)
	return err == nil && !addr.IsZero()
}
