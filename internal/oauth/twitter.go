// Package oauth links a Twitter account to a connected wallet with OAuth 2.0 + PKCE.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/Arrogantx/slapper/internal/config"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/types"
)

// Scopes requested from Twitter
var Scopes = []string{"tweet.read", "users.read"}

// StateStore keeps in-flight authorizations
type StateStore interface {
	PutOAuthState(ctx context.Context, state string, st *storage.OAuthState, ttl time.Duration) error
	TakeOAuthState(ctx context.Context, state string) (*storage.OAuthState, error)
}

// ProfileUpdater writes the linked account onto the wallet's profile
type ProfileUpdater interface {
	UpsertProfile(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error)
}

// TwitterUser is the subset of /2/users/me we keep
type TwitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Twitter runs the authorization code flow
type Twitter struct {
	oauth       *oauth2.Config
	userInfoURL string
	stateTTL    time.Duration
	states      StateStore
	profiles    ProfileUpdater
	logger      *logging.Logger
}

// NewTwitter creates the Twitter OAuth flow
func NewTwitter(cfg config.TwitterConfig, states StateStore, profiles ProfileUpdater, logger *logging.Logger) *Twitter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Twitter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		stateTTL:    ttl,
		states:      states,
		profiles:    profiles,
		logger:      logger.WithField("component", "oauth"),
	}
}

// Begin starts an authorization for a connected wallet and returns the URL to send the browser to
func (t *Twitter) Begin(ctx context.Context, wallet types.WalletAddress) (string, error) {
	if wallet.IsZero() {
		return "", apperrors.NewNotConnectedError()
	}

	state := uuid.New().String()
	verifier := oauth2.GenerateVerifier()
	err := t.states.PutOAuthState(ctx, state, &storage.OAuthState{
		Wallet:       types.NormalizeAddress(wallet.String()),
		CodeVerifier: verifier,
		CreatedAt:    time.Now().UTC(),
	}, t.stateTTL)
	if err != nil {
		return "", apperrors.NewCacheError("store oauth state", err)
	}

	return t.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete finishes an authorization: the state is consumed, the code is
// exchanged and the Twitter identity is written to the wallet's profile.
func (t *Twitter) Complete(ctx context.Context, code, state string) (*models.UserProfile, error) {
	if code == "" {
		return nil, apperrors.NewEmptyFieldError("code")
	}
	if state == "" {
		return nil, apperrors.NewEmptyFieldError("state")
	}

	pending, err := t.states.TakeOAuthState(ctx, state)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, apperrors.NewUnauthorizedError("unknown or expired oauth state")
		}
		return nil, apperrors.NewCacheError("take oauth state", err)
	}

	token, err := t.oauth.Exchange(ctx, code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		return nil, apperrors.NewProviderError("twitter", fmt.Errorf("code exchange: %w", err))
	}

	user, err := t.fetchUser(ctx, token)
	if err != nil {
		return nil, apperrors.NewProviderError("twitter", err)
	}

	profile, err := t.profiles.UpsertProfile(ctx, pending.Wallet, models.ProfilePatch{
		TwitterID:       &user.ID,
		TwitterUsername: &user.Username,
	})
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(map[string]interface{}{
		"wallet":  pending.Wallet.String(),
		"twitter": user.Username,
	}).Info("Twitter account linked")
	return profile, nil
}

func (t *Twitter) fetchUser(ctx context.Context, token *oauth2.Token) (*TwitterUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("user lookup returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Data TwitterUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if payload.Data.ID == "" || payload.Data.Username == "" {
		return nil, fmt.Errorf("user lookup returned no account")
	}
	return &payload.Data, nil
}
