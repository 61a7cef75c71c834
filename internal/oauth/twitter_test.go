package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/config"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/types"
)

type recordingProfiles struct {
	mu      sync.Mutex
	wallet  types.WalletAddress
	patch   models.ProfilePatch
	upserts int
}

func (r *recordingProfiles) UpsertProfile(_ context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.wallet, r.patch = wallet, patch
	return &models.UserProfile{WalletAddress: wallet, TwitterID: patch.TwitterID, TwitterUsername: patch.TwitterUsername}, nil
}

// fakeTwitter serves the token and user endpoints and checks the PKCE pair
type fakeTwitter struct {
	server    *httptest.Server
	challenge string
	userCode  int
}

func newFakeTwitter(t *testing.T) *fakeTwitter {
	f := &fakeTwitter{userCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if r.PostForm.Get("code") != "good-code" || base64.RawURLEncoding.EncodeToString(sum[:]) != f.challenge {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":7200}`))
	})
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.userCode != http.StatusOK {
			w.WriteHeader(f.userCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "42", "username": "slap_x", "name": "Slap"},
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestTwitter(t *testing.T) (*Twitter, *fakeTwitter, *recordingProfiles) {
	fake := newFakeTwitter(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	profiles := &recordingProfiles{}
	tw := NewTwitter(config.TwitterConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/twitter/callback",
		AuthURL:      fake.server.URL + "/i/oauth2/authorize",
		TokenURL:     fake.server.URL + "/oauth2/token",
		UserInfoURL:  fake.server.URL + "/2/users/me",
		StateTTL:     time.Minute,
	}, storage.NewSessionStore(storage.NewRedisCacheFromClient(client)), profiles, nil)
	return tw, fake, profiles
}

func beginAndCapture(t *testing.T, tw *Twitter, fake *fakeTwitter, wallet types.WalletAddress) string {
	t.Helper()
	authURL, err := tw.Begin(context.Background(), wallet)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "tweet.read users.read", q.Get("scope"))
	fake.challenge = q.Get("code_challenge")
	require.NotEmpty(t, q.Get("state"))
	return q.Get("state")
}

func TestTwitter_BeginRequiresWallet(t *testing.T) {
	tw, _, _ := newTestTwitter(t)
	_, err := tw.Begin(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, "WALLET_NOT_CONNECTED"))
}

func TestTwitter_CompleteLinksProfile(t *testing.T) {
	tw, fake, profiles := newTestTwitter(t)
	state := beginAndCapture(t, tw, fake, "0xAAA")

	profile, err := tw.Complete(context.Background(), "good-code", state)
	require.NoError(t, err)
	assert.Equal(t, "slap_x", *profile.TwitterUsername)
	assert.Equal(t, types.WalletAddress("0xaaa"), profiles.wallet)
	assert.Equal(t, "42", *profiles.patch.TwitterID)
	assert.Nil(t, profiles.patch.Nickname)
}

func TestTwitter_StateIsSingleUse(t *testing.T) {
	tw, fake, profiles := newTestTwitter(t)
	state := beginAndCapture(t, tw, fake, "0xaaa")

	_, err := tw.Complete(context.Background(), "good-code", state)
	require.NoError(t, err)

	_, err = tw.Complete(context.Background(), "good-code", state)
	assert.True(t, apperrors.HasCode(err, "UNAUTHORIZED"))
	assert.Equal(t, 1, profiles.upserts)
}

func TestTwitter_CompleteFailures(t *testing.T) {
	tw, fake, profiles := newTestTwitter(t)
	ctx := context.Background()

	_, err := tw.Complete(ctx, "", "s")
	assert.True(t, apperrors.HasCode(err, "EMPTY_FIELD"))

	_, err = tw.Complete(ctx, "good-code", "never-issued")
	assert.True(t, apperrors.HasCode(err, "UNAUTHORIZED"))

	state := beginAndCapture(t, tw, fake, "0xaaa")
	_, err = tw.Complete(ctx, "bad-code", state)
	assert.True(t, apperrors.HasCode(err, "PROVIDER_ERROR"))

	state = beginAndCapture(t, tw, fake, "0xaaa")
	fake.userCode = http.StatusTooManyRequests
	_, err = tw.Complete(ctx, "good-code", state)
	assert.True(t, apperrors.HasCode(err, "PROVIDER_ERROR"))

	assert.Zero(t, profiles.upserts)
}
