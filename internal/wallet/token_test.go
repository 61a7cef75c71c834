package wallet

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/types"
)

func TestTokenIssuer_IssueValidate(t *testing.T) {
	issuer := NewTokenIssuer(strings.Repeat("s", 32), "avaxslap", time.Hour)

	token, expiresAt, err := issuer.Issue("0xAbC", types.ConnectorCore, "sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, types.WalletAddress("0xabc"), claims.Wallet)
	assert.Equal(t, types.ConnectorCore, claims.Connector)
	assert.Equal(t, "sid-1", claims.SessionID())
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer(strings.Repeat("s", 32), "avaxslap", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := issuer.Issue("0xabc", types.ConnectorCore, "sid-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsOtherSecretAndIssuer(t *testing.T) {
	a := NewTokenIssuer(strings.Repeat("a", 32), "avaxslap", time.Hour)
	b := NewTokenIssuer(strings.Repeat("b", 32), "avaxslap", time.Hour)
	c := NewTokenIssuer(strings.Repeat("a", 32), "someone-else", time.Hour)

	token, _, err := a.Issue("0xabc", types.ConnectorCore, "sid-1")
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.Error(t, err)
	_, err = c.Validate(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsNoneAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer(strings.Repeat("s", 32), "avaxslap", time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Wallet: "0xabc",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "sid",
			Issuer:    "avaxslap",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RequiresSecret(t *testing.T) {
	issuer := NewTokenIssuer("", "avaxslap", time.Hour)
	_, _, err := issuer.Issue("0xabc", types.ConnectorCore, "sid")
	assert.Error(t, err)
}
