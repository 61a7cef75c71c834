package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("WALLET_CHALLENGE_TTL", "2m")
	t.Setenv("WALLET_CHAIN_IDS", "43113")
	t.Setenv("CHAT_HISTORY_LIMIT", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "testhost", cfg.Database.Postgres.Host)
	assert.Equal(t, 2*time.Minute, cfg.Wallet.ChallengeTTL)
	assert.Equal(t, []int64{43113}, cfg.Wallet.ChainIDs)
	assert.Equal(t, 25, cfg.Chat.HistoryLimit)
	assert.Equal(t, "AvaxSlap", cfg.Wallet.AppName)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.Equal(t, []string{"core", "metamask", "walletconnect"}, cfg.Wallet.Connectors)
	assert.Equal(t, []int64{43114, 43113}, cfg.Wallet.ChainIDs)
	assert.Equal(t, 10*time.Minute, cfg.Twitter.StateTTL)
	assert.False(t, cfg.Twitter.Enabled())
}

func validConfig() *Config {
	return &Config{
		Wallet: WalletConfig{
			WalletConnectProjectID: "project-123",
			Connectors:             []string{"metamask", "walletconnect"},
		},
		Auth: AuthConfig{JWTSecret: strings.Repeat("s", 32)},
		Chat: ChatConfig{HistoryLimit: 50},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing walletconnect project id is fatal",
			mutate:  func(c *Config) { c.Wallet.WalletConnectProjectID = " " },
			wantErr: "WALLETCONNECT_PROJECT_ID",
		},
		{
			name: "project id not needed without walletconnect connector",
			mutate: func(c *Config) {
				c.Wallet.WalletConnectProjectID = ""
				c.Wallet.Connectors = []string{"metamask", "core"}
			},
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "JWT_SECRET",
		},
		{
			name:    "non positive history limit",
			mutate:  func(c *Config) { c.Chat.HistoryLimit = 0 },
			wantErr: "CHAT_HISTORY_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_KEY", "custom")
	assert.Equal(t, "custom", getEnv("TEST_KEY", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_KEY_FOR_TEST", "default"))
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 7))
	assert.Equal(t, 7, getEnvAsInt("TEST_BAD_INT", 7))
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_LIST_UNSET", []string{"x"}))
}

func TestGetEnvAsInt64List(t *testing.T) {
	t.Setenv("TEST_IDS", "1,2")
	t.Setenv("TEST_BAD_IDS", "1,two")
	assert.Equal(t, []int64{1, 2}, getEnvAsInt64List("TEST_IDS", nil))
	assert.Equal(t, []int64{9}, getEnvAsInt64List("TEST_BAD_IDS", []int64{9}))
}
