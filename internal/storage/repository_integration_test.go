package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/config"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

const testMigrationsPath = "../../migrations/postgres"

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "avaxslap",
		User:           "avaxslap",
		Password:       "avaxslap_dev_password",
		MaxConnections: 10,
	}
}

// openTestPostgres connects and migrates the local database, skipping when unavailable
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, RunMigrations(PostgresURL(cfg), testMigrationsPath))
	return db
}

// randomWallet returns a fresh mixed-case address so runs do not collide
func randomWallet() types.WalletAddress {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return types.WalletAddress("0xAB" + strings.ToUpper(hex[:6]) + hex[6:32] + "C0FFEE")
}

func TestAccessRequestRepository_Lifecycle(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewAccessRequestRepository(db)
	ctx := testContext(t)
	wallet := randomWallet()

	_, err := repo.GetByWallet(ctx, wallet)
	assert.True(t, errors.Is(err, ErrRequestNotFound))

	created, err := repo.Insert(ctx, wallet, "@slapper")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, created.Status)
	assert.Equal(t, types.NormalizeAddress(wallet.String()), created.WalletAddress)

	_, err = repo.Insert(ctx, types.NormalizeAddress(wallet.String()), "@again")
	assert.ErrorIs(t, err, ErrRequestExists)

	got, err := repo.GetByWallet(ctx, types.WalletAddress(strings.ToUpper(wallet.String())))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	actor := randomWallet()
	resolved, err := repo.Resolve(ctx, created.ID, types.StatusApproved, actor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)

	current, err := repo.Resolve(ctx, created.ID, types.StatusDenied, actor)
	assert.ErrorIs(t, err, ErrRequestNotPending)
	require.NotNil(t, current)
	assert.Equal(t, types.StatusApproved, current.Status)

	_, err = repo.Resolve(ctx, uuid.New().String(), types.StatusDenied, actor)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "list must be newest first")
	}
}

func TestAdminRosterRepository_IsAdmin(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewAdminRosterRepository(db)
	ctx := testContext(t)
	wallet := randomWallet()

	isAdmin, err := repo.IsAdmin(ctx, wallet)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	require.NoError(t, repo.Add(ctx, wallet))
	t.Cleanup(func() { _, _ = repo.Remove(ctx, wallet) })

	isAdmin, err = repo.IsAdmin(ctx, types.WalletAddress(strings.ToUpper(wallet.String())))
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestChatRepository_JoinsAuthorProfile(t *testing.T) {
	db := openTestPostgres(t)
	profiles := NewProfileRepository(db)
	chat := NewChatRepository(db)
	ctx := testContext(t)
	wallet := randomWallet()

	created, err := profiles.Ensure(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = profiles.Ensure(ctx, wallet)
	require.NoError(t, err)
	assert.False(t, created)

	msg, err := chat.Insert(ctx, wallet, "gm")
	require.NoError(t, err)

	fetched, err := chat.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousName, fetched.DisplayName())

	nick := "slapper"
	_, err = profiles.Upsert(ctx, wallet, models.ProfilePatch{Nickname: &nick})
	require.NoError(t, err)

	fetched, err = chat.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "slapper", fetched.DisplayName())

	recent, err := chat.Recent(ctx, 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(recent), 50)

	_, err = chat.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestNewClickHouseDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "avaxslap",
		User:     "default",
		Password: "clickhouse_dev_password",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := testContext(t)
	require.NoError(t, db.Ping(ctx))
	_, err = RunClickHouseMigrations(ctx, db, "../../migrations/clickhouse")
	require.NoError(t, err)

	again, err := RunClickHouseMigrations(ctx, db, "../../migrations/clickhouse")
	require.NoError(t, err)
	assert.Empty(t, again, "applied files are recorded in the ledger")
	require.NoError(t, NewEventArchive(db).AppendBatch(ctx, nil))
}
