package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/circuitbreaker"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
)

type mockRPC struct {
	balanceAtFunc func(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	calls         int
	closed        bool
}

func (m *mockRPC) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	m.calls++
	return m.balanceAtFunc(ctx, account, blockNumber)
}

func (m *mockRPC) ChainID(context.Context) (*big.Int, error) { return big.NewInt(43114), nil }

func (m *mockRPC) Close() { m.closed = true }

const testWallet = "0x8ba1f109551bd432803012645ac136ddd64dba72"

func TestBalanceProvider_Balance(t *testing.T) {
	oneAndHalf, _ := new(big.Int).SetString("1500000000000000000", 10)
	rpc := &mockRPC{balanceAtFunc: func(_ context.Context, account common.Address, block *big.Int) (*big.Int, error) {
		assert.Nil(t, block)
		assert.Equal(t, common.HexToAddress(testWallet), account)
		return oneAndHalf, nil
	}}
	provider := NewBalanceProvider(rpc, 43114, time.Second, nil, nil)

	bal, err := provider.Balance(context.Background(), "0x8BA1F109551BD432803012645AC136DDD64DBA72")
	require.NoError(t, err)
	assert.Equal(t, testWallet, bal.Wallet.String())
	assert.Equal(t, "AVAX", bal.Symbol)
	assert.Equal(t, "1500000000000000000", bal.Wei)
	assert.True(t, decimal.RequireFromString("1.5").Equal(bal.Amount))
}

func TestBalanceProvider_InvalidAddress(t *testing.T) {
	rpc := &mockRPC{}
	provider := NewBalanceProvider(rpc, 43114, time.Second, nil, nil)

	_, err := provider.Balance(context.Background(), "not-a-wallet")
	require.Error(t, err)
	assert.Equal(t, 0, rpc.calls)
}

func TestBalanceProvider_BreakerOpens(t *testing.T) {
	rpc := &mockRPC{balanceAtFunc: func(context.Context, common.Address, *big.Int) (*big.Int, error) {
		return nil, errors.New("connection refused")
	}}
	breaker := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		Name:             "rpc",
		FailureThreshold: 2,
		Cooldown:         time.Minute,
	}, nil)
	provider := NewBalanceProvider(rpc, 43114, time.Second, breaker, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := provider.Balance(ctx, testWallet)
		assert.True(t, apperrors.HasCode(err, "PROVIDER_ERROR"), "got %v", err)
	}

	_, err := provider.Balance(ctx, testWallet)
	assert.True(t, apperrors.HasCode(err, "SERVICE_UNAVAILABLE"), "got %v", err)
	assert.Equal(t, 2, rpc.calls)
}

func TestWeiConversion(t *testing.T) {
	wei := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.True(t, decimal.NewFromInt(1).Equal(FromWei(wei)))
	assert.True(t, FromWei(nil).IsZero())

	assert.Equal(t, "250000000000000000", ToWei(decimal.RequireFromString("0.25")).String())
	assert.Equal(t, "1", ToWei(decimal.RequireFromString("0.0000000000000000019")).String())
}

func TestBalanceProvider_Close(t *testing.T) {
	rpc := &mockRPC{}
	NewBalanceProvider(rpc, 43114, time.Second, nil, nil).Close()
	assert.True(t, rpc.closed)
}
