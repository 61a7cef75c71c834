// Package chain reads native AVAX balances from the Avalanche C-Chain.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/Arrogantx/slapper/internal/circuitbreaker"
	"github.com/Arrogantx/slapper/internal/config"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/types"
)

// NativeDecimals is the number of decimals of AVAX on the C-Chain
const NativeDecimals = 18

// NativeSymbol is the C-Chain native token symbol
const NativeSymbol = "AVAX"

// RPC is the subset of ethclient.Client used for balance lookups
type RPC interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Balance is a wallet's native balance
type Balance struct {
	Wallet  types.WalletAddress `json:"wallet"`
	ChainID int64               `json:"chainId"`
	Symbol  string              `json:"symbol"`
	Wei     string              `json:"wei"`
	Amount  decimal.Decimal     `json:"amount"`
}

// BalanceProvider reads balances through a circuit breaker
type BalanceProvider struct {
	rpc     RPC
	chainID int64
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger
}

// Dial connects to the configured RPC endpoint and verifies its chain id
func Dial(ctx context.Context, cfg config.ChainConfig, logger *logging.Logger) (*BalanceProvider, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial avalanche rpc: %w", err)
	}

	if cfg.ChainID != 0 {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		id, err := client.ChainID(dialCtx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
		if id.Int64() != cfg.ChainID {
			client.Close()
			return nil, fmt.Errorf("rpc serves chain %d, expected %d", id.Int64(), cfg.ChainID)
		}
	}

	breaker := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		Name:             "avalanche-rpc",
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cfg.BreakerTimeout,
		HalfOpenProbes:   1,
	}, logger)

	return NewBalanceProvider(client, cfg.ChainID, cfg.Timeout, breaker, logger), nil
}

// NewBalanceProvider creates a balance provider over an RPC client
func NewBalanceProvider(rpc RPC, chainID int64, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *logging.Logger) *BalanceProvider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("avalanche-rpc"), logger)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BalanceProvider{
		rpc:     rpc,
		chainID: chainID,
		timeout: timeout,
		breaker: breaker,
		logger:  logger.WithField("component", "chain"),
	}
}

// Balance returns the latest native balance of a wallet
func (p *BalanceProvider) Balance(ctx context.Context, wallet types.WalletAddress) (*Balance, error) {
	wallet, err := types.ParseWalletAddress(wallet.String())
	if err != nil {
		return nil, err
	}

	var wei *big.Int
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		var callErr error
		wei, callErr = p.rpc.BalanceAt(callCtx, common.HexToAddress(wallet.String()), nil)
		return callErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, apperrors.NewServiceUnavailableError("avalanche rpc")
		}
		if isTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError("avalanche rpc")
		}
		p.logger.WithError(err).WithField("wallet", wallet.String()).Warn("Balance lookup failed")
		return nil, apperrors.NewProviderError("avalanche rpc", err)
	}

	return &Balance{
		Wallet:  wallet,
		ChainID: p.chainID,
		Symbol:  NativeSymbol,
		Wei:     wei.String(),
		Amount:  FromWei(wei),
	}, nil
}

// Close releases the RPC connection
func (p *BalanceProvider) Close() {
	if p.rpc != nil {
		p.rpc.Close()
	}
}

// FromWei converts a wei amount to AVAX
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals)
}

// ToWei converts an AVAX amount to wei, truncating below 1 wei
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(NativeDecimals).Truncate(0).BigInt()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
