// Package presale implements the presale access request flow and the deposit gate.
package presale

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Arrogantx/slapper/internal/chain"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/types"
)

// MaxHandleLength bounds the stored social handle
const MaxHandleLength = 64

// pendingTTL bounds how long a cached pending entry answers a submit without
// a backend read, for deployments where Watch is not running
const pendingTTL = 30 * time.Second

// Backend is the subset of the backend client the flow uses
type Backend interface {
	RequestByWallet(ctx context.Context, wallet types.WalletAddress) (*models.AccessRequest, error)
	InsertRequest(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error)
}

// BalanceReader reads a wallet's native balance
type BalanceReader interface {
	Balance(ctx context.Context, wallet types.WalletAddress) (*chain.Balance, error)
}

// StatusView is a wallet's presale state
type StatusView struct {
	Wallet  types.WalletAddress   `json:"wallet"`
	Status  types.RequestStatus   `json:"status"`
	Request *models.AccessRequest `json:"request,omitempty"`
}

// DepositView is what an approved wallet sees on the deposit screen
type DepositView struct {
	Wallet  types.WalletAddress `json:"wallet"`
	Status  types.RequestStatus `json:"status"`
	Balance *chain.Balance      `json:"balance,omitempty"`
	// BalanceError is set when the balance could not be read; the gate itself still passed
	BalanceError string `json:"balanceError,omitempty"`
}

// Flow drives submissions. It remembers which wallets it has seen pending so
// a duplicate submit is rejected without a backend round trip. An entry is
// dropped when the request changes (see Watch) or after pendingTTL.
type Flow struct {
	backend  Backend
	balances BalanceReader
	logger   *logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	pending map[types.WalletAddress]time.Time
}

// NewFlow creates a presale flow. balances may be nil when no RPC is configured.
func NewFlow(backend Backend, balances BalanceReader, logger *logging.Logger) *Flow {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Flow{
		backend:  backend,
		balances: balances,
		logger:   logger.WithField("component", "presale"),
		now:      time.Now,
		pending:  make(map[types.WalletAddress]time.Time),
	}
}

// Submit files a presale request for the wallet
func (f *Flow) Submit(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error) {
	if wallet.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}
	wallet = types.NormalizeAddress(wallet.String())

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apperrors.NewEmptyFieldError("twitterHandle")
	}
	if len(handle) > MaxHandleLength {
		return nil, apperrors.NewInvalidParameterError("twitterHandle", "handle is too long")
	}

	if f.knownPending(wallet) {
		return nil, apperrors.NewRequestExistsError(wallet.String(), types.StatusPending)
	}

	existing, err := f.backend.RequestByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		f.remember(wallet, existing.Status)
		return nil, apperrors.NewRequestExistsError(wallet.String(), existing.Status)
	}

	req, err := f.backend.InsertRequest(ctx, wallet, handle)
	if err != nil {
		if catErr := apperrors.Categorize(err); catErr.Code == apperrors.CodeAlreadyPending {
			f.remember(wallet, types.StatusPending)
		}
		return nil, err
	}

	f.remember(wallet, req.Status)
	f.logger.WithFields(map[string]interface{}{
		"wallet":  wallet.String(),
		"request": req.ID,
	}).Info("Presale request submitted")
	return req, nil
}

// Status re-reads the wallet's request from the backend
func (f *Flow) Status(ctx context.Context, wallet types.WalletAddress) (*StatusView, error) {
	if wallet.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}
	wallet = types.NormalizeAddress(wallet.String())

	req, err := f.backend.RequestByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	view := &StatusView{Wallet: wallet, Status: types.StatusNone, Request: req}
	if req != nil {
		view.Status = req.Status
	}
	f.remember(wallet, view.Status)
	return view, nil
}

// DepositGate admits only approved wallets and attaches their AVAX balance
func (f *Flow) DepositGate(ctx context.Context, wallet types.WalletAddress) (*DepositView, error) {
	status, err := f.Status(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if status.Status != types.StatusApproved {
		return nil, apperrors.NewNotApprovedError(status.Wallet.String(), status.Status)
	}

	view := &DepositView{Wallet: status.Wallet, Status: status.Status}
	if f.balances == nil {
		view.BalanceError = "balance unavailable"
		return view, nil
	}

	balance, err := f.balances.Balance(ctx, status.Wallet)
	if err != nil {
		f.logger.WithError(err).WithField("wallet", status.Wallet.String()).Warn("Deposit balance lookup failed")
		view.BalanceError = "balance unavailable"
		return view, nil
	}
	view.Balance = balance
	return view, nil
}

// Deposit validates a deposit intent for an approved wallet. No value moves.
func (f *Flow) Deposit(ctx context.Context, wallet types.WalletAddress, amount string) (*models.Acknowledgment, error) {
	if _, err := f.DepositGate(ctx, wallet); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !value.IsPositive() {
		return nil, apperrors.NewInvalidParameterError("amount", "amount must be a positive number")
	}

	ack := models.ComingSoon("deposit")
	ack.Amount = &value
	return ack, nil
}

// Watch drops cached entries as access requests change until ctx is done or
// the feed ends. It owns the feed and closes it on return.
func (f *Flow) Watch(ctx context.Context, feed realtime.Feed) {
	defer func() { _ = feed.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-feed.Events():
			if !ok {
				f.logger.Warn("Access request feed ended, relying on cache expiry")
				return
			}
			f.observe(event)
		}
	}
}

func (f *Flow) observe(event *models.ChangeEvent) {
	switch {
	case event.Op == models.OpResync:
		f.mu.Lock()
		clear(f.pending)
		f.mu.Unlock()
	case event.Table == models.TableAccessRequests && event.Op != models.OpInsert:
		f.forget(types.NormalizeAddress(event.Wallet))
	}
}

func (f *Flow) knownPending(wallet types.WalletAddress) bool {
	f.mu.RLock()
	seen, ok := f.pending[wallet]
	f.mu.RUnlock()
	if !ok {
		return false
	}
	if f.now().Sub(seen) >= pendingTTL {
		f.forget(wallet)
		return false
	}
	return true
}

// remember caches pending wallets only; any other status clears the entry
func (f *Flow) remember(wallet types.WalletAddress, status types.RequestStatus) {
	if status != types.StatusPending {
		f.forget(wallet)
		return
	}
	f.mu.Lock()
	f.pending[wallet] = f.now()
	f.mu.Unlock()
}

func (f *Flow) forget(wallet types.WalletAddress) {
	f.mu.Lock()
	delete(f.pending, wallet)
	f.mu.Unlock()
}
