package access

import (
	"context"
	"sync"

	"github.com/Arrogantx/slapper/internal/types"
)

// Phase is the tracker's resolution phase
type Phase string

const (
	// PhaseChecking means a resolution for the current wallet is in flight
	PhaseChecking Phase = "checking"
	// PhaseResolved means Access reflects the current wallet
	PhaseResolved Phase = "resolved"
)

// Snapshot is a point-in-time view of a tracker
type Snapshot struct {
	Address types.WalletAddress `json:"address,omitempty"`
	Phase   Phase               `json:"phase"`
	Access  Access              `json:"access"`
}

// Resolver resolves access for an address
type Resolver interface {
	Resolve(ctx context.Context, address types.WalletAddress) Access
}

// Tracker follows the live wallet of one session. When the wallet changes while
// a resolution is in flight, the late result for the old wallet is discarded.
type Tracker struct {
	resolver Resolver

	mu         sync.Mutex
	generation uint64
	address    types.WalletAddress
	phase      Phase
	access     Access
}

// NewTracker creates a tracker with no wallet
func NewTracker(resolver Resolver) *Tracker {
	return &Tracker{resolver: resolver, phase: PhaseResolved, access: Anonymous}
}

// Snapshot returns the current state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Address: t.address, Phase: t.phase, Access: t.access}
}

// SetAddress switches the tracked wallet and resolves it. It returns the
// snapshot after the resolution and whether this call's result was applied.
func (t *Tracker) SetAddress(ctx context.Context, address types.WalletAddress) (Snapshot, bool) {
	gen, addr := t.begin(types.NormalizeAddress(address.String()), true)
	return t.resolve(ctx, gen, addr)
}

// Refresh re-resolves the current wallet, e.g. after its request was decided
func (t *Tracker) Refresh(ctx context.Context) (Snapshot, bool) {
	t.mu.Lock()
	addr := t.address
	t.mu.Unlock()

	gen, addr := t.begin(addr, false)
	return t.resolve(ctx, gen, addr)
}

// begin bumps the generation. Switching wallets also drops the previous
// wallet's access so nothing stale is shown while checking.
func (t *Tracker) begin(address types.WalletAddress, switching bool) (uint64, types.WalletAddress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	if switching && !t.address.Equal(address) {
		t.address = address
		t.access = Anonymous
		if !address.IsZero() {
			t.access = Access{Address: address, Role: types.RoleConnected, RequestStatus: types.StatusUnknown}
		}
	}
	t.phase = PhaseChecking
	if address.IsZero() {
		t.phase = PhaseResolved
		t.access = Anonymous
	}
	return t.generation, address
}

func (t *Tracker) resolve(ctx context.Context, gen uint64, address types.WalletAddress) (Snapshot, bool) {
	if address.IsZero() {
		return t.Snapshot(), true
	}

	result := t.resolver.Resolve(ctx, address)
	return t.apply(gen, address, result)
}

// apply stores a result only if no newer resolution started and the wallet is unchanged
func (t *Tracker) apply(gen uint64, address types.WalletAddress, result Access) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	applied := gen == t.generation && t.address.Equal(address)
	if applied {
		t.access = result
		t.phase = PhaseResolved
	}
	return Snapshot{Address: t.address, Phase: t.phase, Access: t.access}, applied
}
