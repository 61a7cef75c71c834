package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/types"
)

// gatedResolver blocks resolutions for chosen wallets until released
type gatedResolver struct {
	mu      sync.Mutex
	roles   map[types.WalletAddress]types.Role
	gates   map[types.WalletAddress]chan struct{}
	started chan types.WalletAddress
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{
		roles:   make(map[types.WalletAddress]types.Role),
		gates:   make(map[types.WalletAddress]chan struct{}),
		started: make(chan types.WalletAddress, 8),
	}
}

func (r *gatedResolver) block(addr types.WalletAddress) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gates[addr] = ch
	return ch
}

func (r *gatedResolver) Resolve(_ context.Context, addr types.WalletAddress) Access {
	r.mu.Lock()
	gate := r.gates[addr]
	role, ok := r.roles[addr]
	r.mu.Unlock()

	r.started <- addr
	if gate != nil {
		<-gate
	}
	if !ok {
		role = types.RoleConnected
	}
	return Access{Address: addr, Role: role, RequestStatus: types.StatusNone, Verified: true}
}

func TestTracker_StartsAnonymous(t *testing.T) {
	tracker := NewTracker(newGatedResolver())
	snap := tracker.Snapshot()
	assert.Equal(t, PhaseResolved, snap.Phase)
	assert.Equal(t, types.RoleAnonymous, snap.Access.Role)
}

func TestTracker_SetAddressResolves(t *testing.T) {
	resolver := newGatedResolver()
	resolver.roles["0xaa"] = types.RoleApproved
	tracker := NewTracker(resolver)

	snap, applied := tracker.SetAddress(context.Background(), "0xAA")
	assert.True(t, applied)
	assert.Equal(t, PhaseResolved, snap.Phase)
	assert.Equal(t, types.RoleApproved, snap.Access.Role)
	assert.Equal(t, types.WalletAddress("0xaa"), snap.Address)
}

func TestTracker_DiscardsSupersededResult(t *testing.T) {
	resolver := newGatedResolver()
	resolver.roles["0xaa"] = types.RoleAdmin
	resolver.roles["0xbb"] = types.RoleDenied
	release := resolver.block("0xaa")
	tracker := NewTracker(resolver)

	type outcome struct {
		snap    Snapshot
		applied bool
	}
	first := make(chan outcome, 1)
	go func() {
		snap, applied := tracker.SetAddress(context.Background(), "0xaa")
		first <- outcome{snap, applied}
	}()

	select {
	case addr := <-resolver.started:
		require.Equal(t, types.WalletAddress("0xaa"), addr)
	case <-time.After(2 * time.Second):
		t.Fatal("first resolution never started")
	}

	checking := tracker.Snapshot()
	assert.Equal(t, PhaseChecking, checking.Phase)
	assert.NotEqual(t, types.RoleDenied, checking.Access.Role)

	snap, applied := tracker.SetAddress(context.Background(), "0xbb")
	<-resolver.started
	assert.True(t, applied)
	assert.Equal(t, types.RoleDenied, snap.Access.Role)

	close(release)
	var late outcome
	select {
	case late = <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first resolution never finished")
	}
	assert.False(t, late.applied)

	final := tracker.Snapshot()
	assert.Equal(t, types.WalletAddress("0xbb"), final.Address)
	assert.Equal(t, types.RoleDenied, final.Access.Role, "late admin result for old wallet must not leak")
}

func TestTracker_DisconnectIsAnonymous(t *testing.T) {
	resolver := newGatedResolver()
	tracker := NewTracker(resolver)

	_, _ = tracker.SetAddress(context.Background(), "0xaa")
	<-resolver.started

	snap, applied := tracker.SetAddress(context.Background(), "")
	assert.True(t, applied)
	assert.Equal(t, types.RoleAnonymous, snap.Access.Role)
	assert.Equal(t, PhaseResolved, snap.Phase)
}

func TestTracker_Refresh(t *testing.T) {
	resolver := newGatedResolver()
	resolver.roles["0xaa"] = types.RolePending
	tracker := NewTracker(resolver)

	_, _ = tracker.SetAddress(context.Background(), "0xaa")
	<-resolver.started

	resolver.mu.Lock()
	resolver.roles["0xaa"] = types.RoleApproved
	resolver.mu.Unlock()

	snap, applied := tracker.Refresh(context.Background())
	<-resolver.started
	assert.True(t, applied)
	assert.Equal(t, types.RoleApproved, snap.Access.Role)
}
