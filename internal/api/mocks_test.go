package api

import (
	"context"
	"sync"

	"github.com/Arrogantx/slapper/internal/access"
	"github.com/Arrogantx/slapper/internal/admin"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/presale"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/types"
	"github.com/Arrogantx/slapper/internal/wallet"
)

const (
	walletA = types.WalletAddress("0x00000000000000000000000000000000000000aa")
	walletB = types.WalletAddress("0x00000000000000000000000000000000000000bb")
	tokenA  = "token-a"
	tokenB  = "token-b"
)

// Mock services for testing
type mockWallet struct {
	tokens         map[string]types.WalletAddress
	challengeFunc  func(ctx context.Context, address, connector string) (*wallet.ChallengeResult, error)
	connectFunc    func(ctx context.Context, in wallet.ConnectInput) (*wallet.Session, error)
	disconnectFunc func(ctx context.Context, token string) error
}

func newMockWallet() *mockWallet {
	return &mockWallet{tokens: map[string]types.WalletAddress{tokenA: walletA, tokenB: walletB}}
}

func (m *mockWallet) ConnectorConfig() wallet.ConnectorConfig {
	return wallet.ConnectorConfig{
		AppName:    "AvaxSlap",
		Connectors: []wallet.ConnectorInfo{{Kind: types.ConnectorCore, Name: "Core"}},
		Chains:     []wallet.ChainInfo{{ID: 43114, Name: "Avalanche C-Chain"}},
	}
}

func (m *mockWallet) Challenge(ctx context.Context, address, connector string) (*wallet.ChallengeResult, error) {
	if m.challengeFunc != nil {
		return m.challengeFunc(ctx, address, connector)
	}
	return &wallet.ChallengeResult{Address: types.NormalizeAddress(address), Message: "sign me"}, nil
}

func (m *mockWallet) Connect(ctx context.Context, in wallet.ConnectInput) (*wallet.Session, error) {
	if m.connectFunc != nil {
		return m.connectFunc(ctx, in)
	}
	return &wallet.Session{Token: tokenA, Address: walletA, Connector: types.ConnectorCore}, nil
}

func (m *mockWallet) Disconnect(ctx context.Context, token string) error {
	if m.disconnectFunc != nil {
		return m.disconnectFunc(ctx, token)
	}
	return nil
}

func (m *mockWallet) CurrentAddress(_ context.Context, token string) (types.WalletAddress, error) {
	return m.tokens[token], nil
}

type mockAccess struct {
	resolveFunc func(ctx context.Context, address types.WalletAddress) access.Access
}

func (m *mockAccess) Resolve(ctx context.Context, address types.WalletAddress) access.Access {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, address)
	}
	if address.IsZero() {
		return access.Anonymous
	}
	return access.Access{Address: address, Role: types.RoleConnected, RequestStatus: types.StatusNone, Verified: true}
}

type mockPresale struct {
	submitFunc  func(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error)
	statusFunc  func(ctx context.Context, wallet types.WalletAddress) (*presale.StatusView, error)
	gateFunc    func(ctx context.Context, wallet types.WalletAddress) (*presale.DepositView, error)
	depositFunc func(ctx context.Context, wallet types.WalletAddress, amount string) (*models.Acknowledgment, error)
}

func (m *mockPresale) Submit(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, wallet, handle)
	}
	return &models.AccessRequest{ID: "req-1", WalletAddress: wallet, SocialHandle: handle, Status: types.StatusPending}, nil
}

func (m *mockPresale) Status(ctx context.Context, wallet types.WalletAddress) (*presale.StatusView, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, wallet)
	}
	return &presale.StatusView{Wallet: wallet, Status: types.StatusNone}, nil
}

func (m *mockPresale) DepositGate(ctx context.Context, wallet types.WalletAddress) (*presale.DepositView, error) {
	if m.gateFunc != nil {
		return m.gateFunc(ctx, wallet)
	}
	return &presale.DepositView{Wallet: wallet, Status: types.StatusApproved}, nil
}

func (m *mockPresale) Deposit(ctx context.Context, wallet types.WalletAddress, amount string) (*models.Acknowledgment, error) {
	if m.depositFunc != nil {
		return m.depositFunc(ctx, wallet, amount)
	}
	return models.ComingSoon("deposit"), nil
}

type mockReview struct {
	listFunc   func(ctx context.Context, actor types.WalletAddress) (*admin.Listing, error)
	decideFunc func(ctx context.Context, actor types.WalletAddress, id string, decision admin.Decision) (*admin.DecideResult, error)
}

func (m *mockReview) List(ctx context.Context, actor types.WalletAddress) (*admin.Listing, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, actor)
	}
	return &admin.Listing{}, nil
}

func (m *mockReview) Decide(ctx context.Context, actor types.WalletAddress, id string, decision admin.Decision) (*admin.DecideResult, error) {
	if m.decideFunc != nil {
		return m.decideFunc(ctx, actor, id, decision)
	}
	status, _ := decision.Status()
	return &admin.DecideResult{Request: &models.AccessRequest{ID: id, Status: status}, Listing: &admin.Listing{}}, nil
}

type mockChat struct {
	sendFunc func(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error)
}

func (m *mockChat) Send(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error) {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, wallet, body)
	}
	if wallet.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}
	return &models.ChatMessage{ID: "m-new", Body: body, WalletAddress: wallet}, nil
}

func (m *mockChat) Tip(_ context.Context, from, to types.WalletAddress, _ string) (*models.Acknowledgment, error) {
	if from.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}
	ack := models.ComingSoon("tipping")
	ack.To = to.String()
	return ack, nil
}

// fakeFeed is a realtime feed driven by the test
type fakeFeed struct {
	events chan *models.ChangeEvent
	once   sync.Once
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan *models.ChangeEvent, 16)}
}

func (f *fakeFeed) Events() <-chan *models.ChangeEvent { return f.events }

func (f *fakeFeed) Close() error {
	f.once.Do(func() { close(f.events) })
	return nil
}

type mockData struct {
	mu          sync.Mutex
	newestFirst []*models.ChatMessage
	recentErr   error
	profiles    map[types.WalletAddress]*models.UserProfile
	feeds       map[string][]*fakeFeed
	upsertFunc  func(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error)
}

func newMockData() *mockData {
	return &mockData{
		profiles: make(map[types.WalletAddress]*models.UserProfile),
		feeds:    make(map[string][]*fakeFeed),
	}
}

func (m *mockData) RecentMessages(_ context.Context, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if len(m.newestFirst) > limit {
		return m.newestFirst[:limit], nil
	}
	return m.newestFirst, nil
}

func (m *mockData) MessageByID(_ context.Context, id string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.newestFirst {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, apperrors.NewNotFoundError("message", id)
}

func (m *mockData) Subscribe(_ context.Context, tables ...string) (realtime.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	feed := newFakeFeed()
	for _, table := range tables {
		m.feeds[table] = append(m.feeds[table], feed)
	}
	return feed, nil
}

// feedFor returns the first feed subscribed to table, or nil
func (m *mockData) feedFor(table string) *fakeFeed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if feeds := m.feeds[table]; len(feeds) > 0 {
		return feeds[0]
	}
	return nil
}

func (m *mockData) Profile(_ context.Context, wallet types.WalletAddress) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[types.NormalizeAddress(wallet.String())]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError("profile", wallet.String())
}

func (m *mockData) UpsertProfile(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, wallet, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.UserProfile{WalletAddress: wallet, Nickname: patch.Nickname}
	m.profiles[wallet] = p
	return p, nil
}

type mockTwitter struct {
	beginFunc    func(ctx context.Context, wallet types.WalletAddress) (string, error)
	completeFunc func(ctx context.Context, code, state string) (*models.UserProfile, error)
}

func (m *mockTwitter) Begin(ctx context.Context, wallet types.WalletAddress) (string, error) {
	if m.beginFunc != nil {
		return m.beginFunc(ctx, wallet)
	}
	return "https://twitter.example/authorize?state=s1", nil
}

func (m *mockTwitter) Complete(ctx context.Context, code, state string) (*models.UserProfile, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, code, state)
	}
	username := "slap_x"
	return &models.UserProfile{WalletAddress: walletA, TwitterUsername: &username}, nil
}

type testDeps struct {
	wallet  *mockWallet
	access  *mockAccess
	presale *mockPresale
	review  *mockReview
	chat    *mockChat
	data    *mockData
	twitter *mockTwitter
}

func newTestDeps() *testDeps {
	return &testDeps{
		wallet:  newMockWallet(),
		access:  &mockAccess{},
		presale: &mockPresale{},
		review:  &mockReview{},
		chat:    &mockChat{},
		data:    newMockData(),
		twitter: &mockTwitter{},
	}
}

func (d *testDeps) services() Services {
	return Services{
		Wallet:  d.wallet,
		Access:  d.access,
		Presale: d.presale,
		Review:  d.review,
		Chat:    d.chat,
		Data:    d.data,
		Twitter: d.twitter,
	}
}

func newTestServer(d *testDeps) *Server {
	return NewServer(&ServerConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		FrontendOrigin: "http://localhost:3000",
		HistoryLimit:   50,
	}, d.services(), nil)
}
