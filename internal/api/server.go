// Package api provides the HTTP and WebSocket API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Arrogantx/slapper/internal/access"
	"github.com/Arrogantx/slapper/internal/admin"
	"github.com/Arrogantx/slapper/internal/chat"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/presale"
	"github.com/Arrogantx/slapper/internal/types"
	"github.com/Arrogantx/slapper/internal/wallet"
)

// Service interfaces for dependency injection and testing

// WalletService defines wallet sign-in operations
type WalletService interface {
	ConnectorConfig() wallet.ConnectorConfig
	Challenge(ctx context.Context, address, connector string) (*wallet.ChallengeResult, error)
	Connect(ctx context.Context, in wallet.ConnectInput) (*wallet.Session, error)
	Disconnect(ctx context.Context, token string) error
	CurrentAddress(ctx context.Context, token string) (types.WalletAddress, error)
}

// AccessService resolves roles
type AccessService interface {
	Resolve(ctx context.Context, address types.WalletAddress) access.Access
}

// PresaleService defines presale request and deposit operations
type PresaleService interface {
	Submit(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error)
	Status(ctx context.Context, wallet types.WalletAddress) (*presale.StatusView, error)
	DepositGate(ctx context.Context, wallet types.WalletAddress) (*presale.DepositView, error)
	Deposit(ctx context.Context, wallet types.WalletAddress, amount string) (*models.Acknowledgment, error)
}

// ReviewService defines admin review operations
type ReviewService interface {
	List(ctx context.Context, actor types.WalletAddress) (*admin.Listing, error)
	Decide(ctx context.Context, actor types.WalletAddress, id string, decision admin.Decision) (*admin.DecideResult, error)
}

// ChatService defines chat write operations
type ChatService interface {
	Send(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error)
	Tip(ctx context.Context, from, to types.WalletAddress, amount string) (*models.Acknowledgment, error)
}

// DataService is the backend client surface the handlers read from directly
type DataService interface {
	chat.SessionBackend
	Profile(ctx context.Context, wallet types.WalletAddress) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error)
}

// TwitterService defines the Twitter account linking flow
type TwitterService interface {
	Begin(ctx context.Context, wallet types.WalletAddress) (string, error)
	Complete(ctx context.Context, code, state string) (*models.UserProfile, error)
}

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Services bundles the handlers' dependencies. Twitter may be nil when sign-in is not configured.
type Services struct {
	Wallet  WalletService
	Access  AccessService
	Presale PresaleService
	Review  ReviewService
	Chat    ChatService
	Data    DataService
	Twitter TwitterService
	// Health is keyed by dependency name
	Health map[string]HealthCheck
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerMinute int
	Burst             int
	AllowedOrigins    []string
	// FrontendOrigin receives the browser after the Twitter callback
	FrontendOrigin string
	HistoryLimit   int
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	config     *ServerConfig
	logger     *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = chat.DefaultHistoryLimit
	}

	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		config:   config,
		logger:   logger.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	s.router.Use(RateLimitMiddleware(rateLimiter)) // Rate limiting after CORS
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Wallet session endpoints
	api.HandleFunc("/wallet/config", s.handleWalletConfig).Methods("GET")
	api.HandleFunc("/wallet/challenge", s.handleWalletChallenge).Methods("POST")
	api.HandleFunc("/wallet/connect", s.handleWalletConnect).Methods("POST")
	api.HandleFunc("/wallet/disconnect", s.handleWalletDisconnect).Methods("POST")

	// Access and navigation
	api.HandleFunc("/access", s.handleGetAccess).Methods("GET")
	api.HandleFunc("/nav", s.handleGetNav).Methods("GET")

	// Presale endpoints
	api.HandleFunc("/presale", s.handleGetPresale).Methods("GET")
	api.HandleFunc("/presale", s.handleSubmitPresale).Methods("POST")
	api.HandleFunc("/deposit", s.handleGetDeposit).Methods("GET")
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")

	// Admin endpoints
	api.HandleFunc("/admin/requests", s.handleListRequests).Methods("GET")
	api.HandleFunc("/admin/requests/{id}/approve", s.handleDecide(admin.DecisionApprove)).Methods("POST")
	api.HandleFunc("/admin/requests/{id}/deny", s.handleDecide(admin.DecisionDeny)).Methods("POST")

	// Chat endpoints
	api.HandleFunc("/chat/messages", s.handleGetMessages).Methods("GET")
	api.HandleFunc("/chat/messages", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/chat/tip", s.handleTip).Methods("POST")
	api.HandleFunc("/chat/ws", s.handleChatWS).Methods("GET")

	// Profile endpoints
	api.HandleFunc("/profile", s.handleGetOwnProfile).Methods("GET")
	api.HandleFunc("/profile", s.handleUpdateProfile).Methods("PUT")
	api.HandleFunc("/profile/{address}", s.handleGetProfile).Methods("GET")

	// Twitter OAuth endpoints
	api.HandleFunc("/auth/twitter", s.handleTwitterBegin).Methods("GET")
	api.HandleFunc("/auth/twitter/callback", s.handleTwitterCallback).Methods("GET")

	// Preflight requests only need the CORS middleware to run
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// HealthResponse reports liveness and dependency status
type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// handleHealth pings every registered dependency; any failure reports 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "avaxslap"}
	status := http.StatusOK

	if len(s.services.Health) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Dependencies = make(map[string]string, len(s.services.Health))
		for name, check := range s.services.Health {
			if err := check(ctx); err != nil {
				s.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
				resp.Dependencies[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[name] = "up"
		}
	}

	respondJSON(w, status, resp)
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
