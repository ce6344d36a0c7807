// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hellhack-ui/HoloPass/internal/auth"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/ratelimit"
	"github.com/hellhack-ui/HoloPass/internal/service"
)

// Service interfaces for dependency injection and testing

// EventServiceInterface defines the interface for event catalog operations
type EventServiceInterface interface {
	List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, organizer string, in models.EventInput) (*models.Event, error)
	Update(ctx context.Context, id, actor string, in models.EventInput) (*models.Event, error)
	Delete(ctx context.Context, id, organizer string) error
}

// RSVPServiceInterface defines the interface for RSVP operations
type RSVPServiceInterface interface {
	Create(ctx context.Context, eventID, user, actor string) (*models.RSVP, error)
	Cancel(ctx context.Context, eventID, user, actor string) error
	ListForUser(ctx context.Context, user string) ([]*models.RSVP, error)
	QRCode(ctx context.Context, eventID, user, actor string) (*service.RSVPQRCode, error)
}

// CheckInServiceInterface defines the interface for check-in operations
type CheckInServiceInterface interface {
	CheckIn(ctx context.Context, eventID, user, qrData, actor string) (*models.CheckInResult, error)
	Stats(ctx context.Context, eventID string) (*models.AttendanceStats, error)
}

// ProfileServiceInterface defines the interface for profile operations
type ProfileServiceInterface interface {
	Get(ctx context.Context, address string) (*models.UserProfile, error)
	Update(ctx context.Context, address, actor string, update models.ProfileUpdate) (*models.UserProfile, error)
	CheckIns(ctx context.Context, address string) ([]*models.CheckIn, error)
	Stamps(ctx context.Context, address string) ([]*models.Stamp, error)
}

// AuthServiceInterface defines the interface for wallet sign-in
type AuthServiceInterface interface {
	Challenge(ctx context.Context, address string, chainID int64) (*service.Challenge, error)
	Verify(ctx context.Context, address, message, signature string) (*service.Session, error)
	Authenticate(token string) (*auth.Claims, error)
}

// PassportServiceInterface defines the interface for NFT passport operations
type PassportServiceInterface interface {
	Get(ctx context.Context, address string) (*models.Passport, error)
	Mint(ctx context.Context, address, actor string) (*service.MintRequest, error)
}

// Services bundles everything the handlers call
type Services struct {
	Events    EventServiceInterface
	RSVPs     RSVPServiceInterface
	CheckIns  CheckInServiceInterface
	Profiles  ProfileServiceInterface
	Auth      AuthServiceInterface
	Passports PassportServiceInterface
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	limiter    ratelimit.Limiter
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	AuthRequired    bool   // mutating routes need a session token
	Mode            string // "live" with a database, "demo" otherwise
	Web3Configured  bool
}

// NewServer creates a new API server instance. A nil limiter disables rate limiting.
func NewServer(config *ServerConfig, services Services, limiter ratelimit.Limiter) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		limiter:  limiter,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(CompressionMiddleware) // outside recovery so a recovered error is compressed too
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	s.router.Use(AuthMiddleware(s.services.Auth))
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter)) // keyed by wallet, so after auth
	}

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
	mutating := func(h http.HandlerFunc) http.HandlerFunc {
		return requireSession(s.config.AuthRequired, h)
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Preflight requests are answered by CORSMiddleware
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	api := s.router.PathPrefix("/api").Subrouter()

	// Event endpoints
	api.HandleFunc("/events", s.handleListEvents).Methods("GET")
	api.HandleFunc("/events", mutating(s.handleCreateEvent)).Methods("POST")
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods("GET")
	api.HandleFunc("/events/{id}", mutating(s.handleUpdateEvent)).Methods("PUT")
	api.HandleFunc("/events/{id}", mutating(s.handleDeleteEvent)).Methods("DELETE")
	api.HandleFunc("/events/{id}/stats", s.handleEventStats).Methods("GET")

	// Attendance endpoints
	api.HandleFunc("/events/{id}/rsvp", mutating(s.handleCreateRSVP)).Methods("POST")
	api.HandleFunc("/events/{id}/rsvp", mutating(s.handleCancelRSVP)).Methods("DELETE")
	api.HandleFunc("/events/{id}/rsvp/qr", s.handleRSVPQRCode).Methods("GET")
	api.HandleFunc("/events/{id}/checkin", mutating(s.handleCheckIn)).Methods("POST")

	// Auth endpoints
	api.HandleFunc("/auth/nonce", s.handleNonce).Methods("POST")
	api.HandleFunc("/auth/verify", s.handleVerify).Methods("POST")

	// Profile endpoints
	api.HandleFunc("/profiles/{address}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/{address}", s.handleUpdateProfile).Methods("PUT")
	api.HandleFunc("/profiles/{address}/rsvps", s.handleProfileRSVPs).Methods("GET")
	api.HandleFunc("/profiles/{address}/checkins", s.handleProfileCheckIns).Methods("GET")
	api.HandleFunc("/profiles/{address}/stamps", s.handleProfileStamps).Methods("GET")

	// Passport endpoints
	api.HandleFunc("/passport/{address}", s.handleGetPassport).Methods("GET")
	api.HandleFunc("/passport/{address}/mint", mutating(s.handleMintPassport)).Methods("POST")
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Mode           string `json:"mode"`
	Web3Configured bool   `json:"web3Configured"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := s.config.Mode
	if mode == "" {
		mode = "demo"
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Service:        "holopass",
		Mode:           mode,
		Web3Configured: s.config.Web3Configured,
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
