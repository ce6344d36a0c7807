// Package main provides the API server entry point for HoloPass.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/adapter"
	"github.com/hellhack-ui/HoloPass/internal/api"
	"github.com/hellhack-ui/HoloPass/internal/auth"
	"github.com/hellhack-ui/HoloPass/internal/chain"
	"github.com/hellhack-ui/HoloPass/internal/config"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/ratelimit"
	"github.com/hellhack-ui/HoloPass/internal/service"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/worker"
)

// repositories is the transactional store, Postgres or in-memory
type repositories struct {
	events     service.EventRepository
	attendance service.AttendanceRepository
	profiles   service.ProfileRepository
	jobs       worker.JobStore
	enqueue    service.JobQueue
	close      func()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, mode := openRepositories(cfg)
	defer repos.close()

	// Redis: cache, nonces, shared rate limits
	var (
		cache   *storage.CacheService
		nonces  auth.NonceStore = auth.NewMemoryNonceStore()
		limiter ratelimit.Limiter
	)
	if cfg.Database.Redis.Configured() {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without cache")
		} else {
			defer redis.Close()
			cache = storage.NewCacheService(redis, cfg.Cache.EventsTTL)
			nonces = auth.NewRedisNonceStore(redis)
			limiter, err = ratelimit.NewWindowLimiter(&ratelimit.WindowLimiterConfig{
				Redis:              redis.Client(),
				AnonymousLimit:     cfg.RateLimit.RequestsPerMinute,
				AuthenticatedLimit: cfg.RateLimit.AuthenticatedPerMinute,
				GlobalLimit:        cfg.RateLimit.GlobalPerMinute,
			})
			if err != nil {
				logger.WithError(err).Fatal("Invalid rate limit configuration")
			}
		}
	}
	if limiter == nil {
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.AuthenticatedPerMinute, cfg.RateLimit.Burst)
	}

	// ClickHouse: attendance analytics
	var analytics service.AttendanceAnalytics
	if cfg.Database.ClickHouse.Configured() {
		ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, stats will use store counts")
		} else {
			defer ch.Close()
			analytics = storage.NewAnalyticsRepository(ch)
		}
	}

	var catalog service.EventCatalog
	if cfg.Eventbrite.Configured() {
		catalog = adapter.NewEventbriteClient(cfg.Eventbrite.Token, cfg.Eventbrite.BaseURL, cfg.Eventbrite.OrgID, cfg.Eventbrite.Timeout)
		logger.Info("Eventbrite catalog enabled")
	}

	// Chain: passport reads, and writes when a signer key is present
	var (
		reader   service.PassportReader
		metadata service.MetadataSource
		contract *chain.HoloPassContract
	)
	if cfg.Chain.Configured() {
		contract, err = openContract(ctx, cfg)
		if err != nil {
			logger.WithError(err).Warn("HoloPass contract unavailable, passports report hasNFT=false")
		} else {
			reader = contract
			metadata = chain.NewMetadataFetcher(cfg.Chain.MetadataGateway, cache, cfg.Cache.MetadataTTL)
		}
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// sessions do not survive a restart without JWT_SECRET
		jwtSecret, err = auth.GenerateNonce()
		if err != nil {
			logger.WithError(err).Fatal("Failed to generate session secret")
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral session secret")
	}

	signer := qr.NewSigner(cfg.QR.SigningSecret)
	if signer == nil {
		logger.Warn("QR_SIGNING_SECRET not set, check-in QR codes are unsigned")
	}

	events := service.NewEventService(repos.events, catalog, cache)
	services := api.Services{
		Events:   events,
		RSVPs:    service.NewRSVPService(events, repos.attendance, analytics, signer),
		CheckIns: service.NewCheckInService(events, repos.attendance, qr.NewCheckInValidator(signer, cfg.QR.TTL), analytics, cfg.Chain.MintOnCheckIn),
		Profiles: service.NewProfileService(repos.profiles, repos.attendance),
		Auth: service.NewAuthService(nonces, auth.NewTokenIssuer(jwtSecret, cfg.Auth.TokenTTL), repos.profiles, service.AuthOptions{
			Domain:   cfg.Auth.Domain,
			URI:      cfg.Auth.URI,
			ChainID:  cfg.Chain.ChainID,
			NonceTTL: cfg.Auth.NonceTTL,
		}),
		Passports: service.NewPassportService(reader, metadata, repos.enqueue, repos.profiles, cfg.Chain.ChainID, cfg.Chain.CanWrite() && contract != nil),
	}

	// The demo store lives in this process, so its outbox is drained here
	if mode == "demo" && contract != nil && contract.CanWrite() {
		w, err := worker.NewStampWorker(&worker.StampWorkerConfig{
			Contract:     contract,
			Jobs:         repos.jobs,
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			MaxAttempts:  cfg.Worker.MaxAttempts,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create stamp worker")
		}
		if err := w.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start stamp worker")
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = w.Stop(stopCtx)
		}()
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		AuthRequired:    cfg.Auth.Required,
		Mode:            mode,
		Web3Configured:  cfg.Auth.Web3Configured(),
	}
	server := api.NewServer(serverConfig, services, limiter)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"mode":       mode,
		"eventbrite": catalog != nil,
		"analytics":  analytics != nil,
		"chain":      reader != nil,
	}).Info("Server started successfully")

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// openRepositories connects to Postgres, or falls back to the demo store
func openRepositories(cfg *config.Config) (*repositories, string) {
	if !cfg.Database.Postgres.Configured() {
		logging.Info("No database configured, serving demo events from memory")
		store := storage.NewDemoStore(time.Now())
		return &repositories{
			events:     store,
			attendance: store,
			profiles:   store,
			jobs:       store,
			enqueue:    store,
			close:      func() {},
		}, "demo"
	}

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logging.Fatalf("Failed to connect to Postgres: %v", err)
	}
	jobs := storage.NewStampJobRepository(db)
	return &repositories{
		events:     storage.NewEventRepository(db),
		attendance: storage.NewAttendanceRepository(db),
		profiles:   storage.NewProfileRepository(db),
		jobs:       jobs,
		enqueue:    jobs,
		close:      db.Close,
	}, "live"
}

// openContract dials the RPC endpoints and binds the HoloPass contract
func openContract(ctx context.Context, cfg *config.Config) (*chain.HoloPassContract, error) {
	address, err := chain.ContractAddressFor(cfg.Chain.ChainID, cfg.Chain.ContractAddress)
	if err != nil {
		return nil, err
	}
	backend, err := chain.NewFailoverBackend(ctx, []string{cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary}, time.Minute, chain.DialEthclient)
	if err != nil {
		return nil, err
	}
	return chain.NewHoloPassContract(backend, chain.ContractConfig{
		ChainID:        cfg.Chain.ChainID,
		Address:        address,
		SignerKey:      cfg.Chain.SignerPrivateKey,
		RequestsPerSec: cfg.Chain.RequestsPerSec,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
	})
}
