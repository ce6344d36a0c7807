// Package main runs the stamp worker, which mirrors passports and stamps on chain.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/chain"
	"github.com/hellhack-ui/HoloPass/internal/config"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	if !cfg.Database.Postgres.Configured() {
		logger.Fatal("The stamp worker needs DATABASE_URL or POSTGRES_HOST; the demo server drains its own jobs")
	}
	if !cfg.Chain.CanWrite() {
		logger.Fatal("The stamp worker needs CHAIN_RPC_PRIMARY and SIGNER_PRIVATE_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer db.Close()

	address, err := chain.ContractAddressFor(cfg.Chain.ChainID, cfg.Chain.ContractAddress)
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve contract address")
	}
	backend, err := chain.NewFailoverBackend(ctx, []string{cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary}, time.Minute, chain.DialEthclient)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RPC")
	}
	defer backend.Close()

	contract, err := chain.NewHoloPassContract(backend, chain.ContractConfig{
		ChainID:        cfg.Chain.ChainID,
		Address:        address,
		SignerKey:      cfg.Chain.SignerPrivateKey,
		RequestsPerSec: cfg.Chain.RequestsPerSec,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to bind HoloPass contract")
	}

	w, err := worker.NewStampWorker(&worker.StampWorkerConfig{
		Contract:     contract,
		Jobs:         storage.NewStampJobRepository(db),
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
	logger.WithFields(map[string]interface{}{
		"chainId":  cfg.Chain.ChainID,
		"contract": address.Hex(),
	}).Info("Stamp worker running")

	<-ctx.Done()
	logger.Info("Shutting down stamp worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Stamp worker did not stop cleanly")
	}

	status := w.GetStatus()
	logger.WithFields(map[string]interface{}{
		"completed": status.Completed,
		"failed":    status.Failed,
	}).Info("Stamp worker exited")
}
