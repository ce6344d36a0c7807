// Package worker mirrors passports and stamps on chain. It drains the stamp
// job outbox written by check-ins and mint requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/hellhack-ui/HoloPass/internal/chain"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// ErrPassportMissing is returned for a stamp job whose owner has no passport yet
var ErrPassportMissing = errors.New("passport not minted")

// Contract is the subset of the HoloPass contract the worker drives
type Contract interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index *big.Int) (*big.Int, error)
	Mint(ctx context.Context, to common.Address) (common.Hash, error)
	AddStamp(ctx context.Context, tokenID, stampID *big.Int) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// JobStore is the outbox the worker claims from
type JobStore interface {
	ClaimJobs(ctx context.Context, limit int) ([]*models.StampJob, error)
	MarkSubmitted(ctx context.Context, job *models.StampJob, txHash string) error
	CompleteJob(ctx context.Context, job *models.StampJob, txHash string) error
	FailJob(ctx context.Context, job *models.StampJob, cause error, retryAfter time.Duration, maxAttempts int) error
}

// StampWorkerConfig holds configuration for a stamp worker
type StampWorkerConfig struct {
	Contract     Contract
	Jobs         JobStore
	PollInterval time.Duration // default 5s
	BatchSize    int           // default 10
	MaxAttempts  int           // default 5
	BaseBackoff  time.Duration // default 30s
	MaxBackoff   time.Duration // default 15m
}

// StampWorker polls the outbox and submits mint and addStamp transactions
type StampWorker struct {
	contract     Contract
	jobs         JobStore
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseBackoff  time.Duration
	maxBackoff   time.Duration

	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastPoll  time.Time
	completed int
	failed    int
}

// StampWorkerStatus represents the current status of a stamp worker
type StampWorkerStatus struct {
	Running      bool
	LastPollTime time.Time
	Completed    int
	Failed       int
}

// PollResult summarizes one poll cycle
type PollResult struct {
	Claimed   int
	Completed int
	Failed    int
}

// NewStampWorker creates a new stamp worker
func NewStampWorker(cfg *StampWorkerConfig) (*StampWorker, error) {
	if cfg.Contract == nil {
		return nil, fmt.Errorf("contract cannot be nil")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job store cannot be nil")
	}

	w := &StampWorker{
		contract:     cfg.Contract,
		jobs:         cfg.Jobs,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		baseBackoff:  cfg.BaseBackoff,
		maxBackoff:   cfg.MaxBackoff,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 10
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 5
	}
	if w.baseBackoff <= 0 {
		w.baseBackoff = 30 * time.Second
	}
	if w.maxBackoff <= 0 {
		w.maxBackoff = 15 * time.Minute
	}
	return w, nil
}

// Start begins polling in a goroutine
func (w *StampWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("stamp worker is already running")
	}
	w.running = true

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"pollInterval": w.pollInterval.String(),
		"batchSize":    w.batchSize,
	}).Info("Starting stamp worker")

	go w.pollLoop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight batch to finish
func (w *StampWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("stamp worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		logging.Info("Stamp worker stopped gracefully")
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *StampWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			result, err := w.Poll(ctx)
			if err != nil {
				logging.FromContext(ctx).WithError(err).Warn("Stamp worker poll failed")
				continue
			}
			if result.Claimed > 0 {
				logging.FromContext(ctx).WithFields(map[string]interface{}{
					"claimed":   result.Claimed,
					"completed": result.Completed,
					"failed":    result.Failed,
				}).Info("Stamp worker batch processed")
			}
		}
	}
}

// Poll claims one batch and processes it. Job failures are recorded on the
// job and counted, only a claim failure is returned.
func (w *StampWorker) Poll(ctx context.Context) (*PollResult, error) {
	w.mu.Lock()
	w.lastPoll = time.Now()
	w.mu.Unlock()

	jobs, err := w.jobs.ClaimJobs(ctx, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}

	result := &PollResult{Claimed: len(jobs)}
	for _, job := range PrioritizeJobs(jobs) {
		if ctx.Err() != nil {
			break
		}
		if err := w.ProcessJob(ctx, job); err != nil {
			result.Failed++
			continue
		}
		result.Completed++
	}

	w.mu.Lock()
	w.completed += result.Completed
	w.failed += result.Failed
	w.mu.Unlock()
	return result, nil
}

// ProcessJob runs one job to completion or records its failure
func (w *StampWorker) ProcessJob(ctx context.Context, job *models.StampJob) error {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":   job.ID,
		"action":  string(job.Action),
		"user":    job.UserAddress,
		"attempt": job.Attempts,
	})

	txHash, err := w.execute(ctx, job)
	if err == nil {
		if err = w.jobs.CompleteJob(ctx, job, txHash); err == nil {
			logger.WithField("txHash", txHash).Info("Stamp job completed")
			return nil
		}
	}

	retryAfter := Backoff(job.Attempts, w.baseBackoff, w.maxBackoff)
	logger.WithError(err).WithField("retryAfter", retryAfter.String()).Warn("Stamp job failed")
	if ferr := w.jobs.FailJob(ctx, job, err, retryAfter, w.maxAttempts); ferr != nil {
		logger.WithError(ferr).Error("Failed to record stamp job failure")
	}
	return err
}

// execute submits the job's transaction, or resumes a submitted one, and
// waits for its receipt. It returns the confirmed hash.
func (w *StampWorker) execute(ctx context.Context, job *models.StampJob) (string, error) {
	if job.TxHash != nil && *job.TxHash != "" {
		return w.confirm(ctx, common.HexToHash(*job.TxHash))
	}

	if !common.IsHexAddress(job.UserAddress) {
		return "", fmt.Errorf("invalid user address %q", job.UserAddress)
	}
	owner := common.HexToAddress(job.UserAddress)

	var hash common.Hash
	switch job.Action {
	case types.JobMintPassport:
		balance, err := w.contract.BalanceOf(ctx, owner)
		if err != nil {
			return "", err
		}
		if balance.Sign() > 0 {
			// minted by an earlier attempt or outside HoloPass
			return "", nil
		}
		if hash, err = w.contract.Mint(ctx, owner); err != nil {
			return "", err
		}

	case types.JobAddStamp:
		if job.StampID == nil {
			return "", fmt.Errorf("add_stamp job without stamp id")
		}
		stampID, err := chain.StampTokenID(*job.StampID)
		if err != nil {
			return "", err
		}
		tokenID, err := w.passportToken(ctx, owner)
		if err != nil {
			return "", err
		}
		if hash, err = w.contract.AddStamp(ctx, tokenID, stampID); err != nil {
			return "", err
		}

	default:
		return "", fmt.Errorf("unknown job action %q", job.Action)
	}

	if err := w.jobs.MarkSubmitted(ctx, job, hash.Hex()); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to record submitted transaction")
	}
	return w.confirm(ctx, hash)
}

func (w *StampWorker) passportToken(ctx context.Context, owner common.Address) (*big.Int, error) {
	balance, err := w.contract.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrPassportMissing
	}
	return w.contract.TokenOfOwnerByIndex(ctx, owner, big.NewInt(0))
}

func (w *StampWorker) confirm(ctx context.Context, hash common.Hash) (string, error) {
	if _, err := w.contract.WaitForReceipt(ctx, hash); err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// GetStatus returns current worker status
func (w *StampWorker) GetStatus() *StampWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &StampWorkerStatus{
		Running:      w.running,
		LastPollTime: w.lastPoll,
		Completed:    w.completed,
		Failed:       w.failed,
	}
}

var _ Contract = (*chain.HoloPassContract)(nil)
