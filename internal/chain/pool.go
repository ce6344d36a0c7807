package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hellhack-ui/HoloPass/internal/logging"
)

// DialFunc connects to one RPC endpoint
type DialFunc func(ctx context.Context, url string) (Backend, error)

// DialEthclient is the production DialFunc
func DialEthclient(ctx context.Context, url string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// FailoverBackend spreads calls over several RPC endpoints. It sticks to the
// current endpoint until it is rate limited or unreachable, then moves to the
// next one not in cooldown. Endpoints other than the first are dialed lazily.
type FailoverBackend struct {
	endpoints    []string
	backends     []Backend
	current      int
	cooldowns    map[int]time.Time
	cooldownTime time.Duration
	dial         DialFunc
	mu           sync.Mutex
}

// NewFailoverBackend dials the first endpoint and returns the pool
func NewFailoverBackend(ctx context.Context, endpoints []string, cooldown time.Duration, dial DialFunc) (*FailoverBackend, error) {
	var valid []string
	for _, ep := range endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			valid = append(valid, ep)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if dial == nil {
		dial = DialEthclient
	}

	first, err := dial(ctx, valid[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary RPC endpoint: %w", err)
	}

	p := &FailoverBackend{
		endpoints:    valid,
		backends:     make([]Backend, len(valid)),
		cooldowns:    make(map[int]time.Time),
		cooldownTime: cooldown,
		dial:         dial,
	}
	p.backends[0] = first
	return p, nil
}

// CurrentIndex returns the index of the endpoint in use
func (p *FailoverBackend) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *FailoverBackend) active() (int, Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.backends[p.current]
}

// failover marks endpoint failed as cooling down and switches to the next
// available one. It is a no-op if another caller already moved on.
func (p *FailoverBackend) failover(ctx context.Context, failed int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != failed {
		return nil
	}
	p.cooldowns[failed] = time.Now()

	for i := 1; i < len(p.endpoints); i++ {
		next := (failed + i) % len(p.endpoints)
		if at, ok := p.cooldowns[next]; ok {
			if time.Since(at) < p.cooldownTime {
				continue
			}
			delete(p.cooldowns, next)
		}
		if p.backends[next] == nil {
			b, err := p.dial(ctx, p.endpoints[next])
			if err != nil {
				logging.WithField("endpoint", next).WithError(err).Warn("Failed to dial RPC endpoint")
				continue
			}
			p.backends[next] = b
		}
		logging.WithFields(map[string]interface{}{"from": failed, "to": next}).Warn("Switched RPC endpoint")
		p.current = next
		return nil
	}
	return fmt.Errorf("all %d RPC endpoints are unavailable", len(p.endpoints))
}

// shouldFailover reports whether err points at the endpoint rather than the request
func shouldFailover(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "throttl", "connection refused", "no such host", "eof", "503", "502"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// do runs fn against the active endpoint, moving to the next endpoint once if
// the first attempt fails in an endpoint-specific way.
func (p *FailoverBackend) do(ctx context.Context, fn func(Backend) error) error {
	idx, b := p.active()
	err := fn(b)
	if !shouldFailover(err) {
		return err
	}
	if ferr := p.failover(ctx, idx); ferr != nil {
		return err
	}
	_, b = p.active()
	return fn(b)
}

// CallContract implements Backend
func (p *FailoverBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := p.do(ctx, func(b Backend) error {
		var err error
		out, err = b.CallContract(ctx, call, blockNumber)
		return err
	})
	return out, err
}

// PendingNonceAt implements Backend
func (p *FailoverBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := p.do(ctx, func(b Backend) error {
		var err error
		nonce, err = b.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// SuggestGasPrice implements Backend
func (p *FailoverBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := p.do(ctx, func(b Backend) error {
		var err error
		price, err = b.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// EstimateGas implements Backend
func (p *FailoverBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := p.do(ctx, func(b Backend) error {
		var err error
		gas, err = b.EstimateGas(ctx, call)
		return err
	})
	return gas, err
}

// SendTransaction implements Backend. Broadcasting the same signed
// transaction to a second node is safe.
func (p *FailoverBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return p.do(ctx, func(b Backend) error {
		return b.SendTransaction(ctx, tx)
	})
}

// TransactionReceipt implements Backend
func (p *FailoverBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	var receipt *ethtypes.Receipt
	err := p.do(ctx, func(b Backend) error {
		var err error
		receipt, err = b.TransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

// Close closes every dialed ethclient
func (p *FailoverBackend) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.backends {
		if c, ok := b.(*ethclient.Client); ok {
			c.Close()
		}
		p.backends[i] = nil
	}
}
