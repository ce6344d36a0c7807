// Package chain talks to the HoloPass passport contract: reads for the passport
// view and signed writes for minting and stamp mirroring.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hellhack-ui/HoloPass/internal/circuitbreaker"
	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/retry"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// HoloPassABI is the passport contract interface
const HoloPassABI = `[
	{"inputs":[{"name":"to","type":"address"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"name":"tokenOfOwnerByIndex","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"},{"name":"stampId","type":"uint256"}],"name":"addStamp","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"getStamps","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

// DefaultContractAddress is the deployment used on every supported chain
const DefaultContractAddress = "0x1234567890123456789012345678901234567890"

// ContractAddresses maps chain id to the HoloPass deployment
var ContractAddresses = map[int64]string{
	types.ChainEthereum: DefaultContractAddress,
	types.ChainPolygon:  DefaultContractAddress,
	types.ChainOptimism: DefaultContractAddress,
	types.ChainArbitrum: DefaultContractAddress,
	types.ChainBase:     DefaultContractAddress,
}

// ErrReadOnly is returned by writes when no signer key is configured
var ErrReadOnly = errors.New("chain client has no signer")

// ErrReceiptTimeout is returned when a transaction is not mined within the confirm timeout
var ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

// ContractAddressFor resolves the contract address, preferring override
func ContractAddressFor(chainID int64, override string) (common.Address, error) {
	addr := override
	if addr == "" {
		addr = ContractAddresses[chainID]
	}
	if addr == "" {
		return common.Address{}, fmt.Errorf("no HoloPass contract on chain %d", chainID)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid contract address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

// Backend is the node API the contract client needs. *ethclient.Client and
// FailoverBackend implement it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// ContractConfig configures a HoloPassContract
type ContractConfig struct {
	ChainID        int64
	Address        common.Address
	SignerKey      string // hex private key; empty for read-only
	RequestsPerSec int
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// HoloPassContract is a typed client for the passport contract
type HoloPassContract struct {
	backend        Backend
	address        common.Address
	abi            abi.ABI
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	retry          *retry.RetryConfig
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewHoloPassContract creates a contract client
func NewHoloPassContract(backend Backend, cfg ContractConfig) (*HoloPassContract, error) {
	parsed, err := abi.JSON(strings.NewReader(HoloPassABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HoloPass ABI: %w", err)
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	confirm := cfg.ConfirmTimeout
	if confirm <= 0 {
		confirm = 2 * time.Minute
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	c := &HoloPassContract{
		backend:        backend,
		address:        cfg.Address,
		abi:            parsed,
		chainID:        big.NewInt(cfg.ChainID),
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		breaker:        circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(fmt.Sprintf("rpc-%d", cfg.ChainID))),
		retry:          retry.DefaultRetryConfig(),
		confirmTimeout: confirm,
		pollInterval:   poll,
	}
	c.retry.ShouldRetry = isTransientRPCError

	if cfg.SignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signer key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Address returns the contract address
func (c *HoloPassContract) Address() common.Address {
	return c.address
}

// ChainID returns the chain the contract lives on
func (c *HoloPassContract) ChainID() int64 {
	return c.chainID.Int64()
}

// CanWrite reports whether a signer is configured
func (c *HoloPassContract) CanWrite() bool {
	return c.key != nil
}

// isTransientRPCError keeps execution reverts and ABI errors out of the retry loop
func isTransientRPCError(err error) bool {
	if err == nil || errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "abi:") {
		return false
	}
	return true
}

// guarded runs fn behind the rate limiter, retry loop and circuit breaker
func (c *HoloPassContract) guarded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.WithRetry(ctx, c.retry, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.breaker.Execute(ctx, fn)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return apperrors.NewServiceUnavailableError("rpc")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewProviderTimeoutError("rpc:"+op, err)
		}
		return apperrors.NewProviderError("rpc:"+op, err)
	}
	return nil
}

func (c *HoloPassContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var out []byte
	err = c.guarded(ctx, method, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

func singleBigInt(values []interface{}, method string) (*big.Int, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, values[0])
	}
	return v, nil
}

// BalanceOf returns the number of passports owner holds
func (c *HoloPassContract) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return singleBigInt(values, "balanceOf")
}

// TokenOfOwnerByIndex returns the index-th token of owner
func (c *HoloPassContract) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index *big.Int) (*big.Int, error) {
	values, err := c.call(ctx, "tokenOfOwnerByIndex", owner, index)
	if err != nil {
		return nil, err
	}
	return singleBigInt(values, "tokenOfOwnerByIndex")
}

// TokenURI returns the metadata URI of a token
func (c *HoloPassContract) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	values, err := c.call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("tokenURI returned %d values", len(values))
	}
	uri, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("tokenURI returned %T", values[0])
	}
	return uri, nil
}

// GetStamps returns the stamp ids recorded on a token
func (c *HoloPassContract) GetStamps(ctx context.Context, tokenID *big.Int) ([]*big.Int, error) {
	values, err := c.call(ctx, "getStamps", tokenID)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getStamps returned %d values", len(values))
	}
	stamps, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getStamps returned %T", values[0])
	}
	return stamps, nil
}

// Mint submits mint(to) and returns the transaction hash
func (c *HoloPassContract) Mint(ctx context.Context, to common.Address) (common.Hash, error) {
	return c.transact(ctx, "mint", to)
}

// AddStamp submits addStamp(tokenId, stampId) and returns the transaction hash
func (c *HoloPassContract) AddStamp(ctx context.Context, tokenID, stampID *big.Int) (common.Hash, error) {
	return c.transact(ctx, "addStamp", tokenID, stampID)
}

func (c *HoloPassContract) transact(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrReadOnly
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var nonce, gas uint64
	var gasPrice *big.Int
	err = c.guarded(ctx, method+":prepare", func(ctx context.Context) error {
		var err error
		if nonce, err = c.backend.PendingNonceAt(ctx, c.from); err != nil {
			return err
		}
		if gasPrice, err = c.backend.SuggestGasPrice(ctx); err != nil {
			return err
		}
		gas, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.address, Data: data})
		return err
	})
	if err != nil {
		return common.Hash{}, err
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Gas:      gas + gas/5,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign %s: %w", method, err)
	}

	// not retried: a resend after an ambiguous failure could double-submit
	if err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.backend.SendTransaction(ctx, signed)
	}); err != nil {
		return common.Hash{}, apperrors.NewProviderError("rpc:"+method, err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"method": method,
		"txHash": signed.Hash().Hex(),
		"nonce":  nonce,
	}).Info("Submitted HoloPass transaction")

	return signed.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined, failing after the
// configured confirm timeout. A reverted transaction is an error.
func (c *HoloPassContract) WaitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, ErrReceiptTimeout
		}
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == ethtypes.ReceiptStatusFailed {
				return receipt, fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
		default:
			logging.FromContext(ctx).WithError(err).Warn("Receipt lookup failed, will retry")
		}

		select {
		case <-ctx.Done():
			return nil, ErrReceiptTimeout
		case <-ticker.C:
		}
	}
}

// StampTokenID maps a stamp UUID to the uint256 id recorded on chain
func StampTokenID(stampID string) (*big.Int, error) {
	id, err := uuid.Parse(stampID)
	if err != nil {
		return nil, fmt.Errorf("invalid stamp id %q: %w", stampID, err)
	}
	return new(big.Int).SetBytes(id[:]), nil
}
