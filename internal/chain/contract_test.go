package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// fakeBackend answers contract calls from canned ABI outputs
type fakeBackend struct {
	t       *testing.T
	abi     abi.ABI
	outputs map[string][]interface{}
	callErr error

	mu            sync.Mutex
	calls         []string
	sent          []*ethtypes.Transaction
	receiptMisses int
	receipt       *ethtypes.Receipt
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := abi.JSON(strings.NewReader(HoloPassABI))
	require.NoError(t, err)
	return &fakeBackend{t: t, abi: parsed, outputs: map[string][]interface{}{}}
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(call.Data[:4])
	require.NoError(f.t, err)

	f.mu.Lock()
	f.calls = append(f.calls, method.Name)
	f.mu.Unlock()

	if f.callErr != nil {
		return nil, f.callErr
	}
	return method.Outputs.Pack(f.outputs[method.Name]...)
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func newTestContract(t *testing.T, backend Backend, signer string) *HoloPassContract {
	c, err := NewHoloPassContract(backend, ContractConfig{
		ChainID:        types.ChainPolygon,
		Address:        common.HexToAddress(DefaultContractAddress),
		SignerKey:      signer,
		RequestsPerSec: 1000,
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	require.NoError(t, err)
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	return c
}

func TestContractAddressFor(t *testing.T) {
	addr, err := ContractAddressFor(types.ChainBase, "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(DefaultContractAddress), addr)

	addr, err = ContractAddressFor(999, "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xaa"), addr)

	_, err = ContractAddressFor(999, "")
	assert.Error(t, err)
	_, err = ContractAddressFor(types.ChainEthereum, "not-an-address")
	assert.Error(t, err)
}

func TestHoloPassContract_Reads(t *testing.T) {
	backend := newFakeBackend(t)
	backend.outputs["balanceOf"] = []interface{}{big.NewInt(1)}
	backend.outputs["tokenOfOwnerByIndex"] = []interface{}{big.NewInt(42)}
	backend.outputs["tokenURI"] = []interface{}{"ipfs://QmPassport/42.json"}
	backend.outputs["getStamps"] = []interface{}{[]*big.Int{big.NewInt(3), big.NewInt(9)}}

	c := newTestContract(t, backend, "")
	ctx := context.Background()
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	balance, err := c.BalanceOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance.Int64())

	tokenID, err := c.TokenOfOwnerByIndex(ctx, owner, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, int64(42), tokenID.Int64())

	uri, err := c.TokenURI(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmPassport/42.json", uri)

	stamps, err := c.GetStamps(ctx, tokenID)
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	assert.Equal(t, int64(9), stamps[1].Int64())

	assert.Equal(t, []string{"balanceOf", "tokenOfOwnerByIndex", "tokenURI", "getStamps"}, backend.calls)
	assert.False(t, c.CanWrite())
	assert.Equal(t, types.ChainPolygon, c.ChainID())
}

func TestHoloPassContract_RevertIsNotRetried(t *testing.T) {
	backend := newFakeBackend(t)
	backend.callErr = errors.New("execution reverted: nonexistent token")

	c := newTestContract(t, backend, "")
	_, err := c.TokenURI(context.Background(), big.NewInt(1))

	require.Error(t, err)
	assert.Len(t, backend.calls, 1)
}

func TestHoloPassContract_TransientErrorIsRetried(t *testing.T) {
	backend := newFakeBackend(t)
	backend.callErr = errors.New("connection reset by peer")

	c := newTestContract(t, backend, "")
	_, err := c.BalanceOf(context.Background(), common.Address{})

	require.Error(t, err)
	assert.Len(t, backend.calls, c.retry.MaxAttempts)
}

func TestHoloPassContract_WriteWithoutSigner(t *testing.T) {
	c := newTestContract(t, newFakeBackend(t), "")
	_, err := c.Mint(context.Background(), common.Address{})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestHoloPassContract_MintSignsAndSends(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))

	backend := newFakeBackend(t)
	c := newTestContract(t, backend, "0x"+keyHex)
	require.True(t, c.CanWrite())

	to := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	hash, err := c.Mint(context.Background(), to)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, common.HexToAddress(DefaultContractAddress), *tx.To())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(types.ChainPolygon)), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)

	method, err := backend.abi.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "mint", method.Name)
}

func TestHoloPassContract_WaitForReceipt(t *testing.T) {
	backend := newFakeBackend(t)
	backend.receiptMisses = 2
	backend.receipt = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}

	c := newTestContract(t, backend, "")
	receipt, err := c.WaitForReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Equal(t, ethtypes.ReceiptStatusSuccessful, receipt.Status)
}

func TestHoloPassContract_WaitForReceiptReverted(t *testing.T) {
	backend := newFakeBackend(t)
	backend.receipt = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed}

	c := newTestContract(t, backend, "")
	_, err := c.WaitForReceipt(context.Background(), common.HexToHash("0x01"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
}

func TestHoloPassContract_WaitForReceiptTimeout(t *testing.T) {
	c := newTestContract(t, newFakeBackend(t), "")
	_, err := c.WaitForReceipt(context.Background(), common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ErrReceiptTimeout)
}

func TestStampTokenID(t *testing.T) {
	id := uuid.New()
	n, err := StampTokenID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id[:], common.LeftPadBytes(n.Bytes(), 16))

	_, err = StampTokenID("stamp-1")
	assert.Error(t, err)
}

func TestHoloPassContract_DeadlineIsProviderTimeout(t *testing.T) {
	backend := newFakeBackend(t)
	backend.callErr = context.DeadlineExceeded
	c := newTestContract(t, backend, "")

	_, err := c.BalanceOf(context.Background(), common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 504, apperrors.GetHTTPStatusCode(err))
	assert.Equal(t, "PROVIDER_TIMEOUT", apperrors.Categorize(err).Code)
}
