package blockchain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/GenerationSoftware/morpho-rewards-bot/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testUser        = common.HexToAddress(config.BeneficiaryAddress)
	testToken       = common.HexToAddress(config.TokenAddress)
	testDistributor = common.HexToAddress(config.DistributorAddress)

	proofNodeA = "0x" + strings.Repeat("ab", 32)
	proofNodeB = "0x" + strings.Repeat("cd", 32)
)

type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorData() interface{} { return e.data }

type fakeBackend struct {
	chainID     *big.Int
	callErr     error
	estimateErr error
	sendErr     error
	receipt     *types.Receipt

	calls []ethereum.CallMsg
	sent  []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chainID: big.NewInt(config.ChainID)}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 210_000, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return nil, f.callErr
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	r := *f.receipt
	r.TxHash = txHash
	return &r, nil
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func testKeyHex(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key))[2:], crypto.PubkeyToAddress(key.PublicKey)
}

func testClient(backend Backend, mutate func(*config.Config)) *Client {
	cfg := config.DefaultConfig
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(backend, &cfg, zap.NewNop())
}

func testParams() ClaimParams {
	return ClaimParams{
		User:   testUser,
		Token:  testToken,
		Amount: "1500000000000000000",
		Proofs: [][]string{{proofNodeA, proofNodeB}},
	}
}

func TestClaimSimulatesAndSends(t *testing.T) {
	backend := newFakeBackend()
	backend.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	key, from := testKeyHex(t)

	res, err := testClient(backend, nil).Claim(context.Background(), key, testParams())
	require.NoError(t, err)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, from, backend.calls[0].From)
	assert.Equal(t, testDistributor, *backend.calls[0].To)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, res.Hash, tx.Hash())
	assert.Equal(t, backend.calls[0].Data, tx.Data())
	assert.Equal(t, testDistributor, *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(210_000), tx.Gas())
	assert.Equal(t, big.NewInt(config.ChainID), tx.ChainId())
	assert.Equal(t, big.NewInt(2_001_000_000), tx.GasFeeCap())

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	require.NotNil(t, res.Receipt)
	assert.Equal(t, res.Hash, res.Receipt.TxHash)
}

func TestClaimArguments(t *testing.T) {
	backend := newFakeBackend()
	key, _ := testKeyHex(t)

	_, err := testClient(backend, func(c *config.Config) { c.WaitForReceipt = false }).
		Claim(context.Background(), key, testParams())
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	data := backend.sent[0].Data()
	method := distributorABI.Methods["claim"]
	assert.Equal(t, method.ID, data[:4])

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)

	assert.Equal(t, []common.Address{testUser}, args[0])
	assert.Equal(t, []common.Address{testToken}, args[1])

	amounts := args[2].([]*big.Int)
	require.Len(t, amounts, 1)
	assert.Equal(t, "1500000000000000000", amounts[0].String())

	proofs := args[3].([][][32]byte)
	require.Len(t, proofs, 1)
	require.Len(t, proofs[0], 2)
	assert.Equal(t, proofNodeA, hexutil.Encode(proofs[0][0][:]))
	assert.Equal(t, proofNodeB, hexutil.Encode(proofs[0][1][:]))
}

func TestClaimAcceptsPrefixedKey(t *testing.T) {
	backend := newFakeBackend()
	key, from := testKeyHex(t)

	_, err := testClient(backend, func(c *config.Config) { c.WaitForReceipt = false }).
		Claim(context.Background(), "0x"+key, testParams())
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(config.ChainID)), backend.sent[0])
	require.NoError(t, err)
	assert.Equal(t, from, sender)
}

func TestClaimSimulationRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = revertError{data: hexutil.Encode(distributorABI.Errors["InvalidProof"].ID.Bytes()[:4])}
	key, _ := testKeyHex(t)

	_, err := testClient(backend, nil).Claim(context.Background(), key, testParams())
	require.ErrorIs(t, err, ErrSimulationReverted)
	assert.Contains(t, err.Error(), "InvalidProof")
	assert.Empty(t, backend.sent)
}

func TestClaimWithoutSimulation(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("should not be called")
	backend.estimateErr = errors.New("execution reverted")
	key, _ := testKeyHex(t)

	_, err := testClient(backend, func(c *config.Config) {
		c.SimulateBeforeSend = false
		c.WaitForReceipt = false
	}).Claim(context.Background(), key, testParams())
	require.NoError(t, err)

	assert.Empty(t, backend.calls)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(config.DefaultGasLimit), backend.sent[0].Gas())
}

func TestClaimErrors(t *testing.T) {
	key, _ := testKeyHex(t)

	t.Run("bad key", func(t *testing.T) {
		backend := newFakeBackend()
		_, err := testClient(backend, nil).Claim(context.Background(), "not-a-key", testParams())
		require.Error(t, err)
		assert.Empty(t, backend.sent)
	})

	t.Run("bad amount", func(t *testing.T) {
		backend := newFakeBackend()
		params := testParams()
		params.Amount = ""
		_, err := testClient(backend, nil).Claim(context.Background(), key, params)
		require.ErrorIs(t, err, ErrInvalidAmount)
		assert.Empty(t, backend.sent)
	})

	t.Run("bad proof", func(t *testing.T) {
		backend := newFakeBackend()
		params := testParams()
		params.Proofs = [][]string{{"0xabc"}}
		_, err := testClient(backend, nil).Claim(context.Background(), key, params)
		require.ErrorIs(t, err, ErrInvalidProof)
		assert.Empty(t, backend.sent)
	})

	t.Run("proof count", func(t *testing.T) {
		cases := map[string][][]string{
			"missing":  nil,
			"multiple": {{proofNodeA}, {proofNodeB}},
		}
		for name, proofs := range cases {
			t.Run(name, func(t *testing.T) {
				backend := newFakeBackend()
				backend.estimateErr = errors.New("execution reverted")
				params := testParams()
				params.Proofs = proofs
				_, err := testClient(backend, func(c *config.Config) { c.SimulateBeforeSend = false }).
					Claim(context.Background(), key, params)
				require.ErrorIs(t, err, ErrInvalidProof)
				assert.Empty(t, backend.sent)
			})
		}
	})

	t.Run("wrong chain", func(t *testing.T) {
		backend := newFakeBackend()
		backend.chainID = big.NewInt(1)
		_, err := testClient(backend, nil).Claim(context.Background(), key, testParams())
		require.ErrorIs(t, err, ErrChainMismatch)
		assert.Empty(t, backend.sent)
	})

	t.Run("send fails", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = errors.New("nonce too low")
		res, err := testClient(backend, nil).Claim(context.Background(), key, testParams())
		require.EqualError(t, err, "nonce too low")
		assert.Nil(t, res)
	})
}
