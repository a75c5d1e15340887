package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/GenerationSoftware/morpho-rewards-bot/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var (
	ErrChainMismatch      = errors.New("rpc chain id mismatch")
	ErrSimulationReverted = errors.New("claim simulation failed")
	ErrNoBaseFee          = errors.New("latest header has no base fee")
)

// Backend is the subset of *ethclient.Client used to claim.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

type Client struct {
	backend     Backend
	distributor common.Address
	chainID     *big.Int

	simulate         bool
	waitForReceipt   bool
	gasLimitFallback uint64

	logger *zap.Logger
}

func NewClient(backend Backend, cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		backend:          backend,
		distributor:      common.HexToAddress(config.DistributorAddress),
		chainID:          big.NewInt(config.ChainID),
		simulate:         cfg.SimulateBeforeSend,
		waitForReceipt:   cfg.WaitForReceipt,
		gasLimitFallback: cfg.GasLimitFallback,
		logger:           logger.Named("eth"),
	}
}

type ClaimResult struct {
	Hash    common.Hash
	Receipt *types.Receipt
	Claimed []ClaimedEvent
}

// Claim signs and sends one distributor claim with privateKeyHex (0x
// prefix optional). When simulation is enabled nothing is sent if the
// eth_call fails. A non-nil result carries the hash of a sent transaction
// even when waiting for its receipt fails.
func (c *Client) Claim(ctx context.Context, privateKeyHex string, params ClaimParams) (*ClaimResult, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	fromAddress := crypto.PubkeyToAddress(*publicKeyECDSA)

	data, err := PackClaim(params)
	if err != nil {
		return nil, err
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if chainID.Cmp(c.chainID) != 0 {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChainMismatch, c.chainID, chainID)
	}

	msg := ethereum.CallMsg{
		From: fromAddress,
		To:   &c.distributor,
		Data: data,
	}

	if c.simulate {
		if _, err := c.backend.CallContract(ctx, msg, nil); err != nil {
			if reason := revertReason(err); reason != "" {
				return nil, fmt.Errorf("%w: %s: %w", ErrSimulationReverted, reason, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrSimulationReverted, err)
		}
		c.logger.Info("Claim simulation succeeded", zap.String("from", fromAddress.Hex()))
	}

	nonce, err := c.backend.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return nil, err
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if head.BaseFee == nil {
		return nil, ErrNoBaseFee
	}

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}

	feeCap := new(big.Int).Add(
		tipCap,
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
	)

	gasLimit, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		c.logger.Warn("Error estimating gas, using fallback",
			zap.Uint64("gasLimit", c.gasLimitFallback), zap.Error(err))
		gasLimit = c.gasLimitFallback
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.distributor,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), privateKey)
	if err != nil {
		return nil, err
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, err
	}

	result := &ClaimResult{Hash: signedTx.Hash()}
	c.logger.Info("Transaction hash", zap.String("hash", result.Hash.Hex()))
	c.logger.Debug("Transaction fees",
		zap.Uint64("gasLimit", gasLimit), zap.Stringer("tipCap", tipCap), zap.Stringer("feeCap", feeCap))

	if !c.waitForReceipt {
		return result, nil
	}

	receipt, err := bind.WaitMined(ctx, c.backend, signedTx)
	if err != nil {
		return result, fmt.Errorf("waiting for receipt of %s: %w", result.Hash.Hex(), err)
	}
	result.Receipt = receipt
	result.Claimed = ClaimedEvents(receipt, c.distributor)

	c.logger.Info("Transaction receipt",
		zap.String("hash", receipt.TxHash.Hex()),
		zap.Uint64("status", receipt.Status),
		zap.Stringer("block", receipt.BlockNumber),
		zap.Uint64("gasUsed", receipt.GasUsed),
	)
	if receipt.Status != types.ReceiptStatusSuccessful {
		c.logger.Warn("Transaction reverted on chain", zap.String("hash", receipt.TxHash.Hex()))
	}
	for _, ev := range result.Claimed {
		c.logger.Info("Claimed",
			zap.String("user", ev.User.Hex()),
			zap.String("token", ev.Token.Hex()),
			zap.Stringer("amount", ev.Amount),
		)
	}

	return result, nil
}
