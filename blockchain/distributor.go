package blockchain

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Merkl distributor: custom errors, Claimed event and claim.
const DistributorABI = `[
  {"inputs":[],"name":"InvalidDispute","type":"error"},
  {"inputs":[],"name":"InvalidLengths","type":"error"},
  {"inputs":[],"name":"InvalidProof","type":"error"},
  {"inputs":[],"name":"InvalidUninitializedRoot","type":"error"},
  {"inputs":[],"name":"NoDispute","type":"error"},
  {"inputs":[],"name":"NotGovernor","type":"error"},
  {"inputs":[],"name":"NotTrusted","type":"error"},
  {"inputs":[],"name":"NotWhitelisted","type":"error"},
  {"inputs":[],"name":"UnresolvedDispute","type":"error"},
  {"inputs":[],"name":"ZeroAddress","type":"error"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"},
    {"indexed":true,"internalType":"address","name":"token","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}
  ],"name":"Claimed","type":"event"},
  {"inputs":[
    {"internalType":"address[]","name":"users","type":"address[]"},
    {"internalType":"address[]","name":"tokens","type":"address[]"},
    {"internalType":"uint256[]","name":"amounts","type":"uint256[]"},
    {"internalType":"bytes32[][]","name":"proofs","type":"bytes32[][]"}
  ],"name":"claim","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	ErrInvalidAmount = errors.New("invalid claim amount")
	ErrInvalidProof  = errors.New("invalid merkle proof")
)

var distributorABI abi.ABI

func init() {
	var err error
	if distributorABI, err = abi.JSON(strings.NewReader(DistributorABI)); err != nil {
		panic(err)
	}
}

// ClaimParams is the single claim submitted to the distributor.
type ClaimParams struct {
	User   common.Address
	Token  common.Address
	Amount string     // base 10, as returned by the rewards api
	Proofs [][]string // hex encoded bytes32 values
}

// PackClaim encodes claim([user], [token], [amount], proofs).
func PackClaim(p ClaimParams) ([]byte, error) {
	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, p.Amount)
	}

	// users, tokens and amounts hold one element; proofs must match
	if len(p.Proofs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 proof, got %d", ErrInvalidProof, len(p.Proofs))
	}

	proofs := make([][][32]byte, len(p.Proofs))
	for i, proof := range p.Proofs {
		proofs[i] = make([][32]byte, len(proof))
		for j, node := range proof {
			b, err := hexutil.Decode(node)
			if err != nil || len(b) != 32 {
				return nil, fmt.Errorf("%w: proof %d node %d: %q", ErrInvalidProof, i, j, node)
			}
			copy(proofs[i][j][:], b)
		}
	}

	return distributorABI.Pack("claim",
		[]common.Address{p.User},
		[]common.Address{p.Token},
		[]*big.Int{amount},
		proofs,
	)
}

// revertReason decodes the revert data carried by an eth_call error into
// a distributor error name or an Error(string) reason.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return ""
	}
	data, err := hexutil.Decode(hexData)
	if err != nil || len(data) < 4 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	for name, e := range distributorABI.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return name
		}
	}
	return ""
}

type ClaimedEvent struct {
	User   common.Address
	Token  common.Address
	Amount *big.Int
}

// ClaimedEvents returns the Claimed events emitted by distributor in receipt.
func ClaimedEvents(receipt *types.Receipt, distributor common.Address) []ClaimedEvent {
	event := distributorABI.Events["Claimed"]

	var events []ClaimedEvent
	for _, l := range receipt.Logs {
		if l.Address != distributor || len(l.Topics) != 3 || l.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) != 1 {
			continue
		}
		amount, ok := values[0].(*big.Int)
		if !ok {
			continue
		}
		events = append(events, ClaimedEvent{
			User:   common.BytesToAddress(l.Topics[1].Bytes()),
			Token:  common.BytesToAddress(l.Topics[2].Bytes()),
			Amount: amount,
		})
	}
	return events
}
