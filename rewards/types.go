package rewards

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Response is the rewards api body, keyed by chain id.
type Response map[string]ChainRewards

type ChainRewards struct {
	TokenData map[string]TokenReward `json:"tokenData"`
}

type TokenReward struct {
	Accumulated string `json:"accumulated"`
	Unclaimed   string `json:"unclaimed"`
	Pending     string `json:"pending"`
	Decimals    int32  `json:"decimals"`
	Symbol      string `json:"symbol"`
	Proof       Proof  `json:"proof"`
}

// Proof holds one or more merkle proofs as hex encoded bytes32 values.
// The api may send a single flat proof or a list of proofs; a flat proof
// decodes as a list holding that one proof.
type Proof [][]string

func (p *Proof) UnmarshalJSON(data []byte) error {
	var nested [][]string
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 {
			nested = [][]string{{}}
		}
		*p = nested
		return nil
	}

	var flat []string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("proof: %w", err)
	}
	*p = Proof{flat}
	return nil
}

// TokenReward selects the record for token on chainID. Keys are matched
// exactly first, then as addresses regardless of checksum casing.
func (r Response) TokenReward(chainID int64, token common.Address) (*TokenReward, error) {
	chain, ok := r[strconv.FormatInt(chainID, 10)]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoChainData, chainID)
	}

	if tr, ok := chain.TokenData[token.Hex()]; ok {
		return &tr, nil
	}
	for key, tr := range chain.TokenData {
		if common.IsHexAddress(key) && common.HexToAddress(key) == token {
			return &tr, nil
		}
	}
	return nil, fmt.Errorf("%w %s", ErrNoTokenData, token.Hex())
}

// NothingToClaim reports whether the unclaimed balance is the literal "0".
// Any other value, including empty or malformed ones, counts as claimable.
func (t TokenReward) NothingToClaim() bool {
	return t.Unclaimed == "0"
}

// UnclaimedTokens is the unclaimed balance scaled by the token decimals.
func (t TokenReward) UnclaimedTokens() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(t.Unclaimed)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-t.Decimals), nil
}
