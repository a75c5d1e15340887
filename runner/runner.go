package runner

import (
	"context"
	"fmt"

	"github.com/GenerationSoftware/morpho-rewards-bot/blockchain"
	"github.com/GenerationSoftware/morpho-rewards-bot/config"
	"github.com/GenerationSoftware/morpho-rewards-bot/rewards"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type State int

const (
	StateConfigured State = iota
	StateQueried
	StateNothingToClaim
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateQueried:
		return "queried"
	case StateNothingToClaim:
		return "nothing-to-claim"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// QueryError wraps failures fetching or selecting the reward record.
type QueryError struct{ Err error }

func (e *QueryError) Error() string { return "rewards query failed: " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

// TransactionError wraps signing, simulation and submission failures.
type TransactionError struct{ Err error }

func (e *TransactionError) Error() string { return "contract transaction failed: " + e.Err.Error() }
func (e *TransactionError) Unwrap() error { return e.Err }

type RewardsSource interface {
	TokenReward(ctx context.Context, chainID int64, user, token common.Address) (*rewards.TokenReward, error)
}

type Claimer interface {
	Claim(ctx context.Context, privateKeyHex string, params blockchain.ClaimParams) (*blockchain.ClaimResult, error)
}

type Runner struct {
	cfg     *config.Config
	rewards RewardsSource
	claimer Claimer
	logger  *zap.Logger

	user  common.Address
	token common.Address
}

func New(cfg *config.Config, source RewardsSource, claimer Claimer, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		rewards: source,
		claimer: claimer,
		logger:  logger,
		user:    common.HexToAddress(config.BeneficiaryAddress),
		token:   common.HexToAddress(config.TokenAddress),
	}
}

// Run queries the beneficiary's reward and claims it unless the unclaimed
// balance is exactly "0". It returns the state the run stopped in.
func (r *Runner) Run(ctx context.Context) (State, error) {
	state := StateConfigured

	reward, err := r.rewards.TokenReward(ctx, config.ChainID, r.user, r.token)
	if err != nil {
		return state, &QueryError{Err: err}
	}
	state = StateQueried

	fields := []zap.Field{
		zap.String("unclaimed", reward.Unclaimed),
		zap.String("accumulated", reward.Accumulated),
	}
	if tokens, err := reward.UnclaimedTokens(); err == nil {
		fields = append(fields, zap.Stringer("tokens", tokens), zap.String("symbol", reward.Symbol))
	}
	r.logger.Debug("Reward fetched", fields...)

	if reward.NothingToClaim() && !r.cfg.ForceSubmit {
		r.logger.Info("Nothing to claim ...")
		return StateNothingToClaim, nil
	}

	if reward.NothingToClaim() {
		r.logger.Info("Nothing to claim, submitting anyway")
	} else {
		r.logger.Info("Sending claim tx!", fields...)
	}

	params := blockchain.ClaimParams{
		User:   r.user,
		Token:  r.token,
		Amount: r.amount(reward),
		Proofs: reward.Proof,
	}

	res, err := r.claimer.Claim(ctx, r.cfg.PrivateKey, params)
	if err != nil {
		if res != nil {
			// the transaction went out, only the receipt is missing
			return StateSubmitted, &TransactionError{Err: err}
		}
		return state, &TransactionError{Err: err}
	}

	r.logger.Info("Claim submitted", zap.String("hash", res.Hash.Hex()))
	return StateSubmitted, nil
}

func (r *Runner) amount(reward *rewards.TokenReward) string {
	if r.cfg.AmountField == config.AmountAccumulated {
		return reward.Accumulated
	}
	return reward.Unclaimed
}
