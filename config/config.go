package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

const (
	// World Chain
	ChainID = 480

	BeneficiaryAddress = "0x4c7E1f64A4b121D2F10D6FbcA0DB143787BF64bB" // prize vault
	TokenAddress       = "0x2cFc85d8E48F8EAB294be644d9E25C3030863003" // WLD
	DistributorAddress = "0x3Ef3D8bA38EBe18DB133cEc108f4D14CE00Dd9Ae" // Merkl distributor proxy

	DefaultRewardsAPIURL = "https://api.merkl.xyz/v3/rewards"
	DefaultGasLimit      = 500000
)

var (
	ErrMissingCredentials = errors.New("missing CUSTOM_RELAYER_PRIVATE_KEY or JSON_RPC_URL environment variables")
	ErrInvalidAmountField = errors.New("invalid claim amount field")
)

// AmountField selects which reward field is submitted as the claim amount.
type AmountField string

const (
	AmountUnclaimed   AmountField = "unclaimed"
	AmountAccumulated AmountField = "accumulated"
)

type Config struct {
	// Signing key, with or without 0x prefix. Removed from the process
	// environment once read.
	PrivateKey string `env:"CUSTOM_RELAYER_PRIVATE_KEY,unset"`
	// RPC URL for World Chain
	RpcURL string `env:"JSON_RPC_URL"`

	RewardsAPIURL string `env:"MERKL_API_URL" envDefault:"https://api.merkl.xyz/v3/rewards"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	SimulateBeforeSend bool        `env:"SIMULATE_BEFORE_SEND" envDefault:"true"`
	ForceSubmit        bool        `env:"FORCE_SUBMIT" envDefault:"false"`
	WaitForReceipt     bool        `env:"WAIT_FOR_RECEIPT" envDefault:"true"`
	AmountField        AmountField `env:"CLAIM_AMOUNT_FIELD" envDefault:"unclaimed"`

	// Used when gas estimation fails and the transaction is sent anyway.
	GasLimitFallback uint64 `env:"GAS_LIMIT_FALLBACK" envDefault:"500000"`
}

// Default configuration, without credentials.
var DefaultConfig = Config{
	RewardsAPIURL:      DefaultRewardsAPIURL,
	LogLevel:           "info",
	SimulateBeforeSend: true,
	WaitForReceipt:     true,
	AmountField:        AmountUnclaimed,
	GasLimitFallback:   DefaultGasLimit,
}

// Load reads the configuration from environ, or from the process
// environment when environ is nil. Only the credentials are checked here;
// call Validate once command line overrides are applied.
func Load(environ map[string]string) (*Config, error) {
	cfg := DefaultConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validateCredentials(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validateCredentials() error {
	if c.PrivateKey == "" || c.RpcURL == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	switch c.AmountField {
	case AmountUnclaimed, AmountAccumulated:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAmountField, c.AmountField)
	}
	return nil
}

// MarshalLogObject logs everything except the credentials.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("rewardsApi", c.RewardsAPIURL)
	enc.AddBool("simulate", c.SimulateBeforeSend)
	enc.AddBool("force", c.ForceSubmit)
	enc.AddBool("waitReceipt", c.WaitForReceipt)
	enc.AddString("amountField", string(c.AmountField))
	enc.AddUint64("gasLimitFallback", c.GasLimitFallback)
	return nil
}
