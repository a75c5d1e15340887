package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/GenerationSoftware/morpho-rewards-bot/blockchain"
	"github.com/GenerationSoftware/morpho-rewards-bot/config"
	"github.com/GenerationSoftware/morpho-rewards-bot/logger"
	"github.com/GenerationSoftware/morpho-rewards-bot/rewards"
	"github.com/GenerationSoftware/morpho-rewards-bot/runner"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	envFile     string
	simulate    bool
	force       bool
	waitReceipt bool
	amountField string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "claim-rewards",
		Short:         "Claim the prize vault's Merkl WLD rewards on World Chain",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().BoolVar(&f.simulate, "simulate", true, "simulate the claim with eth_call before sending")
	cmd.Flags().BoolVar(&f.force, "force", false, "submit the claim even when nothing is unclaimed")
	cmd.Flags().BoolVar(&f.waitReceipt, "wait-receipt", true, "wait for the transaction receipt")
	cmd.Flags().StringVar(&f.amountField, "amount-field", string(config.AmountUnclaimed), "reward field claimed: unclaimed or accumulated")

	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.New("info").Error("Error loading env file", zap.String("file", f.envFile), zap.Error(err))
		return err
	}

	cfg, err := loadConfig(cmd, f, nil)
	if err != nil {
		log := logger.New(os.Getenv("LOG_LEVEL"))
		if errors.Is(err, config.ErrMissingCredentials) {
			log.Error("Missing CUSTOM_RELAYER_PRIVATE_KEY or JSON_RPC_URL environment variables.")
		} else {
			log.Error("Invalid configuration", zap.Error(err))
		}
		return err
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()
	log.Debug("Configuration loaded", zap.Object("config", cfg))

	httpClient, err := rewards.NewHTTPClient()
	if err != nil {
		log.Error("Error creating http client", zap.Error(err))
		return err
	}

	ethClient, err := ethclient.Dial(cfg.RpcURL)
	if err != nil {
		log.Error("Error dialing rpc", zap.Error(err))
		return err
	}
	defer ethClient.Close()

	r := runner.New(
		cfg,
		rewards.NewClient(cfg.RewardsAPIURL, httpClient, log),
		blockchain.NewClient(ethClient, cfg, log),
		log,
	)

	state, err := r.Run(context.Background())
	if err != nil {
		log.Error("Claim run failed", zap.Stringer("state", state), zap.Error(err))
		return err
	}
	log.Debug("Claim run finished", zap.Stringer("state", state))
	return nil
}

// loadConfig reads environ (the process environment when nil), applies
// command line overrides and validates the result.
func loadConfig(cmd *cobra.Command, f flags, environ map[string]string) (*config.Config, error) {
	cfg, err := config.Load(environ)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides environment values with flags set on the command line.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	if cmd.Flags().Changed("simulate") {
		cfg.SimulateBeforeSend = f.simulate
	}
	if cmd.Flags().Changed("force") {
		cfg.ForceSubmit = f.force
	}
	if cmd.Flags().Changed("wait-receipt") {
		cfg.WaitForReceipt = f.waitReceipt
	}
	if cmd.Flags().Changed("amount-field") {
		cfg.AmountField = config.AmountField(f.amountField)
	}
}
