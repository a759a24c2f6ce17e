package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionkeeper/internal/chain"
	"positionkeeper/internal/config"
	"positionkeeper/internal/uniswap"
	"positionkeeper/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	root := &cobra.Command{
		Use:          "keeper",
		Short:        "Uniswap V3 position keeper",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "chain RPC URL (overrides the network table)")
	root.PersistentFlags().String("network", "polygon", "network name from the config table")
	root.PersistentFlags().String("private-key", "", "hex wallet private key (prefer KEEPER_PRIVATE_KEY)")
	root.PersistentFlags().Float64("gas-multiplier", 1.0, "scale factor applied to the live gas price")
	root.PersistentFlags().Float64("slippage", 0.7, "minimum accepted fraction of desired amounts")
	root.PersistentFlags().Duration("deadline", time.Hour, "transaction deadline window")
	root.PersistentFlags().Uint64("scan-batch", 0, "blocks per transfer-scan request (0 = single request)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newPositionsCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newCloseCmd())
	root.AddCommand(newBalanceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// app bundles the shared wiring every subcommand needs.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	gateway *uniswap.Gateway
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	rpcURL, err := cfg.RPCURL()
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	gateway := uniswap.NewGateway(uniswap.Config{
		GasMultiplier: cfg.GasMultiplier,
	}, chainClient, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		chain:   chainClient,
		gateway: gateway,
	}, nil
}

func (a *app) close() {
	if a.chain != nil {
		a.chain.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// signer builds the wallet signer from the configured private key.
func (a *app) signer() (*wallet.Signer, error) {
	if a.cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key is required (set KEEPER_PRIVATE_KEY or --private-key)")
	}
	return wallet.NewSigner(a.cfg.PrivateKey)
}

// owner resolves the wallet address for read-only commands: an explicit
// --owner wins, otherwise it is derived from the private key.
func (a *app) owner(cmd *cobra.Command) (common.Address, error) {
	if cmd.Flags().Lookup("owner") != nil {
		ownerHex, _ := cmd.Flags().GetString("owner")
		if ownerHex != "" {
			if !common.IsHexAddress(ownerHex) {
				return common.Address{}, fmt.Errorf("invalid owner address: %s", ownerHex)
			}
			return common.HexToAddress(ownerHex), nil
		}
	}
	signer, err := a.signer()
	if err != nil {
		return common.Address{}, fmt.Errorf("owner address required: %w", err)
	}
	return signer.Address(), nil
}
