package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionkeeper/internal/balance"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet's native and token balances",
		RunE:  runBalance,
	}

	cmd.Flags().String("owner", "", "wallet address to inspect (defaults to the signing key's address)")
	cmd.Flags().StringSlice("token", nil, "ERC-20 token addresses (comma-separated)")

	return cmd
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	owner, err := a.owner(cmd)
	if err != nil {
		return err
	}

	wei, err := a.chain.NativeBalance(ctx, owner)
	if err != nil {
		return err
	}
	native := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	a.logger.Info("native balance",
		zap.String("owner", owner.Hex()),
		zap.String("balance", native.Text('f', 6)),
	)

	oracle := balance.NewOracle(a.gateway)
	tokens, _ := cmd.Flags().GetStringSlice("token")
	for _, tokenHex := range tokens {
		if !common.IsHexAddress(tokenHex) {
			a.logger.Warn("skipping invalid token address", zap.String("token", tokenHex))
			continue
		}
		token := common.HexToAddress(tokenHex)

		decimals, err := oracle.DecimalsOf(ctx, token)
		if err != nil {
			a.logger.Warn("decimals read failed", zap.String("token", token.Hex()), zap.Error(err))
			continue
		}
		amount, err := oracle.BalanceOf(ctx, owner, token, decimals)
		if err != nil {
			a.logger.Warn("balance read failed", zap.String("token", token.Hex()), zap.Error(err))
			continue
		}
		a.logger.Info("token balance",
			zap.String("token", token.Hex()),
			zap.Uint8("decimals", decimals),
			zap.String("balance", amount.Text('f', int(decimals))),
		)
	}

	return nil
}
