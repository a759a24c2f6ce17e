package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionkeeper/internal/balance"
	"positionkeeper/internal/model"
	"positionkeeper/internal/orchestrator"

	"github.com/ethereum/go-ethereum/common"
)

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new liquidity position",
		RunE:  runOpen,
	}

	cmd.Flags().String("token-a", "", "reference token address (notional is in its units)")
	cmd.Flags().String("token-b", "", "paired token address")
	cmd.Flags().Uint32("fee", 3000, "fee tier (100, 500, 3000, 10000)")
	cmd.Flags().Float64("notional", 0, "target value in reference-token units")
	cmd.Flags().Float64("range-lower", 0.95, "lower price factor (< 1)")
	cmd.Flags().Float64("range-upper", 1.05, "upper price factor (> 1)")

	return cmd
}

func runOpen(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tokenA, _ := cmd.Flags().GetString("token-a")
	tokenB, _ := cmd.Flags().GetString("token-b")
	if !common.IsHexAddress(tokenA) || !common.IsHexAddress(tokenB) {
		return fmt.Errorf("valid --token-a and --token-b addresses are required")
	}
	fee, _ := cmd.Flags().GetUint32("fee")
	notional, _ := cmd.Flags().GetFloat64("notional")
	if notional <= 0 {
		return fmt.Errorf("--notional must be positive")
	}
	rangeLower, _ := cmd.Flags().GetFloat64("range-lower")
	rangeUpper, _ := cmd.Flags().GetFloat64("range-upper")

	signer, err := a.signer()
	if err != nil {
		return err
	}

	orch := orchestrator.NewOrchestrator(orchestrator.Config{
		SlippageTolerance: a.cfg.Slippage,
		DeadlineWindow:    a.cfg.Deadline,
	}, a.gateway, balance.NewOracle(a.gateway), a.chain, signer, a.logger)

	result, err := orch.AddLiquidity(ctx, orchestrator.AddLiquidityRequest{
		TokenA:   common.HexToAddress(tokenA),
		TokenB:   common.HexToAddress(tokenB),
		Fee:      fee,
		Notional: notional,
		Range:    model.PriceRange{Lower: rangeLower, Upper: rangeUpper},
	})
	if err != nil {
		return err
	}

	a.logger.Info("open complete",
		zap.String("state", string(result.State)),
		zap.String("token_id", tokenIDField(result)),
		zap.Int32("tick_lower", result.TickLower),
		zap.Int32("tick_upper", result.TickUpper),
		zap.String("amount0", result.Amount0.String()),
		zap.String("amount1", result.Amount1.String()),
		zap.String("mint_tx", result.MintTx.Hex()),
		zap.Uint64("block", result.MintedAtBlock),
	)
	return nil
}

func tokenIDField(result *orchestrator.AddLiquidityResult) string {
	if result.TokenID == nil {
		return "unknown"
	}
	return result.TokenID.String()
}
