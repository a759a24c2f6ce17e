package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionkeeper/internal/balance"
	"positionkeeper/internal/orchestrator"
)

func newCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Withdraw, collect fees, and burn a position",
		RunE:  runClose,
	}

	cmd.Flags().String("token-id", "", "position token ID to close")

	return cmd
}

func runClose(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tokenIDArg, _ := cmd.Flags().GetString("token-id")
	tokenID, ok := new(big.Int).SetString(tokenIDArg, 10)
	if !ok || tokenID.Sign() < 0 {
		return fmt.Errorf("invalid --token-id: %q", tokenIDArg)
	}

	signer, err := a.signer()
	if err != nil {
		return err
	}

	orch := orchestrator.NewOrchestrator(orchestrator.Config{
		SlippageTolerance: a.cfg.Slippage,
		DeadlineWindow:    a.cfg.Deadline,
	}, a.gateway, balance.NewOracle(a.gateway), a.chain, signer, a.logger)

	result, err := orch.ClosePosition(ctx, tokenID)
	if err != nil {
		return err
	}

	a.logger.Info("close complete",
		zap.String("state", string(result.State)),
		zap.String("token_id", result.TokenID.String()),
		zap.String("decrease_tx", result.DecreaseTx.Hex()),
		zap.String("collect_tx", result.CollectTx.Hex()),
		zap.String("burn_tx", result.BurnTx.Hex()),
	)
	return nil
}
