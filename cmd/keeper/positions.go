package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionkeeper/internal/priceusd"
	"positionkeeper/internal/registry"
	"positionkeeper/internal/uniswap"

	"github.com/ethereum/go-ethereum/common"
)

func newPositionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Discover and classify the wallet's liquidity positions",
		RunE:  runPositions,
	}

	cmd.Flags().String("owner", "", "wallet address to inspect (defaults to the signing key's address)")
	cmd.Flags().Bool("active", false, "only positions with liquidity > 0")
	cmd.Flags().Bool("usd", false, "annotate tokens with USD prices from the configured oracle")

	return cmd
}

func runPositions(cmd *cobra.Command, _ []string) error {
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

	reg := registry.NewRegistry(registry.Config{
		Manager:   common.HexToAddress(uniswap.PositionManagerAddress),
		ScanBatch: a.cfg.ScanBatch,
	}, a.chain, a.gateway, a.logger)

	activeOnly, _ := cmd.Flags().GetBool("active")
	annotateUSD, _ := cmd.Flags().GetBool("usd")

	positions, err := reg.Positions(ctx, owner)
	if err != nil {
		return err
	}

	var prices *priceusd.Client
	if annotateUSD {
		prices = priceusd.NewClient(a.cfg.PriceEndpoints())
	}

	shown := 0
	for key, position := range positions {
		if activeOnly && !position.Open() {
			continue
		}
		shown++

		fields := []zap.Field{
			zap.String("token_id", key),
			zap.String("token0", position.Token0),
			zap.String("token1", position.Token1),
			zap.Uint32("fee", position.Fee),
			zap.Int32("tick_lower", position.TickLower),
			zap.Int32("tick_upper", position.TickUpper),
			zap.String("liquidity", position.Liquidity.String()),
			zap.Bool("in_range", reg.InRange(ctx, position)),
		}

		if prices != nil {
			// Price annotation is best-effort; a missing quote never hides
			// the position itself.
			if usd, err := prices.PriceUSD(ctx, a.cfg.Network, position.Token0); err == nil {
				fields = append(fields, zap.Float64("token0_usd", usd))
			} else {
				a.logger.Warn("token0 usd lookup failed", zap.String("token", position.Token0), zap.Error(err))
			}
			if usd, err := prices.PriceUSD(ctx, a.cfg.Network, position.Token1); err == nil {
				fields = append(fields, zap.Float64("token1_usd", usd))
			} else {
				a.logger.Warn("token1 usd lookup failed", zap.String("token", position.Token1), zap.Error(err))
			}
		}

		a.logger.Info("position", fields...)
	}

	a.logger.Info("discovery complete",
		zap.String("owner", owner.Hex()),
		zap.Int("total", len(positions)),
		zap.Int("shown", shown),
		zap.Bool("active_only", activeOnly),
	)
	return nil
}
