package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"positionkeeper/internal/model"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// LogSource is the slice of the chain client the registry scans with.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// PositionReader is the slice of the contract gateway the registry resolves
// discovered IDs through.
type PositionReader interface {
	Position(ctx context.Context, tokenID *big.Int) (model.Position, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error)
	Slot0(ctx context.Context, pool common.Address) (*big.Int, int32, error)
}

// Config holds registry construction parameters.
type Config struct {
	Manager common.Address
	// ScanBatch caps the block span per getLogs call. Zero scans the whole
	// history in one request; set it when the RPC enforces a range limit.
	ScanBatch uint64
}

// Registry discovers and classifies a wallet's liquidity positions.
// It holds no state: every call reflects the chain at call time.
type Registry struct {
	cfg    Config
	logs   LogSource
	reader PositionReader
	logger *zap.Logger
}

// NewRegistry builds a Registry with its dependencies.
func NewRegistry(cfg Config, logs LogSource, reader PositionReader, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, logs: logs, reader: reader, logger: logger}
}

// ListPositionIDs scans the manager's Transfer history from genesis and
// returns the token IDs received by owner, in ascending log order.
//
// Duplicates are preserved: a token transferred away and back appears once
// per receipt. Being listed means the wallet was a recipient at some point,
// not that it is the current holder; confirm with CurrentlyOwned or OwnerOf
// when that distinction matters.
func (r *Registry) ListPositionIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	latest, err := r.logs.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}

	topics := [][]common.Hash{
		{TransferTopic},
		nil, // any sender
		{common.BytesToHash(owner.Bytes())},
	}

	ids := make([]*big.Int, 0)
	for _, blockRange := range scanRanges(0, latest, r.cfg.ScanBatch) {
		logs, err := r.logs.FilterLogs(ctx, blockRange.from, blockRange.to, r.cfg.Manager, topics)
		if err != nil {
			return nil, fmt.Errorf("filter transfers [%d,%d]: %w", blockRange.from, blockRange.to, err)
		}
		for _, entry := range logs {
			// ERC-721 Transfer indexes all three arguments; tokenId is topic3.
			if len(entry.Topics) != 4 {
				r.logger.Warn("transfer log with unexpected topic count",
					zap.Uint64("block", entry.BlockNumber),
					zap.Int("topics", len(entry.Topics)),
				)
				continue
			}
			ids = append(ids, entry.Topics[3].Big())
		}
	}

	return ids, nil
}

// Positions resolves every discovered token ID to its detail record, keyed
// by decimal token ID. IDs whose detail fetch fails are logged and omitted;
// one bad ID never aborts the batch.
func (r *Registry) Positions(ctx context.Context, owner common.Address) (map[string]model.Position, error) {
	ids, err := r.ListPositionIDs(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		r.logger.Info("no positions found", zap.String("owner", owner.Hex()))
	}

	positions := make(map[string]model.Position, len(ids))
	for _, id := range ids {
		key := id.String()
		if _, ok := positions[key]; ok {
			continue
		}
		position, err := r.reader.Position(ctx, id)
		if err != nil {
			r.logger.Warn("position detail fetch failed",
				zap.String("token_id", key),
				zap.Error(err),
			)
			continue
		}
		positions[key] = position
	}
	return positions, nil
}

// ActivePositions returns the owner's positions that still hold liquidity.
func (r *Registry) ActivePositions(ctx context.Context, owner common.Address) (map[string]model.Position, error) {
	positions, err := r.Positions(ctx, owner)
	if err != nil {
		return nil, err
	}

	active := make(map[string]model.Position, len(positions))
	for key, position := range positions {
		if position.Open() {
			active[key] = position
		}
	}
	if len(active) == 0 && len(positions) > 0 {
		r.logger.Info("no active positions", zap.String("owner", owner.Hex()))
	}
	return active, nil
}

// CurrentlyOwned filters token IDs down to those the wallet holds right now
// per the manager's ownerOf. Lookup failures drop the ID with a warn log.
func (r *Registry) CurrentlyOwned(ctx context.Context, owner common.Address, ids []*big.Int) []*big.Int {
	owned := make([]*big.Int, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		holder, err := r.reader.OwnerOf(ctx, id)
		if err != nil {
			r.logger.Warn("ownerOf lookup failed", zap.String("token_id", key), zap.Error(err))
			continue
		}
		if holder == owner {
			owned = append(owned, id)
		}
	}
	return owned
}

// InRange reports whether the position's tick bounds bracket the pool's
// current tick, inclusive on both ends. Any read failure makes the position
// report out of range: a position whose range cannot be determined must
// never be reported as earning fees.
func (r *Registry) InRange(ctx context.Context, position model.Position) bool {
	pool, err := r.reader.PoolAddress(ctx,
		common.HexToAddress(position.Token0),
		common.HexToAddress(position.Token1),
		position.Fee,
	)
	if err != nil {
		r.logger.Warn("pool resolution failed",
			zap.String("token_id", tokenIDString(position)),
			zap.Error(err),
		)
		return false
	}

	_, currentTick, err := r.reader.Slot0(ctx, pool)
	if err != nil {
		r.logger.Warn("slot0 read failed",
			zap.String("token_id", tokenIDString(position)),
			zap.String("pool", pool.Hex()),
			zap.Error(err),
		)
		return false
	}

	return position.TickLower <= currentTick && currentTick <= position.TickUpper
}

type blockRange struct {
	from uint64
	to   uint64
}

func scanRanges(from, to, batch uint64) []blockRange {
	if batch == 0 || to-from+1 <= batch {
		return []blockRange{{from: from, to: to}}
	}

	ranges := make([]blockRange, 0)
	start := from
	for start <= to {
		end := to
		if remaining := to - start + 1; remaining > batch {
			end = start + batch - 1
		}
		ranges = append(ranges, blockRange{from: start, to: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges
}

func tokenIDString(position model.Position) string {
	if position.TokenID == nil {
		return "?"
	}
	return position.TokenID.String()
}
