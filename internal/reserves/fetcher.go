package reserves

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbscope/internal/model"
)

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Chain is the node access a snapshot fetch needs.
type Chain interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// Config controls RPC behaviour of a fetch.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// Concurrency bounds in-flight pool reads.
	Concurrency int
}

// Request names what to read.
type Request struct {
	TokenIn  common.Address
	TokenOut common.Address
	Pools    []common.Address
	// Block pins the read; 0 pins to the head block at fetch time.
	Block uint64
}

// Fetcher reads pool balances into a Snapshot.
type Fetcher struct {
	chain  Chain
	cfg    Config
	tokens *TokenMetaCache
	logger *zap.Logger
}

func NewFetcher(chain Chain, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Fetcher{
		chain:  chain,
		cfg:    cfg,
		tokens: NewTokenMetaCache(),
		logger: logger,
	}
}

// FetchSnapshot reads balanceOf(pool) of both tokens for every pool at one
// block. A pool's reserves are its token balances, so ReserveIn holds
// TokenIn and ReserveOut holds TokenOut for every pool.
func (f *Fetcher) FetchSnapshot(ctx context.Context, req Request) (model.Snapshot, error) {
	if f.chain == nil {
		return model.Snapshot{}, fmt.Errorf("chain client is nil")
	}
	if req.TokenIn == req.TokenOut {
		return model.Snapshot{}, fmt.Errorf("token-in and token-out must differ")
	}
	if len(req.Pools) < 2 {
		return model.Snapshot{}, fmt.Errorf("%w: got %d", model.ErrEmptySnapshot, len(req.Pools))
	}

	block := req.Block
	if block == 0 {
		err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
			head, err := f.chain.LatestBlockNumber(ctx)
			block = head
			return err
		})
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("latest block: %w", err)
		}
	}

	snap := model.Snapshot{BlockNumber: block}
	var err error
	if snap.TokenIn, err = f.tokenMeta(ctx, req.TokenIn); err != nil {
		return model.Snapshot{}, err
	}
	if snap.TokenOut, err = f.tokenMeta(ctx, req.TokenOut); err != nil {
		return model.Snapshot{}, err
	}

	chainID, err := f.chain.ChainID(ctx)
	if err != nil {
		f.logger.Warn("chain id fetch failed", zap.Error(err))
	} else {
		snap.ChainID = chainID.Uint64()
	}
	if ts, err := f.chain.BlockTime(ctx, block); err == nil {
		snap.CapturedAt = ts.Format(time.RFC3339)
	} else {
		f.logger.Warn("block time fetch failed", zap.Uint64("block", block), zap.Error(err))
	}

	pools := make([]model.PoolState, len(req.Pools))
	blockNum := new(big.Int).SetUint64(block)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, pool := range req.Pools {
		g.Go(func() error {
			state, err := f.fetchPool(gctx, req.TokenIn, req.TokenOut, pool, blockNum)
			if err != nil {
				return err
			}
			pools[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	snap.Pools = pools

	f.logger.Info("snapshot fetched",
		zap.Uint64("block", block),
		zap.String("token_in", snap.TokenIn.Symbol),
		zap.String("token_out", snap.TokenOut.Symbol),
		zap.Int("pools", len(pools)),
	)
	return snap, nil
}

func (f *Fetcher) fetchPool(ctx context.Context, tokenIn, tokenOut, pool common.Address, block *big.Int) (model.PoolState, error) {
	reserveIn, err := f.balanceOf(ctx, tokenIn, pool, block)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	reserveOut, err := f.balanceOf(ctx, tokenOut, pool, block)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	f.logger.Debug("pool reserves",
		zap.String("pool", pool.Hex()),
		zap.String("reserve_in", reserveIn.String()),
		zap.String("reserve_out", reserveOut.String()),
	)
	return model.NewPoolState(pool.Hex(), reserveIn, reserveOut)
}

func (f *Fetcher) balanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := erc20()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	var balance *big.Int
	err = withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		values, err := call(ctx, f.chain, token, parsed, "balanceOf", block, owner)
		if err != nil {
			return err
		}
		balance, err = asBigInt(values[0])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
	}
	return balance, nil
}

func (f *Fetcher) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := f.tokens.Get(token); ok {
		return meta, nil
	}
	var meta model.TokenMeta
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		meta, err = FetchTokenMeta(ctx, f.chain, token, f.logger)
		return err
	})
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s metadata: %w", token.Hex(), err)
	}
	f.tokens.Set(token, meta)
	return meta, nil
}
