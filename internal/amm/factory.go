package amm

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

type pairKey struct {
	token0 common.Address
	token1 common.Address
}

func keyFor(a, b common.Address) pairKey {
	if a.Cmp(b) < 0 {
		return pairKey{token0: a, token1: b}
	}
	return pairKey{token0: b, token1: a}
}

// Factory deploys and indexes pairs.
type Factory struct {
	host    *chain.Host
	address common.Address

	pairs    *chain.Store[pairKey, *Pair]
	allPairs *chain.Value[[]*Pair]

	logger zerolog.Logger
}

func NewFactory(host *chain.Host, deployer common.Address) *Factory {
	return &Factory{
		host:     host,
		address:  host.NewContractAddress(deployer),
		pairs:    chain.NewStore[pairKey, *Pair](host, nil),
		allPairs: chain.NewValue[[]*Pair](host, nil),
		logger:   logger.GetForComponent("amm_factory"),
	}
}

func (f *Factory) Address() common.Address { return f.address }

// GetPair returns the pair of tokens a and b in either order.
func (f *Factory) GetPair(a, b common.Address) (*Pair, bool) {
	p := f.pairs.Get(keyFor(a, b))
	return p, p != nil
}

// AllPairs returns pairs in creation order.
func (f *Factory) AllPairs() []*Pair {
	return append([]*Pair(nil), f.allPairs.Get()...)
}

// CreatePair deploys the pool for tokenA and tokenB.
func (f *Factory) CreatePair(ctx context.Context, tokenA, tokenB *token.Token) (*Pair, error) {
	if tokenA.Address() == tokenB.Address() {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "identical addresses")
	}
	if _, exists := f.GetPair(tokenA.Address(), tokenB.Address()); exists {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "pair %s/%s exists", tokenA.Symbol(), tokenB.Symbol())
	}

	token0, token1 := sortTokens(tokenA, tokenB)
	lp := token.New(f.host, f.address, token0.Symbol()+"-"+token1.Symbol()+"-LP", 18)
	if err := lp.TransferOwnership(ctx, f.address, lp.Address()); err != nil {
		return nil, err
	}
	pair := &Pair{
		Token:    lp,
		token0:   token0,
		token1:   token1,
		reserve0: chain.NewValue(f.host, sdkmath.ZeroInt()),
		reserve1: chain.NewValue(f.host, sdkmath.ZeroInt()),
	}
	f.pairs.Set(ctx, keyFor(token0.Address(), token1.Address()), pair)
	f.allPairs.Set(ctx, append(f.AllPairs(), pair))

	f.logger.Debug().
		Str("token0", token0.Symbol()).
		Str("token1", token1.Symbol()).
		Str("pair", pair.Address().Hex()).
		Msg("PairCreated")
	return pair, nil
}
