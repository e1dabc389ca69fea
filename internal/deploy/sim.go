package deploy

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/ethereum/go-ethereum/common"
)

// Amounts used to bootstrap a simulation, in whole tokens.
const (
	simDeepWNative   = "50"
	simDeepCake      = "5"
	simLenderDeposit = "10"
	simPrincipal     = "0.5"
	simLoan          = "0.5"
)

// SeedPositions prepares the deployment for a keeper run. The deployer deepens the CAKE/WBNB pair,
// Bob lends to the vault, and n leveraged positions are opened alternately by Alice and Bob.
// It returns the ids of the new positions.
func (d *Deployment) SeedPositions(ctx context.Context, n uint64) ([]uint64, error) {
	deepWNative := utils.MustParseUnits(simDeepWNative, 18)
	deepCake := utils.MustParseUnits(simDeepCake, d.Cake.Decimals())
	deposit := utils.MustParseUnits(simLenderDeposit, 18)
	principal := utils.MustParseUnits(simPrincipal, 18)
	loan := utils.MustParseUnits(simLoan, 18)

	err := d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.WNative.Deposit(ctx, d.Deployer, deepWNative)
	})
	if err != nil {
		return nil, err
	}
	if err := d.ProvideLiquidity(ctx, d.Deployer, d.WNative.Token, d.Cake, deepWNative, deepCake); err != nil {
		return nil, fmt.Errorf("deepen %s/%s: %w", d.WNative.Symbol(), d.Cake.Symbol(), err)
	}

	err = d.Host.Transact(ctx, func(ctx context.Context) error {
		if err := d.WNative.Approve(ctx, d.Bob, d.Vault.Address(), deposit); err != nil {
			return err
		}
		_, err := d.Vault.Deposit(ctx, d.Bob, deposit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("lender deposit: %w", err)
	}

	ids := make([]uint64, 0, n)
	owners := []common.Address{d.Alice, d.Bob}
	for i := uint64(0); i < n; i++ {
		owner := owners[i%uint64(len(owners))]
		id, err := d.OpenPosition(ctx, owner, principal, loan)
		if err != nil {
			return ids, fmt.Errorf("open position %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OpenPosition wraps principal for owner and opens a position on the vault's worker with loan
// borrowed from the vault.
func (d *Deployment) OpenPosition(ctx context.Context, owner common.Address, principal, loan sdkmath.Int) (uint64, error) {
	var id uint64
	err := d.Host.Transact(ctx, func(ctx context.Context) error {
		if err := d.WNative.Deposit(ctx, owner, principal); err != nil {
			return err
		}
		if err := d.WNative.Approve(ctx, owner, d.Vault.Address(), principal); err != nil {
			return err
		}
		var err error
		id, err = d.Vault.Work(ctx, owner, 0, d.Worker.Address(), principal, loan, sdkmath.ZeroInt(), strategy.Call{
			Strategy: d.AddBaseTokenOnly,
			Params:   strategy.AddBaseTokenOnlyParams{MinFarmingAmount: sdkmath.ZeroInt()},
		})
		return err
	})
	return id, err
}

// SellPressure has the deployer sell amount farming tokens for the base token, pushing the price
// of the farming token down. It returns the base token received.
func (d *Deployment) SellPressure(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	out := sdkmath.ZeroInt()
	if !amount.IsPositive() {
		return out, nil
	}
	err := d.Host.Transact(ctx, func(ctx context.Context) error {
		if err := d.Cake.Approve(ctx, d.Deployer, d.Router.Address(), amount); err != nil {
			return err
		}
		amounts, err := d.Router.SwapExactTokensForTokens(ctx, d.Deployer, amount, sdkmath.ZeroInt(),
			[]common.Address{d.Cake.Address(), d.WNative.Address()}, d.Deployer)
		if err != nil {
			return err
		}
		out = amounts[len(amounts)-1]
		return nil
	})
	return out, err
}
