/*

Pair snapshots describe the AMM state the keeper observed at the start and the end of a cycle.

*/

package types

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

type PairSnapshot struct {
	Address     common.Address `json:"address"`
	Token0      string         `json:"token0"`   // Symbol of the lower-addressed token
	Token1      string         `json:"token1"`   // Symbol of the higher-addressed token
	Reserve0    math.Int       `json:"reserve0"` // Reserve of Token0
	Reserve1    math.Int       `json:"reserve1"` // Reserve of Token1
	TotalSupply math.Int       `json:"total_supply"`
	// Spot price of Token0 denominated in Token1, without fees
	Price0 float64 `json:"price0"`
}
