/*

Token metadata shared between the chain simulation, the keeper and the dashboard.

*/

package types

import (
	"strings"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"
)

type Token struct {
	Symbol   string         `json:"symbol"`   // e.g., "CAKE"
	Address  common.Address `json:"address"`  // Contract address on the simulated chain
	Decimals int            `json:"decimals"` // e.g., 18
	Native   bool           `json:"native"`   // True for the wrapped native token
}

// Denom returns the lower-case symbol, which is used as the coin denom in receipts.
func (t Token) Denom() string {
	return strings.ToLower(t.Symbol)
}

// Coin wraps an amount of this token into an sdk.Coin for reporting.
func (t Token) Coin(amount sdkmath.Int) sdktypes.Coin {
	if amount.IsNil() || amount.IsNegative() {
		amount = sdkmath.ZeroInt()
	}
	return sdktypes.NewCoin(t.Denom(), amount)
}
