/*

This file contains the token universe of the simulated chain.

Every token the genesis deploys is listed here with its decimals and the amounts each genesis
account starts with. Symbols are also used as coin denoms (lower-cased) in keeper receipts.

*/

package config

// TokenGenesis describes one token minted at genesis. Amounts are whole tokens.
type TokenGenesis struct {
	Symbol   string
	Decimals int
	Native   bool              // Wrapped native coin; balances are wrapped from native funds
	Balances map[string]string // Account name -> amount
}

const (
	SymbolWNative = "WBNB"
	SymbolBase    = "BTOKEN"
	SymbolFarming = "CAKE"
	SymbolAlpaca  = "ALPACA"
)

var (
	// NativeFunds is the native coin every genesis account is funded with.
	NativeFunds = map[string]string{
		"deployer": "1000",
		"alice":    "1000",
		"bob":      "1000",
		"eve":      "1000",
	}

	Tokens = []TokenGenesis{
		{
			Symbol: SymbolWNative, Decimals: 18, Native: true,
			Balances: map[string]string{"deployer": "50", "alice": "52", "bob": "50"},
		},
		{
			Symbol: SymbolBase, Decimals: 18,
			Balances: map[string]string{"alice": "100", "bob": "100"},
		},
		{
			Symbol: SymbolFarming, Decimals: 18,
			Balances: map[string]string{"deployer": "100", "alice": "10", "bob": "10"},
		},
		{
			Symbol: SymbolAlpaca, Decimals: 18,
			Balances: map[string]string{"deployer": "1000"},
		},
	}

	// Liquidity seeds the AMM pairs at genesis.
	Liquidity = []LiquidityGenesis{
		{Provider: "alice", TokenA: SymbolBase, TokenB: SymbolWNative, AmountA: "1", AmountB: "1"},
		{Provider: "alice", TokenA: SymbolFarming, TokenB: SymbolWNative, AmountA: "0.1", AmountB: "1"},
		{Provider: "deployer", TokenA: SymbolWNative, TokenB: SymbolAlpaca, AmountA: "10", AmountB: "10"},
	}
)

// LiquidityGenesis is one AddLiquidity call made at genesis.
type LiquidityGenesis struct {
	Provider string
	TokenA   string
	TokenB   string
	AmountA  string
	AmountB  string
}

// TokenDecimals returns the decimals of a genesis token, or 18 when it is unknown.
func TokenDecimals(symbol string) int {
	for _, t := range Tokens {
		if t.Symbol == symbol {
			return t.Decimals
		}
	}
	return 18
}
