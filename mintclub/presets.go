package mintclub

import "math/big"

// BaseChainID is the chain the app operates on unless configured otherwise.
const BaseChainID uint64 = 8453

// DefaultSymbolPrefix prefixes every creator-coin symbol.
const DefaultSymbolPrefix = "OWHA"

var (
	// gwei-scale helpers for the preset prices below.
	microEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil) // 0.000001 * 1e18
	deciEther  = new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil) // 0.1 * 1e18
	oneToken   = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// CoinCurve returns the curve preset for creator coins: a 100-step exponential
// curve from 0.000001 to 0.1 reserve tokens with a one-billion max supply.
func CoinCurve() CurveParams {
	return CurveParams{
		Type:         CurveExponential,
		StepCount:    100,
		MaxSupply:    1_000_000_000,
		InitialPrice: new(big.Int).Set(microEther),
		FinalPrice:   new(big.Int).Set(deciEther),
	}
}

// PostCurve returns the curve preset for post tokens: a 10-step linear curve
// from 10 to 1000 creator-coin units, 100 max supply, one copy reserved for
// the creator.
func PostCurve() CurveParams {
	return CurveParams{
		Type:              CurveLinear,
		StepCount:         10,
		MaxSupply:         100,
		InitialPrice:      new(big.Int).Mul(big.NewInt(10), oneToken),
		FinalPrice:        new(big.Int).Mul(big.NewInt(1000), oneToken),
		CreatorAllocation: 1,
	}
}
