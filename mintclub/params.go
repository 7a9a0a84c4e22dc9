// Package mintclub defines the value types shared by the creation flows: the
// bonding-curve shape, the reserve asset reference, and the per-asset creation
// parameters handed to the launchpad.
package mintclub

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CurveType identifies the pricing function of a bonding curve.
type CurveType string

// Supported curve shapes.
const (
	CurveExponential CurveType = "EXPONENTIAL"
	CurveLinear      CurveType = "LINEAR"
)

// AssetKind distinguishes fungible creator coins from ERC1155 post tokens.
type AssetKind string

// Supported asset kinds.
const (
	AssetCoin AssetKind = "coin"
	AssetPost AssetKind = "post"
)

// ReserveToken references the asset backing a bonding curve.
type ReserveToken struct {
	Address  common.Address
	Decimals uint8
}

// CurveParams describes the bonding-curve shape for a new asset. Prices are
// expressed in the reserve token's base units.
type CurveParams struct {
	Type              CurveType
	StepCount         uint64
	MaxSupply         uint64
	InitialPrice      *big.Int
	FinalPrice        *big.Int
	CreatorAllocation uint64
}

// Validate checks the curve shape invariants.
func (c CurveParams) Validate() error {
	switch c.Type {
	case CurveExponential, CurveLinear:
	default:
		return fmt.Errorf("mintclub: unsupported curve type %q", c.Type)
	}
	if c.StepCount == 0 {
		return fmt.Errorf("mintclub: step count must be positive")
	}
	if c.MaxSupply == 0 {
		return fmt.Errorf("mintclub: max supply must be positive")
	}
	if c.InitialPrice == nil || c.InitialPrice.Sign() <= 0 {
		return fmt.Errorf("mintclub: initial price must be positive")
	}
	if c.FinalPrice == nil || c.FinalPrice.Sign() <= 0 {
		return fmt.Errorf("mintclub: final price must be positive")
	}
	if c.InitialPrice.Cmp(c.FinalPrice) > 0 {
		return fmt.Errorf("mintclub: initial price exceeds final price")
	}
	return nil
}

// CreationParams carries everything the launchpad needs to create an asset.
// MetadataURI is required for posts and ignored for coins.
type CreationParams struct {
	Kind        AssetKind
	Name        string
	Symbol      string
	Reserve     ReserveToken
	Curve       CurveParams
	MetadataURI string
}

// Validate checks the creation payload before any wallet interaction happens.
func (p CreationParams) Validate() error {
	switch p.Kind {
	case AssetCoin, AssetPost:
	default:
		return fmt.Errorf("mintclub: unsupported asset kind %q", p.Kind)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("mintclub: name required")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("mintclub: symbol required")
	}
	if (p.Reserve.Address == common.Address{}) {
		return fmt.Errorf("mintclub: reserve token address required")
	}
	if err := p.Curve.Validate(); err != nil {
		return err
	}
	if p.Kind == AssetPost {
		if !strings.HasPrefix(p.MetadataURI, "ipfs://") {
			return fmt.Errorf("mintclub: post metadata URI must be ipfs://, got %q", p.MetadataURI)
		}
	}
	return nil
}
