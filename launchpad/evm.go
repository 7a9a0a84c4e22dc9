package launchpad

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"mintgram/ledger"
	"mintgram/mintclub"
	"mintgram/wallet"
)

const factoryABIJSON = `[
  {"type":"function","name":"createToken","stateMutability":"nonpayable","inputs":[
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"reserveToken","type":"address"},
    {"name":"curveType","type":"uint8"},
    {"name":"stepCount","type":"uint64"},
    {"name":"maxSupply","type":"uint64"},
    {"name":"initialPrice","type":"uint256"},
    {"name":"finalPrice","type":"uint256"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"function","name":"createMultiToken","stateMutability":"nonpayable","inputs":[
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"uri","type":"string"},
    {"name":"reserveToken","type":"address"},
    {"name":"curveType","type":"uint8"},
    {"name":"stepCount","type":"uint64"},
    {"name":"maxSupply","type":"uint64"},
    {"name":"initialPrice","type":"uint256"},
    {"name":"finalPrice","type":"uint256"},
    {"name":"creatorAllocation","type":"uint64"}],
   "outputs":[{"name":"token","type":"address"}]}
]`

var factoryABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic(fmt.Sprintf("launchpad: parse factory abi: %v", err))
	}
	return parsed
}()

func curveTypeID(t mintclub.CurveType) (uint8, error) {
	switch t {
	case mintclub.CurveExponential:
		return 0, nil
	case mintclub.CurveLinear:
		return 1, nil
	}
	return 0, fmt.Errorf("launchpad: unsupported curve type %q", t)
}

// Factory submits creation transactions against the on-chain bond factory.
// Signing goes through the connected wallet; the receipt wait that feeds the
// Confirmed callback runs against the ledger client.
type Factory struct {
	wallet   wallet.Wallet
	client   ledger.Client
	address  common.Address
	waitOpts ledger.ReceiptWaitOptions
	logger   *slog.Logger
}

// FactoryOption customises the factory.
type FactoryOption func(*Factory)

// WithReceiptWaitOptions overrides the receipt wait cadence for the callback path.
func WithReceiptWaitOptions(opts ledger.ReceiptWaitOptions) FactoryOption {
	return func(f *Factory) { f.waitOpts = opts }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory constructs a factory submitter.
func NewFactory(w wallet.Wallet, client ledger.Client, address common.Address, opts ...FactoryOption) (*Factory, error) {
	if w == nil {
		return nil, fmt.Errorf("launchpad: wallet required")
	}
	if client == nil {
		return nil, fmt.Errorf("launchpad: ledger client required")
	}
	if (address == common.Address{}) {
		return nil, fmt.Errorf("launchpad: factory address required")
	}
	f := &Factory{
		wallet:   w,
		client:   client,
		address:  address,
		waitOpts: ledger.DefaultReceiptWaitOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Create implements Creator. It packs the factory calldata, routes signing
// through the wallet, reports the hash, and waits for the receipt in the
// background to drive the Confirmed/Failed callbacks.
func (f *Factory) Create(ctx context.Context, params mintclub.CreationParams, cb Callbacks) error {
	if err := params.Validate(); err != nil {
		return err
	}
	data, err := f.pack(params)
	if err != nil {
		return err
	}

	cb.signatureRequested()
	txHash, err := f.wallet.SignAndSend(ctx, f.address, new(big.Int), data)
	if err != nil {
		return fmt.Errorf("launchpad: submit %s %s: %w", params.Kind, params.Symbol, err)
	}
	cb.submitted(txHash)

	go func() {
		receipt, err := ledger.WaitForReceipt(ctx, f.client, txHash, f.waitOpts)
		if err != nil {
			f.logger.Warn("creation receipt wait failed",
				"kind", string(params.Kind), "symbol", params.Symbol,
				"tx", txHash.Hex(), "err", err)
			cb.failed(fmt.Errorf("failed to get transaction receipt for %s: %w", txHash.Hex(), err))
			return
		}
		cb.confirmed(receipt)
	}()
	return nil
}

func (f *Factory) pack(params mintclub.CreationParams) ([]byte, error) {
	curve, err := curveTypeID(params.Curve.Type)
	if err != nil {
		return nil, err
	}
	switch params.Kind {
	case mintclub.AssetCoin:
		return factoryABI.Pack("createToken",
			params.Name, params.Symbol, params.Reserve.Address, curve,
			params.Curve.StepCount, params.Curve.MaxSupply,
			params.Curve.InitialPrice, params.Curve.FinalPrice)
	case mintclub.AssetPost:
		return factoryABI.Pack("createMultiToken",
			params.Name, params.Symbol, params.MetadataURI, params.Reserve.Address, curve,
			params.Curve.StepCount, params.Curve.MaxSupply,
			params.Curve.InitialPrice, params.Curve.FinalPrice,
			params.Curve.CreatorAllocation)
	}
	return nil, fmt.Errorf("launchpad: unsupported asset kind %q", params.Kind)
}
