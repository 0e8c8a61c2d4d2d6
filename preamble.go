package algofi

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

type Operation int

const (
	OperationMint Operation = iota + 1
	OperationMintToCollateral
	OperationAddCollateral
	OperationRemoveCollateral
	OperationBurn
	OperationRemoveCollateralUnderlying
	OperationBorrow
	OperationRepayBorrow
	OperationLiquidate
	OperationClaimRewards
)

var operationNames = map[Operation]string{
	OperationMint:                       "mint",
	OperationMintToCollateral:           "mint_to_collateral",
	OperationAddCollateral:              "add_collateral",
	OperationRemoveCollateral:           "remove_collateral",
	OperationBurn:                       "burn",
	OperationRemoveCollateralUnderlying: "remove_collateral_underlying",
	OperationBorrow:                     "borrow",
	OperationRepayBorrow:                "repay_borrow",
	OperationLiquidate:                  "liquidate",
	OperationClaimRewards:               "claim_rewards",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

func ParseOperation(name string) (op Operation, err error) {
	name = strings.ToLower(name)
	for o, n := range operationNames {
		if n == name {
			return o, nil
		}
	}
	err = errors.Wrapf(ErrUnsupportedOperation, "'%s'", name)
	return
}

const (
	// FeeSensitiveFlatFee is paid by the update prices call of operations
	// whose contract calls need the extra budget.
	FeeSensitiveFlatFee uint64 = 2000

	// DefaultFlatFee is the per transaction fee of DefaultParams.
	DefaultFlatFee uint64 = 1000

	PreambleLength = 12

	nonceBound = 1_000_000
)

// feeSensitive reports whether the operation raises the update prices fee.
// Add collateral and mint to collateral keep the default fee.
func (o Operation) feeSensitive() bool {
	switch o {
	case OperationMint,
		OperationBurn,
		OperationRemoveCollateral,
		OperationRemoveCollateralUnderlying,
		OperationBorrow,
		OperationRepayBorrow,
		OperationLiquidate,
		OperationClaimRewards:
		return true
	}
	return false
}

// GroupContext carries what every protocol group shares: who sends it, with
// which params, and which manager, markets and oracles it touches.
type GroupContext struct {
	Sender         string
	Params         types.SuggestedParams
	StorageAccount string
	ManagerAppID   uint64
	MarketAppIDs   []uint64
	OracleAppIDs   []uint64
	// Nonce overrides the random note of the first preamble call.
	Nonce func() uint64
}

func (g GroupContext) validate() (err error) {
	if _, err = types.DecodeAddress(g.Sender); err != nil {
		return errors.Wrapf(ErrConfiguration, "invalid sender '%s': %v", g.Sender, err)
	}
	if g.ManagerAppID == 0 {
		return errors.Wrap(ErrConfiguration, "manager app id must be specified")
	}
	return
}

func (g GroupContext) nonce() (uint64, error) {
	if g.Nonce != nil {
		return g.Nonce() % nonceBound, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(nonceBound))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n.Uint64(), nil
}

func (g GroupContext) appCall(params types.SuggestedParams, appID uint64, args [][]byte, accounts []string, apps, assets []uint64, note []byte) (txn types.Transaction, err error) {
	sender, err := types.DecodeAddress(g.Sender)
	if err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid sender '%s': %v", g.Sender, err)
		return
	}
	txn, err = transaction.MakeApplicationNoOpTx(
		appID, args, accounts, apps, assets,
		params, sender, note,
		types.Digest{}, [32]byte{}, types.ZeroAddress,
	)
	err = errors.WithStack(err)
	return
}

// transfer moves amount of assetID to receiver: a payment for the native
// asset, an asset transfer otherwise.
func (g GroupContext) transfer(assetID uint64, receiver string, amount uint64) (txn types.Transaction, err error) {
	switch assetID {
	case 0:
		err = errors.Wrap(ErrConfiguration, "asset id 0 is not a valid asset")
		return
	case NativeAssetID:
		txn, err = transaction.MakePaymentTxn(g.Sender, receiver, amount, nil, "", g.Params)
	default:
		txn, err = transaction.MakeAssetTransferTxn(g.Sender, receiver, amount, nil, g.Params, "", assetID)
	}
	err = errors.WithStack(err)
	return
}

func opArgs(key string, extra ...[]byte) [][]byte {
	return append([][]byte{[]byte(key)}, extra...)
}

// preambleTransactions builds the twelve calls every protocol group starts
// with: fetch market variables, update prices, update protocol data and
// nine budget padding calls.
func preambleTransactions(op Operation, g GroupContext, storageAccount string) (txns []types.Transaction, err error) {
	if err = g.validate(); err != nil {
		return
	}
	if _, err = types.DecodeAddress(storageAccount); err != nil {
		err = errors.Wrapf(ErrNoStorageAddress, "invalid storage account '%s'", storageAccount)
		return
	}

	nonce, err := g.nonce()
	if err != nil {
		return
	}

	pricesParams := g.Params
	if op.feeSensitive() {
		pricesParams.FlatFee = true
		pricesParams.Fee = types.MicroAlgos(FeeSensitiveFlatFee)
	}

	txns = make([]types.Transaction, 0, PreambleLength)

	fetch, err := g.appCall(g.Params, g.ManagerAppID, opArgs(keyFetchMarketVariables), nil, g.MarketAppIDs, nil, uint64Bytes(nonce))
	if err != nil {
		return
	}
	txns = append(txns, fetch)

	prices, err := g.appCall(pricesParams, g.ManagerAppID, opArgs(keyUpdatePrices), nil, g.OracleAppIDs, nil, nil)
	if err != nil {
		return
	}
	txns = append(txns, prices)

	protocol, err := g.appCall(g.Params, g.ManagerAppID, opArgs(keyUpdateProtocolData), []string{storageAccount}, g.MarketAppIDs, nil, nil)
	if err != nil {
		return
	}
	txns = append(txns, protocol)

	for _, dummy := range dummyCalls {
		var txn types.Transaction
		if txn, err = g.appCall(g.Params, g.ManagerAppID, opArgs(dummy), nil, g.MarketAppIDs, nil, nil); err != nil {
			return
		}
		txns = append(txns, txn)
	}

	return
}
