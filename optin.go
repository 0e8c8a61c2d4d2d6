package algofi

import (
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

const (
	// ManagerOptInMinBalance funds a new storage account for its opt-ins.
	ManagerOptInMinBalance uint64 = 3_569_500

	// StakingOptInMinBalance funds a new staking storage account.
	StakingOptInMinBalance uint64 = 650_000
)

type OptInIn struct {
	Sender         string
	StorageAccount string
	ManagerAppID   uint64
	MarketAppIDs   []uint64
	Params         types.SuggestedParams
}

func optIn(params types.SuggestedParams, sender string, appID uint64, args [][]byte, rekeyTo types.Address) (txn types.Transaction, err error) {
	from, err := types.DecodeAddress(sender)
	if err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid sender '%s': %v", sender, err)
		return
	}
	txn, err = transaction.MakeApplicationOptInTx(
		appID, args, nil, nil, nil,
		params, from, nil,
		types.Digest{}, [32]byte{}, rekeyTo,
	)
	err = errors.WithStack(err)
	return
}

func prepareStorageOptIn(in OptInIn, funding uint64) (group *TransactionGroup, err error) {
	if in.ManagerAppID == 0 {
		err = errors.Wrap(ErrConfiguration, "manager app id must be specified")
		return
	}
	if _, err = types.DecodeAddress(in.StorageAccount); err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid storage account '%s': %v", in.StorageAccount, err)
		return
	}

	payment, err := transaction.MakePaymentTxn(in.Sender, in.StorageAccount, funding, nil, "", in.Params)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	txns := []types.Transaction{payment}

	for _, marketAppID := range in.MarketAppIDs {
		var txn types.Transaction
		if txn, err = optIn(in.Params, in.Sender, marketAppID, nil, types.ZeroAddress); err != nil {
			return
		}
		txns = append(txns, txn)
	}

	userOptIn, err := optIn(in.Params, in.Sender, in.ManagerAppID, nil, types.ZeroAddress)
	if err != nil {
		return
	}

	// The storage account hands its authority to the manager for good.
	managerAddress := crypto.GetApplicationAddress(in.ManagerAppID)
	storageOptIn, err := optIn(in.Params, in.StorageAccount, in.ManagerAppID, nil, managerAddress)
	if err != nil {
		return
	}
	storageOptIn.RekeyTo = managerAddress

	txns = append(txns, userOptIn, storageOptIn)

	return NewTransactionGroup(txns)
}

// PrepareManagerOptinTransactions binds a fresh storage account to the
// sender: fund it, opt the sender into every market and the manager, then
// opt the storage account into the manager rekeyed to the manager address.
// The storage account signs the last transaction.
func PrepareManagerOptinTransactions(in OptInIn) (*TransactionGroup, error) {
	return prepareStorageOptIn(in, ManagerOptInMinBalance)
}

// PrepareStakingContractOptinTransactions is the manager opt-in for a
// staking contract's single market.
func PrepareStakingContractOptinTransactions(in OptInIn) (*TransactionGroup, error) {
	return prepareStorageOptIn(in, StakingOptInMinBalance)
}

// PrepareMarketOptinTransactions opts the sender into one market. The nonce
// argument keeps repeated opt-ins distinct.
func PrepareMarketOptinTransactions(g GroupContext, marketAppID uint64) (group *TransactionGroup, err error) {
	nonce, err := g.nonce()
	if err != nil {
		return
	}
	txn, err := optIn(g.Params, g.Sender, marketAppID, [][]byte{uint64Bytes(nonce)}, types.ZeroAddress)
	if err != nil {
		return
	}
	return NewTransactionGroup([]types.Transaction{txn})
}

// PrepareAssetOptinTransactions is a zero amount transfer to self.
func PrepareAssetOptinTransactions(g GroupContext, assetID uint64) (group *TransactionGroup, err error) {
	if assetID <= NativeAssetID {
		err = errors.Wrapf(ErrConfiguration, "asset %d cannot be opted into", assetID)
		return
	}
	txn, err := transaction.MakeAssetTransferTxn(g.Sender, g.Sender, 0, nil, g.Params, "", assetID)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return NewTransactionGroup([]types.Transaction{txn})
}

func PreparePaymentTransaction(g GroupContext, receiver string, amount uint64) (group *TransactionGroup, err error) {
	txn, err := transaction.MakePaymentTxn(g.Sender, receiver, amount, nil, "", g.Params)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return NewTransactionGroup([]types.Transaction{txn})
}
