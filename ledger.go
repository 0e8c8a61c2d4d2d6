package algofi

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

type AssetHolding struct {
	AssetID uint64 `json:"assetId"`
	Amount  uint64 `json:"amount"`
}

type AppLocalState struct {
	AppID    uint64       `json:"appId"`
	KeyValue []StateEntry `json:"keyValue,omitempty"`
}

// AccountInfo is the subset of an account record the protocol reads.
type AccountInfo struct {
	Address        string          `json:"address"`
	Amount         uint64          `json:"amount"`
	AuthAddr       string          `json:"authAddr,omitempty"`
	Assets         []AssetHolding  `json:"assets,omitempty"`
	AppsLocalState []AppLocalState `json:"appsLocalState,omitempty"`
}

// LocalState decodes the account's local state under appID. An account not
// opted into the app has an empty state.
func (a AccountInfo) LocalState(appID uint64) (state State, optedIn bool) {
	for _, local := range a.AppsLocalState {
		if local.AppID == appID {
			return DecodeState(local.KeyValue), true
		}
	}
	return State{}, false
}

func (a AccountInfo) IsOptedIntoApp(appID uint64) bool {
	_, ok := a.LocalState(appID)
	return ok
}

func (a AccountInfo) IsOptedIntoAsset(assetID uint64) bool {
	for _, holding := range a.Assets {
		if holding.AssetID == assetID {
			return true
		}
	}
	return false
}

// Balances maps asset id to amount, with the native balance under
// NativeAssetID.
func (a AccountInfo) Balances() map[uint64]uint64 {
	balances := make(map[uint64]uint64, len(a.Assets)+1)
	for _, holding := range a.Assets {
		balances[holding.AssetID] = holding.Amount
	}
	balances[NativeAssetID] = a.Amount
	return balances
}

type PendingTransaction struct {
	ConfirmedRound uint64
	PoolError      string
}

// StateReader is the read side of the ledger the protocol types need.
type StateReader interface {
	ApplicationGlobalState(ctx context.Context, appID uint64) ([]StateEntry, error)
	AccountInformation(ctx context.Context, address string) (AccountInfo, error)
}

// ConfirmationPoller is what WaitForConfirmation needs from a node.
type ConfirmationPoller interface {
	Status(ctx context.Context) (lastRound uint64, err error)
	StatusAfterBlock(ctx context.Context, round uint64) (lastRound uint64, err error)
	PendingTransaction(ctx context.Context, txid string) (PendingTransaction, error)
}

type Ledger interface {
	StateReader
	ConfirmationPoller
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	SendRawTransaction(ctx context.Context, signed []byte) (txid string, err error)
}

// AccountSearcher lists accounts opted into an application.
type AccountSearcher interface {
	SearchAccounts(ctx context.Context, appID uint64) ([]AccountInfo, error)
}

// HistoricalStateSource serves application global state as of a round.
type HistoricalStateSource interface {
	GlobalStateAt(ctx context.Context, appID uint64, round uint64) ([]StateEntry, error)
}

// HistorySources asks each source in turn and returns the first answer.
type HistorySources []HistoricalStateSource

var _ HistoricalStateSource = HistorySources{}

func (h HistorySources) GlobalStateAt(ctx context.Context, appID uint64, round uint64) (entries []StateEntry, err error) {
	err = errors.Wrapf(ErrUnsupportedOperation, "no history source for app %d", appID)
	for _, source := range h {
		if entries, err = source.GlobalStateAt(ctx, appID, round); err == nil {
			return
		}
		log.Debug().Msgf("history source failed for app %d at round %d: %v", appID, round, err)
	}
	return
}

func readGlobalState(ctx context.Context, reader StateReader, appID uint64) (state State, err error) {
	entries, err := reader.ApplicationGlobalState(ctx, appID)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "global state of app %d: %v", appID, err)
		return
	}
	return DecodeState(entries), nil
}

func readLocalState(ctx context.Context, reader StateReader, address string, appID uint64) (state State, err error) {
	info, err := reader.AccountInformation(ctx, address)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "account %s: %v", address, err)
		return
	}
	state, _ = info.LocalState(appID)
	return
}
