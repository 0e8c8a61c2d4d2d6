package algofi

import (
	"context"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

// AlgodLedger serves the Ledger interface from an algod node.
type AlgodLedger struct {
	client *algod.Client
}

var _ Ledger = &AlgodLedger{}

func NewAlgodLedger(address, token string) (ledger *AlgodLedger, err error) {
	client, err := algod.MakeClient(address, token)
	if err != nil {
		err = errors.Wrap(err, "failed to create algod client")
		return
	}
	return &AlgodLedger{client: client}, nil
}

func (l *AlgodLedger) Client() *algod.Client {
	return l.client
}

func (l *AlgodLedger) SuggestedParams(ctx context.Context) (params types.SuggestedParams, err error) {
	params, err = l.client.SuggestedParams().Do(ctx)
	err = errors.WithStack(err)
	return
}

func (l *AlgodLedger) ApplicationGlobalState(ctx context.Context, appID uint64) (entries []StateEntry, err error) {
	app, err := l.client.GetApplicationByID(appID).Do(ctx)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return stateEntriesFromModel(app.Params.GlobalState), nil
}

func (l *AlgodLedger) AccountInformation(ctx context.Context, address string) (info AccountInfo, err error) {
	account, err := l.client.AccountInformation(address).Do(ctx)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return accountInfoFromModel(account), nil
}

func (l *AlgodLedger) SendRawTransaction(ctx context.Context, signed []byte) (txid string, err error) {
	txid, err = l.client.SendRawTransaction(signed).Do(ctx)
	err = errors.WithStack(err)
	return
}

func (l *AlgodLedger) Status(ctx context.Context) (lastRound uint64, err error) {
	status, err := l.client.Status().Do(ctx)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return status.LastRound, nil
}

func (l *AlgodLedger) StatusAfterBlock(ctx context.Context, round uint64) (lastRound uint64, err error) {
	status, err := l.client.StatusAfterBlock(round).Do(ctx)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return status.LastRound, nil
}

func (l *AlgodLedger) PendingTransaction(ctx context.Context, txid string) (pending PendingTransaction, err error) {
	info, _, err := l.client.PendingTransactionInformation(txid).Do(ctx)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	return PendingTransaction{
		ConfirmedRound: info.ConfirmedRound,
		PoolError:      info.PoolError,
	}, nil
}

// IndexerAccounts finds accounts through an indexer.
type IndexerAccounts struct {
	client *indexer.Client
}

var _ AccountSearcher = &IndexerAccounts{}

func NewIndexerAccounts(address, token string) (accounts *IndexerAccounts, err error) {
	client, err := indexer.MakeClient(address, token)
	if err != nil {
		err = errors.Wrap(err, "failed to create indexer client")
		return
	}
	return &IndexerAccounts{client: client}, nil
}

func (i *IndexerAccounts) SearchAccounts(ctx context.Context, appID uint64) (accounts []AccountInfo, err error) {
	next := ""
	for {
		query := i.client.SearchAccounts().ApplicationId(appID)
		if next != "" {
			query = query.NextToken(next)
		}

		page, err2 := query.Do(ctx)
		if err2 != nil {
			err = errors.Wrapf(ErrStateRead, "account search for app %d: %v", appID, err2)
			return
		}

		for _, account := range page.Accounts {
			accounts = append(accounts, accountInfoFromModel(account))
		}

		if page.NextToken == "" || len(page.Accounts) == 0 {
			return
		}
		next = page.NextToken
	}
}

// Global state delta actions recorded by the indexer.
const (
	deltaSetBytes uint64 = 1
	deltaSetUint  uint64 = 2
	deltaDelete   uint64 = 3
)

// IndexerHistory rebuilds an application's global state as of a round by
// replaying the global state deltas the indexer holds for it.
type IndexerHistory struct {
	client *indexer.Client
}

var _ HistoricalStateSource = &IndexerHistory{}

func NewIndexerHistory(address, token string) (history *IndexerHistory, err error) {
	client, err := indexer.MakeClient(address, token)
	if err != nil {
		err = errors.Wrap(err, "failed to create indexer client")
		return
	}
	return &IndexerHistory{client: client}, nil
}

func (h *IndexerHistory) GlobalStateAt(ctx context.Context, appID, round uint64) (entries []StateEntry, err error) {
	state := map[string]StateEntry{}
	found := false

	next := ""
	for {
		query := h.client.SearchForTransactions().ApplicationId(appID).MaxRound(round)
		if next != "" {
			query = query.NextToken(next)
		}

		page, err2 := query.Do(ctx)
		if err2 != nil {
			err = errors.Wrapf(ErrStateRead, "transactions of app %d up to round %d: %v", appID, round, err2)
			return
		}

		for _, txn := range page.Transactions {
			if applyGlobalDeltas(state, appID, txn) {
				found = true
			}
		}

		if page.NextToken == "" || len(page.Transactions) == 0 {
			break
		}
		next = page.NextToken
	}

	if !found {
		err = errors.Wrapf(ErrStateNotFound, "no indexed state for app %d at or before round %d", appID, round)
		return
	}

	entries = make([]StateEntry, 0, len(state))
	for _, entry := range state {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	log.Debug().Msgf("rebuilt %d global state entries of app %d at round %d", len(entries), appID, round)

	return
}

// applyGlobalDeltas applies the changes txn and its inner transactions made
// to appID's global state. It reports whether any of them called appID.
func applyGlobalDeltas(state map[string]StateEntry, appID uint64, txn models.Transaction) (touched bool) {
	for _, inner := range txn.InnerTxns {
		if applyGlobalDeltas(state, appID, inner) {
			touched = true
		}
	}

	called := txn.ApplicationTransaction.ApplicationId
	if called == 0 {
		called = txn.CreatedApplicationIndex
	}
	if called != appID {
		return
	}

	for _, kv := range txn.GlobalStateDelta {
		switch kv.Value.Action {
		case deltaSetBytes:
			state[kv.Key] = StateEntry{Key: kv.Key, Value: StateEntryValue{Type: ValueTypeBytes, Bytes: kv.Value.Bytes}}
		case deltaSetUint:
			state[kv.Key] = StateEntry{Key: kv.Key, Value: StateEntryValue{Type: ValueTypeUint, Uint: kv.Value.Uint}}
		case deltaDelete:
			delete(state, kv.Key)
		}
	}
	return true
}

func stateEntriesFromModel(kvs []models.TealKeyValue) []StateEntry {
	entries := make([]StateEntry, 0, len(kvs))
	for _, kv := range kvs {
		entries = append(entries, StateEntry{
			Key: kv.Key,
			Value: StateEntryValue{
				Type:  ValueType(kv.Value.Type),
				Bytes: kv.Value.Bytes,
				Uint:  kv.Value.Uint,
			},
		})
	}
	return entries
}

func accountInfoFromModel(account models.Account) AccountInfo {
	info := AccountInfo{
		Address:  account.Address,
		Amount:   account.Amount,
		AuthAddr: account.AuthAddr,
	}
	for _, holding := range account.Assets {
		info.Assets = append(info.Assets, AssetHolding{
			AssetID: holding.AssetId,
			Amount:  holding.Amount,
		})
	}
	for _, local := range account.AppsLocalState {
		info.AppsLocalState = append(info.AppsLocalState, AppLocalState{
			AppID:    local.Id,
			KeyValue: stateEntriesFromModel(local.KeyValue),
		})
	}
	return info
}
