package algofi

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

func testContext() context.Context {
	return context.Background()
}

func uintEntry(key string, v uint64) StateEntry {
	return StateEntry{
		Key:   base64.StdEncoding.EncodeToString([]byte(key)),
		Value: StateEntryValue{Type: ValueTypeUint, Uint: v},
	}
}

func bytesEntry(key string, b []byte) StateEntry {
	return StateEntry{
		Key:   base64.StdEncoding.EncodeToString([]byte(key)),
		Value: StateEntryValue{Type: ValueTypeBytes, Bytes: base64.StdEncoding.EncodeToString(b)},
	}
}

// fakeLedger is an in-memory node for tests.
type fakeLedger struct {
	mu       sync.Mutex
	global   map[uint64][]StateEntry
	accounts map[string]AccountInfo
	round    uint64
	pending  map[string][]PendingTransaction
	sent     [][]byte
	sendErr  error
	readErr  error
	params   types.SuggestedParams
}

var _ Ledger = &fakeLedger{}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		global:   make(map[uint64][]StateEntry),
		accounts: make(map[string]AccountInfo),
		pending:  make(map[string][]PendingTransaction),
		round:    1000,
		params:   types.SuggestedParams{
			Fee:             types.MicroAlgos(0),
			GenesisID:       "testnet-v1.0",
			GenesisHash:     make([]byte, 32),
			FirstRoundValid: 1000,
			LastRoundValid:  2000,
			MinFee:          1000,
		},
	}
}

func (f *fakeLedger) setGlobal(appID uint64, entries ...StateEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global[appID] = entries
}

func (f *fakeLedger) setAccount(info AccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[info.Address] = info
}

func (f *fakeLedger) ApplicationGlobalState(_ context.Context, appID uint64) ([]StateEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	entries, ok := f.global[appID]
	if !ok {
		return nil, errors.Errorf("application %d does not exist", appID)
	}
	return entries, nil
}

func (f *fakeLedger) AccountInformation(_ context.Context, address string) (AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return AccountInfo{}, f.readErr
	}
	info, ok := f.accounts[address]
	if !ok {
		return AccountInfo{Address: address}, nil
	}
	return info, nil
}

func (f *fakeLedger) SuggestedParams(context.Context) (types.SuggestedParams, error) {
	return f.params, nil
}

func (f *fakeLedger) SendRawTransaction(_ context.Context, signed []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, signed)
	return "TXID", nil
}

func (f *fakeLedger) Status(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.round, nil
}

func (f *fakeLedger) StatusAfterBlock(_ context.Context, round uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if round > f.round {
		f.round = round
	}
	return f.round, nil
}

// PendingTransaction replays the queued responses for txid, repeating the
// last one.
func (f *fakeLedger) PendingTransaction(_ context.Context, txid string) (PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.pending[txid]
	if len(queue) == 0 {
		return PendingTransaction{}, nil
	}
	next := queue[0]
	if len(queue) > 1 {
		f.pending[txid] = queue[1:]
	}
	return next, nil
}

type testAccount struct {
	address string
	key     ed25519.PrivateKey
}

func newTestAccount() testAccount {
	account := crypto.GenerateAccount()
	return testAccount{address: account.Address.String(), key: account.PrivateKey}
}

const (
	testManagerAppID   uint64 = 100
	testAlgoMarketID   uint64 = 201
	testUSDCMarketID   uint64 = 202
	testAlgoBankID     uint64 = 301
	testUSDCAssetID    uint64 = 31566704
	testUSDCBankID     uint64 = 302
	testOracleAppID    uint64 = 401
	testRewardsAssetID uint64 = 501
)

func testRegistry() *Registry {
	return &Registry{
		Network:      NetworkTestNet,
		ManagerAppID: testManagerAppID,
		Symbols:      []string{"ALGO", "USDC"},
		Markets: map[string]MarketInfo{
			"ALGO": {MarketCounter: 1, MarketAppID: testAlgoMarketID, BankAssetID: testAlgoBankID, UnderlyingAssetID: NativeAssetID, Decimals: 6},
			"USDC": {MarketCounter: 2, MarketAppID: testUSDCMarketID, BankAssetID: testUSDCBankID, UnderlyingAssetID: testUSDCAssetID, Decimals: 6},
		},
		SupportedMarketCount: 2,
		MaxAtomicOptIn:       2,
		MaxMarketCount:       2,
	}
}

// testMarketEntries is a market with an oracle priced at raw / 1000
// dollars for a 6 decimal asset.
func testMarketEntries(counter, assetID, bankID uint64, priceField string) []StateEntry {
	return []StateEntry{
		uintEntry(keyManagerMarketCounter, counter),
		uintEntry(keyAssetID, assetID),
		uintEntry(keyBankAssetID, bankID),
		uintEntry(keyOracleAppID, testOracleAppID),
		bytesEntry(keyOraclePriceField, []byte(priceField)),
		uintEntry(keyOraclePriceScaleFactor, 1_000_000),
		uintEntry(keyCollateralFactor, 800),
		uintEntry(keyActiveCollateral, 1_000_000),
		uintEntry(keyBankToUnderlyingExchange, 1_000_000_000),
		uintEntry(keyUnderlyingBorrowed, 250),
		uintEntry(keyOutstandingBorrowShares, 250),
		uintEntry(keyUnderlyingCash, 700),
		uintEntry(keyUnderlyingReserves, 50),
		uintEntry(keyTotalBorrowInterestRate, 80_000_000),
	}
}

// newTestProtocol populates a ledger with a manager, two markets and an
// oracle: ALGO at $1.5 and USDC at $1.
func newTestProtocol() *fakeLedger {
	ledger := newFakeLedger()
	ledger.setGlobal(testManagerAppID,
		uintEntry(keyRewardsProgramNumber, 2),
		uintEntry(keyRewardsAssetID, testRewardsAssetID),
		uintEntry(keyRewardsSecondaryAssetID, NativeAssetID),
	)
	ledger.setGlobal(testAlgoMarketID, testMarketEntries(1, NativeAssetID, testAlgoBankID, "algo")...)
	ledger.setGlobal(testUSDCMarketID, testMarketEntries(2, testUSDCAssetID, testUSDCBankID, "usdc")...)
	ledger.setGlobal(testOracleAppID,
		uintEntry("algo", 1500),
		uintEntry("usdc", 1000),
	)
	return ledger
}

// bindStorage opts user and storage into the manager with the binding.
func (f *fakeLedger) bindStorage(user, storage testAccount, userAmount uint64, assets ...AssetHolding) {
	addr, _ := types.DecodeAddress(storage.address)
	f.setAccount(AccountInfo{
		Address: user.address,
		Amount:  userAmount,
		Assets:  assets,
		AppsLocalState: []AppLocalState{{
			AppID:    testManagerAppID,
			KeyValue: []StateEntry{bytesEntry(keyUserStorageAddress, addr[:])},
		}},
	})
}
