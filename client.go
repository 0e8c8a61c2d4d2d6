package algofi

import (
	"context"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ClientOptions struct {
	Network  Network
	Registry *Registry
	Ledger   Ledger
	// Historical serves point in time market state. Optional.
	Historical HistoricalStateSource
	// Recorder receives snapshots from RecordSnapshot. Optional.
	Recorder StateRecorder
	// Accounts backs StorageAccounts. Optional.
	Accounts           AccountSearcher
	UserAddress        string
	FetchStaking       bool
	StorageCache       StorageAddressStore
	Clock              func() time.Time
	Log                *zerolog.Logger
	ConfirmationRounds uint64
	// VerifyBalances rejects value moving groups the sender cannot fund.
	VerifyBalances bool
}

func (o *ClientOptions) setDefaults() (err error) {
	if o.Network == "" {
		o.Network = defaultClientOptions.Network
	}

	if o.Registry == nil {
		if o.Registry, err = o.Network.Registry(); err != nil {
			return
		}
	}

	if o.StorageCache == nil {
		o.StorageCache = NewInMemoryStorageAddressStore()
	}

	if o.Clock == nil {
		o.Clock = defaultClientOptions.Clock
	}

	if o.Log == nil {
		o.Log = Log()
	}

	if o.ConfirmationRounds == 0 {
		o.ConfirmationRounds = defaultClientOptions.ConfirmationRounds
	}

	return
}

var defaultClientOptions = &ClientOptions{
	Network:            NetworkMainNet,
	Clock:              time.Now,
	ConfirmationRounds: 10,
}

type Client struct {
	options          *ClientOptions
	registry         *Registry
	ledger           Ledger
	log              *zerolog.Logger
	manager          *Manager
	markets          map[string]*Market
	stakingContracts map[string]*StakingContract
}

// NewClient loads the manager and every active market, and the staking
// contracts when asked to.
func NewClient(ctx context.Context, options *ClientOptions) (client *Client, err error) {
	if options == nil {
		options = &ClientOptions{}
	}
	if err = options.setDefaults(); err != nil {
		return
	}

	if options.Ledger == nil {
		err = errors.Wrap(ErrConfiguration, "client needs a ledger")
		return
	}

	if err = options.Registry.Validate(); err != nil {
		return
	}

	client = &Client{
		options:          options,
		registry:         options.Registry,
		ledger:           options.Ledger,
		log:              options.Log,
		markets:          make(map[string]*Market),
		stakingContracts: make(map[string]*StakingContract),
	}

	for _, symbol := range client.registry.ActiveSymbols() {
		info := client.registry.Markets[symbol]
		market, err2 := NewMarket(ctx, client.ledger, MarketOptions{
			AppID:      info.MarketAppID,
			Decimals:   info.Decimals,
			Historical: options.Historical,
		})
		if err2 != nil {
			err = errors.WithMessagef(err2, "market '%s'", symbol)
			return nil, err
		}
		client.markets[symbol] = market
	}

	if options.FetchStaking {
		for name, info := range client.registry.StakingContracts {
			contract, err2 := NewStakingContract(ctx, client.ledger, name, info, options.StorageCache, options.Historical)
			if err2 != nil {
				return nil, err2
			}
			client.stakingContracts[name] = contract
		}
	}

	client.manager, err = NewManager(ctx, client.ledger, ManagerOptions{
		AppID:            client.registry.ManagerAppID,
		StorageAddresses: options.StorageCache,
	})
	if err != nil {
		return nil, err
	}

	client.log.Info().Msgf("loaded %d markets and %d staking contracts on %s",
		len(client.markets), len(client.stakingContracts), client.registry.Network)

	return
}

func (c *Client) Registry() *Registry {
	return c.registry
}

func (c *Client) Ledger() Ledger {
	return c.ledger
}

func (c *Client) Manager() *Manager {
	return c.manager
}

func (c *Client) Market(symbol string) (market *Market, err error) {
	market, ok := c.markets[symbol]
	if !ok {
		err = errors.Wrapf(ErrUnsupportedAsset, "'%s'", symbol)
	}
	return
}

// ActiveMarkets returns the live markets in registry order.
func (c *Client) ActiveMarkets() (markets []*Market) {
	for _, symbol := range c.registry.ActiveSymbols() {
		markets = append(markets, c.markets[symbol])
	}
	return
}

func (c *Client) Asset(symbol string) (asset *Asset, err error) {
	market, err := c.Market(symbol)
	if err != nil {
		return
	}
	if asset = market.Asset(); asset == nil {
		err = errors.Wrapf(ErrUnsupportedAsset, "market '%s' has no asset", symbol)
	}
	return
}

func (c *Client) StakingContract(name string) (contract *StakingContract, err error) {
	contract, ok := c.stakingContracts[name]
	if !ok {
		err = errors.Wrapf(ErrUnsupportedAsset, "no staking contract '%s'", name)
	}
	return
}

func (c *Client) StakingContracts() map[string]*StakingContract {
	return c.stakingContracts
}

// Refresh re-reads the manager, every active market and staking contract.
// Nothing is replaced unless every read succeeds.
func (c *Client) Refresh(ctx context.Context) (err error) {
	program, err := c.manager.load(ctx)
	if err != nil {
		return
	}

	markets := c.ActiveMarkets()
	states := make([]*MarketState, len(markets))
	for i, market := range markets {
		if states[i], err = market.load(ctx); err != nil {
			return
		}
	}

	applies := make([]func(), 0, len(c.stakingContracts))
	for _, contract := range c.stakingContracts {
		apply, err2 := contract.load(ctx)
		if err2 != nil {
			return err2
		}
		applies = append(applies, apply)
	}

	c.manager.set(program)
	for i, market := range markets {
		market.set(states[i])
	}
	for _, apply := range applies {
		apply()
	}
	return
}

func (c *Client) address(address string) (string, error) {
	if address == "" {
		address = c.options.UserAddress
	}
	if address == "" {
		return "", errors.Wrap(ErrConfiguration, "no address given and no user address configured")
	}
	return address, nil
}

// DefaultParams are the node's suggested params at a flat 1000 µAlgo fee.
func (c *Client) DefaultParams(ctx context.Context) (params types.SuggestedParams, err error) {
	params, err = c.ledger.SuggestedParams(ctx)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "suggested params: %v", err)
		return
	}
	params.FlatFee = true
	params.Fee = types.MicroAlgos(DefaultFlatFee)
	return
}

func (c *Client) UserInfo(ctx context.Context, address string) (info AccountInfo, err error) {
	if address, err = c.address(address); err != nil {
		return
	}
	info, err = c.ledger.AccountInformation(ctx, address)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "account %s: %v", address, err)
	}
	return
}

func (c *Client) IsOptedIntoApp(ctx context.Context, appID uint64, address string) (bool, error) {
	info, err := c.UserInfo(ctx, address)
	if err != nil {
		return false, err
	}
	return info.IsOptedIntoApp(appID), nil
}

func (c *Client) IsOptedIntoAsset(ctx context.Context, assetID uint64, address string) (bool, error) {
	info, err := c.UserInfo(ctx, address)
	if err != nil {
		return false, err
	}
	return info.IsOptedIntoAsset(assetID), nil
}

func (c *Client) UserBalances(ctx context.Context, address string) (map[uint64]uint64, error) {
	info, err := c.UserInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	return info.Balances(), nil
}

func (c *Client) UserBalance(ctx context.Context, assetID uint64, address string) (uint64, error) {
	balances, err := c.UserBalances(ctx, address)
	if err != nil {
		return 0, err
	}
	return balances[assetID], nil
}

type UserState struct {
	Address        string                  `json:"address"`
	StorageAddress string                  `json:"storageAddress"`
	Manager        ManagerStorageState     `json:"manager"`
	Markets        map[string]UserPosition `json:"markets"`
}

// StorageState derives the manager totals and every active market position
// of a storage account.
func (c *Client) StorageState(ctx context.Context, storageAddress string) (state UserState, err error) {
	state = UserState{
		StorageAddress: storageAddress,
		Markets:        make(map[string]UserPosition),
	}

	if state.Manager, err = c.manager.StorageState(ctx, storageAddress); err != nil {
		return
	}

	for _, symbol := range c.registry.ActiveSymbols() {
		var position UserPosition
		if position, err = c.markets[symbol].UserPosition(ctx, storageAddress); err != nil {
			return
		}
		state.Markets[symbol] = position
	}

	return
}

func (c *Client) UserState(ctx context.Context, address string) (state UserState, err error) {
	if address, err = c.address(address); err != nil {
		return
	}

	storage, err := c.manager.StorageAddress(ctx, address)
	if err != nil {
		return
	}

	if state, err = c.StorageState(ctx, storage); err != nil {
		return
	}
	state.Address = address
	return
}

// UserUnrealizedRewards projects the user's protocol rewards to now.
func (c *Client) UserUnrealizedRewards(ctx context.Context, address string) (result RewardsResult, err error) {
	if address, err = c.address(address); err != nil {
		return
	}
	return c.manager.UserUnrealizedRewards(ctx, address, c.ActiveMarkets(), c.options.Clock())
}

func (c *Client) UserStakingContractState(ctx context.Context, name, address string) (state StakingStorageState, err error) {
	contract, err := c.StakingContract(name)
	if err != nil {
		return
	}
	if address, err = c.address(address); err != nil {
		return
	}
	return contract.UserState(ctx, address, c.options.Clock())
}

// RawPrices are the oracle readings cached at the last refresh.
func (c *Client) RawPrices() map[string]uint64 {
	prices := make(map[string]uint64)
	for _, symbol := range c.registry.ActiveSymbols() {
		prices[symbol] = c.markets[symbol].State().AssetRawPrice
	}
	return prices
}

func (c *Client) Prices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, symbol := range c.registry.ActiveSymbols() {
		prices[symbol] = c.markets[symbol].State().AssetPrice
	}
	return prices
}

func (c *Client) ActiveAssetIDs() (ids []uint64) {
	for _, market := range c.ActiveMarkets() {
		if asset := market.Asset(); asset != nil {
			ids = append(ids, asset.UnderlyingAssetID)
		}
	}
	return
}

func (c *Client) ActiveBankAssetIDs() (ids []uint64) {
	for _, market := range c.ActiveMarkets() {
		if asset := market.Asset(); asset != nil {
			ids = append(ids, asset.BankAssetID)
		}
	}
	return
}

func (c *Client) ActiveMarketAppIDs() (ids []uint64) {
	for _, market := range c.ActiveMarkets() {
		ids = append(ids, market.AppID())
	}
	return
}

func (c *Client) ActiveOracleAppIDs() (ids []uint64) {
	for _, market := range c.ActiveMarkets() {
		if asset := market.Asset(); asset != nil && asset.Oracle != nil {
			ids = append(ids, asset.Oracle.AppID)
		}
	}
	return
}

func (c *Client) ActiveMarketAddresses() (addresses []string) {
	for _, market := range c.ActiveMarkets() {
		addresses = append(addresses, market.Address())
	}
	return
}

func (c *Client) MaxAtomicOptInMarketAppIDs() []uint64 {
	return c.registry.MarketAppIDs(c.registry.MaxAtomicOptInSymbols())
}

// StorageAccounts lists the accounts opted into the first active market, or
// into a staking contract's manager when name is set.
func (c *Client) StorageAccounts(ctx context.Context, stakingContract string) (accounts []AccountInfo, err error) {
	if c.options.Accounts == nil {
		err = errors.Wrap(ErrUnsupportedOperation, "no account searcher configured")
		return
	}

	markets := c.ActiveMarkets()
	if len(markets) == 0 {
		err = errors.Wrap(ErrUnsupportedOperation, "no active markets to search")
		return
	}

	appID := markets[0].AppID()
	if stakingContract != "" {
		contract, err2 := c.StakingContract(stakingContract)
		if err2 != nil {
			return nil, err2
		}
		appID = contract.Manager().AppID()
	}

	return c.options.Accounts.SearchAccounts(ctx, appID)
}
