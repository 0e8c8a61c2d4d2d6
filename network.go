package algofi

import "github.com/pkg/errors"

const (
	NetworkMainNet Network = "mainnet"
	NetworkTestNet Network = "testnet"
)

type Network string

func (n Network) Valid() bool {
	return n == NetworkMainNet || n == NetworkTestNet
}

func (n Network) Validate() (err error) {
	if !n.Valid() {
		err = errors.Wrapf(ErrInvalidNetwork, "'%s'", n)
	}
	return
}

// Registry returns a copy of the built-in contract registry for the network.
func (n Network) Registry() (registry *Registry, err error) {
	if err = n.Validate(); err != nil {
		return
	}

	switch n {
	case NetworkMainNet:
		registry = mainNetRegistry()
	case NetworkTestNet:
		registry = testNetRegistry()
	}

	return
}

var orderedSymbols = []string{
	"ALGO", "USDC", "goBTC", "goETH", "STBL", "vALGO",
	"SEVN", "EGHT", "NINE", "TENN", "ELVN", "TWLV", "TRTN", "FRTN", "FVTN", "SXTN",
}

func mainNetRegistry() *Registry {
	markets := map[string]MarketInfo{
		"ALGO":  {MarketAppID: 465814065, BankAssetID: 465818547, UnderlyingAssetID: 1, OracleAppID: 531724540, OraclePriceField: "latest_twap_price", Decimals: 6},
		"USDC":  {MarketAppID: 465814103, BankAssetID: 465818553, UnderlyingAssetID: 31566704, OracleAppID: 451327550, OraclePriceField: "price", Decimals: 6},
		"goBTC": {MarketAppID: 465814149, BankAssetID: 465818554, UnderlyingAssetID: 386192725, OracleAppID: 531725044, OraclePriceField: "latest_twap_price", Decimals: 8},
		"goETH": {MarketAppID: 465814222, BankAssetID: 465818555, UnderlyingAssetID: 386195940, OracleAppID: 531725449, OraclePriceField: "latest_twap_price", Decimals: 8},
		"STBL":  {MarketAppID: 465814278, BankAssetID: 465818563, UnderlyingAssetID: 465865291, OracleAppID: 451327550, OraclePriceField: "price", Decimals: 6},
		"vALGO": {MarketAppID: 465814318, BankAssetID: 680408335, UnderlyingAssetID: 1, OracleAppID: 531724540, OraclePriceField: "latest_twap_price", Decimals: 6},
		"SEVN":  {MarketAppID: 465814371},
		"EGHT":  {MarketAppID: 465814435},
		"NINE":  {MarketAppID: 465814472},
		"TENN":  {MarketAppID: 465814527},
		"ELVN":  {MarketAppID: 465814582},
		"TWLV":  {MarketAppID: 465814620},
		"TRTN":  {MarketAppID: 465814664},
		"FRTN":  {MarketAppID: 465814701},
		"FVTN":  {MarketAppID: 465814744},
		"SXTN":  {MarketAppID: 465814807},
	}

	return &Registry{
		Network:              NetworkMainNet,
		ManagerAppID:         465818260,
		Symbols:              append([]string{}, orderedSymbols...),
		Markets:              withMarketCounters(markets),
		SupportedMarketCount: 6,
		MaxAtomicOptIn:       13,
		MaxMarketCount:       16,
		InitRound:            18011265,
		StakingContracts: map[string]StakingContractInfo{
			"STBL":            {MarketAppID: 482608867, ManagerAppID: 482625868, BankAssetID: 482653551, UnderlyingAssetID: 465865291, Decimals: 6},
			"STBL-USDC-LP-V2": {MarketAppID: 553866305, ManagerAppID: 553869413, BankAssetID: 553898734, UnderlyingAssetID: 552737686, Decimals: 6},
		},
	}
}

func testNetRegistry() *Registry {
	markets := map[string]MarketInfo{
		"ALGO":  {MarketAppID: 51422140, BankAssetID: 51422936, UnderlyingAssetID: 1, Decimals: 6},
		"USDC":  {MarketAppID: 51422142, BankAssetID: 51422937, UnderlyingAssetID: 51435943, Decimals: 6},
		"goBTC": {MarketAppID: 51422146, BankAssetID: 51422938, UnderlyingAssetID: 51436723, Decimals: 8},
		"goETH": {MarketAppID: 51422149, BankAssetID: 51422939, UnderlyingAssetID: 51437163, Decimals: 8},
		"STBL":  {MarketAppID: 51422151, BankAssetID: 51422940, UnderlyingAssetID: 51437956, Decimals: 6},
		"vALGO": {MarketAppID: 465814318, BankAssetID: 680408335, UnderlyingAssetID: 1, Decimals: 6},
		"SEVN":  {MarketAppID: 51422155},
		"EGHT":  {MarketAppID: 51422158},
		"NINE":  {MarketAppID: 51422161},
		"TENN":  {MarketAppID: 51422164},
		"ELVN":  {MarketAppID: 51422170},
		"TWLV":  {MarketAppID: 51422172},
		"TRTN":  {MarketAppID: 51422175},
		"FRTN":  {MarketAppID: 51422177},
		"FVTN":  {MarketAppID: 51422179},
		"SXTN":  {MarketAppID: 51422186},
	}

	return &Registry{
		Network:              NetworkTestNet,
		ManagerAppID:         51422788,
		Symbols:              append([]string{}, orderedSymbols...),
		Markets:              withMarketCounters(markets),
		SupportedMarketCount: 6,
		MaxAtomicOptIn:       13,
		MaxMarketCount:       16,
		InitRound:            18484796,
		StakingContracts: map[string]StakingContractInfo{
			"STBL": {MarketAppID: 53570045, ManagerAppID: 53570235, BankAssetID: 53593283, UnderlyingAssetID: 51437956, Decimals: 6},
		},
	}
}

func withMarketCounters(markets map[string]MarketInfo) map[string]MarketInfo {
	for i, symbol := range orderedSymbols {
		info := markets[symbol]
		info.MarketCounter = uint64(i + 1)
		markets[symbol] = info
	}
	return markets
}
