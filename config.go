package algofi

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Registry is the static description of one protocol deployment: which
// markets exist, in what order, and how many of them are live.
type Registry struct {
	Network              Network                        `yaml:"network" json:"network"`
	ManagerAppID         uint64                         `yaml:"managerAppId" json:"managerAppId"`
	Symbols              []string                       `yaml:"symbols" json:"symbols"`
	Markets              map[string]MarketInfo          `yaml:"markets" json:"markets"`
	SupportedMarketCount int                            `yaml:"supportedMarketCount" json:"supportedMarketCount"`
	MaxAtomicOptIn       int                            `yaml:"maxAtomicOptInMarketCount" json:"maxAtomicOptInMarketCount"`
	MaxMarketCount       int                            `yaml:"maxMarketCount" json:"maxMarketCount"`
	InitRound            uint64                         `yaml:"initRound" json:"initRound"`
	StakingContracts     map[string]StakingContractInfo `yaml:"stakingContracts" json:"stakingContracts"`
}

type MarketInfo struct {
	MarketCounter     uint64 `yaml:"marketCounter,omitempty" json:"marketCounter,omitempty"`
	MarketAppID       uint64 `yaml:"marketAppId" json:"marketAppId"`
	BankAssetID       uint64 `yaml:"bankAssetId,omitempty" json:"bankAssetId,omitempty"`
	UnderlyingAssetID uint64 `yaml:"underlyingAssetId,omitempty" json:"underlyingAssetId,omitempty"`
	OracleAppID       uint64 `yaml:"oracleAppId,omitempty" json:"oracleAppId,omitempty"`
	OraclePriceField  string `yaml:"oracleFieldName,omitempty" json:"oracleFieldName,omitempty"`
	Decimals          uint64 `yaml:"decimals,omitempty" json:"decimals,omitempty"`
}

type StakingContractInfo struct {
	MarketAppID       uint64 `yaml:"marketAppId" json:"marketAppId"`
	ManagerAppID      uint64 `yaml:"managerAppId" json:"managerAppId"`
	BankAssetID       uint64 `yaml:"bankAssetId" json:"bankAssetId"`
	UnderlyingAssetID uint64 `yaml:"underlyingAssetId" json:"underlyingAssetId"`
	Decimals          uint64 `yaml:"decimals,omitempty" json:"decimals,omitempty"`
}

// LoadRegistry reads a YAML registry file.
func LoadRegistry(path string) (registry *Registry, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrap(err, "unable to read registry file")
		return
	}

	registry = &Registry{}
	if err = yaml.Unmarshal(data, registry); err != nil {
		err = errors.Wrap(err, "unable to unmarshal registry file")
		return
	}

	err = registry.Validate()
	return
}

func (r *Registry) Validate() (err error) {
	if err = r.Network.Validate(); err != nil {
		return
	}
	if r.ManagerAppID == 0 {
		return errors.Wrap(ErrConfiguration, "registry has no manager app id")
	}
	if r.SupportedMarketCount < 1 || r.MaxAtomicOptIn < 0 || r.MaxMarketCount < 0 {
		return errors.Wrapf(ErrConfiguration,
			"market counts must be positive: supported %d, atomic opt-in %d, max %d",
			r.SupportedMarketCount, r.MaxAtomicOptIn, r.MaxMarketCount)
	}
	if r.SupportedMarketCount > r.MaxAtomicOptIn || r.MaxAtomicOptIn > r.MaxMarketCount || r.MaxMarketCount > len(r.Symbols) {
		return errors.Wrapf(ErrConfiguration,
			"market counts out of order: supported %d, atomic opt-in %d, max %d, symbols %d",
			r.SupportedMarketCount, r.MaxAtomicOptIn, r.MaxMarketCount, len(r.Symbols))
	}
	for i, symbol := range r.Symbols[:r.MaxMarketCount] {
		info, ok := r.Markets[symbol]
		if !ok || info.MarketAppID == 0 {
			return errors.Wrapf(ErrConfiguration, "no market app id for '%s'", symbol)
		}
		if i < r.SupportedMarketCount && info.Decimals == 0 {
			return errors.Wrapf(ErrConfiguration, "no decimals for active market '%s'", symbol)
		}
	}
	return
}

// ActiveSymbols are the markets the protocol currently supports.
func (r *Registry) ActiveSymbols() []string {
	return r.Symbols[:r.SupportedMarketCount]
}

// MaxAtomicOptInSymbols are the markets a single opt-in group can cover.
func (r *Registry) MaxAtomicOptInSymbols() []string {
	return r.Symbols[:r.MaxAtomicOptIn]
}

func (r *Registry) MaxSymbols() []string {
	return r.Symbols[:r.MaxMarketCount]
}

func (r *Registry) Market(symbol string) (info MarketInfo, err error) {
	info, ok := r.Markets[symbol]
	if !ok {
		err = errors.Wrapf(ErrUnsupportedAsset, "'%s'", symbol)
	}
	return
}

func (r *Registry) MarketAppIDs(symbols []string) (ids []uint64) {
	for _, symbol := range symbols {
		ids = append(ids, r.Markets[symbol].MarketAppID)
	}
	return
}

func (r *Registry) StakingContract(name string) (info StakingContractInfo, err error) {
	info, ok := r.StakingContracts[name]
	if !ok {
		err = errors.Wrapf(ErrUnsupportedAsset, "no staking contract '%s'", name)
	}
	return
}
