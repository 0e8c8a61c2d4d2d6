package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	. "github.com/alexdcox/algofi-go"
	"github.com/alexdcox/algofi-go/rpcclient"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type _config struct {
	RpcHostPort      string
	Operation        string
	Symbol           string
	Amount           uint64
	CollateralSymbol string
	TargetStorage    string
	StorageAddress   string
	AssetID          uint64
	Receiver         string
	Contract         string
	Round            uint64
	Mnemonic         string
	StorageMnemonic  string
	Wait             bool
	DryRun           bool
	Timeout          time.Duration
	LogLevel         string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *_config) Load() (err error) {
	if err = godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env file")
	}
	err = nil

	flag.StringVar(&c.RpcHostPort, "rpc", envOr("ALGOFI_RPC_URL", "http://localhost:3002"), "Base url of the algofi rpc service")
	flag.StringVar(&c.Operation, "op", "status", "Query (status|markets|market|history|user|rewards|staking|snapshot) or transaction operation (mint|borrow|...)")
	flag.StringVar(&c.Symbol, "symbol", "", "Market symbol")
	flag.Uint64Var(&c.Amount, "amount", 0, "Amount in base units")
	flag.StringVar(&c.CollateralSymbol, "collateral", "", "Collateral market symbol for liquidations")
	flag.StringVar(&c.TargetStorage, "target", "", "Storage account to liquidate")
	flag.StringVar(&c.StorageAddress, "storage", "", "Fresh storage account for manager and staking opt-ins")
	flag.Uint64Var(&c.AssetID, "asset", 0, "Asset id for asset opt-ins")
	flag.StringVar(&c.Receiver, "receiver", "", "Receiver for payments")
	flag.StringVar(&c.Contract, "contract", "", "Staking contract name")
	flag.Uint64Var(&c.Round, "round", 0, "Round for market history")
	flag.StringVar(&c.Mnemonic, "mnemonic", envOr("ALGOFI_MNEMONIC", ""), "Mnemonic of the sending account")
	flag.StringVar(&c.StorageMnemonic, "storagemnemonic", envOr("ALGOFI_STORAGE_MNEMONIC", ""), "Mnemonic of the storage account, needed by opt-ins")
	flag.BoolVar(&c.Wait, "wait", true, "Wait for the group to confirm")
	flag.BoolVar(&c.DryRun, "dryrun", false, "Print the prepared group without signing or submitting")
	flag.DurationVar(&c.Timeout, "timeout", time.Minute, "Overall timeout")
	flag.StringVar(&c.LogLevel, "loglevel", envOr("ALGOFI_LOG_LEVEL", "warn"), "Set the log level")
	flag.Parse()

	return
}

var log = Log()

var config *_config

func main() {
	config = &_config{}
	if err := config.Load(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}
	zerolog.SetGlobalLevel(logLevel)

	client, err := rpcclient.NewRpcClient(config.RpcHostPort)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	out, err := run(ctx, client, config)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	j, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}
	fmt.Println(string(j))
}

func run(ctx context.Context, client *rpcclient.RpcClient, config *_config) (out any, err error) {
	switch config.Operation {
	case "status":
		return client.GetStatus(ctx)
	case "markets":
		return client.GetMarkets(ctx)
	case "market":
		return client.GetMarket(ctx, config.Symbol)
	case "history":
		return client.GetMarketAt(ctx, config.Symbol, config.Round)
	case "snapshot":
		return client.Snapshot(ctx)
	}

	keys, address, err := loadKeys(config)
	if err != nil {
		return
	}

	switch config.Operation {
	case "user":
		return client.GetUserState(ctx, address)
	case "rewards":
		return client.GetRewards(ctx, address)
	case "staking":
		return client.GetStakingState(ctx, config.Contract, address)
	}

	prepared, err := client.Prepare(ctx, rpcclient.Op(config.Operation), &rpcclient.PrepareIn{
		Address:          address,
		Symbol:           config.Symbol,
		Amount:           config.Amount,
		CollateralSymbol: config.CollateralSymbol,
		TargetStorage:    config.TargetStorage,
		StorageAddress:   config.StorageAddress,
		AssetID:          config.AssetID,
		Receiver:         config.Receiver,
		Contract:         config.Contract,
	})
	if err != nil {
		return
	}

	group, err := prepared.Group()
	if err != nil {
		return
	}
	log.Info().Msgf("prepared %s group %s of %d transactions", config.Operation, prepared.ID, group.Len())

	if config.DryRun {
		return group.Transactions, nil
	}

	in, err := prepared.Sign(keys...)
	if err != nil {
		return
	}
	in.Wait = config.Wait

	return client.Submit(ctx, in)
}

// loadKeys turns the configured mnemonics into signing keys. The first key
// is the sender's.
func loadKeys(config *_config) (keys []ed25519.PrivateKey, address string, err error) {
	if config.Mnemonic == "" {
		err = errors.Wrap(ErrConfiguration, "a mnemonic is required for this operation")
		return
	}

	for _, phrase := range []string{config.Mnemonic, config.StorageMnemonic} {
		if phrase == "" {
			continue
		}
		key, err2 := mnemonic.ToPrivateKey(phrase)
		if err2 != nil {
			err = errors.Wrapf(ErrConfiguration, "invalid mnemonic: %v", err2)
			return
		}
		keys = append(keys, key)
	}

	account, err := crypto.AccountFromPrivateKey(keys[0])
	if err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid key: %v", err)
		return
	}
	return keys, account.Address.String(), nil
}
