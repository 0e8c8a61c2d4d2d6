package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	. "github.com/alexdcox/algofi-go"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type _config struct {
	Network            string        `json:"network"`
	RegistryPath       string        `json:"registrypath"`
	AlgodAddress       string        `json:"algodaddress"`
	AlgodToken         string        `json:"-"`
	IndexerAddress     string        `json:"indexeraddress"`
	IndexerToken       string        `json:"-"`
	DatabasePath       string        `json:"databasepath"`
	RpcHostPort        string        `json:"rpchostport"`
	LogLevel           string        `json:"loglevel"`
	LogFile            string        `json:"logfile"`
	FetchStaking       bool          `json:"fetchstaking"`
	VerifyBalances     bool          `json:"verifybalances"`
	ConfirmationRounds uint64        `json:"confirmationrounds"`
	SnapshotInterval   time.Duration `json:"snapshotinterval"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *_config) Load(args []string) (err error) {
	if err = godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env file")
	}
	err = nil

	rounds, err := strconv.ParseUint(envOr("ALGOFI_CONFIRMATION_ROUNDS", "10"), 10, 64)
	if err != nil {
		return errors.Wrap(err, "invalid ALGOFI_CONFIRMATION_ROUNDS")
	}

	fs := flag.NewFlagSet("algofi-rpc", flag.ContinueOnError)
	fs.StringVar(&c.Network, "network", envOr("ALGOFI_NETWORK", string(NetworkMainNet)), "Set network (mainnet|testnet)")
	fs.StringVar(&c.RegistryPath, "registrypath", envOr("ALGOFI_REGISTRY_PATH", ""), "Path to a yaml contract registry replacing the built-in one")
	fs.StringVar(&c.AlgodAddress, "algodaddress", envOr("ALGOD_ADDRESS", "http://localhost:4001"), "Set the algod endpoint")
	fs.StringVar(&c.AlgodToken, "algodtoken", envOr("ALGOD_TOKEN", ""), "Set the algod api token")
	fs.StringVar(&c.IndexerAddress, "indexeraddress", envOr("INDEXER_ADDRESS", ""), "Set the indexer endpoint, enables storage account search and indexed market history")
	fs.StringVar(&c.IndexerToken, "indexertoken", envOr("INDEXER_TOKEN", ""), "Set the indexer api token")
	fs.StringVar(&c.DatabasePath, "databasepath", envOr("ALGOFI_DATABASE_PATH", "algofi-rpc.db"), "Path to the sqlite state database, empty keeps state in memory")
	fs.StringVar(&c.RpcHostPort, "rpchostport", envOr("ALGOFI_RPC_HOST_PORT", "localhost:3002"), "Set host:port for the http/rpc listener")
	fs.StringVar(&c.LogLevel, "loglevel", envOr("ALGOFI_RPC_LOG_LEVEL", "info"), "Set the log level (trace|debug|info|warn|error|fatal)")
	fs.StringVar(&c.LogFile, "logfile", envOr("ALGOFI_RPC_LOG_FILE", ""), "Write logs to a rotating file instead of stderr")
	fs.BoolVar(&c.FetchStaking, "fetchstaking", true, "Load the staking contracts of the registry")
	fs.BoolVar(&c.VerifyBalances, "verifybalances", false, "Reject groups the sender cannot fund")
	fs.Uint64Var(&c.ConfirmationRounds, "confirmationrounds", rounds, "Rounds to wait for a submitted group to confirm")
	fs.DurationVar(&c.SnapshotInterval, "snapshotinterval", 0, "Record market state snapshots at this interval (0 disables)")

	if err = fs.Parse(args); err != nil {
		return errors.WithStack(err)
	}

	if err = Network(c.Network).Validate(); err != nil {
		return
	}

	if c.RpcHostPort == "" {
		return errors.Wrap(ErrConfiguration, "http/rpc host/port not configured")
	}

	return
}

var log = Log()

var config *_config

func main() {
	config = &_config{}

	if err := config.Load(os.Args[1:]); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}

	log.Info().Msgf("setting log level to: '%s'", logLevel)
	zerolog.SetGlobalLevel(logLevel)

	if config.LogFile != "" {
		log.Info().Msgf("logging to: '%s'", config.LogFile)
		SetLogOutput(&lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	db, err := openDatabase(config.DatabasePath)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newClient(ctx, config, db)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	httpServer, err := NewHttpRpcServer(config, db, client)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if config.SnapshotInterval > 0 {
		go snapshotLoop(ctx, client, config.SnapshotInterval)
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info().Msg("caught interrupt/terminate signal, attempting graceful shutdown...")

	cancel()

	if err = httpServer.Stop(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if closer, ok := db.(interface{ Close() error }); ok {
		if err = closer.Close(); err != nil {
			log.Error().Msgf("%+v", err)
		}
	}

	log.Info().Msg("graceful shutdown complete")
}

func openDatabase(path string) (db StateDatabase, err error) {
	if path == "" {
		log.Warn().Msg("no database path, state history is kept in memory")
		return NewInMemoryDatabase(), nil
	}
	sqlite, err := NewSqlLiteDatabase(path)
	if err != nil {
		return
	}
	return sqlite, nil
}

func newClient(ctx context.Context, config *_config, db StateDatabase) (client *Client, err error) {
	ledger, err := NewAlgodLedger(config.AlgodAddress, config.AlgodToken)
	if err != nil {
		return
	}

	options := &ClientOptions{
		Network:            Network(config.Network),
		Ledger:             ledger,
		Historical:         db,
		Recorder:           db,
		StorageCache:       db,
		FetchStaking:       config.FetchStaking,
		ConfirmationRounds: config.ConfirmationRounds,
		VerifyBalances:     config.VerifyBalances,
	}

	if config.RegistryPath != "" {
		if options.Registry, err = LoadRegistry(config.RegistryPath); err != nil {
			return
		}
	}

	if config.IndexerAddress != "" {
		if options.Accounts, err = NewIndexerAccounts(config.IndexerAddress, config.IndexerToken); err != nil {
			return
		}

		history, err2 := NewIndexerHistory(config.IndexerAddress, config.IndexerToken)
		if err2 != nil {
			return nil, err2
		}
		// Indexed history first, recorded snapshots as fallback.
		options.Historical = HistorySources{history, db}
	}

	return NewClient(ctx, options)
}

// snapshotLoop refreshes the client and records its state every interval
// until ctx ends.
func snapshotLoop(ctx context.Context, client *Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := client.Refresh(ctx); err != nil {
			log.Error().Msgf("refresh failed: %+v", err)
			continue
		}

		if _, err := client.RecordSnapshot(ctx); err != nil {
			log.Error().Msgf("snapshot failed: %+v", err)
		}
	}
}
