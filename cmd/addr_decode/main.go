package main

import (
	"flag"
	"fmt"
	"strings"

	. "github.com/alexdcox/algofi-go"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

var log = Log()

var address string

func main() {
	flag.StringVar(&address, "address", "", "The address to decode")
	flag.Parse()

	if address == "" {
		fmt.Println("usage: addr_decode --address ADDRESS")
		return
	}

	address = strings.Trim(address, " \"")

	fmt.Printf("\ndecoding address:  %s\n\n", address)

	decoded, err := types.DecodeAddress(address)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.Wrap(ErrConfiguration, err.Error()))
	}

	fmt.Printf("public key:        %x\n", []byte(decoded[:]))

	for _, net := range []Network{
		NetworkMainNet,
		NetworkTestNet,
	} {
		registry, err2 := net.Registry()
		if err2 != nil {
			log.Fatal().Msgf("%+v", err2)
		}

		fmt.Printf("\nnetwork:           %s\n", net)

		app, name := applicationFor(registry, decoded)
		if app == 0 {
			fmt.Println("application:       none")
			continue
		}
		fmt.Printf("application:       %d (%s)\n", app, name)
	}
}

// applicationFor finds the registry application whose escrow address is
// addr.
func applicationFor(registry *Registry, addr types.Address) (appID uint64, name string) {
	candidates := map[uint64]string{registry.ManagerAppID: "manager"}
	for _, symbol := range registry.Symbols {
		candidates[registry.Markets[symbol].MarketAppID] = symbol + " market"
	}
	for contract, info := range registry.StakingContracts {
		candidates[info.ManagerAppID] = contract + " staking manager"
		candidates[info.MarketAppID] = contract + " staking market"
	}

	for id, label := range candidates {
		if id != 0 && crypto.GetApplicationAddress(id) == addr {
			return id, label
		}
	}
	return
}
