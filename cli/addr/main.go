package main

import (
	"fmt"

	. "github.com/alexdcox/algofi-go"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/pkg/errors"
)

var log = Log()

// Generates an account suitable as a fresh storage account. Once opted into
// a manager it is rekeyed to the manager address printed below.
func main() {
	account := crypto.GenerateAccount()

	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		log.Fatal().Msgf("failed to encode mnemonic: %+v", errors.WithStack(err))
	}

	fmt.Println("")
	fmt.Println("Generated new algorand account:")
	fmt.Println("")
	fmt.Printf("key type:       ed25519\n")
	fmt.Printf("public:         %x\n", account.PublicKey)
	fmt.Printf("address:        %s\n", account.Address)
	fmt.Printf("mnemonic:       %s\n", phrase)

	for _, net := range []Network{
		NetworkMainNet,
		NetworkTestNet,
	} {
		registry, err2 := net.Registry()
		if err2 != nil {
			log.Fatal().Msgf("%+v", err2)
		}

		fmt.Println("")
		fmt.Printf("network:           %s\n", net)
		fmt.Printf("manager app:       %d\n", registry.ManagerAppID)
		fmt.Printf("rekeyed to:        %s\n", crypto.GetApplicationAddress(registry.ManagerAppID))
	}
}
