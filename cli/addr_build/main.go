package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"strings"

	. "github.com/alexdcox/algofi-go"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

var log = Log()

var key string

func main() {
	flag.StringVar(&key, "key", "", "The private key as a 25 word mnemonic or a hex seed")
	flag.Parse()

	if key == "" {
		fmt.Println("usage: addr_build --key KEY")
		return
	}

	key = strings.Trim(key, " \"")

	fmt.Println("")
	fmt.Println("building address from existing key")
	fmt.Println("")

	pk, err := privateKey(key)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	var addr types.Address
	copy(addr[:], pk.Public().(ed25519.PublicKey))

	fmt.Printf("public:         %x\n", []byte(addr[:]))
	fmt.Printf("address:        %s\n", addr)
}

func privateKey(key string) (pk ed25519.PrivateKey, err error) {
	if len(strings.Fields(key)) > 1 {
		pk, err = mnemonic.ToPrivateKey(key)
		if err != nil {
			err = errors.Wrap(ErrConfiguration, err.Error())
		}
		return
	}

	seed, err := hex.DecodeString(key)
	if err != nil {
		err = errors.Wrapf(ErrConfiguration, "key is neither a mnemonic nor hex: %v", err)
		return
	}

	switch len(seed) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(seed), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(seed), nil
	}

	err = errors.Wrapf(ErrConfiguration, "invalid key length %d", len(seed))
	return
}
