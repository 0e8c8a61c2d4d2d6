package algofi

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

var StandardCborDecoder, _ = cbor.DecOptions{
	UTF8: cbor.UTF8DecodeInvalid,
}.DecMode()

var canonicalCborEncoder, _ = cbor.CanonicalEncOptions().EncMode()

// EncodeStateEntries is the stored form of a global state snapshot.
func EncodeStateEntries(entries []StateEntry) (b []byte, err error) {
	if entries == nil {
		entries = []StateEntry{}
	}
	b, err = canonicalCborEncoder.Marshal(entries)
	err = errors.WithStack(err)
	return
}

func DecodeStateEntries(b []byte) (entries []StateEntry, err error) {
	if err = StandardCborDecoder.Unmarshal(b, &entries); err != nil {
		err = errors.Wrap(err, "failed to decode state snapshot")
	}
	return
}
