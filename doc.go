/*
Package algofi facilitates interaction with the Algofi lending protocol on
Algorand, with the intention of allowing protocol state queries and the
preparation of atomic transaction groups for signing/broadcasting.

The package reads and decodes the manager and market applications' state,
derives user positions, interest rates and unrealized rewards from it, and
assembles the ordered transaction groups the protocol contracts expect.
Signing primitives, transaction encoding and node transport are provided by
the go-algorand-sdk; this package only decides what goes into each group.
*/

package algofi
