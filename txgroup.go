package algofi

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

// TransactionGroup is an ordered atomic group bound by one group id, with a
// slot per member for its signed bytes.
type TransactionGroup struct {
	Transactions []types.Transaction
	Signed       [][]byte
}

// NewTransactionGroup assigns a shared group id to txns.
func NewTransactionGroup(txns []types.Transaction) (group *TransactionGroup, err error) {
	if len(txns) == 0 {
		err = errors.Wrap(ErrConfiguration, "empty transaction group")
		return
	}

	ungrouped := make([]types.Transaction, len(txns))
	for i, txn := range txns {
		txn.Group = types.Digest{}
		ungrouped[i] = txn
	}

	grouped, err := transaction.AssignGroupID(ungrouped, "")
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	group = &TransactionGroup{
		Transactions: grouped,
		Signed:       make([][]byte, len(grouped)),
	}

	log.Debug().Msgf("built transaction group of %d (id %x)", len(grouped), grouped[0].Group[:4])

	return
}

func (g *TransactionGroup) Len() int {
	return len(g.Transactions)
}

func (g *TransactionGroup) GroupID() types.Digest {
	return g.Transactions[0].Group
}

// Verify checks every member still carries the id computed from the
// current members.
func (g *TransactionGroup) Verify() (err error) {
	stripped := make([]types.Transaction, len(g.Transactions))
	for i, txn := range g.Transactions {
		txn.Group = types.Digest{}
		stripped[i] = txn
	}

	gid, err := crypto.ComputeGroupID(stripped)
	if err != nil {
		return errors.WithStack(err)
	}

	for i, txn := range g.Transactions {
		if txn.Group != gid {
			return errors.Wrapf(ErrConfiguration, "transaction %d does not match group id", i)
		}
	}
	return
}

// Rekeyed lists the members that move their sender's authority elsewhere.
func (g *TransactionGroup) Rekeyed() (indexes []int) {
	for i, txn := range g.Transactions {
		if !txn.RekeyTo.IsZero() {
			indexes = append(indexes, i)
		}
	}
	return
}

// SignWithKey signs every member with key, which must belong to address.
func (g *TransactionGroup) SignWithKey(address string, key ed25519.PrivateKey) (err error) {
	owner, err := addressOfKey(key)
	if err != nil {
		return
	}
	if owner != address {
		return errors.Wrapf(ErrSignerMismatch, "key belongs to %s, not %s", owner, address)
	}

	signed := make([][]byte, len(g.Transactions))
	for i, txn := range g.Transactions {
		if _, signed[i], err = crypto.SignTransaction(key, txn); err != nil {
			return errors.WithStack(err)
		}
	}
	g.Signed = signed
	return
}

// SignWithKeys signs member i with keys[i]. The counts must match.
func (g *TransactionGroup) SignWithKeys(keys []ed25519.PrivateKey) (err error) {
	if len(keys) != len(g.Transactions) {
		return errors.Wrapf(ErrArgumentCountMismatch, "%d keys for %d transactions", len(keys), len(g.Transactions))
	}

	signed := make([][]byte, len(g.Transactions))
	for i, txn := range g.Transactions {
		if _, signed[i], err = crypto.SignTransaction(keys[i], txn); err != nil {
			return errors.WithStack(err)
		}
	}
	g.Signed = signed
	return
}

// SignBySender signs each member with the key of its sender. Every sender
// needs a key.
func (g *TransactionGroup) SignBySender(keys ...ed25519.PrivateKey) (err error) {
	byAddress := make(map[string]ed25519.PrivateKey, len(keys))
	for _, key := range keys {
		var owner string
		if owner, err = addressOfKey(key); err != nil {
			return
		}
		byAddress[owner] = key
	}

	signed := make([][]byte, len(g.Transactions))
	for i, txn := range g.Transactions {
		key, ok := byAddress[txn.Sender.String()]
		if !ok {
			return errors.Wrapf(ErrSignerMismatch, "no key for sender %s of transaction %d", txn.Sender, i)
		}
		if _, signed[i], err = crypto.SignTransaction(key, txn); err != nil {
			return errors.WithStack(err)
		}
	}
	g.Signed = signed
	return
}

// EncodeUnsigned msgpack encodes each member for signing elsewhere.
func (g *TransactionGroup) EncodeUnsigned() (encoded [][]byte) {
	for _, txn := range g.Transactions {
		encoded = append(encoded, msgpack.Encode(txn))
	}
	return
}

// DecodeTransactionGroup rebuilds a group from msgpack encoded members. The
// members must already share a valid group id.
func DecodeTransactionGroup(encoded [][]byte) (group *TransactionGroup, err error) {
	if len(encoded) == 0 {
		err = errors.Wrap(ErrConfiguration, "empty transaction group")
		return
	}

	txns := make([]types.Transaction, len(encoded))
	for i, raw := range encoded {
		if err = msgpack.Decode(raw, &txns[i]); err != nil {
			err = errors.Wrapf(ErrConfiguration, "transaction %d: %v", i, err)
			return
		}
	}

	group = &TransactionGroup{
		Transactions: txns,
		Signed:       make([][]byte, len(txns)),
	}
	if err = group.Verify(); err != nil {
		group = nil
	}
	return
}

// SignedBytes concatenates the signed members for submission.
func (g *TransactionGroup) SignedBytes() (b []byte, err error) {
	var buf bytes.Buffer
	for i, stx := range g.Signed {
		if len(stx) == 0 {
			err = errors.Wrapf(ErrNotSigned, "transaction %d", i)
			return
		}
		buf.Write(stx)
	}
	return buf.Bytes(), nil
}

// Submit sends the signed group and, when wait is set, polls for up to
// maxRounds rounds for the first member to confirm.
func (g *TransactionGroup) Submit(ctx context.Context, ledger Ledger, wait bool, maxRounds uint64) (txid string, err error) {
	signed, err := g.SignedBytes()
	if err != nil {
		return
	}
	return SubmitSigned(ctx, ledger, signed, wait, maxRounds)
}

// SubmitSigned forwards already signed group bytes to the ledger.
func SubmitSigned(ctx context.Context, ledger Ledger, signed []byte, wait bool, maxRounds uint64) (txid string, err error) {
	txid, err = ledger.SendRawTransaction(ctx, signed)
	if err != nil {
		err = errors.Wrapf(ErrSubmissionFailed, "%v", err)
		return
	}

	log.Debug().Msgf("submitted transaction group %s", txid)

	if wait {
		_, err = WaitForConfirmation(ctx, ledger, txid, maxRounds)
	}
	return
}

// WaitForConfirmation polls once per round until txid is confirmed, the
// pool rejects it, ctx ends or maxRounds rounds pass. Zero maxRounds leaves
// the bound to ctx.
func WaitForConfirmation(ctx context.Context, poller ConfirmationPoller, txid string, maxRounds uint64) (confirmedRound uint64, err error) {
	lastRound, err := poller.Status(ctx)
	if err != nil {
		err = errors.Wrapf(ErrStateRead, "status: %v", err)
		return
	}

	for waited := uint64(0); ; waited++ {
		if err = ctx.Err(); err != nil {
			err = errors.WithStack(err)
			return
		}

		pending, err2 := poller.PendingTransaction(ctx, txid)
		if err2 != nil {
			err = errors.Wrapf(ErrStateRead, "pending transaction %s: %v", txid, err2)
			return
		}

		if pending.ConfirmedRound > 0 {
			log.Debug().Msgf("transaction %s confirmed in round %d", txid, pending.ConfirmedRound)
			return pending.ConfirmedRound, nil
		}

		if pending.PoolError != "" {
			err = errors.Wrapf(ErrSubmissionFailed, "transaction %s rejected: %s", txid, pending.PoolError)
			return
		}

		if maxRounds > 0 && waited >= maxRounds {
			err = errors.Wrapf(ErrConfirmationTimeout, "transaction %s not confirmed after %d rounds", txid, maxRounds)
			return
		}

		lastRound++
		if _, err = poller.StatusAfterBlock(ctx, lastRound); err != nil {
			err = errors.Wrapf(ErrStateRead, "status after block %d: %v", lastRound, err)
			return
		}
	}
}

func addressOfKey(key ed25519.PrivateKey) (address string, err error) {
	if len(key) != ed25519.PrivateKeySize {
		err = errors.Wrapf(ErrConfiguration, "invalid private key length %d", len(key))
		return
	}
	var addr types.Address
	copy(addr[:], key.Public().(ed25519.PublicKey))
	return addr.String(), nil
}
