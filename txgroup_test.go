package algofi

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentGroup(t *testing.T, n int) (*TransactionGroup, GroupContext, testAccount) {
	g, sender, storage := testGroupContext(t)
	var txns []types.Transaction
	for i := 0; i < n; i++ {
		group, err := PreparePaymentTransaction(g, storage.address, uint64(i+1))
		require.Nil(t, err)
		txns = append(txns, group.Transactions...)
	}
	group, err := NewTransactionGroup(txns)
	require.Nil(t, err)
	return group, g, sender
}

func TestNewTransactionGroup(t *testing.T) {
	group, _, _ := paymentGroup(t, 3)
	assert.Equal(t, 3, group.Len())
	assert.Len(t, group.Signed, 3)
	assert.Nil(t, group.Verify())

	regrouped, err := NewTransactionGroup(group.Transactions[:2])
	require.Nil(t, err)
	assert.NotEqual(t, group.GroupID(), regrouped.GroupID(), "a member's old group id is replaced")
	assert.Nil(t, group.Verify(), "regrouping leaves the source group intact")

	_, err = NewTransactionGroup(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestTransactionGroup_VerifyTampered(t *testing.T) {
	group, _, _ := paymentGroup(t, 2)
	group.Transactions[1].Amount = 999
	assert.ErrorIs(t, group.Verify(), ErrConfiguration)
}

func TestTransactionGroup_SignWithKey(t *testing.T) {
	group, _, sender := paymentGroup(t, 2)

	_, err := group.SignedBytes()
	assert.ErrorIs(t, err, ErrNotSigned)

	other := newTestAccount()
	assert.ErrorIs(t, group.SignWithKey(sender.address, other.key), ErrSignerMismatch)
	assert.ErrorIs(t, group.SignWithKey(sender.address, ed25519.PrivateKey{1, 2}), ErrConfiguration)

	require.Nil(t, group.SignWithKey(sender.address, sender.key))
	signed, err := group.SignedBytes()
	require.Nil(t, err)
	assert.Greater(t, len(signed), len(group.Signed[0]))
}

func TestTransactionGroup_SignWithKeys(t *testing.T) {
	group, _, sender := paymentGroup(t, 3)

	err := group.SignWithKeys([]ed25519.PrivateKey{sender.key, sender.key})
	assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	_, err = group.SignedBytes()
	assert.ErrorIs(t, err, ErrNotSigned, "a failed signing leaves the group unsigned")

	require.Nil(t, group.SignWithKeys([]ed25519.PrivateKey{sender.key, sender.key, sender.key}))
	_, err = group.SignedBytes()
	assert.Nil(t, err)
}

func TestTransactionGroup_Submit(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	group, _, sender := paymentGroup(t, 2)

	_, err := group.Submit(ctx, ledger, false, 0)
	assert.ErrorIs(t, err, ErrNotSigned)

	require.Nil(t, group.SignWithKey(sender.address, sender.key))

	ledger.pending["TXID"] = []PendingTransaction{{}, {ConfirmedRound: 1002}}
	txid, err := group.Submit(ctx, ledger, true, 10)
	require.Nil(t, err)
	assert.Equal(t, "TXID", txid)
	require.Len(t, ledger.sent, 1)

	ledger.sendErr = errors.New("overspend")
	_, err = group.Submit(ctx, ledger, false, 0)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestWaitForConfirmation(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.pending["A"] = []PendingTransaction{{}, {}, {ConfirmedRound: 1003}}

		round, err := WaitForConfirmation(ctx, ledger, "A", 10)
		require.Nil(t, err)
		assert.Equal(t, uint64(1003), round)
	})

	t.Run("pool error", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.pending["A"] = []PendingTransaction{{PoolError: "logic eval error"}}

		_, err := WaitForConfirmation(ctx, ledger, "A", 10)
		assert.ErrorIs(t, err, ErrSubmissionFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		ledger := newFakeLedger()

		_, err := WaitForConfirmation(ctx, ledger, "A", 3)
		assert.ErrorIs(t, err, ErrConfirmationTimeout)
		assert.Equal(t, uint64(1003), ledger.round)
	})

	t.Run("context done", func(t *testing.T) {
		ledger := newFakeLedger()
		cctx, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		<-cctx.Done()

		_, err := WaitForConfirmation(cctx, ledger, "A", 0)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestTransactionGroup_SignBySender(t *testing.T) {
	g, sender, storage := testGroupContext(t)
	group, err := PrepareManagerOptinTransactions(OptInIn{
		Sender:         sender.address,
		StorageAccount: storage.address,
		ManagerAppID:   g.ManagerAppID,
		MarketAppIDs:   g.MarketAppIDs,
		Params:         g.Params,
	})
	require.Nil(t, err)

	assert.ErrorIs(t, group.SignBySender(sender.key), ErrSignerMismatch)

	require.Nil(t, group.SignBySender(sender.key, storage.key))
	for i, txn := range group.Transactions {
		assert.NotEmpty(t, group.Signed[i], "member %d from %s", i, txn.Sender)
	}
	_, err = group.SignedBytes()
	assert.Nil(t, err)
}

func TestDecodeTransactionGroup(t *testing.T) {
	group, _, sender := paymentGroup(t, 3)

	decoded, err := DecodeTransactionGroup(group.EncodeUnsigned())
	require.Nil(t, err)
	assert.Equal(t, group.GroupID(), decoded.GroupID())
	assert.Equal(t, group.Transactions[2].Amount, decoded.Transactions[2].Amount)
	require.Nil(t, decoded.SignWithKey(sender.address, sender.key))

	partial := group.EncodeUnsigned()[:2]
	_, err = DecodeTransactionGroup(partial)
	assert.ErrorIs(t, err, ErrConfiguration, "a partial group fails the id check")

	_, err = DecodeTransactionGroup([][]byte{{0xff, 0x01}})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = DecodeTransactionGroup(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}
