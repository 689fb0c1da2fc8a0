package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

func completedWallet(t *testing.T) *domain.Wallet {
	t.Helper()
	w, err := domain.NewWallet("", "shared", 2, 2, "obyte", "test", "creation-key", false, "")
	require.NoError(t, err)
	_, err = w.AddCopayer(newCopayer("alice", xpub1, "d1"))
	require.NoError(t, err)
	_, err = w.AddCopayer(newCopayer("bob", xpub2, "d2"))
	require.NoError(t, err)
	return w
}

func pendingProposal(t *testing.T, w *domain.Wallet) *domain.TxProposal {
	t.Helper()

	derived, err := w.DeriveAddress(0, 0)
	require.NoError(t, err)
	change, err := w.DeriveAddress(1, 0)
	require.NoError(t, err)

	res, err := obcore.ComposePayment(obcore.ComposeRequest{
		Outputs:       []obcore.Output{{Address: obcore.GetChash160("dest"), Amount: 1000}},
		ChangeAddress: change.Address,
		Spendable: []obcore.SpendableOutput{
			{Unit: "u1", Address: derived.Address, Amount: 100000},
		},
		Authors: map[string]obcore.AuthorAddress{
			derived.Address: {
				Address:      derived.Address,
				Definition:   derived.Definition,
				SigningPaths: derived.SigningPaths,
				Path:         "m/0/0",
			},
		},
		View: obcore.ChainView{
			ParentUnits:     []string{"PARENT"},
			LastBall:        "BALL",
			LastBallUnit:    "BALLUNIT",
			WitnessListUnit: "WITNESSES",
		},
	})
	require.NoError(t, err)

	alice := w.Copayers[0]
	txp := domain.NewTxProposal("", w.ID, alice.ID, "payment", w.M, w.N)
	txp.Unit = res.Unit
	txp.Inputs = res.UsedInputs
	txp.SigningInfo[derived.Address] = domain.SigningInfo{
		WalletID:     w.ID,
		Path:         "m/0/0",
		SigningPaths: derived.SigningPaths,
	}
	require.NoError(t, txp.Publish())
	return txp
}

func TestNewTxProposalRequiredRejections(t *testing.T) {
	t.Parallel()

	// min(m, n-m+1)
	require.Equal(t, 2, domain.NewTxProposal("", "w", "c", "payment", 2, 3).RequiredRejections)
	require.Equal(t, 1, domain.NewTxProposal("", "w", "c", "payment", 3, 3).RequiredRejections)
	require.Equal(t, 1, domain.NewTxProposal("", "w", "c", "payment", 1, 1).RequiredRejections)
}

func TestPublishOnlyFromTemporary(t *testing.T) {
	t.Parallel()

	txp := domain.NewTxProposal("", "w", "c", "payment", 2, 3)
	require.True(t, txp.IsTemporary())
	require.NoError(t, txp.Publish())
	require.True(t, txp.IsPending())
	require.ErrorIs(t, txp.Publish(), domain.ErrTxNotFound)
}

func TestAcceptQuorum(t *testing.T) {
	t.Parallel()

	w := completedWallet(t)
	txp := pendingProposal(t, w)
	alice, bob := w.Copayers[0], w.Copayers[1]
	authorAddress := txp.Unit.Authors[0].Address

	finalised, err := txp.Accept(alice.ID, alice.XPub, map[string]string{authorAddress: "sig-alice"})
	require.NoError(t, err)
	require.False(t, finalised)
	require.True(t, txp.IsPending())
	require.Empty(t, txp.TxID)

	// Double voting is refused.
	_, err = txp.Accept(alice.ID, alice.XPub, map[string]string{authorAddress: "again"})
	require.ErrorIs(t, err, domain.ErrCopayerVoted)

	finalised, err = txp.Accept(bob.ID, bob.XPub, map[string]string{authorAddress: "sig-bob"})
	require.NoError(t, err)
	require.True(t, finalised)
	require.True(t, txp.IsAccepted())
	require.NotEmpty(t, txp.TxID)

	// Both signature slots were filled from the actions.
	signatures := map[string]bool{}
	for _, sig := range txp.Unit.Authors[0].Authentifiers {
		signatures[sig] = true
	}
	require.True(t, signatures["sig-alice"])
	require.True(t, signatures["sig-bob"])

	// No further votes once accepted.
	_, err = txp.Accept(bob.ID, bob.XPub, nil)
	require.ErrorIs(t, err, domain.ErrTxAlreadyAccepted)
}

func TestRejectQuorum(t *testing.T) {
	t.Parallel()

	txp := domain.NewTxProposal("", "w", "creator", "payment", 2, 3)
	require.NoError(t, txp.Publish())
	require.Equal(t, 2, txp.RequiredRejections)

	final, err := txp.Reject("copayer-1", "nope")
	require.NoError(t, err)
	require.False(t, final)
	require.True(t, txp.IsPending())

	_, err = txp.Reject("copayer-1", "still nope")
	require.ErrorIs(t, err, domain.ErrCopayerVoted)

	final, err = txp.Reject("copayer-2", "")
	require.NoError(t, err)
	require.True(t, final)
	require.True(t, txp.IsRejected())
}

func TestBroadcastTransitions(t *testing.T) {
	t.Parallel()

	w := completedWallet(t)
	txp := pendingProposal(t, w)
	alice, bob := w.Copayers[0], w.Copayers[1]
	authorAddress := txp.Unit.Authors[0].Address

	require.ErrorIs(t, txp.SetBroadcasted(), domain.ErrTxNotAccepted)

	_, err := txp.Accept(alice.ID, alice.XPub, map[string]string{authorAddress: "sa"})
	require.NoError(t, err)
	_, err = txp.Accept(bob.ID, bob.XPub, map[string]string{authorAddress: "sb"})
	require.NoError(t, err)

	require.NoError(t, txp.SetBroadcasted())
	require.True(t, txp.IsBroadcasted())
	require.ErrorIs(t, txp.SetBroadcasted(), domain.ErrTxAlreadyBroadcasted)

	require.NoError(t, txp.SetStable())
	require.True(t, txp.Stable)
	require.Equal(t, domain.TxProposalStatusStable, txp.Status)
}

func TestCanRemoveBy(t *testing.T) {
	t.Parallel()

	locktime := time.Hour
	txp := domain.NewTxProposal("", "w", "creator", "payment", 2, 3)
	require.NoError(t, txp.Publish())

	// No foreign actions: only the creator may remove, immediately.
	require.NoError(t, txp.CanRemoveBy("creator", locktime))
	require.ErrorIs(t, txp.CanRemoveBy("other", locktime), domain.ErrTxCannotRemove)

	// A foreign action arms the cooldown for everyone.
	_, err := txp.Reject("other", "no")
	require.NoError(t, err)
	require.ErrorIs(t, txp.CanRemoveBy("creator", locktime), domain.ErrTxCannotRemove)
	require.ErrorIs(t, txp.CanRemoveBy("other", locktime), domain.ErrTxCannotRemove)

	// Once the cooldown elapsed, removal is allowed again.
	txp.Actions[0].CreatedOn = time.Now().Add(-2 * time.Hour).Unix()
	require.NoError(t, txp.CanRemoveBy("other", locktime))
	require.NoError(t, txp.CanRemoveBy("creator", locktime))
}
