package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

const destinationSeed = "payment destination"

func (s *testSetup) fundWallet(t *testing.T, walletID string, amounts ...int64) *domain.Address {
	t.Helper()
	addr, err := s.addresses.CreateAddress(context.Background(), walletID, false)
	require.NoError(t, err)
	for i, amount := range amounts {
		s.explorer.addUtxo(explorer.Utxo{
			Unit:        fmt.Sprintf("FUNDINGUNIT%d", i),
			OutputIndex: uint32(i),
			Address:     addr.Address,
			Amount:      amount,
			Asset:       explorer.BaseAsset,
			Stable:      true,
		})
	}
	return addr
}

func (s *testSetup) createAndPublish(t *testing.T, walletID string, creator testCopayer, amount int64) *domain.TxProposal {
	t.Helper()
	ctx := context.Background()
	creatorID := obcore.CopayerID(creator.xpub)

	txp, err := s.proposals.CreateTxProposal(ctx, walletID, creatorID, CreateTxProposalOpts{
		App:     "payment",
		Outputs: []obcore.Output{{Address: obcore.GetChash160(destinationSeed), Amount: amount}},
	})
	require.NoError(t, err)

	signature := creator.requestKey.signMessage(hex.EncodeToString(txp.Unit.HashToSign()))
	published, err := s.proposals.PublishTxProposal(ctx, walletID, creatorID, txp.ID, signature)
	require.NoError(t, err)
	return published
}

func TestUtxoReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)
	setup.fundWallet(t, walletID, 1e9, 2e9)

	payment := CreateTxProposalOpts{
		App:     "payment",
		Outputs: []obcore.Output{{Address: obcore.GetChash160(destinationSeed), Amount: 1e8}},
	}

	// Both drafts select the larger utxo while neither is published.
	txp1, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, payment)
	require.NoError(t, err)
	txp2, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, payment)
	require.NoError(t, err)
	require.Equal(t, txp1.Inputs[0].Unit, txp2.Inputs[0].Unit)

	sign := func(txp *domain.TxProposal) string {
		return alice.requestKey.signMessage(hex.EncodeToString(txp.Unit.HashToSign()))
	}
	_, err = setup.proposals.PublishTxProposal(ctx, walletID, aliceID, txp1.ID, sign(txp1))
	require.NoError(t, err)

	// The second publish loses the race for the shared input.
	_, err = setup.proposals.PublishTxProposal(ctx, walletID, aliceID, txp2.ID, sign(txp2))
	require.ErrorIs(t, err, domain.ErrUnavailableUtxos)

	// A third proposal composes against the remaining utxo and goes through.
	txp3, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, payment)
	require.NoError(t, err)
	require.NotEqual(t, txp1.Inputs[0].Unit, txp3.Inputs[0].Unit)
	_, err = setup.proposals.PublishTxProposal(ctx, walletID, aliceID, txp3.ID, sign(txp3))
	require.NoError(t, err)

	pending, err := setup.proposals.GetPendingTxProposals(ctx, walletID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// The reservation view reports the pending inputs as locked.
	view, err := setup.proposals.GetUtxos(ctx, walletID, explorer.BaseAsset)
	require.NoError(t, err)
	lockedCount := 0
	for _, u := range view {
		if u.Locked {
			lockedCount++
		}
	}
	require.Equal(t, 2, lockedCount)
}

func TestSigningQuorum(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	alice, bob := copayers[0], copayers[1]
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := setup.createAndPublish(t, walletID, alice, 1e8)
	require.Equal(t, domain.TxProposalStatusPending, txp.Status)

	hashToSign := txp.Unit.HashToSign()
	signFor := func(c testCopayer) map[string]string {
		return map[string]string{
			funded.Address: signUnitHash(c.xprv, 0, 0, hashToSign),
		}
	}

	signed, err := setup.proposals.SignTxProposal(ctx, walletID, obcore.CopayerID(alice.xpub), txp.ID, signFor(alice))
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusPending, signed.Status)
	require.Equal(t, 1, signed.CountActions(domain.ActionTypeAccept))

	signed, err = setup.proposals.SignTxProposal(ctx, walletID, obcore.CopayerID(bob.xpub), txp.ID, signFor(bob))
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusAccepted, signed.Status)
	require.NotEmpty(t, signed.TxID)

	finallyAccepted := setup.notificationsOfType(t, walletID, domain.NotificationTxProposalFinallyAccepted)
	require.Len(t, finallyAccepted, 1)
}

func TestSignRejectsBadSignatures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	alice, carol := copayers[0], copayers[2]
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := setup.createAndPublish(t, walletID, alice, 1e8)

	// Carol submits a signature made with Alice's key: refused atomically.
	badSignatures := map[string]string{
		funded.Address: signUnitHash(alice.xprv, 0, 0, txp.Unit.HashToSign()),
	}
	_, err := setup.proposals.SignTxProposal(ctx, walletID, obcore.CopayerID(carol.xpub), txp.ID, badSignatures)
	require.ErrorIs(t, err, domain.ErrBadSignatures)

	stored, err := setup.proposals.GetTxProposal(ctx, walletID, txp.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Actions)
}

func TestBroadcastByThirdParty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	alice, bob := copayers[0], copayers[1]
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := setup.createAndPublish(t, walletID, alice, 1e8)
	hashToSign := txp.Unit.HashToSign()
	for _, c := range []testCopayer{alice, bob} {
		var err error
		txp, err = setup.proposals.SignTxProposal(ctx, walletID, obcore.CopayerID(c.xpub), txp.ID, map[string]string{
			funded.Address: signUnitHash(c.xprv, 0, 0, hashToSign),
		})
		require.NoError(t, err)
	}
	require.Equal(t, domain.TxProposalStatusAccepted, txp.Status)

	// The hub refuses, but the explorer knows the unit: broadcast by a third
	// party.
	setup.hub.broadcastErr = fmt.Errorf("connection reset")
	setup.explorer.transactions[txp.TxID] = &explorer.TxRecord{Unit: txp.TxID}

	broadcasted, err := setup.proposals.BroadcastTxProposal(ctx, walletID, obcore.CopayerID(alice.xpub), txp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusBroadcasted, broadcasted.Status)

	thirdParty := setup.notificationsOfType(t, walletID, domain.NotificationNewOutgoingTxThirdParty)
	require.Len(t, thirdParty, 1)

	// Re-broadcasting is refused.
	_, err = setup.proposals.BroadcastTxProposal(ctx, walletID, obcore.CopayerID(alice.xpub), txp.ID)
	require.ErrorIs(t, err, domain.ErrTxAlreadyBroadcasted)
}

func TestBroadcastFailureKeepsAccepted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := setup.createAndPublish(t, walletID, alice, 1e8)
	accepted, err := setup.proposals.SignTxProposal(ctx, walletID, obcore.CopayerID(alice.xpub), txp.ID, map[string]string{
		funded.Address: signUnitHash(alice.xprv, 0, 0, txp.Unit.HashToSign()),
	})
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusAccepted, accepted.Status)

	// Neither the hub nor the explorer has seen the unit: genuine failure.
	setup.hub.broadcastErr = fmt.Errorf("hub unavailable")
	_, err = setup.proposals.BroadcastTxProposal(ctx, walletID, obcore.CopayerID(alice.xpub), txp.ID)
	require.Error(t, err)

	stored, err := setup.proposals.GetTxProposal(ctx, walletID, txp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusAccepted, stored.Status)
	require.NotEmpty(t, stored.TxID)
}

func TestBackoffGovernor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.BackoffOffset = 3
	config.BackoffTime = 600 * time.Second
	setup := newTestSetup(config)
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)
	setup.fundWallet(t, walletID, 5e9)

	for i := 0; i < 4; i++ {
		txp := setup.createAndPublish(t, walletID, alice, 1e8)
		_, err := setup.proposals.RejectTxProposal(ctx, walletID, aliceID, txp.ID, "changed my mind")
		require.NoError(t, err)
	}

	payment := CreateTxProposalOpts{
		App:     "payment",
		Outputs: []obcore.Output{{Address: obcore.GetChash160(destinationSeed), Amount: 1e8}},
	}
	_, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, payment)
	require.ErrorIs(t, err, domain.ErrTxCannotCreate)

	// Once the cooldown since the last rejection elapsed, creation resumes.
	rejected, err := setup.proposals.GetTxProposals(ctx, walletID, domain.TxProposalFilter{Status: domain.TxProposalStatusRejected})
	require.NoError(t, err)
	past := time.Now().Add(-config.BackoffTime - time.Minute).Unix()
	for _, txp := range rejected {
		require.NoError(t, setup.repoManager.TxProposalRepository().UpdateTxProposal(ctx, walletID, txp.ID, func(t *domain.TxProposal) (*domain.TxProposal, error) {
			t.CreatedOn = past
			for i := range t.Actions {
				t.Actions[i].CreatedOn = past
			}
			return t, nil
		}))
	}

	_, err = setup.proposals.CreateTxProposal(ctx, walletID, aliceID, payment)
	require.NoError(t, err)
}

func TestRemoveTxProposal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	alice, bob := copayers[0], copayers[1]
	aliceID, bobID := obcore.CopayerID(alice.xpub), obcore.CopayerID(bob.xpub)
	setup.fundWallet(t, walletID, 5e9)

	// Untouched proposal: only the creator may remove, immediately.
	txp := setup.createAndPublish(t, walletID, alice, 1e8)
	require.ErrorIs(t, setup.proposals.RemoveTxProposal(ctx, walletID, bobID, txp.ID), domain.ErrTxCannotRemove)
	require.NoError(t, setup.proposals.RemoveTxProposal(ctx, walletID, aliceID, txp.ID))

	removed := setup.notificationsOfType(t, walletID, domain.NotificationTxProposalRemoved)
	require.Len(t, removed, 1)

	// After a foreign action, the cooldown blocks everyone.
	txp = setup.createAndPublish(t, walletID, alice, 1e8)
	_, err := setup.proposals.RejectTxProposal(ctx, walletID, bobID, txp.ID, "no")
	require.NoError(t, err)
	require.ErrorIs(t, setup.proposals.RemoveTxProposal(ctx, walletID, aliceID, txp.ID), domain.ErrTxCannotRemove)
}

func TestCreateTxProposalIdempotency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)
	setup.fundWallet(t, walletID, 5e9)

	opts := CreateTxProposalOpts{
		TxProposalID: "client-supplied-id",
		App:          "payment",
		Outputs:      []obcore.Output{{Address: obcore.GetChash160(destinationSeed), Amount: 1e8}},
	}
	txp, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, opts)
	require.NoError(t, err)
	require.Equal(t, "client-supplied-id", txp.ID)

	signature := alice.requestKey.signMessage(hex.EncodeToString(txp.Unit.HashToSign()))
	_, err = setup.proposals.PublishTxProposal(ctx, walletID, aliceID, txp.ID, signature)
	require.NoError(t, err)

	// Re-creating with the same id returns the published proposal untouched.
	again, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, opts)
	require.NoError(t, err)
	require.Equal(t, txp.ID, again.ID)
	require.Equal(t, domain.TxProposalStatusPending, again.Status)
}

func TestCreateTxProposalValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	aliceID := obcore.CopayerID(copayers[0].xpub)

	_, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, CreateTxProposalOpts{App: "bogus"})
	require.ErrorIs(t, err, ErrUnknownApp)

	_, err = setup.proposals.CreateTxProposal(ctx, walletID, aliceID, CreateTxProposalOpts{App: "payment"})
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = setup.proposals.CreateTxProposal(ctx, walletID, aliceID, CreateTxProposalOpts{
		App:     "payment",
		Outputs: []obcore.Output{{Address: "NOTANADDRESS", Amount: 100}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}
