package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/hub"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

func acceptedProposal(t *testing.T, setup *testSetup, walletID string, copayers []testCopayer, funded *domain.Address) *domain.TxProposal {
	t.Helper()
	ctx := context.Background()
	alice, bob := copayers[0], copayers[1]

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
	return txp
}

func listenerOf(setup *testSetup) *blockchainListener {
	return setup.listener.(*blockchainListener)
}

func TestMonitorReconcilesAcceptedProposal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := acceptedProposal(t, setup, walletID, copayers, funded)

	// A third party got the unit into the ledger before we broadcast.
	listenerOf(setup).handleNewJoint(ctx, &hub.UnitSummary{Unit: txp.TxID})

	stored, err := setup.proposals.GetTxProposal(ctx, walletID, txp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusBroadcasted, stored.Status)

	thirdParty := setup.notificationsOfType(t, walletID, domain.NotificationNewOutgoingTxThirdParty)
	require.Len(t, thirdParty, 1)

	// Seeing the joint again changes nothing and emits nothing more.
	listenerOf(setup).handleNewJoint(ctx, &hub.UnitSummary{Unit: txp.TxID})
	thirdParty = setup.notificationsOfType(t, walletID, domain.NotificationNewOutgoingTxThirdParty)
	require.Len(t, thirdParty, 1)
}

func TestMonitorIncomingNotificationDeduped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)
	receive, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)

	joint := &hub.UnitSummary{
		Unit:    "INCOMINGUNITHASH",
		Authors: []string{obcore.GetChash160("someone else")},
		Outputs: []hub.Output{{Address: receive.Address, Amount: 777, Asset: explorer.BaseAsset}},
	}

	listenerOf(setup).handleNewJoint(ctx, joint)
	incoming := setup.notificationsOfType(t, walletID, domain.NotificationNewIncomingTx)
	require.Len(t, incoming, 1)
	require.Equal(t, receive.Address, incoming[0].Data["address"])

	// Replays within the window are swallowed.
	listenerOf(setup).handleNewJoint(ctx, joint)
	incoming = setup.notificationsOfType(t, walletID, domain.NotificationNewIncomingTx)
	require.Len(t, incoming, 1)

	// The receiving address is now flagged active.
	stored, err := setup.repoManager.AddressRepository().GetAddress(ctx, receive.Address)
	require.NoError(t, err)
	require.True(t, stored.HasActivity)
}

func TestMonitorSkipsChangeAndAuthorOutputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)
	setup.fundWallet(t, walletID, 5e9)

	// Composing a proposal lazily derives the wallet's change address.
	_, err := setup.proposals.CreateTxProposal(ctx, walletID, aliceID, CreateTxProposalOpts{
		App:     "payment",
		Outputs: []obcore.Output{{Address: obcore.GetChash160(destinationSeed), Amount: 1e8}},
	})
	require.NoError(t, err)

	isChange := true
	changes, err := setup.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{IsChange: &isChange})
	require.NoError(t, err)
	require.NotEmpty(t, changes)

	listenerOf(setup).handleNewJoint(ctx, &hub.UnitSummary{
		Unit:    "CHANGEONLYUNIT",
		Authors: []string{obcore.GetChash160("someone else")},
		Outputs: []hub.Output{{Address: changes[0].Address, Amount: 42}},
	})

	incoming := setup.notificationsOfType(t, walletID, domain.NotificationNewIncomingTx)
	require.Empty(t, incoming)
}

func TestMonitorStabilisesAndFiresConfirmations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)
	funded := setup.fundWallet(t, walletID, 5e9)

	txp := acceptedProposal(t, setup, walletID, copayers, funded)
	_, err := setup.proposals.BroadcastTxProposal(ctx, walletID, aliceID, txp.ID)
	require.NoError(t, err)

	require.NoError(t, setup.extras.SubscribeTxConfirmation(ctx, domain.TxConfirmationSubscription{
		WalletID:  walletID,
		CopayerID: aliceID,
		TxID:      txp.TxID,
	}))

	listenerOf(setup).handleStableUnits(ctx, []string{txp.TxID})

	stored, err := setup.proposals.GetTxProposal(ctx, walletID, txp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxProposalStatusStable, stored.Status)
	require.True(t, stored.Stable)

	confirmations := setup.notificationsOfType(t, walletID, domain.NotificationTxConfirmation)
	require.Len(t, confirmations, 1)
	require.Equal(t, "test", confirmations[0].Data["network"])

	// The subscription is single shot: a second stabilisation does nothing.
	listenerOf(setup).handleStableUnits(ctx, []string{txp.TxID})
	confirmations = setup.notificationsOfType(t, walletID, domain.NotificationTxConfirmation)
	require.Len(t, confirmations, 1)
}

func TestSyncAssetMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	registryA := obcore.GetChash160("registry A")
	registryB := obcore.GetChash160("registry B")
	setup.explorer.assetMetadata = []explorer.AssetMetadataRecord{
		{Asset: "asset-1", Name: "TOKEN", RegistryAddr: registryA, Decimals: 9},
		{Asset: "asset-2", Name: "TOKEN", RegistryAddr: registryB, Decimals: 2},
		{Asset: "asset-3", Name: "OTHER", RegistryAddr: registryA},
	}

	require.NoError(t, setup.listener.SyncAssetMetadata(ctx, []string{registryA, registryB}))

	assets, err := setup.extras.GetAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	// The conflicting name from the second registry got suffixed.
	one, err := setup.extras.GetAsset(ctx, "asset-2")
	require.NoError(t, err)
	require.Contains(t, one.Name, "TOKEN@")
}

func TestMonitorWalletCoinNetworkOnConfirmation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 2, 3, false)
	funded := setup.fundWallet(t, walletID, 5e9)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	txp := acceptedProposal(t, setup, walletID, copayers, funded)
	_, err := setup.proposals.BroadcastTxProposal(ctx, walletID, aliceID, txp.ID)
	require.NoError(t, err)

	require.NoError(t, setup.extras.SubscribeTxConfirmation(ctx, domain.TxConfirmationSubscription{
		WalletID: walletID, CopayerID: aliceID, TxID: txp.TxID,
	}))
	listenerOf(setup).handleStableUnits(ctx, []string{txp.TxID})

	confirmations := setup.notificationsOfType(t, walletID, domain.NotificationTxConfirmation)
	require.Len(t, confirmations, 1)
	require.Equal(t, "obyte", confirmations[0].Data["coin"])
}
