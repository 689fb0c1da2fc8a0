package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	"github.com/obyte-network/obw-daemon/pkg/lock"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

type testSetup struct {
	repoManager ports.RepoManager
	explorer    *stubExplorer
	hub         *stubHub
	lockSvc     *lock.Service
	brokerSvc   broker.Service
	config      Config

	wallets   WalletService
	addresses AddressService
	proposals ProposalService
	auth      AuthService
	extras    ExtrasService
	listener  BlockchainListener

	creationKey testKey
}

func newTestSetup(config Config) *testSetup {
	repoManager := inmemory.NewDbManager()
	explorerSvc := newStubExplorer()
	hubSvc := newStubHub()
	lockSvc := lock.NewService(2*time.Second, 30*time.Second)
	brokerSvc := broker.NewService()

	return &testSetup{
		repoManager: repoManager,
		explorer:    explorerSvc,
		hub:         hubSvc,
		lockSvc:     lockSvc,
		brokerSvc:   brokerSvc,
		config:      config,
		wallets:     NewWalletService(repoManager, explorerSvc, lockSvc, brokerSvc, config),
		addresses:   NewAddressService(repoManager, explorerSvc, lockSvc, brokerSvc, config),
		proposals:   NewProposalService(repoManager, explorerSvc, hubSvc, lockSvc, brokerSvc, config),
		auth:        NewAuthService(repoManager, config),
		extras:      NewExtrasService(repoManager, lockSvc, config),
		listener:    NewBlockchainListener(repoManager, explorerSvc, hubSvc, lockSvc, brokerSvc, config),
		creationKey: newTestKey(),
	}
}

// createCompleteWallet creates an m-of-n wallet and joins n copayers with
// properly signed triples.
func (s *testSetup) createCompleteWallet(t *testing.T, m, n int, singleAddress bool) (string, []testCopayer) {
	t.Helper()
	ctx := context.Background()

	walletID, err := s.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name:          "test wallet",
		M:             m,
		N:             n,
		PubKey:        s.creationKey.pubHex,
		SingleAddress: singleAddress,
	})
	require.NoError(t, err)

	copayers := testCopayers()[:n]
	for _, c := range copayers {
		_, err := s.wallets.JoinWallet(ctx, JoinWalletOpts{
			WalletID:         walletID,
			Name:             c.name,
			XPub:             c.xpub,
			RequestPubKey:    c.requestKey.pubHex,
			CopayerSignature: joinSignature(s.creationKey, c),
			DeviceID:         c.deviceID,
		})
		require.NoError(t, err)
	}
	return walletID, copayers
}

func (s *testSetup) notificationsOfType(t *testing.T, walletID, notificationType string) []*domain.Notification {
	t.Helper()
	recent, err := s.repoManager.NotificationRepository().GetRecentByType(
		context.Background(), walletID, notificationType, 0,
	)
	require.NoError(t, err)
	return recent
}

func TestJoinToComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	walletID, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name:   "2-of-3",
		M:      2,
		N:      3,
		PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	copayers := testCopayers()
	for i, c := range copayers {
		status, err := setup.wallets.JoinWallet(ctx, JoinWalletOpts{
			WalletID:         walletID,
			Name:             c.name,
			XPub:             c.xpub,
			RequestPubKey:    c.requestKey.pubHex,
			CopayerSignature: joinSignature(setup.creationKey, c),
			DeviceID:         c.deviceID,
		})
		require.NoError(t, err)

		// Status flips to complete exactly on the third join.
		if i < 2 {
			require.Equal(t, domain.WalletStatusPending, status.Wallet.Status)
		} else {
			require.Equal(t, domain.WalletStatusComplete, status.Wallet.Status)
		}
	}

	complete := setup.notificationsOfType(t, walletID, domain.NotificationWalletComplete)
	require.Len(t, complete, 1)
}

func TestJoinRejectsBadSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	walletID, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name: "w", M: 1, N: 2, PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	c := testCopayers()[0]
	otherKey := newTestKey()
	_, err = setup.wallets.JoinWallet(ctx, JoinWalletOpts{
		WalletID:         walletID,
		Name:             c.name,
		XPub:             c.xpub,
		RequestPubKey:    c.requestKey.pubHex,
		CopayerSignature: joinSignature(otherKey, c),
		DeviceID:         c.deviceID,
	})
	require.ErrorIs(t, err, domain.ErrCopayerDataMismatch)
}

func TestJoinRejectsCopayerRegisteredElsewhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	setup.createCompleteWallet(t, 1, 1, false)

	// The same xpub cannot join a second wallet on this server.
	otherID, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name: "other", M: 1, N: 1, PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	c := testCopayers()[0]
	_, err = setup.wallets.JoinWallet(ctx, JoinWalletOpts{
		WalletID:         otherID,
		Name:             c.name,
		XPub:             c.xpub,
		RequestPubKey:    c.requestKey.pubHex,
		CopayerSignature: joinSignature(setup.creationKey, c),
		DeviceID:         c.deviceID,
	})
	require.ErrorIs(t, err, domain.ErrCopayerRegistered)
}

func TestJoinDryRunDoesNotMutate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	walletID, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name: "w", M: 1, N: 1, PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	c := testCopayers()[0]
	status, err := setup.wallets.JoinWallet(ctx, JoinWalletOpts{
		WalletID:         walletID,
		Name:             c.name,
		XPub:             c.xpub,
		RequestPubKey:    c.requestKey.pubHex,
		CopayerSignature: joinSignature(setup.creationKey, c),
		DeviceID:         c.deviceID,
		DryRun:           true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.WalletStatusComplete, status.Wallet.Status)

	stored, err := setup.repoManager.WalletRepository().GetWallet(ctx, walletID)
	require.NoError(t, err)
	require.Equal(t, domain.WalletStatusPending, stored.Status)
	require.Empty(t, stored.Copayers)
}

func TestCreateWalletDuplicateID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	_, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		ID: "fixed-id", Name: "w", M: 1, N: 1, PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	_, err = setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		ID: "fixed-id", Name: "w2", M: 1, N: 1, PubKey: setup.creationKey.pubHex,
	})
	require.ErrorIs(t, err, domain.ErrWalletAlreadyExists)
}

func TestAddAccessRotatesRequestKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	_, copayers := setup.createCompleteWallet(t, 1, 1, false)
	c := copayers[0]
	copayerID := obcore.CopayerID(c.xpub)

	newKey := newTestKey()
	err := setup.wallets.AddAccess(ctx, copayerID, newKey.pubHex, signRequestKeyRotation(c.xprv, newKey.pubHex))
	require.NoError(t, err)

	lookup, err := setup.repoManager.CopayerLookupRepository().GetCopayerLookup(ctx, copayerID)
	require.NoError(t, err)
	require.Equal(t, newKey.pubHex, lookup.RequestPubKeys[0].Key)
	require.Len(t, lookup.RequestPubKeys, 2)

	// A rotation signed by the wrong key is refused.
	another := newTestKey()
	err = setup.wallets.AddAccess(ctx, copayerID, another.pubHex, signRequestKeyRotation(testXPrv2, another.pubHex))
	require.Error(t, err)
}

func TestGetWalletFromIdentifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	walletID, _ := setup.createCompleteWallet(t, 1, 1, false)
	addr, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)

	byID, err := setup.wallets.GetWalletFromIdentifier(ctx, walletID)
	require.NoError(t, err)
	require.Equal(t, walletID, byID.ID)

	byAddress, err := setup.wallets.GetWalletFromIdentifier(ctx, addr.Address)
	require.NoError(t, err)
	require.Equal(t, walletID, byAddress.ID)

	_, err = setup.wallets.GetWalletFromIdentifier(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}
