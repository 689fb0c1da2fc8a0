package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

func TestCreateAddressGapLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.MaxMainAddressGap = 2
	setup := newTestSetup(config)
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)

	first, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	require.Equal(t, "m/0/0", first.Path)

	second, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	require.Equal(t, "m/0/1", second.Path)
	require.NotEqual(t, first.Address, second.Address)

	// Two consecutive inactive addresses exhaust the gap.
	_, err = setup.addresses.CreateAddress(ctx, walletID, false)
	require.ErrorIs(t, err, domain.ErrMainAddressGapReached)

	// The override continues at the next path.
	third, err := setup.addresses.CreateAddress(ctx, walletID, true)
	require.NoError(t, err)
	require.Equal(t, "m/0/2", third.Path)
}

func TestCreateAddressGapLimitUnblockedByActivity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.MaxMainAddressGap = 2
	setup := newTestSetup(config)
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)

	first, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	_, err = setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)

	// The explorer reports activity on one tail address during the probe:
	// the sticky flag flips and the creation proceeds.
	setup.explorer.activity[first.Address] = true
	third, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	require.Equal(t, "m/0/2", third.Path)

	stored, err := setup.repoManager.AddressRepository().GetAddress(ctx, first.Address)
	require.NoError(t, err)
	require.True(t, stored.HasActivity)
}

func TestCreateAddressSingleAddressWallet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, _ := setup.createCompleteWallet(t, 1, 1, true)

	first, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	again, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.NoError(t, err)
	require.Equal(t, first.Address, again.Address)
}

func TestCreateAddressIncompleteWallet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())

	walletID, err := setup.wallets.CreateWallet(ctx, CreateWalletOpts{
		Name: "w", M: 2, N: 3, PubKey: setup.creationKey.pubHex,
	})
	require.NoError(t, err)

	_, err = setup.addresses.CreateAddress(ctx, walletID, false)
	require.ErrorIs(t, err, domain.ErrWalletNotComplete)
}

func TestScanDiscoversActiveAddresses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.ScanAddressGap = 3
	setup := newTestSetup(config)
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)

	wallet, err := setup.repoManager.WalletRepository().GetWallet(ctx, walletID)
	require.NoError(t, err)

	// Mark activity on receive indices 0 and 2.
	for _, index := range []uint32{0, 2} {
		derived, err := wallet.DeriveAddress(domain.ExternalChain, index)
		require.NoError(t, err)
		setup.explorer.activity[derived.Address] = true
	}

	require.NoError(t, setup.addresses.Scan(ctx, walletID, 1))

	updated, err := setup.repoManager.WalletRepository().GetWallet(ctx, walletID)
	require.NoError(t, err)
	require.Equal(t, domain.ScanStatusSuccess, updated.ScanStatus)
	require.Equal(t, uint32(3), updated.ReceiveAddressIndex)

	isChange := false
	mains, err := setup.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{IsChange: &isChange})
	require.NoError(t, err)
	require.Len(t, mains, 2)
	for _, addr := range mains {
		require.True(t, addr.HasActivity)
	}

	finished := setup.notificationsOfType(t, walletID, domain.NotificationScanFinished)
	require.Len(t, finished, 1)
}

func TestPowerScanFillsSkippedPathsOnlyAfterHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.PowerScanMaxGap = 3
	setup := newTestSetup(config)
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)

	wallet, err := setup.repoManager.WalletRepository().GetWallet(ctx, walletID)
	require.NoError(t, err)

	// Activity only at receive index 10; stride 5 probes 0, 5, 10, ...
	derived, err := wallet.DeriveAddress(domain.ExternalChain, 10)
	require.NoError(t, err)
	setup.explorer.activity[derived.Address] = true

	require.NoError(t, setup.addresses.Scan(ctx, walletID, 5))

	isChange := false
	mains, err := setup.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{IsChange: &isChange})
	require.NoError(t, err)
	// The hit at 10 persists itself plus the skipped fill-ins 1..4 and 6..9;
	// the missed probes at 0 and 5 themselves add nothing.
	require.Len(t, mains, 9)

	byPath := map[string]bool{}
	for _, addr := range mains {
		byPath[addr.Path] = addr.HasActivity
	}
	require.True(t, byPath["m/0/10"])
	require.False(t, byPath["m/0/7"])

	// The change branch saw no activity at all: no addresses were added.
	isChange = true
	changes, err := setup.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{IsChange: &isChange})
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestScanErrorPinsWallet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, _ := setup.createCompleteWallet(t, 2, 2, false)

	require.NoError(t, setup.repoManager.WalletRepository().UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		w.ScanStatus = domain.ScanStatusError
		return w, nil
	}))

	_, err := setup.addresses.CreateAddress(ctx, walletID, false)
	require.ErrorIs(t, err, domain.ErrWalletNeedScan)
}
