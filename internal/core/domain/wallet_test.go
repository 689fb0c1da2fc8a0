package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// Public BIP32 test-vector extended keys.
const (
	xpub1 = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
	xpub2 = "xpub6ASuArnXKPbfEwhqN6e3mwBcDTgzisQN1wXN9BJcM47sSikHjJf3UFHKkNAWbWMiGj7Wf5uMash7SyYq527Hqck2AxYysAA7xmALppuCkwQ"
	xpub3 = "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"
)

func newCopayer(name, xpub, deviceID string) domain.Copayer {
	return domain.Copayer{
		ID:            obcore.CopayerID(xpub),
		Name:          name,
		XPub:          xpub,
		DeviceID:      deviceID,
		RequestPubKey: "request-pub-" + name,
		Signature:     "sig-" + name,
	}
}

func TestNewWallet(t *testing.T) {
	t.Parallel()

	w, err := domain.NewWallet("", "my wallet", 2, 3, "obyte", "test", "creation-key", false, "")
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)
	require.Equal(t, domain.WalletStatusPending, w.Status)
	require.Equal(t, domain.AddressTypeShared, w.AddressType)
	require.Equal(t, domain.DerivationStrategyBIP44, w.DerivationStrategy)
	require.False(t, w.IsComplete())

	single, err := domain.NewWallet("", "solo", 1, 1, "obyte", "main", "creation-key", true, "")
	require.NoError(t, err)
	require.Equal(t, domain.AddressTypeNormal, single.AddressType)
}

func TestNewWalletRejectsInvalidQuorum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m, n int
	}{
		{"zero_required", 0, 2},
		{"m_above_n", 3, 2},
		{"too_many_copayers", 2, 16},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := domain.NewWallet("", "w", tt.m, tt.n, "obyte", "main", "k", false, "")
			require.Error(t, err)
		})
	}
}

func TestAddCopayerCompletesWallet(t *testing.T) {
	t.Parallel()

	w, err := domain.NewWallet("", "shared", 2, 3, "obyte", "test", "creation-key", false, "")
	require.NoError(t, err)

	completed, err := w.AddCopayer(newCopayer("alice", xpub1, "d1"))
	require.NoError(t, err)
	require.False(t, completed)

	completed, err = w.AddCopayer(newCopayer("bob", xpub2, "d2"))
	require.NoError(t, err)
	require.False(t, completed)
	require.False(t, w.IsComplete())

	completed, err = w.AddCopayer(newCopayer("carol", xpub3, "d3"))
	require.NoError(t, err)
	require.True(t, completed)
	require.True(t, w.IsComplete())
	require.Len(t, w.Copayers, 3)
	require.Len(t, w.PubKeyRing(), 3)
	require.NotEmpty(t, w.DefinitionTemplate)

	// The frozen roster refuses further joins.
	_, err = w.AddCopayer(newCopayer("dave", "xpub-other", "d4"))
	require.ErrorIs(t, err, domain.ErrWalletFull)
}

func TestAddCopayerRejectsDuplicateXPub(t *testing.T) {
	t.Parallel()

	w, err := domain.NewWallet("", "shared", 2, 2, "obyte", "test", "creation-key", false, "")
	require.NoError(t, err)

	_, err = w.AddCopayer(newCopayer("alice", xpub1, "d1"))
	require.NoError(t, err)
	_, err = w.AddCopayer(newCopayer("alice-again", xpub1, "d2"))
	require.ErrorIs(t, err, domain.ErrCopayerInWallet)
}

func TestDeriveAddressDeterministic(t *testing.T) {
	t.Parallel()

	w, err := domain.NewWallet("", "shared", 2, 2, "obyte", "test", "creation-key", false, "")
	require.NoError(t, err)

	_, err = w.DeriveAddress(0, 0)
	require.ErrorIs(t, err, domain.ErrWalletNotComplete)

	_, err = w.AddCopayer(newCopayer("alice", xpub1, "d1"))
	require.NoError(t, err)
	_, err = w.AddCopayer(newCopayer("bob", xpub2, "d2"))
	require.NoError(t, err)

	a, err := w.DeriveAddress(0, 0)
	require.NoError(t, err)
	b, err := w.DeriveAddress(0, 0)
	require.NoError(t, err)
	require.Equal(t, a.Address, b.Address)
	require.True(t, obcore.IsValidAddress(a.Address))
	require.Len(t, a.SigningPaths, 2)
}

func TestAddRequestPubKey(t *testing.T) {
	t.Parallel()

	c := newCopayer("alice", xpub1, "d1")
	c.RequestPubKeys = []domain.RequestPubKey{{Key: c.RequestPubKey, Signature: c.Signature}}

	require.NoError(t, c.AddRequestPubKey("new-key", "new-sig", 3))
	require.Equal(t, "new-key", c.RequestPubKey)
	require.Equal(t, "new-key", c.RequestPubKeys[0].Key)
	require.True(t, c.HasRequestPubKey("request-pub-alice"))
	require.True(t, c.HasRequestPubKey("new-key"))
	require.False(t, c.HasRequestPubKey("unknown"))

	require.NoError(t, c.AddRequestPubKey("third", "s", 3))
	require.ErrorIs(t, c.AddRequestPubKey("fourth", "s", 3), domain.ErrTooManyKeys)
}
