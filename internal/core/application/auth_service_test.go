package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

const authMessage = "get|/v1/balance/|{}"

func TestAuthenticateBySignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	credentials, err := setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID: aliceID,
		Message:   authMessage,
		Signature: alice.requestKey.signMessage(authMessage),
	})
	require.NoError(t, err)
	require.Equal(t, aliceID, credentials.CopayerID)
	require.Equal(t, walletID, credentials.WalletID)
	require.False(t, credentials.IsSupportStaff)
}

func TestAuthenticateFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	_, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	// Unknown copayer.
	_, err := setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID: "deadbeef",
		Message:   authMessage,
		Signature: alice.requestKey.signMessage(authMessage),
	})
	requireNotAuthorized(t, err, "Copayer not found")

	// Wrong key.
	_, err = setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID: aliceID,
		Message:   authMessage,
		Signature: newTestKey().signMessage(authMessage),
	})
	requireNotAuthorized(t, err, "Invalid signature")

	// Signature over a different message.
	_, err = setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID: aliceID,
		Message:   authMessage,
		Signature: alice.requestKey.signMessage("post|/v1/txproposals/|{}"),
	})
	requireNotAuthorized(t, err, "Invalid signature")
}

func TestAuthenticateUpgradeNeeded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.MinClientVersion = "2.1.0"
	setup := newTestSetup(config)
	_, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	_, err := setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID:     aliceID,
		Message:       authMessage,
		Signature:     alice.requestKey.signMessage(authMessage),
		ClientVersion: "owc-2.0.9",
	})
	require.ErrorIs(t, err, domain.ErrUpgradeNeeded)

	_, err = setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID:     aliceID,
		Message:       authMessage,
		Signature:     alice.requestKey.signMessage(authMessage),
		ClientVersion: "owc-2.1.0",
	})
	require.NoError(t, err)
}

func TestLoginSessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	_, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	login := func() string {
		token, err := setup.auth.Login(ctx, AuthRequest{
			CopayerID: aliceID,
			Message:   authMessage,
			Signature: alice.requestKey.signMessage(authMessage),
		})
		require.NoError(t, err)
		return token
	}

	token := login()
	require.NotEmpty(t, token)

	// Repeated login while valid returns the same token.
	require.Equal(t, token, login())

	credentials, err := setup.auth.AuthenticateSession(ctx, aliceID, token, "", "")
	require.NoError(t, err)
	require.Equal(t, aliceID, credentials.CopayerID)

	// A bogus token is an expired session, not a hint about validity.
	_, err = setup.auth.AuthenticateSession(ctx, aliceID, "bogus", "", "")
	requireNotAuthorized(t, err, "Session expired")

	require.NoError(t, setup.auth.Logout(ctx, aliceID))
	_, err = setup.auth.AuthenticateSession(ctx, aliceID, token, "", "")
	requireNotAuthorized(t, err, "Session expired")
}

func TestSessionSlidingExpiration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := shortTestConfig()
	config.SessionExpiration = time.Hour
	setup := newTestSetup(config)
	_, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	token, err := setup.auth.Login(ctx, AuthRequest{
		CopayerID: aliceID,
		Message:   authMessage,
		Signature: alice.requestKey.signMessage(authMessage),
	})
	require.NoError(t, err)

	// Age the session to just inside the window: use slides it forward.
	session, err := setup.repoManager.SessionRepository().GetSession(ctx, aliceID)
	require.NoError(t, err)
	session.UpdatedOn = time.Now().Add(-59 * time.Minute).Unix()
	require.NoError(t, setup.repoManager.SessionRepository().SaveSession(ctx, session))

	_, err = setup.auth.AuthenticateSession(ctx, aliceID, token, "", "")
	require.NoError(t, err)

	slid, err := setup.repoManager.SessionRepository().GetSession(ctx, aliceID)
	require.NoError(t, err)
	require.Greater(t, slid.UpdatedOn, session.UpdatedOn)

	// Past the window the session is dead.
	slid.UpdatedOn = time.Now().Add(-61 * time.Minute).Unix()
	require.NoError(t, setup.repoManager.SessionRepository().SaveSession(ctx, slid))
	_, err = setup.auth.AuthenticateSession(ctx, aliceID, token, "", "")
	requireNotAuthorized(t, err, "Session expired")
}

func TestSupportStaffExplicitWallet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	setup := newTestSetup(shortTestConfig())
	walletID, copayers := setup.createCompleteWallet(t, 1, 1, false)
	alice := copayers[0]
	aliceID := obcore.CopayerID(alice.xpub)

	// A regular copayer cannot steer the wallet binding.
	credentials, err := setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID:        aliceID,
		Message:          authMessage,
		Signature:        alice.requestKey.signMessage(authMessage),
		ExplicitWalletID: "some-other-wallet",
	})
	require.NoError(t, err)
	require.Equal(t, walletID, credentials.WalletID)

	// Support staff may.
	lookup, err := setup.repoManager.CopayerLookupRepository().GetCopayerLookup(ctx, aliceID)
	require.NoError(t, err)
	lookup.IsSupportStaff = true
	require.NoError(t, setup.repoManager.CopayerLookupRepository().UpdateCopayerLookup(ctx, *lookup))

	credentials, err = setup.auth.Authenticate(ctx, AuthRequest{
		CopayerID:        aliceID,
		Message:          authMessage,
		Signature:        alice.requestKey.signMessage(authMessage),
		ExplicitWalletID: "some-other-wallet",
	})
	require.NoError(t, err)
	require.Equal(t, "some-other-wallet", credentials.WalletID)
}

func requireNotAuthorized(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	var coded *domain.Error
	require.ErrorAs(t, err, &coded)
	require.Equal(t, "NOT_AUTHORIZED", coded.Code)
	require.Equal(t, message, coded.Message)
}
