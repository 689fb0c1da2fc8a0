package application

import (
	"context"
	"strconv"
	"strings"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// AuthService authenticates copayer requests by signature or session token
// and manages login sessions.
type AuthService interface {
	// Authenticate verifies (copayerID, message, signature) against the
	// copayer's request-key history.
	Authenticate(ctx context.Context, req AuthRequest) (*Credentials, error)
	// AuthenticateSession verifies a session token and slides its window.
	AuthenticateSession(ctx context.Context, copayerID, token, clientVersion, explicitWalletID string) (*Credentials, error)
	// Login creates a session, returning the same token for repeated logins
	// while the previous one is still valid.
	Login(ctx context.Context, req AuthRequest) (string, error)
	// Logout destroys the copayer's session.
	Logout(ctx context.Context, copayerID string) error
}

// AuthRequest carries the authentication material of one request.
type AuthRequest struct {
	CopayerID        string
	Message          string // canonical method|url|body serialisation
	Signature        string
	ClientVersion    string
	ExplicitWalletID string // honoured for support staff only
}

type authService struct {
	repoManager ports.RepoManager
	config      Config
}

// NewAuthService ...
func NewAuthService(repoManager ports.RepoManager, config Config) AuthService {
	return &authService{repoManager: repoManager, config: config}
}

func (s *authService) Authenticate(ctx context.Context, req AuthRequest) (*Credentials, error) {
	if err := s.checkClientVersion(req.ClientVersion); err != nil {
		return nil, err
	}
	lookup, err := s.lookupCopayer(ctx, req.CopayerID)
	if err != nil {
		return nil, err
	}

	if !verifyAgainstHistory(req.Message, req.Signature, lookup.RequestPubKeys) {
		return nil, domain.NotAuthorized("Invalid signature")
	}
	return s.credentials(lookup, req.ExplicitWalletID), nil
}

func (s *authService) AuthenticateSession(ctx context.Context, copayerID, token, clientVersion, explicitWalletID string) (*Credentials, error) {
	if err := s.checkClientVersion(clientVersion); err != nil {
		return nil, err
	}
	lookup, err := s.lookupCopayer(ctx, copayerID)
	if err != nil {
		return nil, err
	}

	session, err := s.repoManager.SessionRepository().GetSession(ctx, copayerID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Token != token {
		return nil, domain.NotAuthorized("Session expired")
	}
	if !session.IsValid(s.config.SessionExpiration) {
		return nil, domain.NotAuthorized("Session expired")
	}
	session.Touch()
	if err := s.repoManager.SessionRepository().SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return s.credentials(lookup, explicitWalletID), nil
}

func (s *authService) Login(ctx context.Context, req AuthRequest) (string, error) {
	credentials, err := s.Authenticate(ctx, req)
	if err != nil {
		return "", err
	}

	sessionRepo := s.repoManager.SessionRepository()
	existing, err := sessionRepo.GetSession(ctx, credentials.CopayerID)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.IsValid(s.config.SessionExpiration) {
		existing.Touch()
		if err := sessionRepo.SaveSession(ctx, existing); err != nil {
			return "", err
		}
		return existing.Token, nil
	}

	session := domain.NewSession(credentials.CopayerID, credentials.WalletID)
	if err := sessionRepo.SaveSession(ctx, session); err != nil {
		return "", err
	}
	return session.Token, nil
}

func (s *authService) Logout(ctx context.Context, copayerID string) error {
	return s.repoManager.SessionRepository().DeleteSession(ctx, copayerID)
}

func (s *authService) lookupCopayer(ctx context.Context, copayerID string) (*domain.CopayerLookup, error) {
	lookup, err := s.repoManager.CopayerLookupRepository().GetCopayerLookup(ctx, copayerID)
	if err != nil {
		if err == domain.ErrCopayerNotFound {
			return nil, domain.NotAuthorized("Copayer not found")
		}
		return nil, err
	}
	return lookup, nil
}

func (s *authService) credentials(lookup *domain.CopayerLookup, explicitWalletID string) *Credentials {
	walletID := lookup.WalletID
	if lookup.IsSupportStaff && explicitWalletID != "" {
		walletID = explicitWalletID
	}
	return &Credentials{
		CopayerID:      lookup.CopayerID,
		WalletID:       walletID,
		IsSupportStaff: lookup.IsSupportStaff,
	}
}

func (s *authService) checkClientVersion(clientVersion string) error {
	if clientVersion == "" {
		return nil
	}
	if versionBelow(clientVersion, s.config.MinClientVersion) {
		return domain.ErrUpgradeNeeded
	}
	return nil
}

func verifyAgainstHistory(message, signature string, keys []domain.RequestPubKey) bool {
	for _, key := range keys {
		if obcore.VerifyMessageSignature(message, signature, key.Key) {
			return true
		}
	}
	return false
}

// versionBelow compares dotted client versions, ignoring an agent prefix
// like "owc-1.2.3".
func versionBelow(version, floor string) bool {
	parse := func(v string) []int {
		if i := strings.LastIndex(v, "-"); i >= 0 {
			v = v[i+1:]
		}
		parts := strings.Split(v, ".")
		nums := make([]int, 3)
		for i := 0; i < len(parts) && i < 3; i++ {
			n, err := strconv.Atoi(parts[i])
			if err != nil {
				return nil
			}
			nums[i] = n
		}
		return nums
	}
	v, f := parse(version), parse(floor)
	if v == nil || f == nil {
		return false
	}
	for i := 0; i < 3; i++ {
		if v[i] != f[i] {
			return v[i] < f[i]
		}
	}
	return false
}
