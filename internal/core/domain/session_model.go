package domain

import (
	"time"

	"github.com/thanhpk/randstr"
)

// Session is a per-copayer login with a sliding expiration window.
type Session struct {
	Token     string
	CopayerID string
	WalletID  string
	CreatedOn int64
	UpdatedOn int64
}

// NewSession returns a fresh session with an opaque token.
func NewSession(copayerID, walletID string) *Session {
	now := time.Now().Unix()
	return &Session{
		Token:     randstr.Hex(32),
		CopayerID: copayerID,
		WalletID:  walletID,
		CreatedOn: now,
		UpdatedOn: now,
	}
}

// IsValid reports whether the session saw activity within the expiration
// window.
func (s *Session) IsValid(expiration time.Duration) bool {
	return time.Since(time.Unix(s.UpdatedOn, 0)) <= expiration
}

// Touch slides the expiration window.
func (s *Session) Touch() {
	s.UpdatedOn = time.Now().Unix()
}
