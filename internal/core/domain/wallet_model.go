package domain

import (
	"time"

	"github.com/thanhpk/randstr"
)

// Copayer is one participant of a shared wallet. Its id is the hash of its
// extended public key, so a copayer cannot join twice with the same key.
type Copayer struct {
	ID             string
	Name           string
	XPub           string
	Account        int
	DeviceID       string
	RequestPubKey  string
	Signature      string // signature of (name, xpub, requestPubKey) under the wallet creation key
	RequestPubKeys []RequestPubKey
	CustomData     string
	CreatedOn      int64
}

// RequestPubKey is one entry of the request-key history; the first entry is
// the current key.
type RequestPubKey struct {
	Key       string
	Signature string
}

// Wallet is the root aggregate: the m-of-n roster, the frozen public-key
// ring once complete, and the monotone address counters.
type Wallet struct {
	ID                  string
	Name                string
	M                   int
	N                   int
	Coin                string
	Network             string
	DerivationStrategy  string
	AddressType         string
	SingleAddress       bool
	PubKey              string // creation key used to verify joining signatures
	DefinitionTemplate  string // JSON, set when the roster is frozen
	Copayers            []Copayer
	ReceiveAddressIndex uint32
	ChangeAddressIndex  uint32
	ScanStatus          string
	Status              string
	CreatedOn           int64
}

// NewWallet validates the quorum shape and returns a pending wallet. When id
// is empty a fresh one is generated.
func NewWallet(id, name string, m, n int, coin, network, pubKey string, singleAddress bool, derivationStrategy string) (*Wallet, error) {
	if !ValidCosigners(m, n) {
		return nil, NewError("INVALID_PARAMS", "Invalid combination of required copayers / total copayers")
	}
	if derivationStrategy == "" {
		derivationStrategy = DerivationStrategyBIP44
	}
	if derivationStrategy != DerivationStrategyLegacy && derivationStrategy != DerivationStrategyBIP44 {
		return nil, NewError("INVALID_PARAMS", "Invalid derivation strategy")
	}
	if id == "" {
		id = randstr.Hex(16)
	}
	addressType := AddressTypeShared
	if n == 1 {
		addressType = AddressTypeNormal
	}
	return &Wallet{
		ID:                 id,
		Name:               name,
		M:                  m,
		N:                  n,
		Coin:               coin,
		Network:            network,
		DerivationStrategy: derivationStrategy,
		AddressType:        addressType,
		SingleAddress:      singleAddress,
		PubKey:             pubKey,
		Status:             WalletStatusPending,
		CreatedOn:          time.Now().Unix(),
	}, nil
}

// ValidCosigners reports whether (m, n) is inside the legal range.
func ValidCosigners(m, n int) bool {
	return m >= MinCosigners && n >= m && n <= MaxCosigners
}
