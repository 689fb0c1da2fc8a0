package domain

import (
	"time"

	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// Address is one derived wallet address. For a given wallet and path the
// derived address and definition are deterministic from the key ring;
// addresses are never deleted except with the wallet.
type Address struct {
	Address      string
	WalletID     string
	Path         string // m/change/index
	IsChange     bool
	AddressType  string
	Definition   string            // JSON multisig definition
	SigningPaths map[string]string // base64 pubkey -> signing path
	HasActivity  bool              // sticky once observed
	CreatedOn    int64
}

// NewAddress binds a derived address to its wallet.
func NewAddress(walletID string, derived *obcore.DerivedAddress, change, index uint32, addressType string) Address {
	return Address{
		Address:      derived.Address,
		WalletID:     walletID,
		Path:         obcore.Path(change, index),
		IsChange:     change == InternalChain,
		AddressType:  addressType,
		Definition:   obcore.EncodeTemplate(derived.Definition),
		SigningPaths: derived.SigningPaths,
		CreatedOn:    time.Now().Unix(),
	}
}

// Index returns the derivation index of the address.
func (a *Address) Index() (uint32, error) {
	_, index, err := obcore.ParsePath(a.Path)
	return index, err
}
