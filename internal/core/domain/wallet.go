package domain

import (
	"time"

	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// IsComplete reports whether the roster is full and the key ring frozen.
func (w *Wallet) IsComplete() bool {
	return w.Status == WalletStatusComplete
}

// IsScanning reports whether an address scan currently owns the wallet.
func (w *Wallet) IsScanning() bool {
	return w.ScanStatus == ScanStatusRunning
}

// NeedsScan reports whether a failed scan pinned the wallet until the next
// successful one.
func (w *Wallet) NeedsScan() bool {
	return w.ScanStatus == ScanStatusError
}

// GetCopayer returns the copayer with the given id, or nil.
func (w *Wallet) GetCopayer(copayerID string) *Copayer {
	for i := range w.Copayers {
		if w.Copayers[i].ID == copayerID {
			return &w.Copayers[i]
		}
	}
	return nil
}

// HasCopayerWithXPub reports whether some copayer already joined with the
// given extended public key.
func (w *Wallet) HasCopayerWithXPub(xpub string) bool {
	for _, c := range w.Copayers {
		if c.XPub == xpub {
			return true
		}
	}
	return false
}

// AddCopayer appends a copayer to a pending wallet. On the nth join the
// wallet transitions to complete and the definition template is pinned from
// the roster's device ids in join order; from then on the key ring is frozen.
// Returns whether this join completed the wallet.
func (w *Wallet) AddCopayer(c Copayer) (bool, error) {
	if w.IsComplete() {
		return false, ErrWalletFull
	}
	if w.HasCopayerWithXPub(c.XPub) {
		return false, ErrCopayerInWallet
	}
	if c.CreatedOn == 0 {
		c.CreatedOn = time.Now().Unix()
	}
	c.RequestPubKeys = []RequestPubKey{{Key: c.RequestPubKey, Signature: c.Signature}}
	w.Copayers = append(w.Copayers, c)

	if len(w.Copayers) < w.N {
		return false, nil
	}

	deviceIDs := make([]string, 0, w.N)
	for _, copayer := range w.Copayers {
		deviceIDs = append(deviceIDs, copayer.DeviceID)
	}
	template, err := obcore.NewDefinitionTemplate(w.M, w.N, deviceIDs)
	if err != nil {
		return false, err
	}
	w.DefinitionTemplate = obcore.EncodeTemplate(template)
	w.Status = WalletStatusComplete
	return true, nil
}

// PubKeyRing returns the ordered (device id, xpub) ring used for address
// derivation.
func (w *Wallet) PubKeyRing() []obcore.CopayerKey {
	ring := make([]obcore.CopayerKey, 0, len(w.Copayers))
	for _, c := range w.Copayers {
		ring = append(ring, obcore.CopayerKey{DeviceID: c.DeviceID, XPub: c.XPub})
	}
	return ring
}

// DeriveAddress instantiates the wallet template at the given path. Only
// valid once the wallet is complete.
func (w *Wallet) DeriveAddress(change, index uint32) (*obcore.DerivedAddress, error) {
	if !w.IsComplete() {
		return nil, ErrWalletNotComplete
	}
	template, err := obcore.ParseTemplate(w.DefinitionTemplate)
	if err != nil {
		return nil, err
	}
	return obcore.DeriveAddress(template, w.PubKeyRing(), change, index)
}

// AddRequestPubKey appends a new request key for the copayer, the newest
// first, keeping at most maxKeys entries.
func (c *Copayer) AddRequestPubKey(key, signature string, maxKeys int) error {
	if len(c.RequestPubKeys) >= maxKeys {
		return ErrTooManyKeys
	}
	c.RequestPubKey = key
	c.Signature = signature
	c.RequestPubKeys = append([]RequestPubKey{{Key: key, Signature: signature}}, c.RequestPubKeys...)
	return nil
}

// HasRequestPubKey reports whether key appears anywhere in the copayer's
// request-key history.
func (c *Copayer) HasRequestPubKey(key string) bool {
	for _, rk := range c.RequestPubKeys {
		if rk.Key == key {
			return true
		}
	}
	return false
}
