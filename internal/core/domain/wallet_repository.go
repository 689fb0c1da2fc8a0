package domain

import "context"

// WalletRepository is the persistent store of wallets. Mutations run under
// the owning wallet's lock.
type WalletRepository interface {
	// CreateWallet persists a new wallet, failing with ErrWalletAlreadyExists
	// when the id is taken.
	CreateWallet(ctx context.Context, wallet *Wallet) error
	// GetWallet returns the wallet or ErrWalletNotFound.
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	// UpdateWallet applies updateFn to the stored wallet atomically.
	UpdateWallet(ctx context.Context, walletID string, updateFn func(w *Wallet) (*Wallet, error)) error
}

// CopayerLookup is the global copayer index used for authentication: it
// binds a copayer id to its wallet and request keys without loading the
// wallet.
type CopayerLookup struct {
	CopayerID      string
	WalletID       string
	DeviceID       string
	RequestPubKeys []RequestPubKey
	IsSupportStaff bool
}

// CopayerLookupRepository is guarded by document-level atomicity rather than
// a wallet lock, since it is keyed by copayer across wallets.
type CopayerLookupRepository interface {
	// AddCopayerLookup registers the binding, failing with
	// ErrCopayerRegistered if the copayer id is already bound to another
	// wallet; a binding to the same wallet is overwritten.
	AddCopayerLookup(ctx context.Context, lookup CopayerLookup) error
	// GetCopayerLookup returns the binding or ErrCopayerNotFound.
	GetCopayerLookup(ctx context.Context, copayerID string) (*CopayerLookup, error)
	// UpdateCopayerLookup replaces the whole stored binding, request keys
	// and support-staff flag included.
	UpdateCopayerLookup(ctx context.Context, lookup CopayerLookup) error
	// GetCopayerLookupsByDevice lists the bindings registered by a device.
	GetCopayerLookupsByDevice(ctx context.Context, deviceID string) ([]CopayerLookup, error)
}
