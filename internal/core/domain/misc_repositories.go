package domain

import "context"

// SessionRepository stores at most one session per copayer.
type SessionRepository interface {
	GetSession(ctx context.Context, copayerID string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, copayerID string) error
}

// TxNoteRepository stores per-transaction notes.
type TxNoteRepository interface {
	GetTxNote(ctx context.Context, walletID, txid string) (*TxNote, error)
	SaveTxNote(ctx context.Context, note *TxNote) error
	// GetTxNotes lists notes edited at or after minTs.
	GetTxNotes(ctx context.Context, walletID string, minTs int64) ([]*TxNote, error)
}

// PreferencesRepository stores per-copayer preferences.
type PreferencesRepository interface {
	GetPreferences(ctx context.Context, walletID, copayerID string) (*Preferences, error)
	SavePreferences(ctx context.Context, preferences *Preferences) error
}

// PushSubscriptionRepository stores push tokens.
type PushSubscriptionRepository interface {
	AddPushSubscription(ctx context.Context, sub PushSubscription) error
	DeletePushSubscription(ctx context.Context, copayerID, token string) error
	GetPushSubscriptions(ctx context.Context, copayerID string) ([]PushSubscription, error)
}

// TxConfirmationSubscriptionRepository stores confirmation watches. The
// by-txid lookup is global: the monitor fires watches across wallets.
type TxConfirmationSubscriptionRepository interface {
	AddTxConfirmationSubscription(ctx context.Context, sub TxConfirmationSubscription) error
	DeleteTxConfirmationSubscription(ctx context.Context, copayerID, txid string) error
	// GetActiveTxConfirmationSubscriptions returns active watches for the
	// given txid.
	GetActiveTxConfirmationSubscriptions(ctx context.Context, txid string) ([]TxConfirmationSubscription, error)
	// DeactivateTxConfirmationSubscription flips the watch off; done
	// atomically with the confirmation notification.
	DeactivateTxConfirmationSubscription(ctx context.Context, walletID, copayerID, txid string) error
}

// AssetRepository is the asset-metadata table, globally guarded by
// document-level atomicity.
type AssetRepository interface {
	UpsertAsset(ctx context.Context, asset Asset) error
	GetAsset(ctx context.Context, assetID string) (*Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	// GetAssetByName resolves a display name, or nil.
	GetAssetByName(ctx context.Context, name string) (*Asset, error)
}
