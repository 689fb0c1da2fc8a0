package domain

// TxNote is a shared note attached to a transaction of a wallet.
type TxNote struct {
	WalletID string
	TxID     string
	Body     string
	EditedBy string
	EditedOn int64
}

// Preferences are per (wallet, copayer) client settings.
type Preferences struct {
	WalletID  string
	CopayerID string
	Email     string
	Language  string
	Unit      string
}

// PushSubscription registers a device token for push delivery. Delivery
// itself is handled outside the daemon.
type PushSubscription struct {
	CopayerID   string
	Token       string
	PackageName string
	Platform    string
	CreatedOn   int64
}

// TxConfirmationSubscription asks for a one-shot notification when a
// transaction confirms. It is deactivated atomically with the notification.
type TxConfirmationSubscription struct {
	WalletID  string
	CopayerID string
	TxID      string
	IsActive  bool
	CreatedOn int64
}

// Asset is one row of the asset-metadata table synced from trusted
// registries.
type Asset struct {
	AssetID      string
	MetadataUnit string
	Registry     string
	Name         string
	ShortName    string
	Decimals     int
}
