package ports

import "github.com/obyte-network/obw-daemon/internal/core/domain"

// RepoManager aggregates every repository of the storage layer behind a
// single port, so services receive one dependency.
type RepoManager interface {
	WalletRepository() domain.WalletRepository
	CopayerLookupRepository() domain.CopayerLookupRepository
	AddressRepository() domain.AddressRepository
	TxProposalRepository() domain.TxProposalRepository
	BroadcastLogRepository() domain.BroadcastLogRepository
	NotificationRepository() domain.NotificationRepository
	SessionRepository() domain.SessionRepository
	TxNoteRepository() domain.TxNoteRepository
	PreferencesRepository() domain.PreferencesRepository
	PushSubscriptionRepository() domain.PushSubscriptionRepository
	TxConfirmationSubscriptionRepository() domain.TxConfirmationSubscriptionRepository
	AssetRepository() domain.AssetRepository

	// Close releases the underlying stores.
	Close() error
}
