package application

import (
	"context"
	"time"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/lock"
)

// ExtrasService covers the supporting records: tx notes, preferences, push
// and confirmation subscriptions, asset metadata and the notification read
// API.
type ExtrasService interface {
	GetTxNote(ctx context.Context, walletID, txid string) (*domain.TxNote, error)
	EditTxNote(ctx context.Context, walletID, copayerID, txid, body string) (*domain.TxNote, error)
	GetTxNotes(ctx context.Context, walletID string, minTs int64) ([]*domain.TxNote, error)

	GetPreferences(ctx context.Context, walletID, copayerID string) (*domain.Preferences, error)
	SavePreferences(ctx context.Context, preferences domain.Preferences) error

	SubscribePush(ctx context.Context, sub domain.PushSubscription) error
	UnsubscribePush(ctx context.Context, copayerID, token string) error

	SubscribeTxConfirmation(ctx context.Context, sub domain.TxConfirmationSubscription) error
	UnsubscribeTxConfirmation(ctx context.Context, copayerID, txid string) error

	GetAssets(ctx context.Context) ([]domain.Asset, error)
	GetAsset(ctx context.Context, assetID string) (*domain.Asset, error)

	// GetNotifications reads the wallet log bounded by the configured
	// maximum timespan, either from minTs or strictly after a notification
	// id.
	GetNotifications(ctx context.Context, walletID string, timeSpan time.Duration, afterID string) ([]*domain.Notification, error)
}

type extrasService struct {
	repoManager ports.RepoManager
	lockSvc     *lock.Service
	config      Config
}

// NewExtrasService ...
func NewExtrasService(repoManager ports.RepoManager, lockSvc *lock.Service, config Config) ExtrasService {
	return &extrasService{repoManager: repoManager, lockSvc: lockSvc, config: config}
}

func (s *extrasService) GetTxNote(ctx context.Context, walletID, txid string) (*domain.TxNote, error) {
	return s.repoManager.TxNoteRepository().GetTxNote(ctx, walletID, txid)
}

func (s *extrasService) EditTxNote(ctx context.Context, walletID, copayerID, txid, body string) (*domain.TxNote, error) {
	var note *domain.TxNote
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		note = &domain.TxNote{
			WalletID: walletID,
			TxID:     txid,
			Body:     body,
			EditedBy: copayerID,
			EditedOn: time.Now().Unix(),
		}
		return s.repoManager.TxNoteRepository().SaveTxNote(ctx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *extrasService) GetTxNotes(ctx context.Context, walletID string, minTs int64) ([]*domain.TxNote, error) {
	return s.repoManager.TxNoteRepository().GetTxNotes(ctx, walletID, minTs)
}

func (s *extrasService) GetPreferences(ctx context.Context, walletID, copayerID string) (*domain.Preferences, error) {
	preferences, err := s.repoManager.PreferencesRepository().GetPreferences(ctx, walletID, copayerID)
	if err != nil {
		return nil, err
	}
	if preferences == nil {
		return &domain.Preferences{WalletID: walletID, CopayerID: copayerID}, nil
	}
	return preferences, nil
}

func (s *extrasService) SavePreferences(ctx context.Context, preferences domain.Preferences) error {
	return s.repoManager.PreferencesRepository().SavePreferences(ctx, &preferences)
}

func (s *extrasService) SubscribePush(ctx context.Context, sub domain.PushSubscription) error {
	if sub.CreatedOn == 0 {
		sub.CreatedOn = time.Now().Unix()
	}
	return s.repoManager.PushSubscriptionRepository().AddPushSubscription(ctx, sub)
}

func (s *extrasService) UnsubscribePush(ctx context.Context, copayerID, token string) error {
	return s.repoManager.PushSubscriptionRepository().DeletePushSubscription(ctx, copayerID, token)
}

func (s *extrasService) SubscribeTxConfirmation(ctx context.Context, sub domain.TxConfirmationSubscription) error {
	if sub.CreatedOn == 0 {
		sub.CreatedOn = time.Now().Unix()
	}
	return s.repoManager.TxConfirmationSubscriptionRepository().AddTxConfirmationSubscription(ctx, sub)
}

func (s *extrasService) UnsubscribeTxConfirmation(ctx context.Context, copayerID, txid string) error {
	return s.repoManager.TxConfirmationSubscriptionRepository().DeleteTxConfirmationSubscription(ctx, copayerID, txid)
}

func (s *extrasService) GetAssets(ctx context.Context) ([]domain.Asset, error) {
	return s.repoManager.AssetRepository().ListAssets(ctx)
}

func (s *extrasService) GetAsset(ctx context.Context, assetID string) (*domain.Asset, error) {
	return s.repoManager.AssetRepository().GetAsset(ctx, assetID)
}

func (s *extrasService) GetNotifications(ctx context.Context, walletID string, timeSpan time.Duration, afterID string) ([]*domain.Notification, error) {
	if timeSpan <= 0 {
		timeSpan = s.config.NotificationsTimespan
	}
	if timeSpan > s.config.MaxNotificationsTimespan {
		timeSpan = s.config.MaxNotificationsTimespan
	}
	query := domain.NotificationQuery{AfterID: afterID}
	if afterID == "" {
		query.MinTs = time.Now().Add(-timeSpan).UnixMilli()
	}
	return s.repoManager.NotificationRepository().GetNotifications(ctx, walletID, query)
}
