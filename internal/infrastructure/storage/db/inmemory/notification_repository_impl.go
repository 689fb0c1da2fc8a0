package inmemory

import (
	"context"
	"fmt"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type notificationRepositoryImpl struct {
	store *store
}

func (r notificationRepositoryImpl) AddNotification(_ context.Context, n *domain.Notification) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	r.store.notifSeq[n.WalletID]++
	n.ID = formatNotificationID(r.store.notifSeq[n.WalletID])
	clone := *n
	r.store.notifications[n.WalletID] = append(r.store.notifications[n.WalletID], &clone)
	return nil
}

func (r notificationRepositoryImpl) GetNotifications(_ context.Context, walletID string, query domain.NotificationQuery) ([]*domain.Notification, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	matches := make([]*domain.Notification, 0)
	for _, n := range r.store.notifications[walletID] {
		if query.MinTs > 0 && n.CreatedOn < query.MinTs {
			continue
		}
		if query.AfterID != "" && n.ID <= query.AfterID {
			continue
		}
		clone := *n
		matches = append(matches, &clone)
		if query.Limit > 0 && len(matches) == query.Limit {
			break
		}
	}
	return matches, nil
}

func (r notificationRepositoryImpl) GetRecentByType(_ context.Context, walletID, notificationType string, since int64) ([]*domain.Notification, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	matches := make([]*domain.Notification, 0)
	for _, n := range r.store.notifications[walletID] {
		if n.Type != notificationType || n.CreatedOn < since {
			continue
		}
		clone := *n
		matches = append(matches, &clone)
	}
	return matches, nil
}

// formatNotificationID zero-pads the per-wallet sequence so ids sort
// lexicographically in insert order.
func formatNotificationID(seq int64) string {
	return fmt.Sprintf("%014d", seq)
}
