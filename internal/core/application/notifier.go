package application

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/broker"
)

// notifier appends to the wallet's notification log and relays the record
// through the message broker. Delivery is best effort: a failure to persist
// is logged and never blocks the calling pipeline.
type notifier struct {
	repo      domain.NotificationRepository
	brokerSvc broker.Service
}

func newNotifier(repo domain.NotificationRepository, brokerSvc broker.Service) *notifier {
	return &notifier{repo: repo, brokerSvc: brokerSvc}
}

func (n *notifier) Notify(ctx context.Context, walletID, notificationType, creatorID string, data map[string]interface{}) {
	notification := domain.NewNotification(walletID, notificationType, creatorID, data)
	if err := n.repo.AddNotification(ctx, notification); err != nil {
		log.WithError(err).Warnf("could not store %s notification for wallet %s", notificationType, walletID)
		return
	}
	n.brokerSvc.Send(broker.Message{WalletID: walletID, Data: notification})
}
