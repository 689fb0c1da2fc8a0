package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type notificationCounter struct {
	WalletID string
	Seq      int64
}

type notificationRepositoryImpl struct {
	db *DbManager
	// Serialises the per-wallet sequence read-modify-write; inserts from the
	// monitor and from request handlers may race on the same wallet.
	mu sync.Mutex
}

func newNotificationRepositoryImpl(db *DbManager) domain.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func notificationKey(walletID, id string) string { return "ntf:" + walletID + ":" + id }

func (r *notificationRepositoryImpl) AddNotification(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var counter notificationCounter
	err := r.db.NotificationStore.Get("ctr:"+n.WalletID, &counter)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}
	counter.WalletID = n.WalletID
	counter.Seq++
	if err := r.db.NotificationStore.Upsert("ctr:"+n.WalletID, counter); err != nil {
		return err
	}

	n.ID = fmt.Sprintf("%014d", counter.Seq)
	return r.db.NotificationStore.Upsert(notificationKey(n.WalletID, n.ID), *n)
}

func (r *notificationRepositoryImpl) GetNotifications(_ context.Context, walletID string, query domain.NotificationQuery) ([]*domain.Notification, error) {
	var found []domain.Notification
	if err := r.db.NotificationStore.Find(
		&found, badgerhold.Where("WalletID").Eq(walletID),
	); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	matches := make([]*domain.Notification, 0, len(found))
	for i := range found {
		n := found[i]
		if query.MinTs > 0 && n.CreatedOn < query.MinTs {
			continue
		}
		if query.AfterID != "" && n.ID <= query.AfterID {
			continue
		}
		matches = append(matches, &n)
		if query.Limit > 0 && len(matches) == query.Limit {
			break
		}
	}
	return matches, nil
}

func (r *notificationRepositoryImpl) GetRecentByType(_ context.Context, walletID, notificationType string, since int64) ([]*domain.Notification, error) {
	var found []domain.Notification
	if err := r.db.NotificationStore.Find(
		&found,
		badgerhold.Where("WalletID").Eq(walletID).
			And("Type").Eq(notificationType).
			And("CreatedOn").Ge(since),
	); err != nil {
		return nil, err
	}
	matches := make([]*domain.Notification, 0, len(found))
	for i := range found {
		n := found[i]
		matches = append(matches, &n)
	}
	return matches, nil
}
