package inmemory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

func TestNotificationIDsStrictlyIncreasing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewDbManager().NotificationRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := domain.NewNotification("w1", domain.NotificationNewIncomingTx, "", nil)
			require.NoError(t, repo.AddNotification(ctx, n))
		}()
	}
	wg.Wait()

	notifications, err := repo.GetNotifications(ctx, "w1", domain.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, notifications, 50)

	seen := map[string]bool{}
	for i, n := range notifications {
		require.NotEmpty(t, n.ID)
		require.False(t, seen[n.ID])
		seen[n.ID] = true
		if i > 0 {
			require.Greater(t, n.ID, notifications[i-1].ID)
		}
	}
}

func TestNotificationPaginationAfterID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewDbManager().NotificationRepository()

	var ids []string
	for i := 0; i < 5; i++ {
		n := domain.NewNotification("w1", domain.NotificationNewTxProposal, "", nil)
		require.NoError(t, repo.AddNotification(ctx, n))
		ids = append(ids, n.ID)
	}

	page, err := repo.GetNotifications(ctx, "w1", domain.NotificationQuery{AfterID: ids[2]})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[3], page[0].ID)
	require.Equal(t, ids[4], page[1].ID)

	limited, err := repo.GetNotifications(ctx, "w1", domain.NotificationQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, limited, 3)
}
