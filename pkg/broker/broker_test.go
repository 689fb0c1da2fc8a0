package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBrokerPreservesOrder(t *testing.T) {
	t.Parallel()

	svc := NewService()

	var (
		mu       sync.Mutex
		received []int
	)
	done := make(chan struct{})
	svc.OnMessage(func(msg Message) {
		mu.Lock()
		received = append(received, msg.Data.(int))
		if len(received) == 50 {
			close(done)
		}
		mu.Unlock()
	})
	svc.Start()
	defer svc.Stop()

	for i := 0; i < 50; i++ {
		svc.Send(Message{WalletID: "w1", Data: i})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range received {
		require.Equal(t, i, v)
	}
}

func TestBrokerFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	svc := NewService()

	var wg sync.WaitGroup
	wg.Add(2)
	var first, second Message
	svc.OnMessage(func(msg Message) { first = msg; wg.Done() })
	svc.OnMessage(func(msg Message) { second = msg; wg.Done() })
	svc.Start()
	defer svc.Stop()

	svc.Send(Message{WalletID: "w1", Data: "hello"})
	wg.Wait()

	require.Equal(t, "hello", first.Data)
	require.Equal(t, "hello", second.Data)
}

func TestBrokerAddressAnnouncements(t *testing.T) {
	t.Parallel()

	svc := NewService()

	var got []string
	svc.OnNewAddress(func(addr string) { got = append(got, addr) })
	svc.AddAddress("ADDRESS1")
	svc.AddAddress("ADDRESS2")

	require.Equal(t, []string{"ADDRESS1", "ADDRESS2"}, got)
}
