package broker

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

const queueMaxSize = 1000

// Message is one broker record: a wallet-scoped notification payload or an
// address announcement consumed by the blockchain monitor.
type Message struct {
	WalletID string
	Data     interface{}
}

// Service fans out notifications to subscribers and relays new-address
// announcements to the monitor. Within a wallet, delivery order matches
// publish order.
type Service interface {
	Start()
	Stop()
	Send(msg Message)
	OnMessage(handler func(Message))
	AddAddress(address string)
	OnNewAddress(handler func(string))
}

type service struct {
	mu sync.RWMutex

	queue           chan Message
	quit            chan struct{}
	done            chan struct{}
	messageHandlers []func(Message)
	addressHandlers []func(string)
	droppedMessages int
	startOnce       sync.Once
	stopOnce        sync.Once
}

// NewService returns an in-process broker ready to be started.
func NewService() Service {
	return &service{
		queue: make(chan Message, queueMaxSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *service) Start() {
	s.startOnce.Do(func() {
		go s.dispatch()
	})
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		<-s.done
	})
}

// Send enqueues a message. Delivery is best effort: when the queue is full
// the message is dropped rather than blocking the publisher.
func (s *service) Send(msg Message) {
	select {
	case s.queue <- msg:
	default:
		s.mu.Lock()
		s.droppedMessages++
		s.mu.Unlock()
	}
}

func (s *service) OnMessage(handler func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandlers = append(s.messageHandlers, handler)
}

func (s *service) AddAddress(address string) {
	s.mu.RLock()
	handlers := make([]func(string), len(s.addressHandlers))
	copy(handlers, s.addressHandlers)
	s.mu.RUnlock()
	for _, handler := range handlers {
		handler(address)
	}
}

func (s *service) OnNewAddress(handler func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addressHandlers = append(s.addressHandlers, handler)
}

// dispatch delivers queued messages one at a time. Handlers of a single
// message run concurrently but the next message is not delivered until all
// handlers returned, which preserves per-wallet ordering for every
// subscriber.
func (s *service) dispatch() {
	defer close(s.done)
	for {
		select {
		case msg := <-s.queue:
			s.deliver(msg)
		case <-s.quit:
			for {
				select {
				case msg := <-s.queue:
					s.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *service) deliver(msg Message) {
	s.mu.RLock()
	handlers := make([]func(Message), len(s.messageHandlers))
	copy(handlers, s.messageHandlers)
	s.mu.RUnlock()

	g := errgroup.Group{}
	for _, handler := range handlers {
		h := handler
		g.Go(func() error {
			h(msg)
			return nil
		})
	}
	g.Wait()
}
