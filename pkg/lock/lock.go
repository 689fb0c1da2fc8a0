package lock

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when the wait budget elapses before the
	// wallet lock can be acquired.
	ErrLockTimeout = errors.New("wallet is locked, could not acquire in time")
)

// Service hands out per-wallet mutual exclusion. Every state-mutating wallet
// operation runs under RunLocked; acquisition auto-expires after the max hold
// so a crashed holder cannot deadlock the wallet.
type Service struct {
	mu    sync.Mutex
	locks map[string]*walletLock

	defaultWait    time.Duration
	defaultMaxHold time.Duration
}

type walletLock struct {
	ch         chan struct{} // holds one token when free
	generation uint64
}

// Opts override the service defaults for a single acquisition.
type Opts struct {
	Wait    time.Duration
	MaxHold time.Duration
}

// NewService returns a lock service with the given default wait and max-hold
// budgets.
func NewService(defaultWait, defaultMaxHold time.Duration) *Service {
	return &Service{
		locks:          map[string]*walletLock{},
		defaultWait:    defaultWait,
		defaultMaxHold: defaultMaxHold,
	}
}

func (s *Service) lockFor(walletID string) *walletLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.locks[walletID]
	if !ok {
		wl = &walletLock{ch: make(chan struct{}, 1)}
		wl.ch <- struct{}{}
		s.locks[walletID] = wl
	}
	return wl
}

// Acquire takes the wallet lock, waiting at most the wait budget. The
// returned release function is idempotent and is a no-op once the max hold
// has expired the acquisition.
func (s *Service) Acquire(walletID string, opts *Opts) (release func(), err error) {
	wait, maxHold := s.defaultWait, s.defaultMaxHold
	if opts != nil {
		if opts.Wait > 0 {
			wait = opts.Wait
		}
		if opts.MaxHold > 0 {
			maxHold = opts.MaxHold
		}
	}

	wl := s.lockFor(walletID)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-wl.ch:
	case <-timer.C:
		return nil, ErrLockTimeout
	}

	s.mu.Lock()
	wl.generation++
	generation := wl.generation
	s.mu.Unlock()

	releaseOnce := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if wl.generation != generation {
			return false
		}
		wl.generation++
		wl.ch <- struct{}{}
		return true
	}

	expiry := time.AfterFunc(maxHold, func() { releaseOnce() })
	return func() {
		expiry.Stop()
		releaseOnce()
	}, nil
}

// RunLocked runs fn while holding the wallet lock.
func (s *Service) RunLocked(walletID string, opts *Opts, fn func() error) error {
	release, err := s.Acquire(walletID, opts)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
