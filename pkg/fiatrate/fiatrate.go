package fiatrate

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateNotFound is returned when no rate exists for the requested
	// code within the look-back window.
	ErrRateNotFound = errors.New("fiat rate not found")
)

// Rate is one quote of the base asset in a fiat currency.
type Rate struct {
	Provider string
	Code     string
	Value    decimal.Decimal
	Ts       int64 // unix millis
}

// Provider fetches the current quotes from one upstream source.
type Provider interface {
	Name() string
	Fetch() ([]Rate, error)
}

// Service polls the configured providers on a fixed interval and answers
// point-in-time queries from a bounded in-memory window.
type Service struct {
	providers   []Provider
	interval    time.Duration
	maxLookBack time.Duration
	onError     func(error)

	mu    sync.RWMutex
	rates map[string][]Rate // provider|code -> rates ordered by ts
	quit  chan struct{}
	wg    sync.WaitGroup
}

// NewService returns a stopped fiat-rate service.
func NewService(
	providers []Provider, interval, maxLookBack time.Duration, onError func(error),
) *Service {
	return &Service{
		providers:   providers,
		interval:    interval,
		maxLookBack: maxLookBack,
		onError:     onError,
		rates:       map[string][]Rate{},
		quit:        make(chan struct{}),
	}
}

// Start begins polling. The first fetch happens immediately.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetchAll()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.fetchAll()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop halts polling.
func (s *Service) Stop() {
	close(s.quit)
	s.wg.Wait()
}

func (s *Service) fetchAll() {
	for _, provider := range s.providers {
		rates, err := provider.Fetch()
		if err != nil {
			if s.onError != nil {
				s.onError(err)
			}
			continue
		}
		s.ingest(rates)
	}
}

func (s *Service) ingest(rates []Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.maxLookBack).UnixMilli()
	for _, rate := range rates {
		key := rate.Provider + "|" + rate.Code
		window := append(s.rates[key], rate)
		sort.Slice(window, func(i, j int) bool { return window[i].Ts < window[j].Ts })
		// Drop entries older than the look-back window, keeping at least one.
		firstKept := 0
		for firstKept < len(window)-1 && window[firstKept].Ts < cutoff {
			firstKept++
		}
		s.rates[key] = window[firstKept:]
	}
}

// GetRate returns the rate for (provider, code) closest to ts (unix millis,
// zero meaning now), or ErrRateNotFound if the closest one is further away
// than the look-back window.
func (s *Service) GetRate(provider, code string, ts int64) (*Rate, error) {
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.rates[provider+"|"+code]
	if len(window) == 0 {
		return nil, ErrRateNotFound
	}
	best := window[0]
	for _, rate := range window[1:] {
		if abs(rate.Ts-ts) < abs(best.Ts-ts) {
			best = rate
		}
	}
	if abs(best.Ts-ts) > s.maxLookBack.Milliseconds() {
		return nil, ErrRateNotFound
	}
	out := best
	return &out, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
