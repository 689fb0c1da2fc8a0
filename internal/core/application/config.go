package application

import "time"

// Config carries the tunables of the wallet services. Values come from the
// config package at wiring time so services stay free of process-wide state.
type Config struct {
	Coin    string
	Network string

	MaxKeys           int
	DeleteLocktime    time.Duration
	BackoffOffset     int
	BackoffTime       time.Duration
	MaxMainAddressGap int
	ScanAddressGap    int
	SessionExpiration time.Duration
	HistoryLimit      int
	BalanceCacheTTL   time.Duration

	NotificationsTimespan    time.Duration
	MaxNotificationsTimespan time.Duration

	MinClientVersion string

	// PowerScanMaxGap bounds the inactive strides tolerated while scanning
	// with a step above one.
	PowerScanMaxGap int

	// BroadcastSpentWindow and BroadcastSpentLimit shape the spent view of
	// the UTXO reservation: proposals broadcast within the window, capped at
	// the most recent entries.
	BroadcastSpentWindow time.Duration
	BroadcastSpentLimit  int
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		Coin:                     "obyte",
		Network:                  "main",
		MaxKeys:                  100,
		DeleteLocktime:           600 * time.Second,
		BackoffOffset:            10,
		BackoffTime:              600 * time.Second,
		MaxMainAddressGap:        20,
		ScanAddressGap:           30,
		SessionExpiration:        time.Hour,
		HistoryLimit:             2000,
		BalanceCacheTTL:          10 * time.Second,
		NotificationsTimespan:    60 * time.Second,
		MaxNotificationsTimespan: 14 * 24 * time.Hour,
		MinClientVersion:         "1.0.0",
		PowerScanMaxGap:          3,
		BroadcastSpentWindow:     24 * time.Hour,
		BroadcastSpentLimit:      100,
	}
}
