package config

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// ListenPortKey is the port the REST interface listens on.
	ListenPortKey = "LISTEN_PORT"
	// DatadirKey is the local data directory holding the badger stores.
	DatadirKey = "DATA_DIR_PATH"
	// LogLevelKey sets the logrus level.
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey selects the chain: "main" or "test".
	NetworkKey = "NETWORK"
	// CoinKey names the coin served by this instance.
	CoinKey = "COIN"
	// ExplorerEndpointKey is the REST endpoint of the ledger explorer.
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// ExplorerRequestTimeoutKey are the milliseconds to wait for explorer responses.
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// HubEndpointKey is the websocket endpoint of the hub.
	HubEndpointKey = "HUB_WS_ENDPOINT"
	// MinClientVersionKey is the minimum supported client version; older
	// clients get an upgrade-needed error.
	MinClientVersionKey = "MIN_CLIENT_VERSION"

	// MaxKeysKey caps the request-public-key history of a copayer.
	MaxKeysKey = "MAX_KEYS"
	// DeleteLocktimeKey is the removal cooldown in seconds after another
	// copayer acted on a proposal.
	DeleteLocktimeKey = "DELETE_LOCKTIME"
	// BackoffOffsetKey is the number of trailing rejected proposals after
	// which the creation throttle arms.
	BackoffOffsetKey = "BACKOFF_OFFSET"
	// BackoffTimeKey is the throttle cooldown in seconds.
	BackoffTimeKey = "BACKOFF_TIME"
	// MaxMainAddressGapKey is the gap limit on inactive receive addresses.
	MaxMainAddressGapKey = "MAX_MAIN_ADDRESS_GAP"
	// ScanAddressGapKey is the gap after which a scan stops.
	ScanAddressGapKey = "SCAN_ADDRESS_GAP"
	// SessionExpirationKey is the sliding session lifetime in seconds.
	SessionExpirationKey = "SESSION_EXPIRATION"
	// HistoryLimitKey caps a single history page.
	HistoryLimitKey = "HISTORY_LIMIT"
	// BalanceCacheDurationKey is the balance cache TTL in seconds.
	BalanceCacheDurationKey = "BALANCE_CACHE_DURATION"
	// MaxNotificationsTimespanKey bounds how far back notifications can be read, in seconds.
	MaxNotificationsTimespanKey = "MAX_NOTIFICATIONS_TIMESPAN"
	// NotificationsTimespanKey is the default notifications window in seconds.
	NotificationsTimespanKey = "NOTIFICATIONS_TIMESPAN"
	// LockWaitTimeKey is the wallet-lock wait budget in seconds.
	LockWaitTimeKey = "LOCK_WAIT_TIME"
	// LockExeTimeKey is the wallet-lock max hold in seconds.
	LockExeTimeKey = "LOCK_EXE_TIME"
	// FiatRateFetchIntervalKey is the rate polling interval in minutes.
	FiatRateFetchIntervalKey = "FIAT_RATE_FETCH_INTERVAL"
	// FiatRateMaxLookBackTimeKey is the rate look-back window in minutes.
	FiatRateMaxLookBackTimeKey = "FIAT_RATE_MAX_LOOK_BACK_TIME"
	// CreateWalletRatePerHourKey caps wallet creations per source IP per hour.
	CreateWalletRatePerHourKey = "CREATE_WALLET_RATE_PER_HOUR"
	// AssetRegistryAddressesKey is the comma-separated trusted asset
	// metadata registry addresses.
	AssetRegistryAddressesKey = "ASSET_REGISTRY_ADDRESSES"

	// DbLocation is the subdirectory of the datadir holding the stores.
	DbLocation = "db"
)

var vip *viper.Viper

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("OBW")
	vip.AutomaticEnv()

	vip.SetDefault(ListenPortKey, 3232)
	vip.SetDefault(DatadirKey, defaultDatadir())
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(NetworkKey, "main")
	vip.SetDefault(CoinKey, "obyte")
	vip.SetDefault(ExplorerEndpointKey, "https://explorer.obyte.org")
	vip.SetDefault(ExplorerRequestTimeoutKey, 15000)
	vip.SetDefault(HubEndpointKey, "wss://obyte.org/bb")
	vip.SetDefault(MinClientVersionKey, "1.0.0")

	vip.SetDefault(MaxKeysKey, 100)
	vip.SetDefault(DeleteLocktimeKey, 600)
	vip.SetDefault(BackoffOffsetKey, 10)
	vip.SetDefault(BackoffTimeKey, 600)
	vip.SetDefault(MaxMainAddressGapKey, 20)
	vip.SetDefault(ScanAddressGapKey, 30)
	vip.SetDefault(SessionExpirationKey, 3600)
	vip.SetDefault(HistoryLimitKey, 2000)
	vip.SetDefault(BalanceCacheDurationKey, 10)
	vip.SetDefault(MaxNotificationsTimespanKey, 60*60*24*14)
	vip.SetDefault(NotificationsTimespanKey, 60)
	vip.SetDefault(LockWaitTimeKey, 5)
	vip.SetDefault(LockExeTimeKey, 40)
	vip.SetDefault(FiatRateFetchIntervalKey, 10)
	vip.SetDefault(FiatRateMaxLookBackTimeKey, 120)
	vip.SetDefault(CreateWalletRatePerHourKey, 15)
	vip.SetDefault(AssetRegistryAddressesKey, "")

	if err := validate(); err != nil {
		log.WithError(err).Panic("invalid config")
	}
}

// Set overrides a config value, primarily for tests.
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// GetString reads a string option.
func GetString(key string) string {
	return vip.GetString(key)
}

// GetInt reads an int option.
func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetDuration reads a seconds-denominated option as a duration.
func GetDuration(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

// GetStringSlice reads a comma-separated option.
func GetStringSlice(key string) []string {
	raw := strings.TrimSpace(vip.GetString(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ServerExeTime is the max hold applied to server-side task wrapping,
// 1.5x the wallet-lock hold.
func ServerExeTime() time.Duration {
	return GetDuration(LockExeTimeKey) * 3 / 2
}

func validate() error {
	network := GetString(NetworkKey)
	if network != "main" && network != "test" {
		return fmt.Errorf("network must be either 'main' or 'test', got %q", network)
	}
	if GetInt(MaxMainAddressGapKey) <= 0 {
		return fmt.Errorf("%s must be positive", MaxMainAddressGapKey)
	}
	if GetInt(ScanAddressGapKey) < GetInt(MaxMainAddressGapKey) {
		return fmt.Errorf("%s must not be below %s", ScanAddressGapKey, MaxMainAddressGapKey)
	}
	if GetInt(SessionExpirationKey) <= 0 {
		return fmt.Errorf("%s must be positive", SessionExpirationKey)
	}
	return nil
}

func defaultDatadir() string {
	return "./obw-daemon-data"
}
