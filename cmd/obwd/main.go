package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/config"
	"github.com/obyte-network/obw-daemon/internal/core/application"
	dbbadger "github.com/obyte-network/obw-daemon/internal/infrastructure/storage/db/badger"
	httpinterface "github.com/obyte-network/obw-daemon/internal/interfaces/http"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	obyteexplorer "github.com/obyte-network/obw-daemon/pkg/explorer/obyte"
	"github.com/obyte-network/obw-daemon/pkg/fiatrate"
	"github.com/obyte-network/obw-daemon/pkg/fiatrate/cryptocompare"
	hubws "github.com/obyte-network/obw-daemon/pkg/hub/ws"
	"github.com/obyte-network/obw-daemon/pkg/lock"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	appConfig := application.Config{
		Coin:                     config.GetString(config.CoinKey),
		Network:                  config.GetString(config.NetworkKey),
		MaxKeys:                  config.GetInt(config.MaxKeysKey),
		DeleteLocktime:           config.GetDuration(config.DeleteLocktimeKey),
		BackoffOffset:            config.GetInt(config.BackoffOffsetKey),
		BackoffTime:              config.GetDuration(config.BackoffTimeKey),
		MaxMainAddressGap:        config.GetInt(config.MaxMainAddressGapKey),
		ScanAddressGap:           config.GetInt(config.ScanAddressGapKey),
		SessionExpiration:        config.GetDuration(config.SessionExpirationKey),
		HistoryLimit:             config.GetInt(config.HistoryLimitKey),
		BalanceCacheTTL:          config.GetDuration(config.BalanceCacheDurationKey),
		NotificationsTimespan:    config.GetDuration(config.NotificationsTimespanKey),
		MaxNotificationsTimespan: config.GetDuration(config.MaxNotificationsTimespanKey),
		MinClientVersion:         config.GetString(config.MinClientVersionKey),
		PowerScanMaxGap:          3,
		BroadcastSpentWindow:     24 * time.Hour,
		BroadcastSpentLimit:      100,
	}

	repoManager, err := dbbadger.NewDbManager(
		filepath.Join(config.GetString(config.DatadirKey), config.DbLocation), nil,
	)
	if err != nil {
		log.WithError(err).Panic("opening storage")
	}
	defer repoManager.Close()

	explorerSvc, err := obyteexplorer.NewService(
		config.GetString(config.ExplorerEndpointKey),
		time.Duration(config.GetInt(config.ExplorerRequestTimeoutKey))*time.Millisecond,
	)
	if err != nil {
		log.WithError(err).Panic("connecting to explorer")
	}

	hubSvc := hubws.NewService(config.GetString(config.HubEndpointKey))
	if err := hubSvc.Connect(); err != nil {
		log.WithError(err).Panic("connecting to hub")
	}
	defer hubSvc.Close()

	lockSvc := lock.NewService(
		config.GetDuration(config.LockWaitTimeKey),
		config.GetDuration(config.LockExeTimeKey),
	)
	brokerSvc := broker.NewService()
	brokerSvc.Start()
	defer brokerSvc.Stop()

	walletSvc := application.NewWalletService(repoManager, explorerSvc, lockSvc, brokerSvc, appConfig)
	addressSvc := application.NewAddressService(repoManager, explorerSvc, lockSvc, brokerSvc, appConfig)
	proposalSvc := application.NewProposalService(repoManager, explorerSvc, hubSvc, lockSvc, brokerSvc, appConfig)
	authSvc := application.NewAuthService(repoManager, appConfig)
	extrasSvc := application.NewExtrasService(repoManager, lockSvc, appConfig)

	listener := application.NewBlockchainListener(repoManager, explorerSvc, hubSvc, lockSvc, brokerSvc, appConfig)
	listener.ObserveBlockchain()
	defer listener.StopObserveBlockchain()

	if registries := config.GetStringSlice(config.AssetRegistryAddressesKey); len(registries) > 0 {
		go func() {
			if err := listener.SyncAssetMetadata(context.Background(), registries); err != nil {
				log.WithError(err).Warn("asset metadata sync failed")
			}
		}()
	}

	fiatRateSvc := fiatrate.NewService(
		[]fiatrate.Provider{
			cryptocompare.NewProvider("https://min-api.cryptocompare.com", "GBYTE", []string{"USD", "EUR", "BTC"}),
		},
		time.Duration(config.GetInt(config.FiatRateFetchIntervalKey))*time.Minute,
		time.Duration(config.GetInt(config.FiatRateMaxLookBackTimeKey))*time.Minute,
		func(err error) { log.WithError(err).Warn("fiat rate fetch failed") },
	)
	fiatRateSvc.Start()
	defer fiatRateSvc.Stop()

	restSvc := httpinterface.NewService(httpinterface.Opts{
		Port:                    config.GetInt(config.ListenPortKey),
		CreateWalletRatePerHour: config.GetInt(config.CreateWalletRatePerHourKey),
		AuthSvc:                 authSvc,
		WalletSvc:               walletSvc,
		AddressSvc:              addressSvc,
		ProposalSvc:             proposalSvc,
		ExtrasSvc:               extrasSvc,
		FiatRateSvc:             fiatRateSvc,
	})
	if err := restSvc.Start(); err != nil {
		log.WithError(err).Panic("starting http interface")
	}
	defer restSvc.Stop()

	log.Info("daemon is up")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
}
