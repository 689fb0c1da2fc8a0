package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
)

// DbManager holds the badgerhold stores: the main store for the wallet
// collections and a dedicated one for the high-churn notification log.
type DbManager struct {
	Store             *badgerhold.Store
	NotificationStore *badgerhold.Store

	walletRepo       domain.WalletRepository
	copayerRepo      domain.CopayerLookupRepository
	addressRepo      domain.AddressRepository
	txProposalRepo   domain.TxProposalRepository
	broadcastLogRepo domain.BroadcastLogRepository
	notificationRepo domain.NotificationRepository
	sessionRepo      domain.SessionRepository
	txNoteRepo       domain.TxNoteRepository
	preferencesRepo  domain.PreferencesRepository
	pushSubRepo      domain.PushSubscriptionRepository
	txConfSubRepo    domain.TxConfirmationSubscriptionRepository
	assetRepo        domain.AssetRepository
}

// NewDbManager opens (or creates) the badger stores under the base data dir.
func NewDbManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	mainDb, err := createDb(filepath.Join(baseDbDir, "main"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening main db: %w", err)
	}
	notificationDb, err := createDb(filepath.Join(baseDbDir, "notifications"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening notifications db: %w", err)
	}

	manager := &DbManager{
		Store:             mainDb,
		NotificationStore: notificationDb,
	}
	manager.walletRepo = newWalletRepositoryImpl(manager)
	manager.copayerRepo = newCopayerLookupRepositoryImpl(manager)
	manager.addressRepo = newAddressRepositoryImpl(manager)
	manager.txProposalRepo = newTxProposalRepositoryImpl(manager)
	manager.broadcastLogRepo = newBroadcastLogRepositoryImpl(manager)
	manager.notificationRepo = newNotificationRepositoryImpl(manager)
	manager.sessionRepo = newSessionRepositoryImpl(manager)
	manager.txNoteRepo = newTxNoteRepositoryImpl(manager)
	manager.preferencesRepo = newPreferencesRepositoryImpl(manager)
	manager.pushSubRepo = newPushSubscriptionRepositoryImpl(manager)
	manager.txConfSubRepo = newTxConfSubscriptionRepositoryImpl(manager)
	manager.assetRepo = newAssetRepositoryImpl(manager)
	return manager, nil
}

func (d *DbManager) WalletRepository() domain.WalletRepository               { return d.walletRepo }
func (d *DbManager) CopayerLookupRepository() domain.CopayerLookupRepository { return d.copayerRepo }
func (d *DbManager) AddressRepository() domain.AddressRepository             { return d.addressRepo }
func (d *DbManager) TxProposalRepository() domain.TxProposalRepository       { return d.txProposalRepo }
func (d *DbManager) BroadcastLogRepository() domain.BroadcastLogRepository   { return d.broadcastLogRepo }
func (d *DbManager) NotificationRepository() domain.NotificationRepository   { return d.notificationRepo }
func (d *DbManager) SessionRepository() domain.SessionRepository             { return d.sessionRepo }
func (d *DbManager) TxNoteRepository() domain.TxNoteRepository               { return d.txNoteRepo }
func (d *DbManager) PreferencesRepository() domain.PreferencesRepository     { return d.preferencesRepo }
func (d *DbManager) PushSubscriptionRepository() domain.PushSubscriptionRepository {
	return d.pushSubRepo
}
func (d *DbManager) TxConfirmationSubscriptionRepository() domain.TxConfirmationSubscriptionRepository {
	return d.txConfSubRepo
}
func (d *DbManager) AssetRepository() domain.AssetRepository { return d.assetRepo }

// Close closes every underlying store.
func (d *DbManager) Close() error {
	if err := d.Store.Close(); err != nil {
		return err
	}
	return d.NotificationStore.Close()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badgerhold.DefaultOptions
	opts.Options = badger.DefaultOptions(dbDir).
		WithLogger(logger).
		WithCompactL0OnClose(true)
	opts.Encoder = JSONEncode
	opts.Decoder = JSONDecode

	return badgerhold.Open(opts)
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}
