package inmemory

import (
	"sync"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
)

type store struct {
	locker sync.Mutex

	wallets        map[string]*domain.Wallet
	copayerLookups map[string]*domain.CopayerLookup
	addresses      map[string][]*domain.Address // by wallet, derivation order
	addressIndex   map[string]*domain.Address   // by address string
	txProposals    map[string]map[string]*domain.TxProposal
	broadcastLog   []domain.BroadcastedTx
	notifications  map[string][]*domain.Notification
	notifSeq       map[string]int64
	sessions       map[string]*domain.Session
	txNotes        map[string]map[string]*domain.TxNote
	preferences    map[string]*domain.Preferences
	pushSubs       []domain.PushSubscription
	txConfSubs     []domain.TxConfirmationSubscription
	assets         map[string]domain.Asset
}

// DbManager is the in-memory storage used by tests.
type DbManager struct {
	store *store

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

// NewDbManager returns an empty in-memory RepoManager.
func NewDbManager() ports.RepoManager {
	s := &store{
		wallets:        map[string]*domain.Wallet{},
		copayerLookups: map[string]*domain.CopayerLookup{},
		addresses:      map[string][]*domain.Address{},
		addressIndex:   map[string]*domain.Address{},
		txProposals:    map[string]map[string]*domain.TxProposal{},
		notifications:  map[string][]*domain.Notification{},
		notifSeq:       map[string]int64{},
		sessions:       map[string]*domain.Session{},
		txNotes:        map[string]map[string]*domain.TxNote{},
		preferences:    map[string]*domain.Preferences{},
		assets:         map[string]domain.Asset{},
	}
	return &DbManager{
		store:            s,
		walletRepo:       walletRepositoryImpl{s},
		copayerRepo:      copayerLookupRepositoryImpl{s},
		addressRepo:      addressRepositoryImpl{s},
		txProposalRepo:   txProposalRepositoryImpl{s},
		broadcastLogRepo: broadcastLogRepositoryImpl{s},
		notificationRepo: notificationRepositoryImpl{s},
		sessionRepo:      sessionRepositoryImpl{s},
		txNoteRepo:       txNoteRepositoryImpl{s},
		preferencesRepo:  preferencesRepositoryImpl{s},
		pushSubRepo:      pushSubscriptionRepositoryImpl{s},
		txConfSubRepo:    txConfSubscriptionRepositoryImpl{s},
		assetRepo:        assetRepositoryImpl{s},
	}
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

func (d *DbManager) Close() error { return nil }
