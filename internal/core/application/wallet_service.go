package application

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/lock"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// WalletService covers wallet formation, the copayer roster, status queries
// and the read-only balance/history views.
type WalletService interface {
	CreateWallet(ctx context.Context, opts CreateWalletOpts) (string, error)
	JoinWallet(ctx context.Context, opts JoinWalletOpts) (*WalletStatus, error)
	AddAccess(ctx context.Context, copayerID, newRequestPubKey, signature string) error
	GetStatus(ctx context.Context, walletID string) (*WalletStatus, error)
	GetWalletFromIdentifier(ctx context.Context, identifier string) (*domain.Wallet, error)
	UpdateWalletName(ctx context.Context, walletID, name string) error
	UpdateCopayerName(ctx context.Context, walletID, copayerID, name string) error
	GetCopayersByDevice(ctx context.Context, deviceID string) ([]domain.Copayer, error)
	GetBalance(ctx context.Context, walletID, asset string) (map[string]*explorer.Balance, error)
	GetTxHistory(ctx context.Context, walletID string, opts explorer.TxHistoryOpts) (*TxHistoryPage, error)
}

type balanceCacheEntry struct {
	balances map[string]*explorer.Balance
	storedAt time.Time
}

type walletService struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	lockSvc     *lock.Service
	brokerSvc   broker.Service
	notifier    *notifier
	config      Config

	balanceCacheMtx sync.Mutex
	balanceCache    map[string]balanceCacheEntry
}

// NewWalletService ...
func NewWalletService(
	repoManager ports.RepoManager,
	explorerSvc explorer.Service,
	lockSvc *lock.Service,
	brokerSvc broker.Service,
	config Config,
) WalletService {
	return &walletService{
		repoManager:  repoManager,
		explorerSvc:  explorerSvc,
		lockSvc:      lockSvc,
		brokerSvc:    brokerSvc,
		notifier:     newNotifier(repoManager.NotificationRepository(), brokerSvc),
		config:       config,
		balanceCache: map[string]balanceCacheEntry{},
	}
}

func (s *walletService) CreateWallet(ctx context.Context, opts CreateWalletOpts) (string, error) {
	if opts.Name == "" || opts.PubKey == "" {
		return "", ErrInvalidParams
	}
	if opts.Coin != "" && opts.Coin != s.config.Coin {
		return "", ErrInvalidParams
	}
	network := opts.Network
	if network == "" {
		network = s.config.Network
	}
	wallet, err := domain.NewWallet(
		opts.ID, opts.Name, opts.M, opts.N, s.config.Coin, network,
		opts.PubKey, opts.SingleAddress, opts.DerivationStrategy,
	)
	if err != nil {
		return "", err
	}
	if err := s.repoManager.WalletRepository().CreateWallet(ctx, wallet); err != nil {
		return "", err
	}
	log.Infof("created wallet %s (%d-of-%d)", wallet.ID, wallet.M, wallet.N)
	return wallet.ID, nil
}

func (s *walletService) JoinWallet(ctx context.Context, opts JoinWalletOpts) (*WalletStatus, error) {
	if opts.Name == "" || opts.XPub == "" || opts.RequestPubKey == "" {
		return nil, ErrInvalidParams
	}

	var status *WalletStatus
	err := s.lockSvc.RunLocked(opts.WalletID, nil, func() error {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, opts.WalletID)
		if err != nil {
			return err
		}
		if (opts.Coin != "" && opts.Coin != wallet.Coin) ||
			(opts.Network != "" && opts.Network != wallet.Network) {
			return ErrCoinNetworkMismatch
		}

		// The joining triple must be endorsed by the wallet creation key.
		message := strings.Join([]string{opts.Name, opts.XPub, opts.RequestPubKey}, "|")
		if !obcore.VerifyMessageSignature(message, opts.CopayerSignature, wallet.PubKey) {
			return domain.ErrCopayerDataMismatch
		}

		if wallet.IsComplete() {
			return domain.ErrWalletFull
		}
		if wallet.HasCopayerWithXPub(opts.XPub) {
			return domain.ErrCopayerInWallet
		}

		copayerID := obcore.CopayerID(opts.XPub)
		if existing, err := s.repoManager.CopayerLookupRepository().GetCopayerLookup(ctx, copayerID); err == nil && existing != nil {
			return domain.ErrCopayerRegistered
		}

		copayer := domain.Copayer{
			ID:            copayerID,
			Name:          opts.Name,
			XPub:          opts.XPub,
			Account:       opts.Account,
			DeviceID:      opts.DeviceID,
			RequestPubKey: opts.RequestPubKey,
			Signature:     opts.CopayerSignature,
			CustomData:    opts.CustomData,
		}

		if opts.DryRun {
			preview := *wallet
			if _, err := preview.AddCopayer(copayer); err != nil {
				return err
			}
			status = &WalletStatus{Wallet: &preview}
			return nil
		}

		var completed bool
		if err := s.repoManager.WalletRepository().UpdateWallet(ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
			var err error
			completed, err = w.AddCopayer(copayer)
			if err != nil {
				return nil, err
			}
			wallet = w
			return w, nil
		}); err != nil {
			return err
		}

		if err := s.repoManager.CopayerLookupRepository().AddCopayerLookup(ctx, domain.CopayerLookup{
			CopayerID:      copayerID,
			WalletID:       wallet.ID,
			DeviceID:       opts.DeviceID,
			RequestPubKeys: []domain.RequestPubKey{{Key: opts.RequestPubKey, Signature: opts.CopayerSignature}},
		}); err != nil {
			return err
		}

		s.notifier.Notify(ctx, wallet.ID, domain.NotificationNewCopayer, copayerID, map[string]interface{}{
			"walletId":    wallet.ID,
			"copayerId":   copayerID,
			"copayerName": opts.Name,
		})
		if completed && wallet.N > 1 {
			s.notifier.Notify(ctx, wallet.ID, domain.NotificationWalletComplete, copayerID, map[string]interface{}{
				"walletId": wallet.ID,
			})
		}

		status = &WalletStatus{Wallet: wallet}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *walletService) AddAccess(ctx context.Context, copayerID, newRequestPubKey, signature string) error {
	lookup, err := s.repoManager.CopayerLookupRepository().GetCopayerLookup(ctx, copayerID)
	if err != nil {
		return err
	}

	return s.lockSvc.RunLocked(lookup.WalletID, nil, func() error {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, lookup.WalletID)
		if err != nil {
			return err
		}
		copayer := wallet.GetCopayer(copayerID)
		if copayer == nil {
			return domain.ErrCopayerNotFound
		}

		// The rotation must be authorised by the request-key-auth derivation
		// of the copayer's xpub.
		authKey, err := obcore.DerivePubKeyHex(
			copayer.XPub, obcore.RequestKeyAuthPath[0], obcore.RequestKeyAuthPath[1],
		)
		if err != nil {
			return err
		}
		if !obcore.VerifyMessageSignature(newRequestPubKey, signature, authKey) {
			return domain.NotAuthorized("Invalid signature")
		}

		if err := s.repoManager.WalletRepository().UpdateWallet(ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
			c := w.GetCopayer(copayerID)
			if c == nil {
				return nil, domain.ErrCopayerNotFound
			}
			if err := c.AddRequestPubKey(newRequestPubKey, signature, s.config.MaxKeys); err != nil {
				return nil, err
			}
			lookup.RequestPubKeys = c.RequestPubKeys
			return w, nil
		}); err != nil {
			return err
		}
		return s.repoManager.CopayerLookupRepository().UpdateCopayerLookup(ctx, *lookup)
	})
}

func (s *walletService) GetStatus(ctx context.Context, walletID string) (*WalletStatus, error) {
	wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repoManager.TxProposalRepository().GetPendingTxProposals(ctx, walletID)
	if err != nil {
		return nil, err
	}
	status := &WalletStatus{Wallet: wallet, Pending: pending}
	if wallet.IsComplete() {
		if balances, err := s.GetBalance(ctx, walletID, ""); err == nil {
			status.Balance = balances
		} else {
			log.WithError(err).Warnf("could not fetch balance for wallet %s status", walletID)
		}
	}
	return status, nil
}

// GetWalletFromIdentifier resolves a wallet id, one of its addresses, or the
// txid of one of its proposals.
func (s *walletService) GetWalletFromIdentifier(ctx context.Context, identifier string) (*domain.Wallet, error) {
	if wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, identifier); err == nil {
		return wallet, nil
	}
	if addr, err := s.repoManager.AddressRepository().GetAddress(ctx, identifier); err == nil && addr != nil {
		return s.repoManager.WalletRepository().GetWallet(ctx, addr.WalletID)
	}
	if txp, err := s.repoManager.TxProposalRepository().GetTxProposalByUnit(ctx, identifier); err == nil && txp != nil {
		return s.repoManager.WalletRepository().GetWallet(ctx, txp.WalletID)
	}
	return nil, domain.ErrWalletNotFound
}

func (s *walletService) UpdateWalletName(ctx context.Context, walletID, name string) error {
	if name == "" {
		return ErrInvalidParams
	}
	return s.lockSvc.RunLocked(walletID, nil, func() error {
		return s.repoManager.WalletRepository().UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			w.Name = name
			return w, nil
		})
	})
}

func (s *walletService) UpdateCopayerName(ctx context.Context, walletID, copayerID, name string) error {
	if name == "" {
		return ErrInvalidParams
	}
	return s.lockSvc.RunLocked(walletID, nil, func() error {
		return s.repoManager.WalletRepository().UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			copayer := w.GetCopayer(copayerID)
			if copayer == nil {
				return nil, domain.ErrCopayerNotFound
			}
			copayer.Name = name
			return w, nil
		})
	})
}

func (s *walletService) GetCopayersByDevice(ctx context.Context, deviceID string) ([]domain.Copayer, error) {
	lookups, err := s.repoManager.CopayerLookupRepository().GetCopayerLookupsByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	copayers := make([]domain.Copayer, 0, len(lookups))
	for _, lookup := range lookups {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, lookup.WalletID)
		if err != nil {
			continue
		}
		if copayer := wallet.GetCopayer(lookup.CopayerID); copayer != nil {
			copayers = append(copayers, *copayer)
		}
	}
	return copayers, nil
}

func (s *walletService) GetBalance(ctx context.Context, walletID, asset string) (map[string]*explorer.Balance, error) {
	cacheKey := walletID + "|" + asset
	s.balanceCacheMtx.Lock()
	if entry, ok := s.balanceCache[cacheKey]; ok && time.Since(entry.storedAt) < s.config.BalanceCacheTTL {
		s.balanceCacheMtx.Unlock()
		return entry.balances, nil
	}
	s.balanceCacheMtx.Unlock()

	addresses, err := s.walletAddressStrings(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return map[string]*explorer.Balance{}, nil
	}
	balances, err := s.explorerSvc.GetBalance(addresses, asset)
	if err != nil {
		return nil, err
	}

	s.balanceCacheMtx.Lock()
	s.balanceCache[cacheKey] = balanceCacheEntry{balances: balances, storedAt: time.Now()}
	s.balanceCacheMtx.Unlock()
	return balances, nil
}

func (s *walletService) GetTxHistory(ctx context.Context, walletID string, opts explorer.TxHistoryOpts) (*TxHistoryPage, error) {
	if opts.Limit > s.config.HistoryLimit {
		return nil, domain.ErrHistoryLimitExceeded
	}
	if opts.Limit == 0 {
		opts.Limit = s.config.HistoryLimit
	}
	addresses, err := s.walletAddressStrings(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return &TxHistoryPage{Items: []explorer.TxHistoryItem{}}, nil
	}
	items, err := s.explorerSvc.GetTxHistory(addresses, opts)
	if err != nil {
		return nil, err
	}
	return &TxHistoryPage{Items: items}, nil
}

func (s *walletService) walletAddressStrings(ctx context.Context, walletID string) ([]string, error) {
	addresses, err := s.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, addr.Address)
	}
	return out, nil
}
