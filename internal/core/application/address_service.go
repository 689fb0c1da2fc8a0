package application

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/lock"
)

// AddressService drives deterministic derivation, the gap-limit policy and
// scan/recovery.
type AddressService interface {
	// CreateAddress returns a new receive address, or the first address for
	// single-address wallets. ignoreMaxGap overrides the gap-limit policy.
	CreateAddress(ctx context.Context, walletID string, ignoreMaxGap bool) (*domain.Address, error)
	// ListAddresses pages the wallet's addresses in derivation order.
	ListAddresses(ctx context.Context, walletID string, limit int, reverse bool) ([]domain.Address, error)
	// Scan walks the receive and change branches probing for activity.
	// startingStep above one runs a power scan that strides ahead and fills
	// in skipped paths after a hit.
	Scan(ctx context.Context, walletID string, startingStep uint32) error
}

type addressService struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	lockSvc     *lock.Service
	brokerSvc   broker.Service
	notifier    *notifier
	config      Config
}

// NewAddressService ...
func NewAddressService(
	repoManager ports.RepoManager,
	explorerSvc explorer.Service,
	lockSvc *lock.Service,
	brokerSvc broker.Service,
	config Config,
) AddressService {
	return &addressService{
		repoManager: repoManager,
		explorerSvc: explorerSvc,
		lockSvc:     lockSvc,
		brokerSvc:   brokerSvc,
		notifier:    newNotifier(repoManager.NotificationRepository(), brokerSvc),
		config:      config,
	}
}

func (s *addressService) CreateAddress(ctx context.Context, walletID string, ignoreMaxGap bool) (*domain.Address, error) {
	var created *domain.Address
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if err := guardWalletUsable(wallet); err != nil {
			return err
		}

		isChange := false
		mains, err := s.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{IsChange: &isChange})
		if err != nil {
			return err
		}

		if wallet.SingleAddress && len(mains) > 0 {
			created = &mains[0]
			return nil
		}

		if !wallet.SingleAddress && !ignoreMaxGap {
			if err := s.enforceGapLimit(ctx, mains); err != nil {
				return err
			}
		}

		created, err = s.deriveAndStore(ctx, wallet, domain.ExternalChain, wallet.ReceiveAddressIndex)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// enforceGapLimit fails with MAIN_ADDRESS_GAP_REACHED when the last
// MaxMainAddressGap receive addresses all report no activity. The explorer
// is probed first: any observed activity flips the sticky flag and lets the
// creation proceed.
func (s *addressService) enforceGapLimit(ctx context.Context, mains []domain.Address) error {
	gap := s.config.MaxMainAddressGap
	if len(mains) < gap {
		return nil
	}
	tail := mains[len(mains)-gap:]

	inactive := make([]domain.Address, 0, len(tail))
	for _, addr := range tail {
		if !addr.HasActivity {
			inactive = append(inactive, addr)
		}
	}
	if len(inactive) < gap {
		return nil
	}

	// Probes run one at a time: a serialised walk keeps the explorer load
	// bounded while the wallet lock is held.
	activityFound := false
	for _, addr := range inactive {
		active, err := s.explorerSvc.GetAddressActivity(addr.Address)
		if err != nil {
			return err
		}
		if active {
			if err := s.repoManager.AddressRepository().MarkActive(ctx, []string{addr.Address}); err != nil {
				return err
			}
			activityFound = true
		}
	}
	if !activityFound {
		return domain.ErrMainAddressGapReached
	}
	return nil
}

func (s *addressService) deriveAndStore(ctx context.Context, wallet *domain.Wallet, change, index uint32) (*domain.Address, error) {
	derived, err := wallet.DeriveAddress(change, index)
	if err != nil {
		return nil, err
	}
	address := domain.NewAddress(wallet.ID, derived, change, index, wallet.AddressType)
	if err := s.repoManager.AddressRepository().AddAddresses(ctx, wallet.ID, []domain.Address{address}); err != nil {
		return nil, err
	}
	if err := s.repoManager.WalletRepository().UpdateWallet(ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if change == domain.InternalChain {
			if index >= w.ChangeAddressIndex {
				w.ChangeAddressIndex = index + 1
			}
		} else {
			if index >= w.ReceiveAddressIndex {
				w.ReceiveAddressIndex = index + 1
			}
		}
		return w, nil
	}); err != nil {
		return nil, err
	}
	s.brokerSvc.AddAddress(address.Address)
	return &address, nil
}

func (s *addressService) ListAddresses(ctx context.Context, walletID string, limit int, reverse bool) ([]domain.Address, error) {
	return s.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{Limit: limit, Reverse: reverse})
}

func (s *addressService) Scan(ctx context.Context, walletID string, startingStep uint32) error {
	if startingStep == 0 {
		startingStep = 1
	}

	// Flag the scan under the lock, then walk the chains without it so
	// concurrent operations fail fast with wallet-busy instead of queueing
	// behind a long explorer crawl.
	var wallet *domain.Wallet
	if err := s.lockSvc.RunLocked(walletID, nil, func() error {
		w, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if !w.IsComplete() {
			return domain.ErrWalletNotComplete
		}
		if w.IsScanning() {
			return domain.ErrWalletBusy
		}
		wallet = w
		return s.repoManager.WalletRepository().UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			w.ScanStatus = domain.ScanStatusRunning
			return w, nil
		})
	}); err != nil {
		return err
	}

	scanErr := s.scanChains(ctx, wallet, startingStep)

	finalStatus := domain.ScanStatusSuccess
	if scanErr != nil {
		finalStatus = domain.ScanStatusError
		log.WithError(scanErr).Warnf("scan failed for wallet %s", walletID)
	}
	if err := s.lockSvc.RunLocked(walletID, nil, func() error {
		return s.repoManager.WalletRepository().UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			w.ScanStatus = finalStatus
			return w, nil
		})
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, walletID, domain.NotificationScanFinished, "", map[string]interface{}{
		"result": finalStatus,
	})
	return scanErr
}

func (s *addressService) scanChains(ctx context.Context, wallet *domain.Wallet, startingStep uint32) error {
	for _, change := range []uint32{domain.ExternalChain, domain.InternalChain} {
		highest, err := s.scanChain(ctx, wallet, change, startingStep)
		if err != nil {
			return err
		}
		if err := s.lockSvc.RunLocked(wallet.ID, nil, func() error {
			return s.repoManager.WalletRepository().UpdateWallet(ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
				if change == domain.InternalChain {
					if highest >= w.ChangeAddressIndex {
						w.ChangeAddressIndex = highest
					}
				} else {
					if highest >= w.ReceiveAddressIndex {
						w.ReceiveAddressIndex = highest
					}
				}
				return w, nil
			})
		}); err != nil {
			return err
		}
	}
	return nil
}

// scanChain probes one branch, returning the index one past the last active
// address. With a step above one, skipped paths are persisted only once a
// later probe reports activity: a fully inactive stride adds nothing.
func (s *addressService) scanChain(ctx context.Context, wallet *domain.Wallet, change, step uint32) (uint32, error) {
	maxGap := uint32(s.config.ScanAddressGap)
	if step > 1 {
		maxGap = uint32(s.config.PowerScanMaxGap)
	}

	var (
		index    uint32
		inactive uint32
		highest  uint32
		skipped  []uint32
	)
	for inactive < maxGap {
		derived, err := wallet.DeriveAddress(change, index)
		if err != nil {
			return 0, err
		}
		active, err := s.explorerSvc.GetAddressActivity(derived.Address)
		if err != nil {
			return 0, err
		}
		if active {
			for _, skippedIndex := range skipped {
				skippedDerived, err := wallet.DeriveAddress(change, skippedIndex)
				if err != nil {
					return 0, err
				}
				fill := domain.NewAddress(wallet.ID, skippedDerived, change, skippedIndex, wallet.AddressType)
				if err := s.repoManager.AddressRepository().AddAddresses(ctx, wallet.ID, []domain.Address{fill}); err != nil {
					return 0, err
				}
				s.brokerSvc.AddAddress(fill.Address)
			}
			skipped = skipped[:0]

			address := domain.NewAddress(wallet.ID, derived, change, index, wallet.AddressType)
			address.HasActivity = true
			if err := s.repoManager.AddressRepository().AddAddresses(ctx, wallet.ID, []domain.Address{address}); err != nil {
				return 0, err
			}
			if err := s.repoManager.AddressRepository().MarkActive(ctx, []string{address.Address}); err != nil {
				return 0, err
			}
			s.brokerSvc.AddAddress(address.Address)
			highest = index + 1
			inactive = 0
		} else {
			inactive++
		}

		if step > 1 {
			for next := index + 1; next < index+step; next++ {
				skipped = append(skipped, next)
			}
		}
		index += step
	}
	return highest, nil
}

func guardWalletUsable(wallet *domain.Wallet) error {
	if !wallet.IsComplete() {
		return domain.ErrWalletNotComplete
	}
	if wallet.IsScanning() {
		return domain.ErrWalletBusy
	}
	if wallet.NeedsScan() {
		return domain.ErrWalletNeedScan
	}
	return nil
}
