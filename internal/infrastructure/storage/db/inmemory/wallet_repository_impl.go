package inmemory

import (
	"context"
	"encoding/json"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type walletRepositoryImpl struct {
	store *store
}

func (r walletRepositoryImpl) CreateWallet(_ context.Context, wallet *domain.Wallet) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.wallets[wallet.ID]; ok {
		return domain.ErrWalletAlreadyExists
	}
	r.store.wallets[wallet.ID] = cloneWallet(wallet)
	return nil
}

func (r walletRepositoryImpl) GetWallet(_ context.Context, walletID string) (*domain.Wallet, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	wallet, ok := r.store.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return cloneWallet(wallet), nil
}

func (r walletRepositoryImpl) UpdateWallet(
	_ context.Context, walletID string, updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	wallet, ok := r.store.wallets[walletID]
	if !ok {
		return domain.ErrWalletNotFound
	}
	updated, err := updateFn(cloneWallet(wallet))
	if err != nil {
		return err
	}
	r.store.wallets[walletID] = cloneWallet(updated)
	return nil
}

type copayerLookupRepositoryImpl struct {
	store *store
}

func (r copayerLookupRepositoryImpl) AddCopayerLookup(_ context.Context, lookup domain.CopayerLookup) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if existing, ok := r.store.copayerLookups[lookup.CopayerID]; ok && existing.WalletID != lookup.WalletID {
		return domain.ErrCopayerRegistered
	}
	clone := lookup
	r.store.copayerLookups[lookup.CopayerID] = &clone
	return nil
}

func (r copayerLookupRepositoryImpl) GetCopayerLookup(_ context.Context, copayerID string) (*domain.CopayerLookup, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	lookup, ok := r.store.copayerLookups[copayerID]
	if !ok {
		return nil, domain.ErrCopayerNotFound
	}
	clone := *lookup
	return &clone, nil
}

func (r copayerLookupRepositoryImpl) UpdateCopayerLookup(_ context.Context, lookup domain.CopayerLookup) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.copayerLookups[lookup.CopayerID]; !ok {
		return domain.ErrCopayerNotFound
	}
	clone := lookup
	r.store.copayerLookups[lookup.CopayerID] = &clone
	return nil
}

func (r copayerLookupRepositoryImpl) GetCopayerLookupsByDevice(_ context.Context, deviceID string) ([]domain.CopayerLookup, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	lookups := make([]domain.CopayerLookup, 0)
	for _, lookup := range r.store.copayerLookups {
		if lookup.DeviceID == deviceID {
			lookups = append(lookups, *lookup)
		}
	}
	return lookups, nil
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	raw, _ := json.Marshal(w)
	var clone domain.Wallet
	json.Unmarshal(raw, &clone)
	return &clone
}
