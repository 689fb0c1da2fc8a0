package inmemory

import (
	"context"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type addressRepositoryImpl struct {
	store *store
}

func (r addressRepositoryImpl) AddAddresses(_ context.Context, walletID string, addresses []domain.Address) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, addr := range addresses {
		if _, ok := r.store.addressIndex[addr.Address]; ok {
			continue
		}
		stored := addr
		r.store.addresses[walletID] = append(r.store.addresses[walletID], &stored)
		r.store.addressIndex[addr.Address] = &stored
	}
	return nil
}

func (r addressRepositoryImpl) GetAddresses(_ context.Context, walletID string, query domain.AddressQuery) ([]domain.Address, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	all := r.store.addresses[walletID]
	filtered := make([]domain.Address, 0, len(all))
	for _, addr := range all {
		if query.IsChange != nil && addr.IsChange != *query.IsChange {
			continue
		}
		filtered = append(filtered, *addr)
	}
	if query.Reverse {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}
	return filtered, nil
}

func (r addressRepositoryImpl) GetAddress(_ context.Context, address string) (*domain.Address, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	stored, ok := r.store.addressIndex[address]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (r addressRepositoryImpl) MarkActive(_ context.Context, addresses []string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, address := range addresses {
		if stored, ok := r.store.addressIndex[address]; ok {
			stored.HasActivity = true
		}
	}
	return nil
}
