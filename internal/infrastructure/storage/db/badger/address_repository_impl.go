package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type addressRepositoryImpl struct {
	db *DbManager
}

func newAddressRepositoryImpl(db *DbManager) domain.AddressRepository {
	return addressRepositoryImpl{db}
}

func (r addressRepositoryImpl) AddAddresses(_ context.Context, walletID string, addresses []domain.Address) error {
	for _, addr := range addresses {
		if err := r.db.Store.Insert(addr.Address, addr); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				continue
			}
			return err
		}
	}
	return nil
}

func (r addressRepositoryImpl) GetAddresses(_ context.Context, walletID string, query domain.AddressQuery) ([]domain.Address, error) {
	q := badgerhold.Where("WalletID").Eq(walletID)
	if query.IsChange != nil {
		q = q.And("IsChange").Eq(*query.IsChange)
	}
	var addresses []domain.Address
	if err := r.db.Store.Find(&addresses, q); err != nil {
		return nil, err
	}
	sort.Slice(addresses, func(i, j int) bool {
		less := addressSortKey(addresses[i]) < addressSortKey(addresses[j])
		if query.Reverse {
			return !less
		}
		return less
	})
	if query.Limit > 0 && len(addresses) > query.Limit {
		addresses = addresses[:query.Limit]
	}
	return addresses, nil
}

func (r addressRepositoryImpl) GetAddress(_ context.Context, address string) (*domain.Address, error) {
	var addr domain.Address
	if err := r.db.Store.Get(address, &addr); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &addr, nil
}

func (r addressRepositoryImpl) MarkActive(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		addr, err := r.GetAddress(ctx, address)
		if err != nil {
			return err
		}
		if addr == nil || addr.HasActivity {
			continue
		}
		addr.HasActivity = true
		if err := r.db.Store.Upsert(addr.Address, *addr); err != nil {
			return err
		}
	}
	return nil
}

// addressSortKey orders a wallet's addresses by branch then index.
func addressSortKey(a domain.Address) uint64 {
	index, err := a.Index()
	if err != nil {
		return 0
	}
	branch := uint64(0)
	if a.IsChange {
		branch = 1
	}
	return branch<<32 | uint64(index)
}
