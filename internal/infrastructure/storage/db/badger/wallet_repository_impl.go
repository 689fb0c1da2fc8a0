package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type walletRepositoryImpl struct {
	db *DbManager
}

func newWalletRepositoryImpl(db *DbManager) domain.WalletRepository {
	return walletRepositoryImpl{db}
}

func (r walletRepositoryImpl) CreateWallet(_ context.Context, wallet *domain.Wallet) error {
	if err := r.db.Store.Insert(wallet.ID, *wallet); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return domain.ErrWalletAlreadyExists
		}
		return err
	}
	return nil
}

func (r walletRepositoryImpl) GetWallet(_ context.Context, walletID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.db.Store.Get(walletID, &wallet); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r walletRepositoryImpl) UpdateWallet(
	ctx context.Context, walletID string, updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	wallet, err := r.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	updated, err := updateFn(wallet)
	if err != nil {
		return err
	}
	return r.db.Store.Upsert(walletID, *updated)
}

type copayerLookupRepositoryImpl struct {
	db *DbManager
}

func newCopayerLookupRepositoryImpl(db *DbManager) domain.CopayerLookupRepository {
	return copayerLookupRepositoryImpl{db}
}

func copayerLookupKey(copayerID string) string { return "copayer:" + copayerID }

func (r copayerLookupRepositoryImpl) AddCopayerLookup(_ context.Context, lookup domain.CopayerLookup) error {
	var existing domain.CopayerLookup
	err := r.db.Store.Get(copayerLookupKey(lookup.CopayerID), &existing)
	if err == nil {
		if existing.WalletID != lookup.WalletID {
			return domain.ErrCopayerRegistered
		}
		return r.db.Store.Upsert(copayerLookupKey(lookup.CopayerID), lookup)
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}
	return r.db.Store.Insert(copayerLookupKey(lookup.CopayerID), lookup)
}

func (r copayerLookupRepositoryImpl) GetCopayerLookup(_ context.Context, copayerID string) (*domain.CopayerLookup, error) {
	var lookup domain.CopayerLookup
	if err := r.db.Store.Get(copayerLookupKey(copayerID), &lookup); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrCopayerNotFound
		}
		return nil, err
	}
	return &lookup, nil
}

func (r copayerLookupRepositoryImpl) UpdateCopayerLookup(_ context.Context, lookup domain.CopayerLookup) error {
	return r.db.Store.Upsert(copayerLookupKey(lookup.CopayerID), lookup)
}

func (r copayerLookupRepositoryImpl) GetCopayerLookupsByDevice(_ context.Context, deviceID string) ([]domain.CopayerLookup, error) {
	var found []domain.CopayerLookup
	if err := r.db.Store.Find(&found, badgerhold.Where("DeviceID").Eq(deviceID)); err != nil {
		return nil, err
	}
	return found, nil
}
