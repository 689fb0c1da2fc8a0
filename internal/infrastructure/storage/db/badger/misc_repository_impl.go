package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type sessionRepositoryImpl struct {
	db *DbManager
}

func newSessionRepositoryImpl(db *DbManager) domain.SessionRepository {
	return sessionRepositoryImpl{db}
}

func (r sessionRepositoryImpl) GetSession(_ context.Context, copayerID string) (*domain.Session, error) {
	var session domain.Session
	if err := r.db.Store.Get("session:"+copayerID, &session); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r sessionRepositoryImpl) SaveSession(_ context.Context, session *domain.Session) error {
	return r.db.Store.Upsert("session:"+session.CopayerID, *session)
}

func (r sessionRepositoryImpl) DeleteSession(_ context.Context, copayerID string) error {
	err := r.db.Store.Delete("session:"+copayerID, domain.Session{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

type txNoteRepositoryImpl struct {
	db *DbManager
}

func newTxNoteRepositoryImpl(db *DbManager) domain.TxNoteRepository {
	return txNoteRepositoryImpl{db}
}

func (r txNoteRepositoryImpl) GetTxNote(_ context.Context, walletID, txid string) (*domain.TxNote, error) {
	var note domain.TxNote
	if err := r.db.Store.Get("note:"+walletID+":"+txid, &note); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

func (r txNoteRepositoryImpl) SaveTxNote(_ context.Context, note *domain.TxNote) error {
	return r.db.Store.Upsert("note:"+note.WalletID+":"+note.TxID, *note)
}

func (r txNoteRepositoryImpl) GetTxNotes(_ context.Context, walletID string, minTs int64) ([]*domain.TxNote, error) {
	var found []domain.TxNote
	if err := r.db.Store.Find(
		&found, badgerhold.Where("WalletID").Eq(walletID).And("EditedOn").Ge(minTs),
	); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].EditedOn < found[j].EditedOn })
	notes := make([]*domain.TxNote, 0, len(found))
	for i := range found {
		note := found[i]
		notes = append(notes, &note)
	}
	return notes, nil
}

type preferencesRepositoryImpl struct {
	db *DbManager
}

func newPreferencesRepositoryImpl(db *DbManager) domain.PreferencesRepository {
	return preferencesRepositoryImpl{db}
}

func (r preferencesRepositoryImpl) GetPreferences(_ context.Context, walletID, copayerID string) (*domain.Preferences, error) {
	var preferences domain.Preferences
	if err := r.db.Store.Get("prefs:"+walletID+":"+copayerID, &preferences); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &preferences, nil
}

func (r preferencesRepositoryImpl) SavePreferences(_ context.Context, preferences *domain.Preferences) error {
	return r.db.Store.Upsert("prefs:"+preferences.WalletID+":"+preferences.CopayerID, *preferences)
}

type pushSubscriptionRepositoryImpl struct {
	db *DbManager
}

func newPushSubscriptionRepositoryImpl(db *DbManager) domain.PushSubscriptionRepository {
	return pushSubscriptionRepositoryImpl{db}
}

func (r pushSubscriptionRepositoryImpl) AddPushSubscription(_ context.Context, sub domain.PushSubscription) error {
	return r.db.Store.Upsert("push:"+sub.CopayerID+":"+sub.Token, sub)
}

func (r pushSubscriptionRepositoryImpl) DeletePushSubscription(_ context.Context, copayerID, token string) error {
	err := r.db.Store.Delete("push:"+copayerID+":"+token, domain.PushSubscription{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

func (r pushSubscriptionRepositoryImpl) GetPushSubscriptions(_ context.Context, copayerID string) ([]domain.PushSubscription, error) {
	var found []domain.PushSubscription
	if err := r.db.Store.Find(
		&found, badgerhold.Where("CopayerID").Eq(copayerID),
	); err != nil {
		return nil, err
	}
	return found, nil
}

type txConfSubscriptionRepositoryImpl struct {
	db *DbManager
}

func newTxConfSubscriptionRepositoryImpl(db *DbManager) domain.TxConfirmationSubscriptionRepository {
	return txConfSubscriptionRepositoryImpl{db}
}

func (r txConfSubscriptionRepositoryImpl) AddTxConfirmationSubscription(_ context.Context, sub domain.TxConfirmationSubscription) error {
	sub.IsActive = true
	return r.db.Store.Upsert("txconf:"+sub.CopayerID+":"+sub.TxID, sub)
}

func (r txConfSubscriptionRepositoryImpl) DeleteTxConfirmationSubscription(_ context.Context, copayerID, txid string) error {
	err := r.db.Store.Delete("txconf:"+copayerID+":"+txid, domain.TxConfirmationSubscription{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

func (r txConfSubscriptionRepositoryImpl) GetActiveTxConfirmationSubscriptions(_ context.Context, txid string) ([]domain.TxConfirmationSubscription, error) {
	var found []domain.TxConfirmationSubscription
	if err := r.db.Store.Find(
		&found, badgerhold.Where("TxID").Eq(txid).And("IsActive").Eq(true),
	); err != nil {
		return nil, err
	}
	return found, nil
}

func (r txConfSubscriptionRepositoryImpl) DeactivateTxConfirmationSubscription(_ context.Context, walletID, copayerID, txid string) error {
	var sub domain.TxConfirmationSubscription
	if err := r.db.Store.Get("txconf:"+copayerID+":"+txid, &sub); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	sub.IsActive = false
	return r.db.Store.Upsert("txconf:"+copayerID+":"+txid, sub)
}

type assetRepositoryImpl struct {
	db *DbManager
}

func newAssetRepositoryImpl(db *DbManager) domain.AssetRepository {
	return assetRepositoryImpl{db}
}

func (r assetRepositoryImpl) UpsertAsset(_ context.Context, asset domain.Asset) error {
	return r.db.Store.Upsert("asset:"+asset.AssetID, asset)
}

func (r assetRepositoryImpl) GetAsset(_ context.Context, assetID string) (*domain.Asset, error) {
	var asset domain.Asset
	if err := r.db.Store.Get("asset:"+assetID, &asset); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

func (r assetRepositoryImpl) ListAssets(_ context.Context) ([]domain.Asset, error) {
	var found []domain.Asset
	if err := r.db.Store.Find(&found, nil); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

func (r assetRepositoryImpl) GetAssetByName(_ context.Context, name string) (*domain.Asset, error) {
	var found []domain.Asset
	if err := r.db.Store.Find(&found, badgerhold.Where("Name").Eq(name)); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
