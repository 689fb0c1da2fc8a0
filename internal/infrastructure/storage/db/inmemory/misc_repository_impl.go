package inmemory

import (
	"context"
	"sort"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type sessionRepositoryImpl struct {
	store *store
}

func (r sessionRepositoryImpl) GetSession(_ context.Context, copayerID string) (*domain.Session, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	session, ok := r.store.sessions[copayerID]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (r sessionRepositoryImpl) SaveSession(_ context.Context, session *domain.Session) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	clone := *session
	r.store.sessions[session.CopayerID] = &clone
	return nil
}

func (r sessionRepositoryImpl) DeleteSession(_ context.Context, copayerID string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	delete(r.store.sessions, copayerID)
	return nil
}

type txNoteRepositoryImpl struct {
	store *store
}

func (r txNoteRepositoryImpl) GetTxNote(_ context.Context, walletID, txid string) (*domain.TxNote, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	note, ok := r.store.txNotes[walletID][txid]
	if !ok {
		return nil, nil
	}
	clone := *note
	return &clone, nil
}

func (r txNoteRepositoryImpl) SaveTxNote(_ context.Context, note *domain.TxNote) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if r.store.txNotes[note.WalletID] == nil {
		r.store.txNotes[note.WalletID] = map[string]*domain.TxNote{}
	}
	clone := *note
	r.store.txNotes[note.WalletID][note.TxID] = &clone
	return nil
}

func (r txNoteRepositoryImpl) GetTxNotes(_ context.Context, walletID string, minTs int64) ([]*domain.TxNote, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	notes := make([]*domain.TxNote, 0)
	for _, note := range r.store.txNotes[walletID] {
		if note.EditedOn < minTs {
			continue
		}
		clone := *note
		notes = append(notes, &clone)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].EditedOn < notes[j].EditedOn })
	return notes, nil
}

type preferencesRepositoryImpl struct {
	store *store
}

func preferencesKey(walletID, copayerID string) string { return walletID + "|" + copayerID }

func (r preferencesRepositoryImpl) GetPreferences(_ context.Context, walletID, copayerID string) (*domain.Preferences, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	preferences, ok := r.store.preferences[preferencesKey(walletID, copayerID)]
	if !ok {
		return nil, nil
	}
	clone := *preferences
	return &clone, nil
}

func (r preferencesRepositoryImpl) SavePreferences(_ context.Context, preferences *domain.Preferences) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	clone := *preferences
	r.store.preferences[preferencesKey(preferences.WalletID, preferences.CopayerID)] = &clone
	return nil
}

type pushSubscriptionRepositoryImpl struct {
	store *store
}

func (r pushSubscriptionRepositoryImpl) AddPushSubscription(_ context.Context, sub domain.PushSubscription) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, existing := range r.store.pushSubs {
		if existing.CopayerID == sub.CopayerID && existing.Token == sub.Token {
			return nil
		}
	}
	r.store.pushSubs = append(r.store.pushSubs, sub)
	return nil
}

func (r pushSubscriptionRepositoryImpl) DeletePushSubscription(_ context.Context, copayerID, token string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	kept := r.store.pushSubs[:0]
	for _, sub := range r.store.pushSubs {
		if sub.CopayerID == copayerID && sub.Token == token {
			continue
		}
		kept = append(kept, sub)
	}
	r.store.pushSubs = kept
	return nil
}

func (r pushSubscriptionRepositoryImpl) GetPushSubscriptions(_ context.Context, copayerID string) ([]domain.PushSubscription, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	subs := make([]domain.PushSubscription, 0)
	for _, sub := range r.store.pushSubs {
		if sub.CopayerID == copayerID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

type txConfSubscriptionRepositoryImpl struct {
	store *store
}

func (r txConfSubscriptionRepositoryImpl) AddTxConfirmationSubscription(_ context.Context, sub domain.TxConfirmationSubscription) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	sub.IsActive = true
	for i, existing := range r.store.txConfSubs {
		if existing.CopayerID == sub.CopayerID && existing.TxID == sub.TxID {
			r.store.txConfSubs[i] = sub
			return nil
		}
	}
	r.store.txConfSubs = append(r.store.txConfSubs, sub)
	return nil
}

func (r txConfSubscriptionRepositoryImpl) DeleteTxConfirmationSubscription(_ context.Context, copayerID, txid string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	kept := r.store.txConfSubs[:0]
	for _, sub := range r.store.txConfSubs {
		if sub.CopayerID == copayerID && sub.TxID == txid {
			continue
		}
		kept = append(kept, sub)
	}
	r.store.txConfSubs = kept
	return nil
}

func (r txConfSubscriptionRepositoryImpl) GetActiveTxConfirmationSubscriptions(_ context.Context, txid string) ([]domain.TxConfirmationSubscription, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	subs := make([]domain.TxConfirmationSubscription, 0)
	for _, sub := range r.store.txConfSubs {
		if sub.TxID == txid && sub.IsActive {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (r txConfSubscriptionRepositoryImpl) DeactivateTxConfirmationSubscription(_ context.Context, walletID, copayerID, txid string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for i, sub := range r.store.txConfSubs {
		if sub.WalletID == walletID && sub.CopayerID == copayerID && sub.TxID == txid {
			r.store.txConfSubs[i].IsActive = false
		}
	}
	return nil
}

type assetRepositoryImpl struct {
	store *store
}

func (r assetRepositoryImpl) UpsertAsset(_ context.Context, asset domain.Asset) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	r.store.assets[asset.AssetID] = asset
	return nil
}

func (r assetRepositoryImpl) GetAsset(_ context.Context, assetID string) (*domain.Asset, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	asset, ok := r.store.assets[assetID]
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

func (r assetRepositoryImpl) ListAssets(_ context.Context) ([]domain.Asset, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	assets := make([]domain.Asset, 0, len(r.store.assets))
	for _, asset := range r.store.assets {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

func (r assetRepositoryImpl) GetAssetByName(_ context.Context, name string) (*domain.Asset, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, asset := range r.store.assets {
		if asset.Name == name {
			found := asset
			return &found, nil
		}
	}
	return nil, nil
}
