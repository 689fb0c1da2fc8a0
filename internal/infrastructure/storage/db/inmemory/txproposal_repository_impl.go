package inmemory

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type txProposalRepositoryImpl struct {
	store *store
}

func (r txProposalRepositoryImpl) SaveTxProposal(_ context.Context, txp *domain.TxProposal) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if r.store.txProposals[txp.WalletID] == nil {
		r.store.txProposals[txp.WalletID] = map[string]*domain.TxProposal{}
	}
	r.store.txProposals[txp.WalletID][txp.ID] = cloneTxProposal(txp)
	return nil
}

func (r txProposalRepositoryImpl) GetTxProposal(_ context.Context, walletID, txProposalID string) (*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	txp, ok := r.store.txProposals[walletID][txProposalID]
	if !ok {
		return nil, domain.ErrTxNotFound
	}
	return cloneTxProposal(txp), nil
}

func (r txProposalRepositoryImpl) UpdateTxProposal(
	_ context.Context, walletID, txProposalID string,
	updateFn func(t *domain.TxProposal) (*domain.TxProposal, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	txp, ok := r.store.txProposals[walletID][txProposalID]
	if !ok {
		return domain.ErrTxNotFound
	}
	updated, err := updateFn(cloneTxProposal(txp))
	if err != nil {
		return err
	}
	r.store.txProposals[walletID][txProposalID] = cloneTxProposal(updated)
	return nil
}

func (r txProposalRepositoryImpl) GetPendingTxProposals(ctx context.Context, walletID string) ([]*domain.TxProposal, error) {
	isPending := true
	return r.GetTxProposals(ctx, walletID, domain.TxProposalFilter{IsPending: &isPending})
}

func (r txProposalRepositoryImpl) GetTxProposals(_ context.Context, walletID string, filter domain.TxProposalFilter) ([]*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	matches := make([]*domain.TxProposal, 0)
	for _, txp := range r.store.txProposals[walletID] {
		if filter.Status != "" && txp.Status != filter.Status {
			continue
		}
		if filter.App != "" && txp.App != filter.App {
			continue
		}
		if filter.MinTs > 0 && txp.CreatedOn < filter.MinTs {
			continue
		}
		if filter.MaxTs > 0 && txp.CreatedOn > filter.MaxTs {
			continue
		}
		if filter.IsPending != nil && txp.IsPending() != *filter.IsPending {
			continue
		}
		matches = append(matches, cloneTxProposal(txp))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedOn > matches[j].CreatedOn })
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r txProposalRepositoryImpl) GetLastTxProposalsByCreator(_ context.Context, walletID, creatorID string, limit int) ([]*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	matches := make([]*domain.TxProposal, 0)
	for _, txp := range r.store.txProposals[walletID] {
		if txp.CreatorID != creatorID || txp.IsTemporary() {
			continue
		}
		matches = append(matches, cloneTxProposal(txp))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedOn > matches[j].CreatedOn })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r txProposalRepositoryImpl) GetTxProposalByUnit(_ context.Context, unitHash string) (*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, byWallet := range r.store.txProposals {
		for _, txp := range byWallet {
			if txp.TxID == unitHash && txp.TxID != "" {
				return cloneTxProposal(txp), nil
			}
		}
	}
	return nil, nil
}

func (r txProposalRepositoryImpl) DeleteTxProposal(_ context.Context, walletID, txProposalID string) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.txProposals[walletID][txProposalID]; !ok {
		return domain.ErrTxNotFound
	}
	delete(r.store.txProposals[walletID], txProposalID)
	return nil
}

type broadcastLogRepositoryImpl struct {
	store *store
}

func (r broadcastLogRepositoryImpl) AddBroadcastedTx(_ context.Context, tx domain.BroadcastedTx) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()
	r.store.broadcastLog = append(r.store.broadcastLog, tx)
	return nil
}

func (r broadcastLogRepositoryImpl) GetRecentBroadcastedTxs(_ context.Context, walletID string, since int64, limit int) ([]domain.BroadcastedTx, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	matches := make([]domain.BroadcastedTx, 0)
	for _, tx := range r.store.broadcastLog {
		if tx.WalletID != walletID || tx.BroadcastedOn < since {
			continue
		}
		matches = append(matches, tx)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].BroadcastedOn > matches[j].BroadcastedOn })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cloneTxProposal(t *domain.TxProposal) *domain.TxProposal {
	raw, _ := json.Marshal(t)
	var clone domain.TxProposal
	json.Unmarshal(raw, &clone)
	return &clone
}
