package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type txProposalRepositoryImpl struct {
	db *DbManager
}

func newTxProposalRepositoryImpl(db *DbManager) domain.TxProposalRepository {
	return txProposalRepositoryImpl{db}
}

func txProposalKey(walletID, txProposalID string) string {
	return "txp:" + walletID + ":" + txProposalID
}

func (r txProposalRepositoryImpl) SaveTxProposal(_ context.Context, txp *domain.TxProposal) error {
	return r.db.Store.Upsert(txProposalKey(txp.WalletID, txp.ID), *txp)
}

func (r txProposalRepositoryImpl) GetTxProposal(_ context.Context, walletID, txProposalID string) (*domain.TxProposal, error) {
	var txp domain.TxProposal
	if err := r.db.Store.Get(txProposalKey(walletID, txProposalID), &txp); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTxNotFound
		}
		return nil, err
	}
	return &txp, nil
}

func (r txProposalRepositoryImpl) UpdateTxProposal(
	ctx context.Context, walletID, txProposalID string,
	updateFn func(t *domain.TxProposal) (*domain.TxProposal, error),
) error {
	txp, err := r.GetTxProposal(ctx, walletID, txProposalID)
	if err != nil {
		return err
	}
	updated, err := updateFn(txp)
	if err != nil {
		return err
	}
	return r.db.Store.Upsert(txProposalKey(walletID, txProposalID), *updated)
}

func (r txProposalRepositoryImpl) GetPendingTxProposals(ctx context.Context, walletID string) ([]*domain.TxProposal, error) {
	isPending := true
	return r.GetTxProposals(ctx, walletID, domain.TxProposalFilter{IsPending: &isPending})
}

func (r txProposalRepositoryImpl) GetTxProposals(_ context.Context, walletID string, filter domain.TxProposalFilter) ([]*domain.TxProposal, error) {
	q := badgerhold.Where("WalletID").Eq(walletID)
	if filter.Status != "" {
		q = q.And("Status").Eq(filter.Status)
	}
	if filter.App != "" {
		q = q.And("App").Eq(filter.App)
	}
	var found []domain.TxProposal
	if err := r.db.Store.Find(&found, q); err != nil {
		return nil, err
	}

	matches := make([]*domain.TxProposal, 0, len(found))
	for i := range found {
		txp := found[i]
		if filter.MinTs > 0 && txp.CreatedOn < filter.MinTs {
			continue
		}
		if filter.MaxTs > 0 && txp.CreatedOn > filter.MaxTs {
			continue
		}
		if filter.IsPending != nil && txp.IsPending() != *filter.IsPending {
			continue
		}
		matches = append(matches, &txp)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedOn > matches[j].CreatedOn })
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r txProposalRepositoryImpl) GetLastTxProposalsByCreator(_ context.Context, walletID, creatorID string, limit int) ([]*domain.TxProposal, error) {
	q := badgerhold.Where("WalletID").Eq(walletID).And("CreatorID").Eq(creatorID)
	var found []domain.TxProposal
	if err := r.db.Store.Find(&found, q); err != nil {
		return nil, err
	}
	matches := make([]*domain.TxProposal, 0, len(found))
	for i := range found {
		txp := found[i]
		if txp.IsTemporary() {
			continue
		}
		matches = append(matches, &txp)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedOn > matches[j].CreatedOn })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r txProposalRepositoryImpl) GetTxProposalByUnit(_ context.Context, unitHash string) (*domain.TxProposal, error) {
	var found []domain.TxProposal
	if err := r.db.Store.Find(&found, badgerhold.Where("TxID").Eq(unitHash)); err != nil {
		return nil, err
	}
	if len(found) == 0 || unitHash == "" {
		return nil, nil
	}
	return &found[0], nil
}

func (r txProposalRepositoryImpl) DeleteTxProposal(_ context.Context, walletID, txProposalID string) error {
	if err := r.db.Store.Delete(txProposalKey(walletID, txProposalID), domain.TxProposal{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrTxNotFound
		}
		return err
	}
	return nil
}

type broadcastLogRepositoryImpl struct {
	db *DbManager
}

func newBroadcastLogRepositoryImpl(db *DbManager) domain.BroadcastLogRepository {
	return broadcastLogRepositoryImpl{db}
}

func (r broadcastLogRepositoryImpl) AddBroadcastedTx(_ context.Context, tx domain.BroadcastedTx) error {
	return r.db.Store.Upsert("btx:"+tx.WalletID+":"+tx.TxProposalID, tx)
}

func (r broadcastLogRepositoryImpl) GetRecentBroadcastedTxs(_ context.Context, walletID string, since int64, limit int) ([]domain.BroadcastedTx, error) {
	q := badgerhold.Where("WalletID").Eq(walletID).And("BroadcastedOn").Ge(since)
	var found []domain.BroadcastedTx
	if err := r.db.Store.Find(&found, q); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].BroadcastedOn > found[j].BroadcastedOn })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}
