package domain

import "context"

// TxProposalFilter narrows a proposal listing.
type TxProposalFilter struct {
	Status    string
	App       string
	MinTs     int64
	MaxTs     int64
	Limit     int
	IsPending *bool
}

// TxProposalRepository stores proposals. Per-wallet mutations run under the
// wallet lock; the by-txid lookup is global for the monitor.
type TxProposalRepository interface {
	// SaveTxProposal inserts or replaces a proposal.
	SaveTxProposal(ctx context.Context, txp *TxProposal) error
	// GetTxProposal returns the proposal or ErrTxNotFound.
	GetTxProposal(ctx context.Context, walletID, txProposalID string) (*TxProposal, error)
	// UpdateTxProposal applies updateFn atomically.
	UpdateTxProposal(ctx context.Context, walletID, txProposalID string, updateFn func(t *TxProposal) (*TxProposal, error)) error
	// GetPendingTxProposals lists the wallet's pending proposals, most
	// recent first.
	GetPendingTxProposals(ctx context.Context, walletID string) ([]*TxProposal, error)
	// GetTxProposals lists proposals matching the filter, most recent first.
	GetTxProposals(ctx context.Context, walletID string, filter TxProposalFilter) ([]*TxProposal, error)
	// GetLastTxProposalsByCreator lists the creator's most recent proposals
	// (any status except temporary), newest first.
	GetLastTxProposalsByCreator(ctx context.Context, walletID, creatorID string, limit int) ([]*TxProposal, error)
	// GetTxProposalByUnit resolves a precomputed txid to its proposal across
	// wallets, or nil.
	GetTxProposalByUnit(ctx context.Context, unitHash string) (*TxProposal, error)
	// DeleteTxProposal removes a proposal.
	DeleteTxProposal(ctx context.Context, walletID, txProposalID string) error
}

// BroadcastedTx is one row of the broadcast log used for the spent view of
// the UTXO reservation: proposals broadcast in the last 24 hours.
type BroadcastedTx struct {
	WalletID      string
	TxProposalID  string
	TxID          string
	InputKeys     []string // explorer.UtxoKey strings
	BroadcastedOn int64
}

// BroadcastLogRepository retains recently broadcast proposals.
type BroadcastLogRepository interface {
	AddBroadcastedTx(ctx context.Context, tx BroadcastedTx) error
	// GetRecentBroadcastedTxs returns entries broadcast at or after since, newest
	// first, capped at limit.
	GetRecentBroadcastedTxs(ctx context.Context, walletID string, since int64, limit int) ([]BroadcastedTx, error)
}
