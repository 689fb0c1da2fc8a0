package application

import (
	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// Credentials identify an authenticated copayer request.
type Credentials struct {
	CopayerID      string
	WalletID       string
	IsSupportStaff bool
}

// CreateWalletOpts ...
type CreateWalletOpts struct {
	ID                 string
	Name               string
	M                  int
	N                  int
	Coin               string
	Network            string
	PubKey             string
	SingleAddress      bool
	DerivationStrategy string
}

// JoinWalletOpts ...
type JoinWalletOpts struct {
	WalletID         string
	Name             string
	XPub             string
	RequestPubKey    string
	CopayerSignature string
	DeviceID         string
	Account          int
	Coin             string
	Network          string
	CustomData       string
	DryRun           bool
}

// WalletStatus is the view returned by join and status queries.
type WalletStatus struct {
	Wallet  *domain.Wallet
	Pending []*domain.TxProposal
	Balance map[string]*explorer.Balance
}

// CreateTxProposalOpts ...
type CreateTxProposalOpts struct {
	TxProposalID string
	App          string
	Outputs      []obcore.Output
	Params       map[string]interface{}
	Message      string
	DryRun       bool
}

// UtxoView is one explorer utxo annotated with the reservation state derived
// from pending proposals and the recent broadcast log.
type UtxoView struct {
	explorer.Utxo
	Path   string
	Locked bool
	Spent  bool
}

// TxHistoryPage ...
type TxHistoryPage struct {
	Items []explorer.TxHistoryItem
}
