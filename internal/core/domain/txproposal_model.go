package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// TxProposalAction records one copayer vote on a proposal.
type TxProposalAction struct {
	CopayerID  string
	Type       string            // accept | reject
	Signatures map[string]string // author address -> base64 signature, accept only
	XPub       string
	Comment    string
	CreatedOn  int64
}

// SigningInfo tells a signer how to produce signatures for one author
// address of the draft joint.
type SigningInfo struct {
	WalletID     string
	Path         string            // m/change/index of the author address
	SigningPaths map[string]string // base64 pubkey -> signing path
}

// TxProposal is a transaction proposal moving through the quorum lifecycle.
type TxProposal struct {
	ID                 string
	WalletID           string
	CreatorID          string
	App                string
	Params             map[string]interface{} // app-specific parameters, inlined payload for non-payment apps
	Outputs            []obcore.Output
	ChangeAddress      *Address
	Inputs             []obcore.SpendableOutput
	Unit               *obcore.Unit           // draft joint with signature placeholders
	SigningInfo        map[string]SigningInfo // author address -> info
	RequiredSignatures int
	RequiredRejections int
	Status             string
	Actions            []TxProposalAction
	TxID               string // set on acceptance
	BroadcastedOn      int64
	Stable             bool
	StableOn           int64
	Message            string
	CreatedOn          int64
}

// NewTxProposal returns a temporary proposal for an m-of-n wallet. Required
// rejections follow min(m, n-m+1): once that many copayers reject, the
// quorum can no longer be reached.
func NewTxProposal(id, walletID, creatorID, app string, m, n int) *TxProposal {
	if id == "" {
		id = uuid.New().String()
	}
	requiredRejections := n - m + 1
	if m < requiredRejections {
		requiredRejections = m
	}
	return &TxProposal{
		ID:                 id,
		WalletID:           walletID,
		CreatorID:          creatorID,
		App:                app,
		SigningInfo:        map[string]SigningInfo{},
		RequiredSignatures: m,
		RequiredRejections: requiredRejections,
		Status:             TxProposalStatusTemporary,
		CreatedOn:          time.Now().Unix(),
	}
}
