package domain

const (
	// ExternalChain is the receive branch of a wallet.
	ExternalChain = uint32(0)
	// InternalChain is the change branch.
	InternalChain = uint32(1)

	MinCosigners = 1
	MaxCosigners = 15
)

// Wallet statuses.
const (
	WalletStatusPending  = "pending"
	WalletStatusComplete = "complete"
)

// Scan statuses.
const (
	ScanStatusIdle    = ""
	ScanStatusRunning = "running"
	ScanStatusSuccess = "success"
	ScanStatusError   = "error"
)

// Derivation strategies.
const (
	DerivationStrategyLegacy = "legacy"
	DerivationStrategyBIP44  = "bip44"
)

// Address types.
const (
	AddressTypeNormal = "normal"
	AddressTypeShared = "shared"
)

// Proposal statuses.
const (
	TxProposalStatusTemporary   = "temporary"
	TxProposalStatusPending     = "pending"
	TxProposalStatusAccepted    = "accepted"
	TxProposalStatusRejected    = "rejected"
	TxProposalStatusBroadcasted = "broadcasted"
	TxProposalStatusStable      = "stable"
)

// Proposal action types.
const (
	ActionTypeAccept = "accept"
	ActionTypeReject = "reject"
)

// Recognised proposal apps. Everything except payment carries an inlined
// payload and needs no input selection beyond fees.
var TxProposalApps = map[string]bool{
	"payment":                   true,
	"data":                      true,
	"text":                      true,
	"profile":                   true,
	"poll":                      true,
	"vote":                      true,
	"data_feed":                 true,
	"attestation":               true,
	"asset":                     true,
	"asset_attestors":           true,
	"address_definition_change": true,
	"definition_template":       true,
}

// Notification types.
const (
	NotificationNewCopayer                = "NewCopayer"
	NotificationWalletComplete            = "WalletComplete"
	NotificationNewAddress                = "NewAddress"
	NotificationNewTxProposal             = "NewTxProposal"
	NotificationTxProposalAcceptedBy      = "TxProposalAcceptedBy"
	NotificationTxProposalFinallyAccepted = "TxProposalFinallyAccepted"
	NotificationTxProposalRejectedBy      = "TxProposalRejectedBy"
	NotificationTxProposalFinallyRejected = "TxProposalFinallyRejected"
	NotificationTxProposalRemoved         = "TxProposalRemoved"
	NotificationNewOutgoingTx             = "NewOutgoingTx"
	NotificationNewOutgoingTxThirdParty   = "NewOutgoingTxByThirdParty"
	NotificationNewIncomingTx             = "NewIncomingTx"
	NotificationTxConfirmation            = "TxConfirmation"
	NotificationScanFinished              = "ScanFinished"
)
