package application

import "github.com/obyte-network/obw-daemon/internal/core/domain"

var (
	// ErrInvalidParams covers malformed request bodies not worth a dedicated
	// code.
	ErrInvalidParams = domain.NewError("INVALID_PARAMS", "Invalid parameters")
	// ErrCoinNetworkMismatch is returned when a join targets a wallet of a
	// different coin or network.
	ErrCoinNetworkMismatch = domain.NewError("INVALID_PARAMS", "Coin or network does not match the wallet")
	// ErrInvalidProposalSignature is returned when a publish signature does
	// not verify under any of the creator's request keys.
	ErrInvalidProposalSignature = domain.NewError("BAD_SIGNATURES", "Invalid proposal signature")
	// ErrUnknownApp ...
	ErrUnknownApp = domain.NewError("INVALID_PARAMS", "Unrecognized app")
)
