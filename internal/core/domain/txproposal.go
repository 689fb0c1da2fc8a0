package domain

import (
	"time"

	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// IsTemporary ...
func (t *TxProposal) IsTemporary() bool { return t.Status == TxProposalStatusTemporary }

// IsPending ...
func (t *TxProposal) IsPending() bool { return t.Status == TxProposalStatusPending }

// IsAccepted ...
func (t *TxProposal) IsAccepted() bool { return t.Status == TxProposalStatusAccepted }

// IsRejected ...
func (t *TxProposal) IsRejected() bool { return t.Status == TxProposalStatusRejected }

// IsBroadcasted reports whether the proposal reached the ledger, stable or
// not.
func (t *TxProposal) IsBroadcasted() bool {
	return t.Status == TxProposalStatusBroadcasted || t.Status == TxProposalStatusStable
}

// ActionBy returns the vote the copayer already cast, or nil.
func (t *TxProposal) ActionBy(copayerID string) *TxProposalAction {
	for i := range t.Actions {
		if t.Actions[i].CopayerID == copayerID {
			return &t.Actions[i]
		}
	}
	return nil
}

// CountActions tallies votes of one type.
func (t *TxProposal) CountActions(actionType string) int {
	count := 0
	for _, a := range t.Actions {
		if a.Type == actionType {
			count++
		}
	}
	return count
}

// Publish transitions a temporary proposal to pending.
func (t *TxProposal) Publish() error {
	if !t.IsTemporary() {
		return ErrTxNotFound
	}
	t.Status = TxProposalStatusPending
	return nil
}

// Accept adds an accept action with per-author signatures. Once the accept
// count reaches the required signatures the draft joint is finalised: every
// signature replaces its placeholder and the ledger transaction id is
// computed. Returns whether this vote finalised the acceptance.
func (t *TxProposal) Accept(copayerID, xpub string, signatures map[string]string) (bool, error) {
	if !t.IsPending() {
		if t.IsAccepted() || t.IsBroadcasted() {
			return false, ErrTxAlreadyAccepted
		}
		return false, ErrTxNotPending
	}
	if t.ActionBy(copayerID) != nil {
		return false, ErrCopayerVoted
	}
	t.Actions = append(t.Actions, TxProposalAction{
		CopayerID:  copayerID,
		Type:       ActionTypeAccept,
		Signatures: signatures,
		XPub:       xpub,
		CreatedOn:  time.Now().Unix(),
	})
	if t.CountActions(ActionTypeAccept) < t.RequiredSignatures {
		return false, nil
	}

	t.applySignatures()
	t.Status = TxProposalStatusAccepted
	t.TxID = t.Unit.ComputeUnitHash()
	return true, nil
}

// applySignatures fills the authentifier slots of the draft joint from the
// collected accept actions. The signer's slot under each author is found by
// re-deriving its pubkey from the action's xpub along the author's path.
func (t *TxProposal) applySignatures() {
	for _, action := range t.Actions {
		if action.Type != ActionTypeAccept {
			continue
		}
		for authorAddress, signature := range action.Signatures {
			info, ok := t.SigningInfo[authorAddress]
			if !ok {
				continue
			}
			pubkey, err := obcore.DerivePubKeyForPath(action.XPub, info.Path)
			if err != nil {
				continue
			}
			signingPath, ok := info.SigningPaths[pubkey]
			if !ok {
				continue
			}
			for i := range t.Unit.Authors {
				if t.Unit.Authors[i].Address == authorAddress {
					t.Unit.Authors[i].Authentifiers[signingPath] = signature
				}
			}
		}
	}
}

// Reject adds a reject action. Returns whether this vote finally rejected
// the proposal.
func (t *TxProposal) Reject(copayerID, reason string) (bool, error) {
	if !t.IsPending() {
		return false, ErrTxNotPending
	}
	if t.ActionBy(copayerID) != nil {
		return false, ErrCopayerVoted
	}
	t.Actions = append(t.Actions, TxProposalAction{
		CopayerID: copayerID,
		Type:      ActionTypeReject,
		Comment:   reason,
		CreatedOn: time.Now().Unix(),
	})
	if t.CountActions(ActionTypeReject) < t.RequiredRejections {
		return false, nil
	}
	t.Status = TxProposalStatusRejected
	return true, nil
}

// SetBroadcasted marks the proposal as included in the ledger.
func (t *TxProposal) SetBroadcasted() error {
	if t.IsBroadcasted() {
		return ErrTxAlreadyBroadcasted
	}
	if !t.IsAccepted() {
		return ErrTxNotAccepted
	}
	t.Status = TxProposalStatusBroadcasted
	t.BroadcastedOn = time.Now().Unix()
	return nil
}

// SetStable marks a broadcasted proposal as confirmed.
func (t *TxProposal) SetStable() error {
	if t.Status != TxProposalStatusBroadcasted {
		return ErrTxNotAccepted
	}
	t.Status = TxProposalStatusStable
	t.Stable = true
	t.StableOn = time.Now().Unix()
	return nil
}

// CanRemoveBy reports whether the copayer may remove the proposal now.
// While nobody else acted, only the creator may remove it, immediately;
// once another copayer acted, nobody may remove it until the cooldown since
// the last such action elapsed, and after that any copayer may.
func (t *TxProposal) CanRemoveBy(copayerID string, deleteLocktime time.Duration) error {
	if t.IsBroadcasted() {
		return ErrTxCannotRemove
	}
	lastActionByOther := int64(0)
	for _, a := range t.Actions {
		if a.CopayerID != t.CreatorID && a.CreatedOn > lastActionByOther {
			lastActionByOther = a.CreatedOn
		}
	}
	if lastActionByOther == 0 {
		if copayerID != t.CreatorID {
			return ErrTxCannotRemove
		}
		return nil
	}
	if time.Since(time.Unix(lastActionByOther, 0)) < deleteLocktime {
		return ErrTxCannotRemove
	}
	return nil
}
