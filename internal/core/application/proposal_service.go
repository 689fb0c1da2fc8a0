package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/hub"
	"github.com/obyte-network/obw-daemon/pkg/lock"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

// ProposalService drives the transaction-proposal lifecycle: creation with
// the backoff governor, publication against the UTXO reservation view,
// signature aggregation, broadcast and removal.
type ProposalService interface {
	CreateTxProposal(ctx context.Context, walletID, creatorID string, opts CreateTxProposalOpts) (*domain.TxProposal, error)
	PublishTxProposal(ctx context.Context, walletID, copayerID, txProposalID, proposalSignature string) (*domain.TxProposal, error)
	SignTxProposal(ctx context.Context, walletID, copayerID, txProposalID string, signatures map[string]string) (*domain.TxProposal, error)
	RejectTxProposal(ctx context.Context, walletID, copayerID, txProposalID, reason string) (*domain.TxProposal, error)
	BroadcastTxProposal(ctx context.Context, walletID, copayerID, txProposalID string) (*domain.TxProposal, error)
	RemoveTxProposal(ctx context.Context, walletID, copayerID, txProposalID string) error
	GetTxProposal(ctx context.Context, walletID, txProposalID string) (*domain.TxProposal, error)
	GetPendingTxProposals(ctx context.Context, walletID string) ([]*domain.TxProposal, error)
	GetTxProposals(ctx context.Context, walletID string, filter domain.TxProposalFilter) ([]*domain.TxProposal, error)
	// GetUtxos returns the reservation view: live utxos annotated as locked
	// by pending proposals or spent by recent broadcasts.
	GetUtxos(ctx context.Context, walletID, asset string) ([]UtxoView, error)
	// BroadcastRawJoint passes a client-composed joint through to the hub.
	BroadcastRawJoint(ctx context.Context, rawJoint string) error
	// GetRawTx reads the raw joint of a unit from the explorer.
	GetRawTx(ctx context.Context, txid string) (string, error)
}

type proposalService struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	hubSvc      hub.Service
	lockSvc     *lock.Service
	notifier    *notifier
	config      Config
}

// NewProposalService ...
func NewProposalService(
	repoManager ports.RepoManager,
	explorerSvc explorer.Service,
	hubSvc hub.Service,
	lockSvc *lock.Service,
	brokerSvc broker.Service,
	config Config,
) ProposalService {
	return &proposalService{
		repoManager: repoManager,
		explorerSvc: explorerSvc,
		hubSvc:      hubSvc,
		lockSvc:     lockSvc,
		notifier:    newNotifier(repoManager.NotificationRepository(), brokerSvc),
		config:      config,
	}
}

func (s *proposalService) CreateTxProposal(ctx context.Context, walletID, creatorID string, opts CreateTxProposalOpts) (*domain.TxProposal, error) {
	if !domain.TxProposalApps[opts.App] {
		return nil, ErrUnknownApp
	}
	if opts.App == "payment" {
		if len(opts.Outputs) == 0 {
			return nil, ErrInvalidParams
		}
		for _, out := range opts.Outputs {
			if !obcore.IsValidAddress(out.Address) {
				return nil, domain.ErrInvalidAddress
			}
			if out.Amount <= 0 || out.Amount > obcore.MaxCap {
				return nil, domain.NewError("INVALID_PARAMS", "Output amount out of range")
			}
		}
	}

	var txp *domain.TxProposal
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if err := guardWalletUsable(wallet); err != nil {
			return err
		}

		// Idempotency on client-supplied ids: a proposal that already moved
		// past temporary is returned as is, a temporary one is recomposed.
		if opts.TxProposalID != "" {
			existing, err := s.repoManager.TxProposalRepository().GetTxProposal(ctx, walletID, opts.TxProposalID)
			if err == nil && !existing.IsTemporary() {
				txp = existing
				return nil
			}
		}

		if err := s.checkBackoff(ctx, walletID, creatorID); err != nil {
			return err
		}

		changeAddress, err := s.selectChangeAddress(ctx, wallet)
		if err != nil {
			return err
		}

		draft := domain.NewTxProposal(opts.TxProposalID, walletID, creatorID, opts.App, wallet.M, wallet.N)
		draft.Outputs = opts.Outputs
		draft.Params = opts.Params
		draft.Message = opts.Message
		draft.ChangeAddress = changeAddress

		if err := s.compose(ctx, wallet, draft); err != nil {
			return err
		}

		if !opts.DryRun {
			if err := s.repoManager.TxProposalRepository().SaveTxProposal(ctx, draft); err != nil {
				return err
			}
		}
		txp = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txp, nil
}

// checkBackoff refuses creations while the trailing proposals of the
// creator are all rejected and the cooldown since the latest rejection has
// not elapsed.
func (s *proposalService) checkBackoff(ctx context.Context, walletID, creatorID string) error {
	last, err := s.repoManager.TxProposalRepository().GetLastTxProposalsByCreator(
		ctx, walletID, creatorID, s.config.BackoffOffset+1,
	)
	if err != nil {
		return err
	}
	if len(last) <= s.config.BackoffOffset {
		return nil
	}
	var latestRejection int64
	for _, txp := range last {
		if !txp.IsRejected() {
			return nil
		}
		if txp.CreatedOn > latestRejection {
			latestRejection = txp.CreatedOn
		}
		for _, action := range txp.Actions {
			if action.Type == domain.ActionTypeReject && action.CreatedOn > latestRejection {
				latestRejection = action.CreatedOn
			}
		}
	}
	if time.Since(time.Unix(latestRejection, 0)) < s.config.BackoffTime {
		return domain.ErrTxCannotCreate
	}
	return nil
}

// selectChangeAddress reuses the first address on single-address wallets;
// otherwise the first inactive change address, deriving one lazily.
func (s *proposalService) selectChangeAddress(ctx context.Context, wallet *domain.Wallet) (*domain.Address, error) {
	if wallet.SingleAddress {
		isChange := false
		mains, err := s.repoManager.AddressRepository().GetAddresses(ctx, wallet.ID, domain.AddressQuery{IsChange: &isChange})
		if err != nil {
			return nil, err
		}
		if len(mains) == 0 {
			return s.deriveAddress(ctx, wallet, domain.ExternalChain, 0)
		}
		return &mains[0], nil
	}

	isChange := true
	changes, err := s.repoManager.AddressRepository().GetAddresses(ctx, wallet.ID, domain.AddressQuery{IsChange: &isChange})
	if err != nil {
		return nil, err
	}
	for i := range changes {
		if !changes[i].HasActivity {
			return &changes[i], nil
		}
	}
	return s.deriveAddress(ctx, wallet, domain.InternalChain, wallet.ChangeAddressIndex)
}

func (s *proposalService) deriveAddress(ctx context.Context, wallet *domain.Wallet, change, index uint32) (*domain.Address, error) {
	derived, err := wallet.DeriveAddress(change, index)
	if err != nil {
		return nil, err
	}
	address := domain.NewAddress(wallet.ID, derived, change, index, wallet.AddressType)
	if err := s.repoManager.AddressRepository().AddAddresses(ctx, wallet.ID, []domain.Address{address}); err != nil {
		return nil, err
	}
	if err := s.repoManager.WalletRepository().UpdateWallet(ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if change == domain.InternalChain {
			if index >= w.ChangeAddressIndex {
				w.ChangeAddressIndex = index + 1
			}
		} else if index >= w.ReceiveAddressIndex {
			w.ReceiveAddressIndex = index + 1
		}
		return w, nil
	}); err != nil {
		return nil, err
	}
	return &address, nil
}

// compose builds the draft unit from the wallet's spendable view: input
// selection, commissions and the canonical hash to sign.
func (s *proposalService) compose(ctx context.Context, wallet *domain.Wallet, draft *domain.TxProposal) error {
	view, err := s.GetUtxos(ctx, wallet.ID, explorer.BaseAsset)
	if err != nil {
		return err
	}

	spendable := make([]obcore.SpendableOutput, 0, len(view))
	authors := map[string]obcore.AuthorAddress{}
	for _, utxo := range view {
		if utxo.Locked || utxo.Spent {
			continue
		}
		spendable = append(spendable, obcore.SpendableOutput{
			Unit:         utxo.Unit,
			MessageIndex: utxo.MessageIndex,
			OutputIndex:  utxo.OutputIndex,
			Address:      utxo.Address,
			Amount:       utxo.Amount,
		})
		if _, ok := authors[utxo.Address]; !ok {
			record, err := s.repoManager.AddressRepository().GetAddress(ctx, utxo.Address)
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			definition, err := obcore.ParseTemplate(record.Definition)
			if err != nil {
				return err
			}
			authors[utxo.Address] = obcore.AuthorAddress{
				Address:      utxo.Address,
				Definition:   definition,
				SigningPaths: record.SigningPaths,
				Path:         record.Path,
			}
		}
	}

	props, err := s.explorerSvc.GetLightProps()
	if err != nil {
		return err
	}

	var extraMessages []obcore.Message
	if draft.App != "payment" {
		payload := draft.Params
		if payload == nil {
			payload = map[string]interface{}{}
		}
		extraMessages = append(extraMessages, obcore.Message{
			App:             draft.App,
			PayloadLocation: "inline",
			PayloadHash:     obcore.PayloadHash(payload),
			Payload:         payload,
		})
	}

	result, err := obcore.ComposePayment(obcore.ComposeRequest{
		Outputs:       draft.Outputs,
		ChangeAddress: draft.ChangeAddress.Address,
		Spendable:     spendable,
		Authors:       authors,
		View: obcore.ChainView{
			ParentUnits:     props.ParentUnits,
			LastBall:        props.LastBall,
			LastBallUnit:    props.LastBallUnit,
			WitnessListUnit: props.WitnessListUnit,
		},
		ExtraMessages: extraMessages,
	})
	if err != nil {
		return err
	}

	draft.Unit = result.Unit
	draft.Inputs = result.UsedInputs
	draft.SigningInfo = map[string]domain.SigningInfo{}
	for _, author := range result.Unit.Authors {
		if aa, ok := authors[author.Address]; ok {
			draft.SigningInfo[author.Address] = domain.SigningInfo{
				WalletID:     wallet.ID,
				Path:         aa.Path,
				SigningPaths: aa.SigningPaths,
			}
		}
	}
	return nil
}

func (s *proposalService) PublishTxProposal(ctx context.Context, walletID, copayerID, txProposalID, proposalSignature string) (*domain.TxProposal, error) {
	var published *domain.TxProposal
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		txp, err := s.repoManager.TxProposalRepository().GetTxProposal(ctx, walletID, txProposalID)
		if err != nil {
			return err
		}
		if !txp.IsTemporary() {
			return domain.ErrTxNotFound
		}

		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		creator := wallet.GetCopayer(copayerID)
		if creator == nil {
			return domain.ErrCopayerNotFound
		}
		message := hex.EncodeToString(txp.Unit.HashToSign())
		if !verifyAgainstHistory(message, proposalSignature, creator.RequestPubKeys) {
			return ErrInvalidProposalSignature
		}

		// Re-check the reservation: the inputs may have been taken by a
		// proposal published since composition.
		if err := s.checkInputsAvailable(ctx, walletID, txp); err != nil {
			return err
		}

		if err := txp.Publish(); err != nil {
			return err
		}
		if err := s.repoManager.TxProposalRepository().SaveTxProposal(ctx, txp); err != nil {
			return err
		}
		s.notifier.Notify(ctx, walletID, domain.NotificationNewTxProposal, copayerID, map[string]interface{}{
			"txProposalId": txp.ID,
			"amount":       totalOutputs(txp),
		})
		published = txp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

func (s *proposalService) checkInputsAvailable(ctx context.Context, walletID string, txp *domain.TxProposal) error {
	locked, spent, err := s.reservationSets(ctx, walletID, txp.ID)
	if err != nil {
		return err
	}
	for _, input := range txp.Inputs {
		key := explorer.UtxoKey(input.Unit, input.MessageIndex, input.OutputIndex)
		if locked[key] || spent[key] {
			return domain.ErrUnavailableUtxos
		}
	}
	return nil
}

// reservationSets recomputes the reservation view: inputs of pending
// proposals are locked, inputs of proposals broadcast within the window are
// spent. excludeTxProposalID leaves the proposal being published out of its
// own way.
func (s *proposalService) reservationSets(ctx context.Context, walletID, excludeTxProposalID string) (locked, spent map[string]bool, err error) {
	pending, err := s.repoManager.TxProposalRepository().GetPendingTxProposals(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	locked = map[string]bool{}
	for _, txp := range pending {
		if txp.ID == excludeTxProposalID {
			continue
		}
		for _, input := range txp.Inputs {
			locked[explorer.UtxoKey(input.Unit, input.MessageIndex, input.OutputIndex)] = true
		}
	}

	since := time.Now().Add(-s.config.BroadcastSpentWindow).Unix()
	recent, err := s.repoManager.BroadcastLogRepository().GetRecentBroadcastedTxs(
		ctx, walletID, since, s.config.BroadcastSpentLimit,
	)
	if err != nil {
		return nil, nil, err
	}
	spent = map[string]bool{}
	for _, tx := range recent {
		for _, key := range tx.InputKeys {
			spent[key] = true
		}
	}
	return locked, spent, nil
}

func (s *proposalService) GetUtxos(ctx context.Context, walletID, asset string) ([]UtxoView, error) {
	addresses, err := s.repoManager.AddressRepository().GetAddresses(ctx, walletID, domain.AddressQuery{})
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return []UtxoView{}, nil
	}
	pathByAddress := make(map[string]string, len(addresses))
	addressStrings := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addressStrings = append(addressStrings, addr.Address)
		pathByAddress[addr.Address] = addr.Path
	}

	utxos, err := s.explorerSvc.GetUtxos(addressStrings, asset)
	if err != nil {
		return nil, err
	}
	locked, spent, err := s.reservationSets(ctx, walletID, "")
	if err != nil {
		return nil, err
	}

	view := make([]UtxoView, 0, len(utxos))
	for _, utxo := range utxos {
		key := utxo.Key()
		view = append(view, UtxoView{
			Utxo:   utxo,
			Path:   pathByAddress[utxo.Address],
			Locked: locked[key],
			Spent:  spent[key],
		})
	}
	return view, nil
}

func (s *proposalService) SignTxProposal(ctx context.Context, walletID, copayerID, txProposalID string, signatures map[string]string) (*domain.TxProposal, error) {
	var signed *domain.TxProposal
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		copayer := wallet.GetCopayer(copayerID)
		if copayer == nil {
			return domain.ErrCopayerNotFound
		}

		var finalised bool
		if err := s.repoManager.TxProposalRepository().UpdateTxProposal(ctx, walletID, txProposalID, func(txp *domain.TxProposal) (*domain.TxProposal, error) {
			if !txp.IsPending() {
				if txp.IsAccepted() || txp.IsBroadcasted() {
					return nil, domain.ErrTxAlreadyAccepted
				}
				return nil, domain.ErrTxNotPending
			}
			if txp.ActionBy(copayerID) != nil {
				return nil, domain.ErrCopayerVoted
			}
			// Verify every signature before applying anything: a single
			// mismatch fails the whole submission.
			if err := s.verifySignatures(copayer, txp, signatures); err != nil {
				return nil, err
			}
			var err error
			finalised, err = txp.Accept(copayerID, copayer.XPub, signatures)
			if err != nil {
				return nil, err
			}
			signed = txp
			return txp, nil
		}); err != nil {
			return err
		}

		s.notifier.Notify(ctx, walletID, domain.NotificationTxProposalAcceptedBy, copayerID, map[string]interface{}{
			"txProposalId": txProposalID,
			"copayerId":    copayerID,
		})
		if finalised {
			s.notifier.Notify(ctx, walletID, domain.NotificationTxProposalFinallyAccepted, copayerID, map[string]interface{}{
				"txProposalId": txProposalID,
				"txid":         signed.TxID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// verifySignatures checks the submitted per-author signatures against the
// signing paths derived from the copayer's xpub along each input address's
// path. All authors must be covered.
func (s *proposalService) verifySignatures(copayer *domain.Copayer, txp *domain.TxProposal, signatures map[string]string) error {
	if len(signatures) != len(txp.SigningInfo) {
		return domain.ErrBadSignatures
	}
	hashToSign := txp.Unit.HashToSign()
	for authorAddress, signature := range signatures {
		info, ok := txp.SigningInfo[authorAddress]
		if !ok {
			return domain.ErrBadSignatures
		}
		pubkey, err := obcore.DerivePubKeyForPath(copayer.XPub, info.Path)
		if err != nil {
			return domain.ErrBadSignatures
		}
		if _, ok := info.SigningPaths[pubkey]; !ok {
			return domain.ErrBadSignatures
		}
		if !obcore.VerifyUnitSignature(hashToSign, signature, pubkey) {
			return domain.ErrBadSignatures
		}
	}
	return nil
}

func (s *proposalService) RejectTxProposal(ctx context.Context, walletID, copayerID, txProposalID, reason string) (*domain.TxProposal, error) {
	var rejected *domain.TxProposal
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		var final bool
		if err := s.repoManager.TxProposalRepository().UpdateTxProposal(ctx, walletID, txProposalID, func(txp *domain.TxProposal) (*domain.TxProposal, error) {
			var err error
			final, err = txp.Reject(copayerID, reason)
			if err != nil {
				return nil, err
			}
			rejected = txp
			return txp, nil
		}); err != nil {
			return err
		}

		s.notifier.Notify(ctx, walletID, domain.NotificationTxProposalRejectedBy, copayerID, map[string]interface{}{
			"txProposalId": txProposalID,
			"copayerId":    copayerID,
			"reason":       reason,
		})
		if final {
			s.notifier.Notify(ctx, walletID, domain.NotificationTxProposalFinallyRejected, copayerID, map[string]interface{}{
				"txProposalId": txProposalID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *proposalService) BroadcastTxProposal(ctx context.Context, walletID, copayerID, txProposalID string) (*domain.TxProposal, error) {
	var broadcasted *domain.TxProposal
	err := s.lockSvc.RunLocked(walletID, nil, func() error {
		txp, err := s.repoManager.TxProposalRepository().GetTxProposal(ctx, walletID, txProposalID)
		if err != nil {
			return err
		}
		if txp.IsBroadcasted() {
			return domain.ErrTxAlreadyBroadcasted
		}
		if !txp.IsAccepted() {
			return domain.ErrTxNotAccepted
		}

		rawJoint, err := json.Marshal(obcore.Joint{Unit: txp.Unit})
		if err != nil {
			return err
		}

		notificationType := domain.NotificationNewOutgoingTx
		if broadcastErr := s.hubSvc.BroadcastJoint(string(rawJoint)); broadcastErr != nil {
			// The hub may have accepted it earlier, or a third party beat us
			// to it; the explorer is the judge.
			record, lookupErr := s.explorerSvc.GetTransaction(txp.TxID)
			if lookupErr != nil || record == nil {
				log.WithError(broadcastErr).Warnf("broadcast failed for proposal %s", txProposalID)
				return broadcastErr
			}
			notificationType = domain.NotificationNewOutgoingTxThirdParty
		}

		if err := s.markBroadcasted(ctx, txp, copayerID, notificationType); err != nil {
			return err
		}
		broadcasted = txp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return broadcasted, nil
}

// markBroadcasted flips the proposal, appends the broadcast log entry used
// by the spent view and emits the outgoing notification.
func (s *proposalService) markBroadcasted(ctx context.Context, txp *domain.TxProposal, copayerID, notificationType string) error {
	if err := txp.SetBroadcasted(); err != nil {
		return err
	}
	if err := s.repoManager.TxProposalRepository().SaveTxProposal(ctx, txp); err != nil {
		return err
	}

	inputKeys := make([]string, 0, len(txp.Inputs))
	for _, input := range txp.Inputs {
		inputKeys = append(inputKeys, explorer.UtxoKey(input.Unit, input.MessageIndex, input.OutputIndex))
	}
	if err := s.repoManager.BroadcastLogRepository().AddBroadcastedTx(ctx, domain.BroadcastedTx{
		WalletID:      txp.WalletID,
		TxProposalID:  txp.ID,
		TxID:          txp.TxID,
		InputKeys:     inputKeys,
		BroadcastedOn: txp.BroadcastedOn,
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, txp.WalletID, notificationType, copayerID, map[string]interface{}{
		"txProposalId": txp.ID,
		"txid":         txp.TxID,
		"amount":       totalOutputs(txp),
	})
	return nil
}

func (s *proposalService) RemoveTxProposal(ctx context.Context, walletID, copayerID, txProposalID string) error {
	return s.lockSvc.RunLocked(walletID, nil, func() error {
		txp, err := s.repoManager.TxProposalRepository().GetTxProposal(ctx, walletID, txProposalID)
		if err != nil {
			return err
		}
		if err := txp.CanRemoveBy(copayerID, s.config.DeleteLocktime); err != nil {
			return err
		}
		if err := s.repoManager.TxProposalRepository().DeleteTxProposal(ctx, walletID, txProposalID); err != nil {
			return err
		}
		s.notifier.Notify(ctx, walletID, domain.NotificationTxProposalRemoved, copayerID, map[string]interface{}{
			"txProposalId": txProposalID,
		})
		return nil
	})
}

func (s *proposalService) GetTxProposal(ctx context.Context, walletID, txProposalID string) (*domain.TxProposal, error) {
	return s.repoManager.TxProposalRepository().GetTxProposal(ctx, walletID, txProposalID)
}

func (s *proposalService) GetPendingTxProposals(ctx context.Context, walletID string) ([]*domain.TxProposal, error) {
	return s.repoManager.TxProposalRepository().GetPendingTxProposals(ctx, walletID)
}

func (s *proposalService) GetTxProposals(ctx context.Context, walletID string, filter domain.TxProposalFilter) ([]*domain.TxProposal, error) {
	return s.repoManager.TxProposalRepository().GetTxProposals(ctx, walletID, filter)
}

func (s *proposalService) BroadcastRawJoint(_ context.Context, rawJoint string) error {
	return s.hubSvc.BroadcastJoint(rawJoint)
}

func (s *proposalService) GetRawTx(_ context.Context, txid string) (string, error) {
	record, err := s.explorerSvc.GetTransaction(txid)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", domain.ErrTxNotFound
	}
	return record.RawJoint, nil
}

func totalOutputs(txp *domain.TxProposal) int64 {
	var total int64
	for _, out := range txp.Outputs {
		total += out.Amount
	}
	return total
}
