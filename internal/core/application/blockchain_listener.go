package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/internal/core/ports"
	"github.com/obyte-network/obw-daemon/pkg/broker"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/hub"
	"github.com/obyte-network/obw-daemon/pkg/lock"
)

// BlockchainListener ingests the hub event feeds, reconciles them against
// proposals and emits wallet notifications. It never blocks on notification
// delivery.
type BlockchainListener interface {
	ObserveBlockchain()
	StopObserveBlockchain()
	// SyncAssetMetadata performs the one-off import of asset-metadata units
	// published by the trusted registries.
	SyncAssetMetadata(ctx context.Context, registryAddresses []string) error
}

type blockchainListener struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	hubSvc      hub.Service
	lockSvc     *lock.Service
	notifier    *notifier
	config      Config

	quit chan struct{}
	done chan struct{}
}

// NewBlockchainListener ...
func NewBlockchainListener(
	repoManager ports.RepoManager,
	explorerSvc explorer.Service,
	hubSvc hub.Service,
	lockSvc *lock.Service,
	brokerSvc broker.Service,
	config Config,
) BlockchainListener {
	return &blockchainListener{
		repoManager: repoManager,
		explorerSvc: explorerSvc,
		hubSvc:      hubSvc,
		lockSvc:     lockSvc,
		notifier:    newNotifier(repoManager.NotificationRepository(), brokerSvc),
		config:      config,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (b *blockchainListener) ObserveBlockchain() {
	go b.handleEvents()
}

func (b *blockchainListener) StopObserveBlockchain() {
	close(b.quit)
	<-b.done
}

func (b *blockchainListener) handleEvents() {
	defer close(b.done)
	events := b.hubSvc.Events()
	for {
		select {
		case event, more := <-events:
			if !more {
				return
			}
			ctx := context.Background()
			switch event.Type {
			case hub.NewJoint:
				b.handleNewJoint(ctx, event.Joint)
			case hub.TransactionsBecameStable, hub.MciBecameStable:
				b.handleStableUnits(ctx, event.Units)
			}
		case <-b.quit:
			return
		}
	}
}

func (b *blockchainListener) handleNewJoint(ctx context.Context, joint *hub.UnitSummary) {
	if joint == nil {
		return
	}
	b.reconcileProposal(ctx, joint)
	b.notifyIncoming(ctx, joint)
	b.markActivity(ctx, joint)
}

// reconcileProposal transitions an accepted proposal whose precomputed txid
// matches the relayed unit: someone (possibly a third party) got it into the
// ledger.
func (b *blockchainListener) reconcileProposal(ctx context.Context, joint *hub.UnitSummary) {
	txp, err := b.repoManager.TxProposalRepository().GetTxProposalByUnit(ctx, joint.Unit)
	if err != nil {
		log.WithError(err).Warn("monitor: proposal lookup failed")
		return
	}
	if txp == nil || !txp.IsAccepted() {
		return
	}

	err = b.lockSvc.RunLocked(txp.WalletID, nil, func() error {
		return b.repoManager.TxProposalRepository().UpdateTxProposal(ctx, txp.WalletID, txp.ID, func(t *domain.TxProposal) (*domain.TxProposal, error) {
			if err := t.SetBroadcasted(); err != nil {
				return nil, err
			}
			txp = t
			return t, nil
		})
	})
	if err != nil {
		if err != domain.ErrTxAlreadyBroadcasted {
			log.WithError(err).Warnf("monitor: could not mark proposal %s broadcasted", txp.ID)
		}
		return
	}

	// Dedupe against an outgoing notification already emitted for this unit
	// in the last day (e.g. the broadcast endpoint raced us).
	if b.hasRecentOutgoing(ctx, txp.WalletID, joint.Unit) {
		return
	}
	b.notifier.Notify(ctx, txp.WalletID, domain.NotificationNewOutgoingTxThirdParty, "", map[string]interface{}{
		"txProposalId": txp.ID,
		"txid":         joint.Unit,
	})
}

func (b *blockchainListener) hasRecentOutgoing(ctx context.Context, walletID, unitHash string) bool {
	since := time.Now().Add(-24 * time.Hour).UnixMilli()
	for _, notificationType := range []string{
		domain.NotificationNewOutgoingTx, domain.NotificationNewOutgoingTxThirdParty,
	} {
		recent, err := b.repoManager.NotificationRepository().GetRecentByType(ctx, walletID, notificationType, since)
		if err != nil {
			continue
		}
		for _, n := range recent {
			if txid, _ := n.Data["txid"].(string); txid == unitHash {
				return true
			}
		}
	}
	return false
}

// notifyIncoming emits NewIncomingTx for every output paying an address of
// some wallet, skipping the unit's own authors and internal change
// addresses, deduped by (txid, address, amount) over a day.
func (b *blockchainListener) notifyIncoming(ctx context.Context, joint *hub.UnitSummary) {
	authorSet := map[string]bool{}
	for _, author := range joint.Authors {
		authorSet[author] = true
	}

	for _, output := range joint.Outputs {
		if authorSet[output.Address] {
			continue
		}
		record, err := b.repoManager.AddressRepository().GetAddress(ctx, output.Address)
		if err != nil || record == nil {
			continue
		}
		if record.IsChange {
			continue
		}
		if b.hasRecentIncoming(ctx, record.WalletID, joint.Unit, output.Address, output.Amount) {
			continue
		}
		b.notifier.Notify(ctx, record.WalletID, domain.NotificationNewIncomingTx, "", map[string]interface{}{
			"txid":    joint.Unit,
			"address": output.Address,
			"amount":  output.Amount,
			"asset":   output.Asset,
		})
	}
}

func (b *blockchainListener) hasRecentIncoming(ctx context.Context, walletID, unitHash, address string, amount int64) bool {
	since := time.Now().Add(-24 * time.Hour).UnixMilli()
	recent, err := b.repoManager.NotificationRepository().GetRecentByType(ctx, walletID, domain.NotificationNewIncomingTx, since)
	if err != nil {
		return false
	}
	for _, n := range recent {
		txid, _ := n.Data["txid"].(string)
		addr, _ := n.Data["address"].(string)
		if txid == unitHash && addr == address && numericValue(n.Data["amount"]) == amount {
			return true
		}
	}
	return false
}

func (b *blockchainListener) markActivity(ctx context.Context, joint *hub.UnitSummary) {
	involved := make([]string, 0, len(joint.Authors)+len(joint.Outputs))
	involved = append(involved, joint.Authors...)
	for _, output := range joint.Outputs {
		involved = append(involved, output.Address)
	}
	if err := b.repoManager.AddressRepository().MarkActive(ctx, involved); err != nil {
		log.WithError(err).Warn("monitor: could not mark address activity")
	}
}

// handleStableUnits transitions broadcasted proposals to stable and fires
// single-shot confirmation subscriptions.
func (b *blockchainListener) handleStableUnits(ctx context.Context, units []string) {
	for _, unit := range units {
		b.stabiliseProposal(ctx, unit)
		b.fireConfirmationSubscriptions(ctx, unit)
	}
}

func (b *blockchainListener) stabiliseProposal(ctx context.Context, unit string) {
	txp, err := b.repoManager.TxProposalRepository().GetTxProposalByUnit(ctx, unit)
	if err != nil || txp == nil {
		return
	}
	if txp.Status != domain.TxProposalStatusBroadcasted {
		return
	}
	if err := b.lockSvc.RunLocked(txp.WalletID, nil, func() error {
		return b.repoManager.TxProposalRepository().UpdateTxProposal(ctx, txp.WalletID, txp.ID, func(t *domain.TxProposal) (*domain.TxProposal, error) {
			if err := t.SetStable(); err != nil {
				return nil, err
			}
			return t, nil
		})
	}); err != nil {
		log.WithError(err).Warnf("monitor: could not stabilise proposal %s", txp.ID)
	}
}

func (b *blockchainListener) fireConfirmationSubscriptions(ctx context.Context, unit string) {
	subs, err := b.repoManager.TxConfirmationSubscriptionRepository().GetActiveTxConfirmationSubscriptions(ctx, unit)
	if err != nil {
		log.WithError(err).Warn("monitor: confirmation subscription lookup failed")
		return
	}
	for _, sub := range subs {
		// The notification carries the wallet's coin and network: the
		// subscription has none of its own.
		wallet, err := b.repoManager.WalletRepository().GetWallet(ctx, sub.WalletID)
		if err != nil {
			continue
		}
		if err := b.repoManager.TxConfirmationSubscriptionRepository().DeactivateTxConfirmationSubscription(
			ctx, sub.WalletID, sub.CopayerID, sub.TxID,
		); err != nil {
			log.WithError(err).Warnf("monitor: could not deactivate confirmation watch for %s", sub.TxID)
			continue
		}
		b.notifier.Notify(ctx, sub.WalletID, domain.NotificationTxConfirmation, sub.CopayerID, map[string]interface{}{
			"txid":    sub.TxID,
			"coin":    wallet.Coin,
			"network": wallet.Network,
		})
	}
}

func (b *blockchainListener) SyncAssetMetadata(ctx context.Context, registryAddresses []string) error {
	if len(registryAddresses) == 0 {
		return nil
	}
	records, err := b.explorerSvc.GetAssetMetadata(registryAddresses)
	if err != nil {
		return err
	}
	for _, record := range records {
		asset := domain.Asset{
			AssetID:      record.Asset,
			MetadataUnit: record.MetadataUnit,
			Registry:     record.RegistryAddr,
			Name:         record.Name,
			ShortName:    record.ShortName,
			Decimals:     record.Decimals,
		}
		existing, err := b.repoManager.AssetRepository().GetAssetByName(ctx, asset.Name)
		if err != nil {
			return err
		}
		// A conflicting name from a different registry gets tagged instead
		// of silently replacing the incumbent.
		if existing != nil && existing.AssetID != asset.AssetID {
			if existing.Registry == asset.Registry {
				log.Warnf("skipping conflicting asset name %q from registry %s", asset.Name, asset.Registry)
				continue
			}
			asset.Name = fmt.Sprintf("%s@%s", asset.Name, shortRegistry(asset.Registry))
		}
		if err := b.repoManager.AssetRepository().UpsertAsset(ctx, asset); err != nil {
			return err
		}
	}
	return nil
}

func shortRegistry(registry string) string {
	if len(registry) > 8 {
		return strings.ToUpper(registry[:8])
	}
	return registry
}

func numericValue(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
