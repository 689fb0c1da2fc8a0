package httpinterface

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obyte-network/obw-daemon/internal/core/application"
	"github.com/obyte-network/obw-daemon/internal/core/domain"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/obcore"
)

type createWalletRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	M                  int    `json:"m"`
	N                  int    `json:"n"`
	Coin               string `json:"coin"`
	Network            string `json:"network"`
	PubKey             string `json:"pubKey"`
	SingleAddress      bool   `json:"singleAddress"`
	DerivationStrategy string `json:"derivationStrategy"`
}

func (s *service) createWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	walletID, err := s.walletSvc.CreateWallet(c.Request.Context(), application.CreateWalletOpts{
		ID:                 req.ID,
		Name:               req.Name,
		M:                  req.M,
		N:                  req.N,
		Coin:               req.Coin,
		Network:            req.Network,
		PubKey:             req.PubKey,
		SingleAddress:      req.SingleAddress,
		DerivationStrategy: req.DerivationStrategy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"walletId": walletID})
}

type joinWalletRequest struct {
	WalletID         string `json:"walletId"`
	DeviceID         string `json:"deviceId"`
	Account          int    `json:"account"`
	Name             string `json:"name"`
	XPubKey          string `json:"xPubKey"`
	RequestPubKey    string `json:"requestPubKey"`
	CopayerSignature string `json:"copayerSignature"`
	CustomData       string `json:"customData"`
	Coin             string `json:"coin"`
	Network          string `json:"network"`
	DryRun           bool   `json:"dryRun"`
}

func (s *service) joinWallet(c *gin.Context) {
	var req joinWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	walletID := c.Param("id")
	if req.WalletID != "" {
		walletID = req.WalletID
	}
	status, err := s.walletSvc.JoinWallet(c.Request.Context(), application.JoinWalletOpts{
		WalletID:         walletID,
		Name:             req.Name,
		XPub:             req.XPubKey,
		RequestPubKey:    req.RequestPubKey,
		CopayerSignature: req.CopayerSignature,
		DeviceID:         req.DeviceID,
		Account:          req.Account,
		Coin:             req.Coin,
		Network:          req.Network,
		CustomData:       req.CustomData,
		DryRun:           req.DryRun,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

func (s *service) getStatus(c *gin.Context) {
	credentials := credentialsFrom(c)
	status, err := s.walletSvc.GetStatus(c.Request.Context(), credentials.WalletID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

// getStatusByIdentifier resolves a wallet id, address or txid; the latter
// two are gated to support staff.
func (s *service) getStatusByIdentifier(c *gin.Context) {
	credentials := credentialsFrom(c)
	identifier := c.Param("id")

	if identifier != credentials.WalletID && !credentials.IsSupportStaff {
		respondError(c, domain.NotAuthorized("Not authorized"))
		return
	}
	wallet, err := s.walletSvc.GetWalletFromIdentifier(c.Request.Context(), identifier)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := s.walletSvc.GetStatus(c.Request.Context(), wallet.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

type updateNamesRequest struct {
	WalletName  string `json:"walletName"`
	CopayerName string `json:"copayerName"`
}

func (s *service) updateNames(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req updateNamesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if req.WalletName != "" {
		if err := s.walletSvc.UpdateWalletName(c.Request.Context(), credentials.WalletID, req.WalletName); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.CopayerName != "" {
		if err := s.walletSvc.UpdateCopayerName(c.Request.Context(), credentials.WalletID, credentials.CopayerID, req.CopayerName); err != nil {
			respondError(c, err)
			return
		}
	}
	respondOK(c, gin.H{})
}

func (s *service) getCopayersByDevice(c *gin.Context) {
	copayers, err := s.walletSvc.GetCopayersByDevice(c.Request.Context(), c.Query("deviceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, copayers)
}

type addAccessRequest struct {
	RequestPubKey string `json:"requestPubKey"`
	Signature     string `json:"signature"`
}

func (s *service) addAccess(c *gin.Context) {
	var req addAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if err := s.walletSvc.AddAccess(c.Request.Context(), c.Param("id"), req.RequestPubKey, req.Signature); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

func (s *service) getPreferences(c *gin.Context) {
	credentials := credentialsFrom(c)
	preferences, err := s.extrasSvc.GetPreferences(c.Request.Context(), credentials.WalletID, credentials.CopayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, preferences)
}

type preferencesRequest struct {
	Email    string `json:"email"`
	Language string `json:"language"`
	Unit     string `json:"unit"`
}

func (s *service) savePreferences(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if err := s.extrasSvc.SavePreferences(c.Request.Context(), domain.Preferences{
		WalletID:  credentials.WalletID,
		CopayerID: credentials.CopayerID,
		Email:     req.Email,
		Language:  req.Language,
		Unit:      req.Unit,
	}); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

type createAddressRequest struct {
	IgnoreMaxGap bool `json:"ignoreMaxGap"`
}

func (s *service) createAddress(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req createAddressRequest
	c.ShouldBindJSON(&req)
	address, err := s.addressSvc.CreateAddress(c.Request.Context(), credentials.WalletID, req.IgnoreMaxGap)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, address)
}

func (s *service) listAddresses(c *gin.Context) {
	credentials := credentialsFrom(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	reverse := c.Query("reverse") == "1" || c.Query("reverse") == "true"
	addresses, err := s.addressSvc.ListAddresses(c.Request.Context(), credentials.WalletID, limit, reverse)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, addresses)
}

type scanRequest struct {
	StartingStep uint32 `json:"startingStep"`
}

func (s *service) scanAddresses(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req scanRequest
	c.ShouldBindJSON(&req)
	// The scan runs in the background; its outcome lands in the wallet's
	// scan status and a ScanFinished notification.
	go s.addressSvc.Scan(context.Background(), credentials.WalletID, req.StartingStep)
	respondOK(c, gin.H{"started": true})
}

func (s *service) getBalance(c *gin.Context) {
	credentials := credentialsFrom(c)
	balances, err := s.walletSvc.GetBalance(c.Request.Context(), credentials.WalletID, c.Query("asset"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balances)
}

func (s *service) getUtxos(c *gin.Context) {
	credentials := credentialsFrom(c)
	view, err := s.proposalSvc.GetUtxos(c.Request.Context(), credentials.WalletID, c.Query("asset"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

func (s *service) getTxHistory(c *gin.Context) {
	credentials := credentialsFrom(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	lastRowID, _ := strconv.ParseInt(c.Query("lastRowId"), 10, 64)
	page, err := s.walletSvc.GetTxHistory(c.Request.Context(), credentials.WalletID, explorer.TxHistoryOpts{
		Asset:     c.Query("asset"),
		Limit:     limit,
		LastRowID: lastRowID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page.Items)
}

type createTxProposalRequest struct {
	TxProposalID string                 `json:"txProposalId"`
	App          string                 `json:"app"`
	Outputs      []obcore.Output        `json:"outputs"`
	Params       map[string]interface{} `json:"params"`
	Message      string                 `json:"message"`
	DryRun       bool                   `json:"dryRun"`
}

func (s *service) createTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req createTxProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	app := req.App
	if app == "" {
		app = "payment"
	}
	txp, err := s.proposalSvc.CreateTxProposal(c.Request.Context(), credentials.WalletID, credentials.CopayerID, application.CreateTxProposalOpts{
		TxProposalID: req.TxProposalID,
		App:          app,
		Outputs:      req.Outputs,
		Params:       req.Params,
		Message:      req.Message,
		DryRun:       req.DryRun,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

func (s *service) listTxProposals(c *gin.Context) {
	credentials := credentialsFrom(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	minTs, _ := strconv.ParseInt(c.Query("minTs"), 10, 64)
	maxTs, _ := strconv.ParseInt(c.Query("maxTs"), 10, 64)
	filter := domain.TxProposalFilter{
		Status: c.Query("status"),
		App:    c.Query("app"),
		MinTs:  minTs,
		MaxTs:  maxTs,
		Limit:  limit,
	}
	if v := c.Query("isPending"); v != "" {
		isPending := v == "1" || v == "true"
		filter.IsPending = &isPending
	}
	txps, err := s.proposalSvc.GetTxProposals(c.Request.Context(), credentials.WalletID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txps)
}

func (s *service) pendingTxProposals(c *gin.Context) {
	credentials := credentialsFrom(c)
	txps, err := s.proposalSvc.GetPendingTxProposals(c.Request.Context(), credentials.WalletID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txps)
}

func (s *service) getTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	if c.Param("id") == "pending" {
		s.pendingTxProposals(c)
		return
	}
	txp, err := s.proposalSvc.GetTxProposal(c.Request.Context(), credentials.WalletID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

type publishRequest struct {
	ProposalSignature string `json:"proposalSignature"`
}

func (s *service) publishTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	txp, err := s.proposalSvc.PublishTxProposal(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("id"), req.ProposalSignature,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

type signaturesRequest struct {
	Signatures map[string]string `json:"signatures"`
}

func (s *service) signTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req signaturesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	txp, err := s.proposalSvc.SignTxProposal(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("id"), req.Signatures,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

func (s *service) broadcastTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	txp, err := s.proposalSvc.BroadcastTxProposal(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *service) rejectTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req rejectRequest
	c.ShouldBindJSON(&req)
	txp, err := s.proposalSvc.RejectTxProposal(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("id"), req.Reason,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txp)
}

func (s *service) removeTxProposal(c *gin.Context) {
	credentials := credentialsFrom(c)
	if err := s.proposalSvc.RemoveTxProposal(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("id"),
	); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

type broadcastRawRequest struct {
	RawTx string `json:"rawTx"`
}

func (s *service) broadcastRaw(c *gin.Context) {
	var req broadcastRawRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RawTx == "" {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if err := s.proposalSvc.BroadcastRawJoint(c.Request.Context(), req.RawTx); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

func (s *service) getRawTx(c *gin.Context) {
	raw, err := s.proposalSvc.GetRawTx(c.Request.Context(), c.Param("txid"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"rawTx": raw})
}

func (s *service) getTxNote(c *gin.Context) {
	credentials := credentialsFrom(c)
	note, err := s.extrasSvc.GetTxNote(c.Request.Context(), credentials.WalletID, c.Param("txid"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, note)
}

type txNoteRequest struct {
	Body string `json:"body"`
}

func (s *service) editTxNote(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req txNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, application.ErrInvalidParams)
		return
	}
	note, err := s.extrasSvc.EditTxNote(
		c.Request.Context(), credentials.WalletID, credentials.CopayerID, c.Param("txid"), req.Body,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, note)
}

func (s *service) listTxNotes(c *gin.Context) {
	credentials := credentialsFrom(c)
	minTs, _ := strconv.ParseInt(c.Query("minTs"), 10, 64)
	notes, err := s.extrasSvc.GetTxNotes(c.Request.Context(), credentials.WalletID, minTs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, notes)
}

func (s *service) listAssets(c *gin.Context) {
	assets, err := s.extrasSvc.GetAssets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, assets)
}

func (s *service) getAsset(c *gin.Context) {
	asset, err := s.extrasSvc.GetAsset(c.Request.Context(), c.Param("asset"))
	if err != nil {
		respondError(c, err)
		return
	}
	if asset == nil {
		respondError(c, domain.NewError("ASSET_NOT_FOUND", "Asset not found"))
		return
	}
	respondOK(c, asset)
}

func (s *service) getFiatRate(c *gin.Context) {
	if s.fiatRateSvc == nil {
		respondError(c, domain.NewError("NOT_AVAILABLE", "Fiat rates are not configured"))
		return
	}
	provider := c.Query("provider")
	if provider == "" {
		provider = "CryptoCompare"
	}
	ts, _ := strconv.ParseInt(c.Query("ts"), 10, 64)
	rate, err := s.fiatRateSvc.GetRate(provider, c.Param("code"), ts)
	if err != nil {
		respondError(c, domain.NewError("RATE_NOT_FOUND", "Rate not found for the requested time"))
		return
	}
	respondOK(c, rate)
}

func (s *service) getNotifications(c *gin.Context) {
	credentials := credentialsFrom(c)
	timeSpanSeconds, _ := strconv.Atoi(c.Query("timeSpan"))
	notifications, err := s.extrasSvc.GetNotifications(
		c.Request.Context(), credentials.WalletID,
		time.Duration(timeSpanSeconds)*time.Second, c.Query("notificationId"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, notifications)
}

type pushSubscriptionRequest struct {
	Token       string `json:"token"`
	PackageName string `json:"packageName"`
	Platform    string `json:"platform"`
}

func (s *service) subscribePush(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req pushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if err := s.extrasSvc.SubscribePush(c.Request.Context(), domain.PushSubscription{
		CopayerID:   credentials.CopayerID,
		Token:       req.Token,
		PackageName: req.PackageName,
		Platform:    req.Platform,
	}); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

func (s *service) unsubscribePush(c *gin.Context) {
	credentials := credentialsFrom(c)
	if err := s.extrasSvc.UnsubscribePush(c.Request.Context(), credentials.CopayerID, c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

type txConfirmationRequest struct {
	TxID string `json:"txid"`
}

func (s *service) subscribeTxConfirmation(c *gin.Context) {
	credentials := credentialsFrom(c)
	var req txConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TxID == "" {
		respondError(c, application.ErrInvalidParams)
		return
	}
	if err := s.extrasSvc.SubscribeTxConfirmation(c.Request.Context(), domain.TxConfirmationSubscription{
		WalletID:  credentials.WalletID,
		CopayerID: credentials.CopayerID,
		TxID:      req.TxID,
	}); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

func (s *service) unsubscribeTxConfirmation(c *gin.Context) {
	credentials := credentialsFrom(c)
	if err := s.extrasSvc.UnsubscribeTxConfirmation(c.Request.Context(), credentials.CopayerID, c.Param("txid")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}

func (s *service) login(c *gin.Context) {
	copayerID := c.GetHeader(headerIdentity)
	token, err := s.authSvc.Login(c.Request.Context(), application.AuthRequest{
		CopayerID:     copayerID,
		Message:       canonicalMessage(c),
		Signature:     c.GetHeader(headerSignature),
		ClientVersion: c.GetHeader(headerClientVersion),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"session": token})
}

func (s *service) logout(c *gin.Context) {
	credentials := credentialsFrom(c)
	if err := s.authSvc.Logout(c.Request.Context(), credentials.CopayerID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{})
}
