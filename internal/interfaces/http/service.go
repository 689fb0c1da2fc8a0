package httpinterface

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/application"
	"github.com/obyte-network/obw-daemon/internal/interfaces"
	"github.com/obyte-network/obw-daemon/pkg/fiatrate"
)

// Opts wires the REST interface.
type Opts struct {
	Port                    int
	CreateWalletRatePerHour int

	AuthSvc     application.AuthService
	WalletSvc   application.WalletService
	AddressSvc  application.AddressService
	ProposalSvc application.ProposalService
	ExtrasSvc   application.ExtrasService
	FiatRateSvc *fiatrate.Service
}

type service struct {
	opts   Opts
	server *http.Server

	authSvc     application.AuthService
	walletSvc   application.WalletService
	addressSvc  application.AddressService
	proposalSvc application.ProposalService
	extrasSvc   application.ExtrasService
	fiatRateSvc *fiatrate.Service
}

// NewService returns the REST interface of the daemon.
func NewService(opts Opts) interfaces.Service {
	return &service{
		opts:        opts,
		authSvc:     opts.AuthSvc,
		walletSvc:   opts.WalletSvc,
		addressSvc:  opts.AddressSvc,
		proposalSvc: opts.ProposalSvc,
		extrasSvc:   opts.ExtrasSvc,
		fiatRateSvc: opts.FiatRateSvc,
	}
}

func (s *service) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type",
			headerIdentity, headerSignature, headerSession,
			headerClientVersion, headerWalletID,
		},
	}))

	s.registerRoutes(router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.opts.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http interface stopped")
		}
	}()
	log.Infof("http interface is listening on %s", s.server.Addr)
	return nil
}

func (s *service) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

func (s *service) registerRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")

	// Wallet creation is unauthenticated (there is no copayer yet) but rate
	// limited per source address.
	walletLimiter := newCreateWalletRateLimiter(s.opts.CreateWalletRatePerHour)
	v1.POST("/wallets", walletLimiter.middleware(), s.createWallet)
	v1.POST("/wallets/:id/copayers", s.joinWallet)

	// Everything below authenticates by signature or session.
	authed := v1.Group("", s.authMiddleware())
	{
		authed.GET("/wallets", s.getStatus)
		authed.GET("/wallets/:id", s.getStatusByIdentifier)
		authed.PUT("/wallets", s.updateNames)
		authed.GET("/copayers", s.getCopayersByDevice)
		authed.PUT("/copayers/:id", s.addAccess)

		authed.GET("/preferences", s.getPreferences)
		authed.PUT("/preferences", s.savePreferences)

		authed.POST("/addresses", s.createAddress)
		authed.GET("/addresses", s.listAddresses)
		authed.POST("/addresses/scan", s.scanAddresses)

		authed.GET("/balance", s.getBalance)
		authed.GET("/utxos", s.getUtxos)
		authed.GET("/txhistory", s.getTxHistory)

		authed.POST("/txproposals", s.createTxProposal)
		authed.GET("/txproposals", s.listTxProposals)
		// "pending" is resolved inside the :id handler; gin's router does
		// not mix a static segment with a parameter sibling.
		authed.GET("/txproposals/:id", s.getTxProposal)
		authed.POST("/txproposals/:id/publish", s.publishTxProposal)
		authed.POST("/txproposals/:id/signatures", s.signTxProposal)
		authed.POST("/txproposals/:id/broadcast", s.broadcastTxProposal)
		authed.POST("/txproposals/:id/rejections", s.rejectTxProposal)
		authed.DELETE("/txproposals/:id", s.removeTxProposal)

		authed.POST("/broadcast_raw", s.broadcastRaw)
		authed.GET("/txraw/:txid", s.getRawTx)

		authed.GET("/txnotes/:txid", s.getTxNote)
		authed.PUT("/txnotes/:txid", s.editTxNote)
		authed.GET("/txnotes", s.listTxNotes)

		authed.GET("/assets", s.listAssets)
		authed.GET("/assets/:asset", s.getAsset)
		authed.GET("/fiatrates/:code", s.getFiatRate)

		authed.GET("/notifications", s.getNotifications)

		authed.POST("/pushnotifications/subscriptions", s.subscribePush)
		authed.DELETE("/pushnotifications/subscriptions/:token", s.unsubscribePush)

		authed.POST("/txconfirmations", s.subscribeTxConfirmation)
		authed.DELETE("/txconfirmations/:txid", s.unsubscribeTxConfirmation)

		authed.POST("/logout", s.logout)
	}

	// Login is always signature-based: it is what mints the session.
	v1.POST("/login", s.login)
}
