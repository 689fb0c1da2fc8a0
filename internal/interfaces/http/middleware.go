package httpinterface

import (
	"bytes"
	"io/ioutil"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	uberratelimit "go.uber.org/ratelimit"
	"golang.org/x/time/rate"

	"github.com/obyte-network/obw-daemon/internal/core/application"
	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

const (
	headerIdentity      = "x-identity"
	headerSignature     = "x-signature"
	headerSession       = "x-session"
	headerClientVersion = "x-client-version"
	headerWalletID      = "x-wallet-id"

	credentialsKey = "credentials"
)

// authMiddleware authenticates every request either by signature over the
// canonical method|url|body serialisation or by session token.
func (s *service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		copayerID := c.GetHeader(headerIdentity)
		if copayerID == "" {
			respondError(c, domain.NotAuthorized("Copayer not found"))
			return
		}

		clientVersion := c.GetHeader(headerClientVersion)
		explicitWalletID := c.GetHeader(headerWalletID)

		if token := c.GetHeader(headerSession); token != "" {
			credentials, err := s.authSvc.AuthenticateSession(
				c.Request.Context(), copayerID, token, clientVersion, explicitWalletID,
			)
			if err != nil {
				respondError(c, err)
				return
			}
			c.Set(credentialsKey, credentials)
			c.Next()
			return
		}

		credentials, err := s.authSvc.Authenticate(c.Request.Context(), application.AuthRequest{
			CopayerID:        copayerID,
			Message:          canonicalMessage(c),
			Signature:        c.GetHeader(headerSignature),
			ClientVersion:    clientVersion,
			ExplicitWalletID: explicitWalletID,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(credentialsKey, credentials)
		c.Next()
	}
}

func credentialsFrom(c *gin.Context) *application.Credentials {
	value, _ := c.Get(credentialsKey)
	credentials, _ := value.(*application.Credentials)
	return credentials
}

// canonicalMessage rebuilds the signed serialisation: lowercased method, the
// full request URI and the raw body ("{}" when absent).
func canonicalMessage(c *gin.Context) string {
	body := "{}"
	if c.Request.Body != nil {
		raw, err := ioutil.ReadAll(c.Request.Body)
		if err == nil {
			c.Request.Body = ioutil.NopCloser(bytes.NewReader(raw))
			if len(raw) > 0 {
				body = string(raw)
			}
		}
	}
	return strings.Join([]string{
		strings.ToLower(c.Request.Method),
		c.Request.URL.RequestURI(),
		body,
	}, "|")
}

// createWalletRateLimiter throttles wallet creation per source IP: a
// blocking slow-down past the soft rate and a hard rejection past the
// hourly cap.
type createWalletRateLimiter struct {
	mu      sync.Mutex
	hard    map[string]*rate.Limiter
	soft    map[string]uberratelimit.Limiter
	perHour int
}

func newCreateWalletRateLimiter(perHour int) *createWalletRateLimiter {
	return &createWalletRateLimiter{
		hard:    map[string]*rate.Limiter{},
		soft:    map[string]uberratelimit.Limiter{},
		perHour: perHour,
	}
}

func (l *createWalletRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		l.mu.Lock()
		hard, ok := l.hard[ip]
		if !ok {
			hard = rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour)
			l.hard[ip] = hard
			// Slow down noticeably past roughly half the hard cap.
			l.soft[ip] = uberratelimit.New(l.perHour/2+1, uberratelimit.Per(time.Hour))
		}
		soft := l.soft[ip]
		l.mu.Unlock()

		if !hard.Allow() {
			respondError(c, domain.NewError("RATE_LIMITED", "Too many wallet creations from this address"))
			return
		}
		soft.Take()
		c.Next()
	}
}
