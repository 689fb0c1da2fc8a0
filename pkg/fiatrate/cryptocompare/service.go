package cryptocompare

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/obyte-network/obw-daemon/pkg/fiatrate"
	"github.com/obyte-network/obw-daemon/pkg/httputil"
)

const providerName = "CryptoCompare"

type cryptoCompare struct {
	apiURL string
	symbol string
	codes  []string
	client *httputil.Client
}

// NewProvider returns a fiatrate.Provider quoting the given chain symbol in
// the given fiat codes.
func NewProvider(apiURL, symbol string, codes []string) fiatrate.Provider {
	return &cryptoCompare{
		apiURL: apiURL,
		symbol: symbol,
		codes:  codes,
		client: httputil.NewClient(15 * time.Second),
	}
}

func (c *cryptoCompare) Name() string { return providerName }

func (c *cryptoCompare) Fetch() ([]fiatrate.Rate, error) {
	url := fmt.Sprintf("%s/data/price?fsym=%s&tsyms=%s", c.apiURL, c.symbol, joinCodes(c.codes))
	status, body, err := c.client.Get(url, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d: %s", status, body)
	}

	now := time.Now().UnixMilli()
	rates := make([]fiatrate.Rate, 0, len(c.codes))
	for _, code := range c.codes {
		value := gjson.Get(body, code)
		if !value.Exists() {
			continue
		}
		rates = append(rates, fiatrate.Rate{
			Provider: providerName,
			Code:     code,
			Value:    decimal.NewFromFloat(value.Float()),
			Ts:       now,
		})
	}
	return rates, nil
}

func joinCodes(codes []string) string {
	out := ""
	for i, code := range codes {
		if i > 0 {
			out += ","
		}
		out += code
	}
	return out
}
