package obyte

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/obyte-network/obw-daemon/pkg/circuitbreaker"
	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/httputil"
)

type obyteExplorer struct {
	apiURL string
	client *httputil.Client
	cb     *gobreaker.CircuitBreaker
}

// NewService returns an explorer.Service backed by the REST API of an Obyte
// explorer node.
func NewService(apiURL string, requestTimeout time.Duration) (explorer.Service, error) {
	svc := &obyteExplorer{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: httputil.NewClient(requestTimeout),
		cb:     circuitbreaker.NewCircuitBreaker("explorer"),
	}
	if err := svc.healthCheck(); err != nil {
		return nil, fmt.Errorf("explorer health check: %w", err)
	}
	return svc, nil
}

func (o *obyteExplorer) healthCheck() error {
	_, err := o.get("/api/status", nil)
	return err
}

func (o *obyteExplorer) get(path string, query url.Values) (string, error) {
	target := o.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := o.cb.Execute(func() (interface{}, error) {
		status, body, err := o.client.Get(target, nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("explorer returned status %d: %s", status, body)
		}
		return body, nil
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}

func (o *obyteExplorer) GetUtxos(addresses []string, asset string) ([]explorer.Utxo, error) {
	query := url.Values{}
	query.Set("addresses", strings.Join(addresses, ","))
	if asset != "" {
		query.Set("asset", asset)
	}
	body, err := o.get("/api/utxos", query)
	if err != nil {
		return nil, err
	}

	utxos := make([]explorer.Utxo, 0)
	for _, row := range gjson.Parse(body).Array() {
		utxos = append(utxos, explorer.Utxo{
			Unit:         row.Get("unit").String(),
			MessageIndex: uint32(row.Get("message_index").Uint()),
			OutputIndex:  uint32(row.Get("output_index").Uint()),
			Address:      row.Get("address").String(),
			Amount:       row.Get("amount").Int(),
			Asset:        assetOrBase(row.Get("asset").String()),
			Denomination: int(row.Get("denomination").Int()),
			Stable:       row.Get("stable").Bool(),
			Time:         row.Get("time").Int(),
		})
	}
	return utxos, nil
}

func (o *obyteExplorer) GetBalance(addresses []string, asset string) (map[string]*explorer.Balance, error) {
	query := url.Values{}
	query.Set("addresses", strings.Join(addresses, ","))
	if asset != "" {
		query.Set("asset", asset)
	}
	body, err := o.get("/api/balances", query)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]*explorer.Balance)
	gjson.Parse(body).ForEach(func(key, value gjson.Result) bool {
		balances[key.String()] = &explorer.Balance{
			Stable:              value.Get("stable").Int(),
			Pending:             value.Get("pending").Int(),
			StableOutputsCount:  int(value.Get("stable_outputs_count").Int()),
			PendingOutputsCount: int(value.Get("pending_outputs_count").Int()),
		}
		return true
	})
	return balances, nil
}

func (o *obyteExplorer) GetTxHistory(addresses []string, opts explorer.TxHistoryOpts) ([]explorer.TxHistoryItem, error) {
	query := url.Values{}
	query.Set("addresses", strings.Join(addresses, ","))
	if opts.Asset != "" {
		query.Set("asset", opts.Asset)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.LastRowID > 0 {
		query.Set("lastRowId", strconv.FormatInt(opts.LastRowID, 10))
	}
	if opts.SinceMCI > 0 {
		query.Set("since_mci", strconv.FormatInt(opts.SinceMCI, 10))
	}
	if opts.Unit != "" {
		query.Set("unit", opts.Unit)
	}
	body, err := o.get("/api/txhistory", query)
	if err != nil {
		return nil, err
	}

	items := make([]explorer.TxHistoryItem, 0)
	for _, row := range gjson.Parse(body).Array() {
		items = append(items, explorer.TxHistoryItem{
			Unit:      row.Get("unit").String(),
			RowID:     row.Get("rowid").Int(),
			Action:    row.Get("action").String(),
			Amount:    row.Get("amount").Int(),
			Asset:     assetOrBase(row.Get("asset").String()),
			AddressTo: row.Get("addressTo").String(),
			MCI:       row.Get("mci").Int(),
			Stable:    row.Get("stable").Bool(),
			Time:      row.Get("time").Int(),
		})
	}
	return items, nil
}

func (o *obyteExplorer) GetAddressActivity(address string) (bool, error) {
	body, err := o.get("/api/address/"+address+"/activity", nil)
	if err != nil {
		return false, err
	}
	return gjson.Get(body, "active").Bool(), nil
}

func (o *obyteExplorer) GetTransaction(unit string) (*explorer.TxRecord, error) {
	body, err := o.get("/api/unit/"+url.PathEscape(unit), nil)
	if err != nil {
		return nil, err
	}
	parsed := gjson.Parse(body)
	if !parsed.Get("unit").Exists() {
		return nil, nil
	}

	record := &explorer.TxRecord{
		Unit:     parsed.Get("unit").String(),
		Stable:   parsed.Get("stable").Bool(),
		MCI:      parsed.Get("mci").Int(),
		Time:     parsed.Get("time").Int(),
		RawJoint: parsed.Get("joint").Raw,
	}
	for _, author := range parsed.Get("authors").Array() {
		record.Authors = append(record.Authors, author.Get("address").String())
	}
	for _, out := range parsed.Get("outputs").Array() {
		record.Outputs = append(record.Outputs, explorer.TxOutput{
			Address: out.Get("address").String(),
			Amount:  out.Get("amount").Int(),
			Asset:   assetOrBase(out.Get("asset").String()),
		})
	}
	return record, nil
}

func (o *obyteExplorer) GetLightProps() (*explorer.LightProps, error) {
	body, err := o.get("/api/lightprops", nil)
	if err != nil {
		return nil, err
	}
	parsed := gjson.Parse(body)
	props := &explorer.LightProps{
		LastBall:        parsed.Get("last_stable_mc_ball").String(),
		LastBallUnit:    parsed.Get("last_stable_mc_ball_unit").String(),
		WitnessListUnit: parsed.Get("witness_list_unit").String(),
	}
	for _, parent := range parsed.Get("parent_units").Array() {
		props.ParentUnits = append(props.ParentUnits, parent.String())
	}
	return props, nil
}

func (o *obyteExplorer) GetAssetMetadata(registryAddresses []string) ([]explorer.AssetMetadataRecord, error) {
	query := url.Values{}
	query.Set("registries", strings.Join(registryAddresses, ","))
	body, err := o.get("/api/asset_metadata", query)
	if err != nil {
		return nil, err
	}

	records := make([]explorer.AssetMetadataRecord, 0)
	for _, row := range gjson.Parse(body).Array() {
		records = append(records, explorer.AssetMetadataRecord{
			Asset:        row.Get("asset").String(),
			MetadataUnit: row.Get("metadata_unit").String(),
			RegistryAddr: row.Get("registry_address").String(),
			Name:         row.Get("name").String(),
			ShortName:    row.Get("shortName").String(),
			Decimals:     int(row.Get("decimals").Int()),
		})
	}
	return records, nil
}

func assetOrBase(asset string) string {
	if asset == "" || asset == "null" {
		return explorer.BaseAsset
	}
	return asset
}
