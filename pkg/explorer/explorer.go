package explorer

// BaseAsset is the asset selector for the chain's native bytes.
const BaseAsset = "base"

// Utxo is an unspent output as reported by the explorer, identified by
// (unit, message_index, output_index).
type Utxo struct {
	Unit         string `json:"unit"`
	MessageIndex uint32 `json:"message_index"`
	OutputIndex  uint32 `json:"output_index"`
	Address      string `json:"address"`
	Amount       int64  `json:"amount"`
	Asset        string `json:"asset"`
	Denomination int    `json:"denomination"`
	Stable       bool   `json:"stable"`
	Time         int64  `json:"time"`
}

// Key returns the identity of the utxo as a single comparable string.
func (u Utxo) Key() string {
	return UtxoKey(u.Unit, u.MessageIndex, u.OutputIndex)
}

// UtxoKey builds the comparable identity of an output reference.
func UtxoKey(unit string, messageIndex, outputIndex uint32) string {
	return unitRefString(unit, messageIndex, outputIndex)
}

// Balance is the per-asset position of a set of addresses.
type Balance struct {
	Stable              int64 `json:"stable"`
	Pending             int64 `json:"pending"`
	StableOutputsCount  int   `json:"stable_outputs_count"`
	PendingOutputsCount int   `json:"pending_outputs_count"`
}

// TxHistoryItem is one row of the transaction history of a set of addresses.
type TxHistoryItem struct {
	Unit      string `json:"unit"`
	RowID     int64  `json:"rowid"`
	Action    string `json:"action"` // sent | received | moved
	Amount    int64  `json:"amount"`
	Asset     string `json:"asset"`
	AddressTo string `json:"addressTo"`
	MCI       int64  `json:"mci"`
	Stable    bool   `json:"stable"`
	Time      int64  `json:"time"`
}

// TxHistoryOpts narrows a history query.
type TxHistoryOpts struct {
	Asset     string
	Limit     int
	LastRowID int64
	SinceMCI  int64
	Unit      string
}

// TxOutput is one output of a transaction record.
type TxOutput struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
	Asset   string `json:"asset"`
}

// TxRecord is a transaction as seen by the explorer.
type TxRecord struct {
	Unit     string     `json:"unit"`
	Authors  []string   `json:"authors"`
	Outputs  []TxOutput `json:"outputs"`
	Stable   bool       `json:"stable"`
	MCI      int64      `json:"mci"`
	Time     int64      `json:"time"`
	RawJoint string     `json:"joint"`
}

// LightProps pins new units to the current DAG tip.
type LightProps struct {
	ParentUnits     []string `json:"parent_units"`
	LastBall        string   `json:"last_stable_mc_ball"`
	LastBallUnit    string   `json:"last_stable_mc_ball_unit"`
	WitnessListUnit string   `json:"witness_list_unit"`
}

// AssetMetadataRecord is an asset-metadata unit published by a registry.
type AssetMetadataRecord struct {
	Asset        string `json:"asset"`
	MetadataUnit string `json:"metadata_unit"`
	RegistryAddr string `json:"registry_address"`
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	Decimals     int    `json:"decimals"`
}

// Service is the read API over the ledger. The explorer is treated as the
// source of truth for UTXOs and address activity; writes go through the hub.
type Service interface {
	// GetUtxos fetches live unspent outputs for the given addresses,
	// optionally narrowed to one asset ("base" for bytes).
	GetUtxos(addresses []string, asset string) ([]Utxo, error)
	// GetBalance returns per-asset balances of the given addresses.
	GetBalance(addresses []string, asset string) (map[string]*Balance, error)
	// GetTxHistory returns history rows for the given addresses, most recent
	// first.
	GetTxHistory(addresses []string, opts TxHistoryOpts) ([]TxHistoryItem, error)
	// GetAddressActivity reports whether the address ever appeared on chain.
	GetAddressActivity(address string) (bool, error)
	// GetTransaction returns the record of a unit, or nil if unknown.
	GetTransaction(unit string) (*TxRecord, error)
	// GetLightProps returns the DAG tip data needed to compose a new unit.
	GetLightProps() (*LightProps, error)
	// GetAssetMetadata returns asset-metadata units published by the given
	// registry addresses.
	GetAssetMetadata(registryAddresses []string) ([]AssetMetadataRecord, error)
}

func unitRefString(unit string, messageIndex, outputIndex uint32) string {
	const sep = ":"
	return unit + sep + uitoa(messageIndex) + sep + uitoa(outputIndex)
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
