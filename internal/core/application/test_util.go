package application

import (
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/obyte-network/obw-daemon/pkg/explorer"
	"github.com/obyte-network/obw-daemon/pkg/hub"
	"github.com/obyte-network/obw-daemon/pkg/obcore"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// stubExplorer is the in-process explorer used by service tests.
type stubExplorer struct {
	mu sync.Mutex

	utxos           []explorer.Utxo
	activity        map[string]bool
	defaultActivity bool
	transactions    map[string]*explorer.TxRecord
	balances        map[string]*explorer.Balance
	history         []explorer.TxHistoryItem
	assetMetadata   []explorer.AssetMetadataRecord
	probed          []string
}

func newStubExplorer() *stubExplorer {
	return &stubExplorer{
		activity:     map[string]bool{},
		transactions: map[string]*explorer.TxRecord{},
		balances:     map[string]*explorer.Balance{},
	}
}

func (s *stubExplorer) GetUtxos(addresses []string, asset string) ([]explorer.Utxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAddress := map[string]bool{}
	for _, a := range addresses {
		byAddress[a] = true
	}
	out := make([]explorer.Utxo, 0)
	for _, u := range s.utxos {
		if byAddress[u.Address] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubExplorer) GetBalance(addresses []string, asset string) (map[string]*explorer.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances, nil
}

func (s *stubExplorer) GetTxHistory(addresses []string, opts explorer.TxHistoryOpts) ([]explorer.TxHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history, nil
}

func (s *stubExplorer) GetAddressActivity(address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = append(s.probed, address)
	if active, ok := s.activity[address]; ok {
		return active, nil
	}
	return s.defaultActivity, nil
}

func (s *stubExplorer) GetTransaction(unit string) (*explorer.TxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[unit], nil
}

func (s *stubExplorer) GetLightProps() (*explorer.LightProps, error) {
	return &explorer.LightProps{
		ParentUnits:     []string{"PARENTUNIT00000000000000000000000000000000"},
		LastBall:        "LASTBALL0000000000000000000000000000000000",
		LastBallUnit:    "LASTBALLUNIT000000000000000000000000000000",
		WitnessListUnit: "WITNESSLIST0000000000000000000000000000000",
	}, nil
}

func (s *stubExplorer) GetAssetMetadata(registryAddresses []string) ([]explorer.AssetMetadataRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetMetadata, nil
}

func (s *stubExplorer) addUtxo(u explorer.Utxo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utxos = append(s.utxos, u)
}

// stubHub records broadcast attempts and lets tests feed the event stream.
type stubHub struct {
	mu sync.Mutex

	broadcastErr error
	broadcasted  []string
	events       chan hub.Event
}

func newStubHub() *stubHub {
	return &stubHub{events: make(chan hub.Event, 100)}
}

func (s *stubHub) Connect() error { return nil }
func (s *stubHub) Close()         { close(s.events) }

func (s *stubHub) BroadcastJoint(jointJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broadcastErr != nil {
		return s.broadcastErr
	}
	s.broadcasted = append(s.broadcasted, jointJSON)
	return nil
}

func (s *stubHub) Events() <-chan hub.Event { return s.events }

func (s *stubHub) broadcastCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.broadcasted)
}

// Key helpers shared by the service tests. The extended keys are the public
// BIP32 test vectors, so every derivation is reproducible.
const (
	testXPrv1 = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
	testXPub1 = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
	testXPrv2 = "xprv9s21ZrQH143K31xYSDQpPDxsXRTUcvj2iNHm5NUtrGiGG5e2DtALGdso3pGz6ssrdK4PFmM8NSpSBHNqPqm55Qn3LqFtT2emdEXVYsCzC2U"
	testXPub2 = "xpub661MyMwAqRbcFW31YEwpkMuc5THy2PSt5bDMsktWQcFF8syAmRUapSCGu8ED9W6oDMSgv6Zz8idoc4a6mr8BDzTJY47LJhkJ8UB7WEGuduB"
	testXPrv3 = "xprv9s21ZrQH143K25QhxbucbDDuQ4naNntJRi4KUfWT7xo4EKsHt2QJDu7KXp1A3u7Bi1j8ph3EGsZ9Xvz9dGuVrtHHs7pXeTzjuxBrCmmhgC6"
	testXPub3 = "xpub661MyMwAqRbcEZVB4dScxMAdx6d4nFc9nvyvH3v4gJL378CSRZiYmhRoP7mBy6gSPSCYk6SzXPTf3ND1cZAceL7SfJ1Z3GC8vBgp2epUt13"
)

type testKey struct {
	priv   *secp256k1.PrivateKey
	pubHex string
}

func newTestKey() testKey {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	return testKey{
		priv:   priv,
		pubHex: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}
}

// signMessage produces the DER hex signature over double-sha256(message)
// that the auth and join flows verify.
func (k testKey) signMessage(message string) string {
	sig := secpecdsa.Sign(k.priv, obcore.DoubleSha256([]byte(message)))
	return hex.EncodeToString(sig.Serialize())
}

// signUnitHash signs a 32-byte unit digest with the child private key at
// m/change/index below the given xprv, returning the base64 r||s form used
// in authentifiers.
func signUnitHash(xprv string, change, index uint32, hashToSign []byte) string {
	key, err := hdkeychain.NewKeyFromString(xprv)
	if err != nil {
		panic(err)
	}
	changeKey, err := key.Derive(change)
	if err != nil {
		panic(err)
	}
	indexKey, err := changeKey.Derive(index)
	if err != nil {
		panic(err)
	}
	btcPriv, err := indexKey.ECPrivKey()
	if err != nil {
		panic(err)
	}
	priv := secp256k1.PrivKeyFromBytes(btcPriv.Serialize())
	compact := secpecdsa.SignCompact(priv, hashToSign, true)
	return base64.StdEncoding.EncodeToString(compact[1:])
}

// signRequestKeyRotation signs a new request pubkey with the
// request-key-auth child of the given xprv.
func signRequestKeyRotation(xprv, newRequestPubKey string) string {
	key, err := hdkeychain.NewKeyFromString(xprv)
	if err != nil {
		panic(err)
	}
	changeKey, err := key.Derive(obcore.RequestKeyAuthPath[0])
	if err != nil {
		panic(err)
	}
	indexKey, err := changeKey.Derive(obcore.RequestKeyAuthPath[1])
	if err != nil {
		panic(err)
	}
	btcPriv, err := indexKey.ECPrivKey()
	if err != nil {
		panic(err)
	}
	priv := secp256k1.PrivKeyFromBytes(btcPriv.Serialize())
	sig := secpecdsa.Sign(priv, obcore.DoubleSha256([]byte(newRequestPubKey)))
	return hex.EncodeToString(sig.Serialize())
}

func shortTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Network = "test"
	cfg.SessionExpiration = time.Hour
	return cfg
}

// testCopayer bundles the keys a joining copayer controls.
type testCopayer struct {
	name       string
	xprv       string
	xpub       string
	deviceID   string
	requestKey testKey
}

func testCopayers() []testCopayer {
	return []testCopayer{
		{name: "alice", xprv: testXPrv1, xpub: testXPub1, deviceID: "device-alice", requestKey: newTestKey()},
		{name: "bob", xprv: testXPrv2, xpub: testXPub2, deviceID: "device-bob", requestKey: newTestKey()},
		{name: "carol", xprv: testXPrv3, xpub: testXPub3, deviceID: "device-carol", requestKey: newTestKey()},
	}
}

// joinSignature endorses the joining triple under the wallet creation key.
func joinSignature(creationKey testKey, c testCopayer) string {
	return creationKey.signMessage(c.name + "|" + c.xpub + "|" + c.requestKey.pubHex)
}
