package obcore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const pubkeyPlaceholderPrefix = "$pubkey@"

var (
	// ErrMalformedTemplate is returned when a definition template cannot be
	// instantiated.
	ErrMalformedTemplate = errors.New("malformed definition template")
	// ErrMissingDeviceKey is returned when the template references a device
	// with no derived public key.
	ErrMissingDeviceKey = errors.New("no public key for device referenced by template")
)

// CopayerKey pairs a copayer's device with its extended public key, in wallet
// join order. The ring drives deterministic address derivation.
type CopayerKey struct {
	DeviceID string
	XPub     string
}

// DerivedAddress is the result of instantiating a wallet definition template
// at a derivation path.
type DerivedAddress struct {
	Address      string
	Definition   []interface{}
	SigningPaths map[string]string // base64 pubkey -> signing path
}

// NewDefinitionTemplate builds the definition template of an m-of-n wallet.
// A 1-of-1 wallet is a plain sig clause; shared wallets are an "r of set"
// clause with one sig sub-clause per copayer device, in join order.
func NewDefinitionTemplate(m, n int, deviceIDs []string) ([]interface{}, error) {
	if len(deviceIDs) != n {
		return nil, fmt.Errorf("definition template needs %d devices, got %d", n, len(deviceIDs))
	}
	if n == 1 {
		return []interface{}{
			"sig",
			map[string]interface{}{"pubkey": pubkeyPlaceholderPrefix + deviceIDs[0]},
		}, nil
	}
	set := make([]interface{}, 0, n)
	for _, deviceID := range deviceIDs {
		set = append(set, []interface{}{
			"sig",
			map[string]interface{}{"pubkey": pubkeyPlaceholderPrefix + deviceID},
		})
	}
	return []interface{}{
		"r of set",
		map[string]interface{}{
			"required": m,
			"set":      set,
		},
	}, nil
}

// ParseTemplate decodes a JSON-encoded definition template.
func ParseTemplate(raw string) ([]interface{}, error) {
	var template []interface{}
	if err := json.Unmarshal([]byte(raw), &template); err != nil {
		return nil, ErrMalformedTemplate
	}
	if len(template) != 2 {
		return nil, ErrMalformedTemplate
	}
	return template, nil
}

// EncodeTemplate serialises a definition (or template) back to JSON.
func EncodeTemplate(def []interface{}) string {
	raw, _ := json.Marshal(def)
	return string(raw)
}

// DeriveAddress instantiates the template with per-copayer public keys derived
// along m/change/index and hashes the resulting definition into an address.
// Given the same ring and path the result is identical across runs.
func DeriveAddress(template []interface{}, ring []CopayerKey, change, index uint32) (*DerivedAddress, error) {
	keyByDevice := make(map[string]string, len(ring))
	for _, ck := range ring {
		pubkey, err := DerivePubKey(ck.XPub, change, index)
		if err != nil {
			return nil, err
		}
		keyByDevice[ck.DeviceID] = pubkey
	}

	signingPaths := make(map[string]string)
	definition, err := substitute(template, keyByDevice, "r", signingPaths)
	if err != nil {
		return nil, err
	}
	def, ok := definition.([]interface{})
	if !ok {
		return nil, ErrMalformedTemplate
	}
	return &DerivedAddress{
		Address:      GetChash160(GetSourceString(def)),
		Definition:   def,
		SigningPaths: signingPaths,
	}, nil
}

func substitute(node interface{}, keyByDevice map[string]string, path string, signingPaths map[string]string) (interface{}, error) {
	clause, ok := node.([]interface{})
	if !ok || len(clause) != 2 {
		return nil, ErrMalformedTemplate
	}
	op, ok := clause[0].(string)
	if !ok {
		return nil, ErrMalformedTemplate
	}

	switch op {
	case "sig":
		args, ok := clause[1].(map[string]interface{})
		if !ok {
			return nil, ErrMalformedTemplate
		}
		placeholder, ok := args["pubkey"].(string)
		if !ok {
			return nil, ErrMalformedTemplate
		}
		pubkey := placeholder
		if strings.HasPrefix(placeholder, pubkeyPlaceholderPrefix) {
			deviceID := strings.TrimPrefix(placeholder, pubkeyPlaceholderPrefix)
			derived, found := keyByDevice[deviceID]
			if !found {
				return nil, ErrMissingDeviceKey
			}
			pubkey = derived
		}
		signingPaths[pubkey] = path
		return []interface{}{"sig", map[string]interface{}{"pubkey": pubkey}}, nil

	case "r of set":
		args, ok := clause[1].(map[string]interface{})
		if !ok {
			return nil, ErrMalformedTemplate
		}
		required, err := templateNumber(args["required"])
		if err != nil {
			return nil, err
		}
		set, ok := args["set"].([]interface{})
		if !ok || len(set) == 0 {
			return nil, ErrMalformedTemplate
		}
		outSet := make([]interface{}, 0, len(set))
		for i, member := range set {
			sub, err := substitute(member, keyByDevice, fmt.Sprintf("%s.%d", path, i), signingPaths)
			if err != nil {
				return nil, err
			}
			outSet = append(outSet, sub)
		}
		return []interface{}{"r of set", map[string]interface{}{
			"required": required,
			"set":      outSet,
		}}, nil

	default:
		return nil, ErrMalformedTemplate
	}
}

func templateNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, ErrMalformedTemplate
	}
}
