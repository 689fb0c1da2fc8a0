package obcore

import (
	"crypto/sha256"
	"encoding/base64"
)

// Protocol constants of the ledger.
const (
	UnitVersion = "1.0"
	UnitAlt     = "1"

	// MaxCap is the total supply of the base asset in its smallest unit.
	MaxCap = int64(1e15)

	// SigPlaceholder stands in for a base64 r||s signature while a unit is
	// being composed, so size accounting matches the signed unit.
	SigPlaceholder = "----------------------------------------------------------------------------------------"
)

// Input references an unspent output by (unit, message_index, output_index).
type Input struct {
	Unit         string `json:"unit"`
	MessageIndex uint32 `json:"message_index"`
	OutputIndex  uint32 `json:"output_index"`
}

// Output pays an amount to an address.
type Output struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// PaymentPayload is the inline payload of a payment message.
type PaymentPayload struct {
	Asset   string   `json:"asset,omitempty"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Message is one app message carried by a unit.
type Message struct {
	App             string      `json:"app"`
	PayloadLocation string      `json:"payload_location"`
	PayloadHash     string      `json:"payload_hash"`
	Payload         interface{} `json:"payload"`
}

// Author is a signing address of a unit. Definition is present only on the
// address's first spend.
type Author struct {
	Address       string            `json:"address"`
	Authentifiers map[string]string `json:"authentifiers"`
	Definition    []interface{}     `json:"definition,omitempty"`
}

// Unit is one ledger record.
type Unit struct {
	UnitHash          string    `json:"unit,omitempty"`
	Version           string    `json:"version"`
	Alt               string    `json:"alt"`
	Messages          []Message `json:"messages"`
	Authors           []Author  `json:"authors"`
	ParentUnits       []string  `json:"parent_units"`
	LastBall          string    `json:"last_ball"`
	LastBallUnit      string    `json:"last_ball_unit"`
	WitnessListUnit   string    `json:"witness_list_unit"`
	HeadersCommission int       `json:"headers_commission"`
	PayloadCommission int       `json:"payload_commission"`
}

// Joint wraps a unit for submission to the hub.
type Joint struct {
	Unit *Unit `json:"unit"`
}

func base64Hash(value interface{}) string {
	sum := sha256.Sum256([]byte(GetSourceString(value)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// PayloadHash returns the canonical hash of a message payload.
func PayloadHash(payload interface{}) string {
	return base64Hash(payloadTree(payload))
}

func (p PaymentPayload) tree() map[string]interface{} {
	inputs := make([]interface{}, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		inputs = append(inputs, map[string]interface{}{
			"unit":          in.Unit,
			"message_index": in.MessageIndex,
			"output_index":  in.OutputIndex,
		})
	}
	outputs := make([]interface{}, 0, len(p.Outputs))
	for _, out := range p.Outputs {
		outputs = append(outputs, map[string]interface{}{
			"address": out.Address,
			"amount":  out.Amount,
		})
	}
	tree := map[string]interface{}{
		"inputs":  inputs,
		"outputs": outputs,
	}
	if p.Asset != "" {
		tree["asset"] = p.Asset
	}
	return tree
}

// payloadTree renders the payload as the canonical value tree used for hashing. A
// PaymentPayload gets its dedicated shape, everything else must already be a
// JSON-like tree.
func payloadTree(payload interface{}) interface{} {
	if p, ok := payload.(PaymentPayload); ok {
		return p.tree()
	}
	if p, ok := payload.(*PaymentPayload); ok {
		return p.tree()
	}
	return payload
}

func (m Message) tree() map[string]interface{} {
	return map[string]interface{}{
		"app":              m.App,
		"payload_location": m.PayloadLocation,
		"payload_hash":     m.PayloadHash,
		"payload":          payloadTree(m.Payload),
	}
}

func (u *Unit) nakedTree(withAuthentifiers bool) map[string]interface{} {
	messages := make([]interface{}, 0, len(u.Messages))
	for _, m := range u.Messages {
		messages = append(messages, m.tree())
	}
	authors := make([]interface{}, 0, len(u.Authors))
	for _, a := range u.Authors {
		author := map[string]interface{}{"address": a.Address}
		if withAuthentifiers {
			authentifiers := make(map[string]interface{}, len(a.Authentifiers))
			for path, sig := range a.Authentifiers {
				authentifiers[path] = sig
			}
			author["authentifiers"] = authentifiers
		}
		if len(a.Definition) > 0 {
			author["definition"] = a.Definition
		}
		authors = append(authors, author)
	}
	tree := map[string]interface{}{
		"version":  u.Version,
		"alt":      u.Alt,
		"messages": messages,
		"authors":  authors,
	}
	if len(u.ParentUnits) > 0 {
		parents := make([]interface{}, 0, len(u.ParentUnits))
		for _, p := range u.ParentUnits {
			parents = append(parents, p)
		}
		tree["parent_units"] = parents
		tree["last_ball"] = u.LastBall
		tree["last_ball_unit"] = u.LastBallUnit
	}
	if u.WitnessListUnit != "" {
		tree["witness_list_unit"] = u.WitnessListUnit
	}
	return tree
}

// HashToSign returns the 32-byte digest each author signs: the sha256 of the
// canonical serialisation of the unit without authentifiers and commissions.
func (u *Unit) HashToSign() []byte {
	sum := sha256.Sum256([]byte(GetSourceString(u.nakedTree(false))))
	return sum[:]
}

// ComputeUnitHash returns the final unit hash. It covers the content hash
// (which includes authentifiers), so it is only stable once every signature
// slot is filled.
func (u *Unit) ComputeUnitHash() string {
	contentHash := base64Hash(u.nakedTree(true))
	authors := make([]interface{}, 0, len(u.Authors))
	for _, a := range u.Authors {
		authors = append(authors, map[string]interface{}{"address": a.Address})
	}
	stripped := map[string]interface{}{
		"content_hash": contentHash,
		"version":      u.Version,
		"alt":          u.Alt,
		"authors":      authors,
	}
	if len(u.ParentUnits) > 0 {
		parents := make([]interface{}, 0, len(u.ParentUnits))
		for _, p := range u.ParentUnits {
			parents = append(parents, p)
		}
		stripped["parent_units"] = parents
		stripped["last_ball"] = u.LastBall
		stripped["last_ball_unit"] = u.LastBallUnit
	}
	if u.WitnessListUnit != "" {
		stripped["witness_list_unit"] = u.WitnessListUnit
	}
	return base64Hash(stripped)
}

// HeadersSize returns the size in bytes of the unit headers under ledger
// accounting, authentifiers included.
func (u *Unit) HeadersSize() int {
	tree := u.nakedTree(true)
	delete(tree, "messages")
	return GetLength(tree)
}

// PayloadSize returns the size in bytes of the unit messages under ledger
// accounting.
func (u *Unit) PayloadSize() int {
	messages := make([]interface{}, 0, len(u.Messages))
	for _, m := range u.Messages {
		messages = append(messages, m.tree())
	}
	return GetLength(messages)
}
