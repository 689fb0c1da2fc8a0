package obcore

import (
	"errors"
	"sort"
)

var (
	// ErrInsufficientFunds is returned when the paying addresses do not hold
	// enough to cover outputs plus commissions.
	ErrInsufficientFunds = errors.New("not enough funds to cover outputs and commissions")
	// ErrNoOutputs ...
	ErrNoOutputs = errors.New("payment requires at least one output")
	// ErrAmountOutOfRange ...
	ErrAmountOutOfRange = errors.New("output amount out of range")
)

// SpendableOutput is an unspent output together with the context needed to
// spend it: the owning address and its amount.
type SpendableOutput struct {
	Unit         string
	MessageIndex uint32
	OutputIndex  uint32
	Address      string
	Amount       int64
}

// AuthorAddress carries what the composer needs to emit an author entry for
// a paying address.
type AuthorAddress struct {
	Address      string
	Definition   []interface{}
	SigningPaths map[string]string // base64 pubkey -> signing path
	Path         string            // m/change/index of the address
}

// ChainView pins a draft unit to the current tip of the DAG.
type ChainView struct {
	ParentUnits     []string
	LastBall        string
	LastBallUnit    string
	WitnessListUnit string
}

// ComposeRequest describes a payment to turn into a draft unit.
type ComposeRequest struct {
	Outputs       []Output
	ChangeAddress string
	Spendable     []SpendableOutput
	Authors       map[string]AuthorAddress // by address
	View          ChainView
	ExtraMessages []Message // non-payment app payloads, already hashed
}

// ComposeResult is a draft unit with signature placeholders plus the data a
// signer needs.
type ComposeResult struct {
	Unit         *Unit
	HashToSign   []byte
	UsedInputs   []SpendableOutput
	AuthorPaths  map[string]string // author address -> derivation path
	ChangeAmount int64
	TotalInput   int64
	TotalOutput  int64
	Commissions  int64
}

// ComposePayment selects inputs accumulatively until they cover the outputs
// plus the commissions of the growing unit, then builds the draft with
// placeholder authentifiers. Commissions are recomputed after every added
// input since each one enlarges the unit.
func ComposePayment(req ComposeRequest) (*ComposeResult, error) {
	if len(req.Outputs) == 0 && len(req.ExtraMessages) == 0 {
		return nil, ErrNoOutputs
	}
	var target int64
	for _, out := range req.Outputs {
		if out.Amount <= 0 || out.Amount > MaxCap {
			return nil, ErrAmountOutOfRange
		}
		target += out.Amount
	}

	// Largest first keeps the input count, and with it the commissions, low.
	spendable := make([]SpendableOutput, len(req.Spendable))
	copy(spendable, req.Spendable)
	sort.SliceStable(spendable, func(i, j int) bool {
		return spendable[i].Amount > spendable[j].Amount
	})

	var (
		selected   []SpendableOutput
		totalIn    int64
		commission int64
	)
	for i := 0; ; i++ {
		unit := buildDraft(req, selected, 0)
		commission = int64(unit.HeadersCommission + unit.PayloadCommission)
		if totalIn >= target+commission {
			// One more pass with the change output in place, which itself
			// costs payload size.
			change := totalIn - target - commission
			unit = buildDraft(req, selected, change)
			commission = int64(unit.HeadersCommission + unit.PayloadCommission)
			if totalIn >= target+commission {
				break
			}
		}
		if i >= len(spendable) {
			return nil, ErrInsufficientFunds
		}
		selected = append(selected, spendable[i])
		totalIn += spendable[i].Amount
	}

	change := totalIn - target - commission
	unit := buildDraft(req, selected, change)
	// Rebuilding with the final change may shift the commissions by a few
	// bytes; absorb the difference into the change output.
	finalCommission := int64(unit.HeadersCommission + unit.PayloadCommission)
	if finalCommission != commission {
		change = totalIn - target - finalCommission
		if change < 0 {
			return nil, ErrInsufficientFunds
		}
		unit = buildDraft(req, selected, change)
	}

	authorPaths := make(map[string]string)
	for _, a := range unit.Authors {
		if author, ok := req.Authors[a.Address]; ok {
			authorPaths[a.Address] = author.Path
		}
	}

	return &ComposeResult{
		Unit:         unit,
		HashToSign:   unit.HashToSign(),
		UsedInputs:   selected,
		AuthorPaths:  authorPaths,
		ChangeAmount: change,
		TotalInput:   totalIn,
		TotalOutput:  target,
		Commissions:  int64(unit.HeadersCommission + unit.PayloadCommission),
	}, nil
}

func buildDraft(req ComposeRequest, selected []SpendableOutput, change int64) *Unit {
	inputs := make([]Input, 0, len(selected))
	authorSet := make(map[string]bool)
	for _, s := range selected {
		inputs = append(inputs, Input{
			Unit:         s.Unit,
			MessageIndex: s.MessageIndex,
			OutputIndex:  s.OutputIndex,
		})
		authorSet[s.Address] = true
	}

	outputs := make([]Output, 0, len(req.Outputs)+1)
	outputs = append(outputs, req.Outputs...)
	if change > 0 {
		outputs = append(outputs, Output{Address: req.ChangeAddress, Amount: change})
	}
	// The protocol requires outputs in canonical order.
	sort.SliceStable(outputs, func(i, j int) bool {
		if outputs[i].Address != outputs[j].Address {
			return outputs[i].Address < outputs[j].Address
		}
		return outputs[i].Amount < outputs[j].Amount
	})

	messages := make([]Message, 0, 1+len(req.ExtraMessages))
	if len(inputs) > 0 || len(outputs) > 0 {
		payload := PaymentPayload{Inputs: inputs, Outputs: outputs}
		messages = append(messages, Message{
			App:             "payment",
			PayloadLocation: "inline",
			PayloadHash:     PayloadHash(payload),
			Payload:         payload,
		})
	}
	messages = append(messages, req.ExtraMessages...)

	authorAddresses := make([]string, 0, len(authorSet))
	for addr := range authorSet {
		authorAddresses = append(authorAddresses, addr)
	}
	sort.Strings(authorAddresses)

	authors := make([]Author, 0, len(authorAddresses))
	for _, addr := range authorAddresses {
		author := Author{Address: addr, Authentifiers: map[string]string{}}
		if aa, ok := req.Authors[addr]; ok {
			author.Definition = aa.Definition
			for _, path := range aa.SigningPaths {
				author.Authentifiers[path] = SigPlaceholder
			}
		} else {
			author.Authentifiers["r"] = SigPlaceholder
		}
		authors = append(authors, author)
	}

	unit := &Unit{
		Version:         UnitVersion,
		Alt:             UnitAlt,
		Messages:        messages,
		Authors:         authors,
		ParentUnits:     req.View.ParentUnits,
		LastBall:        req.View.LastBall,
		LastBallUnit:    req.View.LastBallUnit,
		WitnessListUnit: req.View.WitnessListUnit,
	}
	unit.HeadersCommission = unit.HeadersSize()
	unit.PayloadCommission = unit.PayloadSize()
	return unit
}
