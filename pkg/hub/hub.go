package hub

import "errors"

// EventType discriminates the hub event stream.
type EventType int

const (
	// NewJoint signals a new unit relayed by the hub.
	NewJoint EventType = iota
	// TransactionsBecameStable signals that units involving watched
	// addresses reached stability.
	TransactionsBecameStable
	// MciBecameStable signals that a main-chain index stabilised.
	MciBecameStable
)

// ErrBroadcastRejected is returned when the hub refuses a posted joint. The
// caller is expected to re-check the explorer before treating this as fatal:
// the unit may already be in the ledger.
var ErrBroadcastRejected = errors.New("hub rejected the joint")

// Output is one output of a relayed unit.
type Output struct {
	Address string
	Amount  int64
	Asset   string
}

// UnitSummary carries what the monitor needs from a relayed unit.
type UnitSummary struct {
	Unit    string
	Authors []string
	Outputs []Output
	Time    int64
}

// Event is one entry of the hub event stream.
type Event struct {
	Type  EventType
	Joint *UnitSummary // set for NewJoint
	Units []string     // set for *BecameStable
	MCI   int64        // set for MciBecameStable
}

// Service is the write-authoritative hub connection: it posts joints and
// streams ledger events back.
type Service interface {
	// Connect dials the hub and subscribes to the event feeds.
	Connect() error
	// Close tears the connection down.
	Close()
	// BroadcastJoint submits a finalised joint. A rejection is reported as
	// ErrBroadcastRejected wrapped with the hub's reason.
	BroadcastJoint(jointJSON string) error
	// Events returns the stream of hub events.
	Events() <-chan Event
}
