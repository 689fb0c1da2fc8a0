package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"github.com/thanhpk/randstr"
	"github.com/tidwall/gjson"

	"github.com/obyte-network/obw-daemon/pkg/circuitbreaker"
	"github.com/obyte-network/obw-daemon/pkg/hub"
)

const (
	eventQueueMaxSize = 100
	requestTimeout    = 30 * time.Second
	pingInterval      = 20 * time.Second
)

type wsHub struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan gjson.Result

	events chan hub.Event
	quit   chan struct{}
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a hub.Service speaking the hub websocket protocol:
// "justsaying" frames for the event feeds and tagged "request"/"response"
// frames for joint submission.
func NewService(url string) hub.Service {
	return &wsHub{
		url:     url,
		pending: map[string]chan gjson.Result{},
		events:  make(chan hub.Event, eventQueueMaxSize),
		quit:    make(chan struct{}),
		cb:      circuitbreaker.NewCircuitBreaker("hub"),
	}
}

func (h *wsHub) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	if err != nil {
		return fmt.Errorf("dialing hub: %w", err)
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	if err := h.sendFrame("request", map[string]interface{}{
		"command": "subscribe",
		"params": map[string]interface{}{
			"subscription_id": randstr.Hex(16),
			"library_version": "obw-daemon",
		},
		"tag": randstr.Hex(16),
	}); err != nil {
		conn.Close()
		return err
	}

	go h.readLoop(conn)
	go h.pingLoop(conn)
	return nil
}

func (h *wsHub) Close() {
	close(h.quit)
	h.mu.Lock()
	if h.conn != nil {
		h.conn.Close()
	}
	h.mu.Unlock()
}

func (h *wsHub) Events() <-chan hub.Event {
	return h.events
}

func (h *wsHub) BroadcastJoint(jointJSON string) error {
	tag := randstr.Hex(16)
	respChan := make(chan gjson.Result, 1)
	h.mu.Lock()
	h.pending[tag] = respChan
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, tag)
		h.mu.Unlock()
	}()

	_, err := h.cb.Execute(func() (interface{}, error) {
		if err := h.sendFrame("request", map[string]interface{}{
			"command": "post_joint",
			"params":  json.RawMessage(jointJSON),
			"tag":     tag,
		}); err != nil {
			return nil, err
		}

		select {
		case resp := <-respChan:
			if resp.String() == "accepted" {
				return nil, nil
			}
			reason := resp.Get("error").String()
			if reason == "" {
				reason = resp.Raw
			}
			return nil, fmt.Errorf("%w: %s", hub.ErrBroadcastRejected, reason)
		case <-time.After(requestTimeout):
			return nil, fmt.Errorf("timed out waiting for post_joint response")
		case <-h.quit:
			return nil, fmt.Errorf("hub connection closed")
		}
	})
	return err
}

func (h *wsHub) sendFrame(frameType string, body interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("hub is not connected")
	}
	return h.conn.WriteJSON([]interface{}{frameType, body})
}

func (h *wsHub) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sendFrame("justsaying", map[string]interface{}{"subject": "heartbeat"})
		case <-h.quit:
			return
		}
	}
}

func (h *wsHub) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-h.quit:
			default:
				close(h.events)
			}
			return
		}
		frame := gjson.ParseBytes(raw).Array()
		if len(frame) != 2 {
			continue
		}
		switch frame[0].String() {
		case "response":
			h.handleResponse(frame[1])
		case "justsaying":
			h.handleJustSaying(frame[1])
		}
	}
}

func (h *wsHub) handleResponse(body gjson.Result) {
	tag := body.Get("tag").String()
	h.mu.Lock()
	respChan, ok := h.pending[tag]
	h.mu.Unlock()
	if ok {
		respChan <- body.Get("response")
	}
}

func (h *wsHub) handleJustSaying(body gjson.Result) {
	switch body.Get("subject").String() {
	case "joint":
		unit := body.Get("body.unit")
		if !unit.Exists() {
			return
		}
		summary := &hub.UnitSummary{
			Unit: unit.Get("unit").String(),
			Time: unit.Get("timestamp").Int(),
		}
		for _, author := range unit.Get("authors").Array() {
			summary.Authors = append(summary.Authors, author.Get("address").String())
		}
		for _, msg := range unit.Get("messages").Array() {
			if msg.Get("app").String() != "payment" {
				continue
			}
			asset := msg.Get("payload.asset").String()
			for _, out := range msg.Get("payload.outputs").Array() {
				summary.Outputs = append(summary.Outputs, hub.Output{
					Address: out.Get("address").String(),
					Amount:  out.Get("amount").Int(),
					Asset:   asset,
				})
			}
		}
		h.emit(hub.Event{Type: hub.NewJoint, Joint: summary})

	case "my_transactions_became_stable":
		var units []string
		for _, u := range body.Get("body.units").Array() {
			units = append(units, u.String())
		}
		h.emit(hub.Event{Type: hub.TransactionsBecameStable, Units: units})

	case "mci_became_stable":
		var units []string
		for _, u := range body.Get("body.units").Array() {
			units = append(units, u.String())
		}
		h.emit(hub.Event{
			Type:  hub.MciBecameStable,
			MCI:   body.Get("body.mci").Int(),
			Units: units,
		})
	}
}

func (h *wsHub) emit(event hub.Event) {
	select {
	case h.events <- event:
	default:
		// Queue full; the monitor reconciles against the explorer, so a
		// dropped event is recovered on the next stability notification.
	}
}
