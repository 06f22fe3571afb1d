// Package rpcws is a JSON-RPC 2.0 client over a single persistent
// WebSocket connection: request/response correlation by numeric id,
// subscription notification routing, and automatic reconnect with
// exponential backoff. It follows the scheduling model of the system it
// was modeled on -- a single logical dispatch loop reading frames off the
// socket. Send and Subscribe register their state under one shared mutex
// and receive results through per-call and per-subscription channels.
package rpcws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTransportClosed is returned to every pending Send and Subscribe call
// when Disconnect is invoked or the socket drops without reconnecting.
var ErrTransportClosed = errors.New("rpcws: transport closed")

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	Method  string          `json:"method"`
	Params  struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// subscriptionKey canonicalizes a subscription id that spec.md documents
// as "a string or integer returned by the server" into a single map key:
// a quoted id unmarshals as a Go string, anything else (a bare number) is
// used as-is since its JSON text already is its canonical decimal form.
func subscriptionKey(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

type pendingCall struct {
	response chan rpcResponse
}

type rpcResponse struct {
	result json.RawMessage
	err    error
}

// SubscriptionHandler receives each notification payload for one active
// subscription, in the order the server emitted them. A handler is free
// to call Send or Subscribe on the same Transport -- it always runs on
// its own per-subscription goroutine, never on the read loop.
type SubscriptionHandler func(result json.RawMessage)

// notificationBuffer bounds how far a slow handler can fall behind its
// subscription's server-side emission rate before notifications are
// dropped rather than backing up the read loop.
const notificationBuffer = 256

type subscription struct {
	handler       SubscriptionHandler
	notifications chan json.RawMessage
}

// Transport owns a single WebSocket connection to one node endpoint.
type Transport struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]*pendingCall
	subs    map[string]*subscription
	closed  bool

	dialer *websocket.Dialer

	// OnReconnect, when set, is called once per successful reconnect --
	// a hook for callers (the façade's metrics) that want to observe
	// connection churn without this package depending on them.
	OnReconnect func()
}

// New creates a Transport bound to url. Connect must be called before
// Send or Subscribe.
func New(url string) *Transport {
	return &Transport{
		url:     url,
		pending: make(map[uint64]*pendingCall),
		subs:    make(map[string]*subscription),
		dialer:  websocket.DefaultDialer,
	}
}

// Connect dials the endpoint and starts the read-dispatch loop. It is
// idempotent: calling it again while already connected is a no-op. On an
// unexpected disconnect the loop redials with exponential backoff
// (250ms up to a 10s cap) until Disconnect is called.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	alreadyOpen := t.conn != nil && !t.closed
	t.mu.Unlock()
	if alreadyOpen {
		return nil
	}

	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("rpcws: dial %s: %w", t.url, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.closed = false
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	for {
		t.mu.Lock()
		conn := t.conn
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if t.isClosed() {
				return
			}
			log.Printf("rpcws: read error on %s: %v", t.url, err)
			if !t.reconnect() {
				t.failAllPending(fmt.Errorf("rpcws: reconnect failed: %w", err))
				return
			}
			continue
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Printf("rpcws: malformed frame from %s: %v", t.url, err)
			continue
		}
		t.dispatch(&f)
	}
}

func (t *Transport) dispatch(f *frame) {
	if f.ID != nil {
		t.mu.Lock()
		call, ok := t.pending[*f.ID]
		if ok {
			delete(t.pending, *f.ID)
		}
		t.mu.Unlock()
		if !ok {
			return
		}
		if f.Error != nil {
			call.response <- rpcResponse{err: f.Error}
		} else {
			call.response <- rpcResponse{result: f.Result}
		}
		return
	}

	if f.Method != "" {
		key, ok := subscriptionKey(f.Params.Subscription)
		if !ok {
			return
		}
		t.mu.Lock()
		sub, ok := t.subs[key]
		t.mu.Unlock()
		if !ok {
			// Notification for an id we've already unsubscribed from; the
			// race is expected and the message is simply dropped.
			return
		}
		select {
		case sub.notifications <- f.Params.Result:
		default:
			log.Printf("rpcws: subscription %s handler is falling behind, dropping a notification", key)
		}
	}
}

// reconnect redials with exponential backoff, retrying until it
// succeeds or the transport has been explicitly closed.
func (t *Transport) reconnect() bool {
	backoff := minBackoff
	for {
		if t.isClosed() {
			return false
		}
		conn, _, err := t.dialer.Dial(t.url, nil)
		if err == nil {
			t.mu.Lock()
			t.conn = conn
			t.mu.Unlock()
			if t.OnReconnect != nil {
				t.OnReconnect()
			}
			return true
		}
		log.Printf("rpcws: reconnect to %s failed, retrying in %s: %v", t.url, backoff, err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) failAllPending(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint64]*pendingCall)
	t.mu.Unlock()
	for _, call := range pending {
		call.response <- rpcResponse{err: err}
	}
}

// Send issues one JSON-RPC call and blocks until a matching response
// arrives, ctx is cancelled, or the transport closes. result is decoded
// into out when non-nil.
func (t *Transport) Send(ctx context.Context, method string, params []any, out any) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.nextID++
	id := t.nextID
	call := &pendingCall{response: make(chan rpcResponse, 1)}
	t.pending[id] = call
	conn := t.conn
	t.mu.Unlock()

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		t.dropPending(id)
		return fmt.Errorf("rpcws: marshal request: %w", err)
	}

	t.mu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, payload)
	t.mu.Unlock()
	if writeErr != nil {
		t.dropPending(id)
		return fmt.Errorf("rpcws: write %s: %w", method, writeErr)
	}

	select {
	case resp := <-call.response:
		if resp.err != nil {
			return resp.err
		}
		if out != nil && len(resp.result) > 0 {
			if err := json.Unmarshal(resp.result, out); err != nil {
				return fmt.Errorf("rpcws: decode result of %s: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		t.dropPending(id)
		return ctx.Err()
	}
}

func (t *Transport) dropPending(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// Subscribe issues subscribeMethod, registers handler against the
// returned subscription id, and returns an unsubscribe closure. Calling
// the closure more than once is a no-op after the first call: it fires
// unsubscribeMethod exactly once and never a second RPC.
func (t *Transport) Subscribe(ctx context.Context, subscribeMethod, unsubscribeMethod string, params []any, handler SubscriptionHandler) (unsubscribe func() error, err error) {
	var rawSubID json.RawMessage
	if err := t.Send(ctx, subscribeMethod, params, &rawSubID); err != nil {
		return nil, err
	}
	key, ok := subscriptionKey(rawSubID)
	if !ok {
		return nil, fmt.Errorf("rpcws: %s returned an unrecognizable subscription id: %s", subscribeMethod, rawSubID)
	}

	sub := &subscription{handler: handler, notifications: make(chan json.RawMessage, notificationBuffer)}
	t.mu.Lock()
	t.subs[key] = sub
	t.mu.Unlock()

	go func() {
		for result := range sub.notifications {
			sub.handler(result)
		}
	}()

	var once sync.Once
	return func() error {
		var unsubErr error
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, key)
			t.mu.Unlock()
			close(sub.notifications)
			var ok bool
			unsubErr = t.Send(ctx, unsubscribeMethod, []any{rawSubID}, &ok)
		})
		return unsubErr
	}, nil
}

// Disconnect stops reconnect attempts, closes the socket, and fails every
// pending Send with ErrTransportClosed.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	t.failAllPending(ErrTransportClosed)

	if conn != nil {
		return conn.Close()
	}
	return nil
}
