/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssgreg/repeat"

	"github.com/invarch/daostake/internal/lib/misc"
)

var (
	ErrClientClosed = errors.New("rpc client closed")
)

// subscriptionBuffer is the number of undelivered notifications kept per subscription before new
// ones are dropped.
const subscriptionBuffer = 256

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcMessage covers both responses (id set) and subscription notifications (method set).
type rpcMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type pendingCall struct {
	resp chan rpcMessage
	// sub is registered by the reader as soon as the subscribe response arrives so no notification
	// can be missed between the response and the caller registering it.
	sub *Subscription
}

// Client is a JSON-RPC client talking to a substrate node over a single websocket connection.
type Client struct {
	sync.RWMutex
	log  *slog.Logger
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Uint64

	pending map[uint64]*pendingCall
	subs    map[string]*Subscription

	closed   chan struct{}
	closeErr error
}

// Dial connects to the node, retrying with backoff until maxTries attempts have failed.
func Dial(ctx context.Context, log *slog.Logger, nodeURL string, headers map[string]string) (*Client, error) {
	var (
		conn *websocket.Conn
		err  error
	)
	hdr := http.Header{}
	for key, val := range headers {
		hdr.Set(key, val)
	}
	misc.Infof(log, "Connecting to node at:%s", nodeURL)
	err = repeat.Repeat(
		repeat.Fn(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			conn, _, err = websocket.DefaultDialer.DialContext(ctx, nodeURL, hdr)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(log, "retrying connection to %s, error:%v", nodeURL, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 500 * time.Millisecond,
				MaxDelay:  5 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node at %s: %w", nodeURL, err)
	}
	return NewClient(log, conn), nil
}

// NewClient wraps an established websocket connection and starts its reader.
func NewClient(log *slog.Logger, conn *websocket.Conn) *Client {
	c := &Client{
		log:     log,
		conn:    conn,
		pending: map[uint64]*pendingCall{},
		subs:    map[string]*Subscription{},
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

func (c *Client) Close() error {
	c.shutdown(ErrClientClosed)
	return c.conn.Close()
}

// Call invokes method and unmarshals the result into result (when non-nil).
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	msg, err := c.roundTrip(ctx, method, nil, params)
	if err != nil {
		return err
	}
	if result == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, result); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

// Subscribe starts a subscription. Notifications for it are delivered on Notifications until
// Unsubscribe is called or the client closes.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (*Subscription, error) {
	sub := &Subscription{
		client:      c,
		unsubMethod: unsubMethod,
		ch:          make(chan json.RawMessage, subscriptionBuffer),
	}
	if _, err := c.roundTrip(ctx, method, sub, params); err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, sub *Subscription, params []any) (rpcMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	call := &pendingCall{resp: make(chan rpcMessage, 1), sub: sub}

	c.Lock()
	if c.closeErr != nil {
		c.Unlock()
		return rpcMessage{}, c.closeErr
	}
	c.pending[id] = call
	c.Unlock()

	defer func() {
		c.Lock()
		delete(c.pending, id)
		c.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return rpcMessage{}, fmt.Errorf("%s: write failed: %w", method, err)
	}

	select {
	case <-ctx.Done():
		if sub != nil {
			c.abandonSubscription(id, sub)
		}
		return rpcMessage{}, ctx.Err()
	case <-c.closed:
		return rpcMessage{}, c.err()
	case msg := <-call.resp:
		if msg.Error != nil {
			return msg, fmt.Errorf("%s: %w", method, msg.Error)
		}
		return msg, nil
	}
}

// abandonSubscription drops a subscription whose caller stopped waiting for the subscribe response.
// If the response already registered it, it's unsubscribed on the node as well.
func (c *Client) abandonSubscription(id uint64, sub *Subscription) {
	c.Lock()
	delete(c.pending, id)
	registered := sub.id != "" && c.subs[sub.id] == sub
	c.Unlock()
	if !registered {
		sub.finish()
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sub.Unsubscribe(ctx); err != nil {
			misc.Debugf(c.log, "unsubscribe abandoned subscription %s: %v", sub.id, err)
		}
	}()
}

func (c *Client) err() error {
	c.RLock()
	defer c.RUnlock()
	return c.closeErr
}

func (c *Client) readLoop() {
	for {
		var msg rpcMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrClientClosed, err))
			return
		}
		switch {
		case msg.ID != nil:
			c.handleResponse(msg)
		case msg.Method != "" && msg.Params != nil:
			c.handleNotification(msg)
		default:
			misc.Debugf(c.log, "ignoring unexpected rpc message")
		}
	}
}

func (c *Client) handleResponse(msg rpcMessage) {
	c.Lock()
	call, found := c.pending[*msg.ID]
	if found && call.sub != nil && msg.Error == nil {
		call.sub.id = subscriptionID(msg.Result)
		c.subs[call.sub.id] = call.sub
	}
	c.Unlock()
	if !found {
		misc.Debugf(c.log, "response for unknown request id:%d", *msg.ID)
		return
	}
	call.resp <- msg
}

func (c *Client) handleNotification(msg rpcMessage) {
	id := subscriptionID(msg.Params.Subscription)
	c.RLock()
	sub, found := c.subs[id]
	c.RUnlock()
	if !found {
		misc.Debugf(c.log, "notification %s for unknown subscription:%s", msg.Method, id)
		return
	}
	sub.deliver(msg.Params.Result)
}

func (c *Client) shutdown(err error) {
	c.Lock()
	if c.closeErr != nil {
		c.Unlock()
		return
	}
	c.closeErr = err
	subs := c.subs
	c.subs = map[string]*Subscription{}
	c.Unlock()

	close(c.closed)
	for _, sub := range subs {
		sub.finish()
	}
}

// subscriptionID normalizes string and numeric subscription ids.
func subscriptionID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type Subscription struct {
	client      *Client
	id          string
	unsubMethod string

	mu       sync.Mutex
	ch       chan json.RawMessage
	finished bool
}

func (s *Subscription) ID() string {
	return s.id
}

// Notifications delivers the raw result of each notification. It is closed when the subscription ends.
func (s *Subscription) Notifications() <-chan json.RawMessage {
	return s.ch
}

func (s *Subscription) deliver(result json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	select {
	case s.ch <- result:
	default:
		misc.Warnf(s.client.log, "subscription %s buffer full, dropping notification", s.id)
	}
}

func (s *Subscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.ch)
	}
}

// Unsubscribe stops the subscription on the node and closes Notifications.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	c := s.client
	c.Lock()
	_, active := c.subs[s.id]
	delete(c.subs, s.id)
	c.Unlock()
	if !active {
		return nil
	}
	defer s.finish()
	if s.unsubMethod == "" {
		return nil
	}
	var ok bool
	return c.Call(ctx, s.unsubMethod, &ok, s.id)
}
