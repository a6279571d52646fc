package wsclient

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// fetchMessage is what the reader goroutine hands to a result set's fetch
// channel: either a decoded JSON reply (the "fetch" reply announcing row
// count / completion) or a raw binary block payload (the "fetch_block"
// response), never both.
type fetchMessage struct {
	reply   *reply
	block   []byte
	isV2    bool
	readErr error
}

// outboundMessage is a unit of work for the writer goroutine: either a
// JSON text frame or a raw binary frame (write_raw_meta).
type outboundMessage struct {
	binary bool
	data   []byte
}

// conn owns one multiplexed websocket: one writer goroutine draining a
// queue, one reader goroutine dispatching replies to the correlation maps
// below by req_id (JSON replies) or res_id (binary fetch frames).
type conn struct {
	ws *websocket.Conn

	writeCh chan outboundMessage
	done    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending map[uint64]chan reply
	fetches map[uint64]chan fetchMessage

	reqID atomic.Uint64

	writeTimeout time.Duration

	closeErrMu sync.Mutex
	closeErr   error
}

func dial(ctx context.Context, wsURL string) (*conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", wsURL, err)
	}

	c := &conn{
		ws:           ws,
		writeCh:      make(chan outboundMessage, 64),
		done:         make(chan struct{}),
		pending:      make(map[uint64]chan reply),
		fetches:      make(map[uint64]chan fetchMessage),
		writeTimeout: 10 * time.Second,
	}

	ws.SetPingHandler(func(data string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

func (c *conn) nextReqID() uint64 { return c.reqID.Add(1) }

func (c *conn) writeLoop() {
	defer func() { _ = c.ws.Close() }()
	for {
		select {
		case msg, ok := <-c.writeCh:
			if !ok {
				return
			}
			mt := websocket.TextMessage
			if msg.binary {
				mt = websocket.BinaryMessage
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(mt, msg.data); err != nil {
				c.shutdown(fmt.Errorf("wsclient: write: %w", err))
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) readLoop() {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("wsclient: read: %w", err))
			return
		}
		switch mt {
		case websocket.TextMessage:
			c.dispatchText(data)
		case websocket.BinaryMessage:
			c.dispatchBinary(data)
		}
	}
}

func (c *conn) dispatchText(data []byte) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return
	}
	if r.Action == actionFetch {
		c.mu.Lock()
		ch, ok := c.fetches[r.ID]
		c.mu.Unlock()
		if ok {
			trySendFetch(ch, fetchMessage{reply: &r})
		}
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[r.ReqID]
	c.mu.Unlock()
	if ok {
		trySendReply(ch, r)
	}
}

// binaryFrameHeaderLen is the 8-byte res_id plus 4-byte v3 total-length
// that precedes every binary block frame.
const binaryFrameHeaderLen = 12

func (c *conn) dispatchBinary(data []byte) {
	if len(data) < 8 {
		return
	}
	resID := binary.LittleEndian.Uint64(data[0:8])
	var (
		isV2 bool
		body []byte
	)
	if len(data) >= binaryFrameHeaderLen {
		declared := binary.LittleEndian.Uint32(data[8:12])
		if int(declared)+8 == len(data) {
			body = data[8:]
		} else {
			isV2 = true
			body = data[8:]
		}
	} else {
		isV2 = true
		body = data[8:]
	}

	c.mu.Lock()
	ch, ok := c.fetches[resID]
	c.mu.Unlock()
	if ok {
		trySendFetch(ch, fetchMessage{block: body, isV2: isV2})
	}
}

func trySendReply(ch chan reply, r reply) {
	select {
	case ch <- r:
	default:
	}
}

func trySendFetch(ch chan fetchMessage, m fetchMessage) {
	select {
	case ch <- m:
	default:
	}
}

func (c *conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErrMu.Lock()
		c.closeErr = err
		c.closeErrMu.Unlock()
		close(c.done)

		c.mu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		for _, ch := range c.fetches {
			trySendFetch(ch, fetchMessage{readErr: ErrClosed})
		}
		c.mu.Unlock()
	})
}

func (c *conn) err() error {
	c.closeErrMu.Lock()
	defer c.closeErrMu.Unlock()
	return c.closeErr
}

func (c *conn) close() error {
	c.shutdown(ErrClosed)
	return c.ws.Close()
}

// registerQuery allocates a correlation channel for reqID, to be resolved
// by a JSON reply bearing the same req_id.
func (c *conn) registerQuery(reqID uint64) chan reply {
	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()
	return ch
}

func (c *conn) unregisterQuery(reqID uint64) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

// registerFetch allocates a bounded fetch channel for a result set's
// res_id: capacity 2 so the fetch reply and the subsequent binary block it
// triggers can both be buffered without blocking the reader goroutine.
func (c *conn) registerFetch(resID uint64) chan fetchMessage {
	ch := make(chan fetchMessage, 2)
	c.mu.Lock()
	c.fetches[resID] = ch
	c.mu.Unlock()
	return ch
}

func (c *conn) unregisterFetch(resID uint64) {
	c.mu.Lock()
	delete(c.fetches, resID)
	c.mu.Unlock()
}

func (c *conn) sendJSON(ctx context.Context, req request) error {
	data, err := req.marshal()
	if err != nil {
		return err
	}
	return c.enqueue(ctx, outboundMessage{data: data})
}

func (c *conn) sendBinary(ctx context.Context, data []byte) error {
	return c.enqueue(ctx, outboundMessage{binary: true, data: data})
}

func (c *conn) enqueue(ctx context.Context, msg outboundMessage) error {
	select {
	case c.writeCh <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitReply blocks for a reply on ch, subject to ctx and timeout, and
// maps both termination paths onto the package's sentinel errors.
func waitReply(ctx context.Context, ch chan reply, timeout time.Duration) (reply, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r, ok := <-ch:
		if !ok {
			return reply{}, ErrClosed
		}
		return r, nil
	case <-timer.C:
		return reply{}, ErrTimeout
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func waitFetch(ctx context.Context, ch chan fetchMessage, timeout time.Duration) (fetchMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m, ok := <-ch:
		if !ok {
			return fetchMessage{}, ErrClosed
		}
		if m.readErr != nil {
			return fetchMessage{}, m.readErr
		}
		return m, nil
	case <-timer.C:
		return fetchMessage{}, ErrTimeout
	case <-ctx.Done():
		return fetchMessage{}, ctx.Err()
	}
}
