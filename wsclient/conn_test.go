package wsclient

import "testing"

// newTestConn builds a bare conn with initialized correlation maps but no
// live websocket, for exercising register/unregister bookkeeping in
// isolation.
func newTestConn() *conn {
	return &conn{
		pending: make(map[uint64]chan reply),
		fetches: make(map[uint64]chan fetchMessage),
	}
}

func TestRegisterUnregisterQuery(t *testing.T) {
	c := newTestConn()

	ch := c.registerQuery(42)
	c.mu.Lock()
	_, ok := c.pending[42]
	c.mu.Unlock()
	if !ok {
		t.Fatal("registerQuery did not record the channel under its req_id")
	}

	c.unregisterQuery(42)
	c.mu.Lock()
	_, ok = c.pending[42]
	c.mu.Unlock()
	if ok {
		t.Fatal("unregisterQuery left the channel registered")
	}

	select {
	case <-ch:
		t.Fatal("unregistered channel should not have been closed or fed")
	default:
	}
}

func TestResultSetCloseRemovesFetchRegistration(t *testing.T) {
	c := newTestConn()
	const resID = 99

	cl := &Client{c: c, instanceID: 1}
	rs := &ResultSet{cl: cl, id: resID, fetchCh: c.registerFetch(resID)}

	c.mu.Lock()
	_, ok := c.fetches[resID]
	c.mu.Unlock()
	if !ok {
		t.Fatal("registerFetch did not record the channel under its res_id")
	}

	// Close enqueues a close request on c.writeCh; give it a buffer so the
	// send succeeds without a live writer goroutine.
	c.writeCh = make(chan outboundMessage, 1)
	c.done = make(chan struct{})

	if err := rs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c.mu.Lock()
	_, ok = c.fetches[resID]
	c.mu.Unlock()
	if ok {
		t.Fatal("Close did not remove the result set's fetch registration")
	}

	if err := rs.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestDispatchBinaryRoutesByResID(t *testing.T) {
	c := newTestConn()
	ch := c.registerFetch(5)

	// v3 frame: declared length (4 bytes) + 8 = total frame length.
	body := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	frame := make([]byte, 8+4+len(body))
	frame[0] = 5 // res_id low byte, rest zero
	// declared length = len(frame) - 8
	declared := uint32(len(frame) - 8)
	frame[8] = byte(declared)
	frame[9] = byte(declared >> 8)
	frame[10] = byte(declared >> 16)
	frame[11] = byte(declared >> 24)
	copy(frame[12:], body)

	c.dispatchBinary(frame)

	select {
	case m := <-ch:
		if m.isV2 {
			t.Fatal("frame with length+8==len(frame) should be classified v3")
		}
		if len(m.block) != len(frame)-8 {
			t.Fatalf("unexpected block length: got %d want %d", len(m.block), len(frame)-8)
		}
	default:
		t.Fatal("dispatchBinary did not deliver to the registered fetch channel")
	}
}

func TestDispatchBinaryUnknownResIDDropped(t *testing.T) {
	c := newTestConn()
	frame := make([]byte, 12)
	frame[0] = 1
	// no channel registered for res_id 1; dispatchBinary must not panic
	c.dispatchBinary(frame)
}
