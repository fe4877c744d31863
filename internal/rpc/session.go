package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/store"
)

const (
	maxMessageSize = 1 << 20
	writeTimeout   = 5 * time.Second
)

// Session is one client connection. Calls are submitted in the order they
// are read, so engine commands from one session apply in that order; their
// responses are written as they complete.
//
// Cleanup is deterministic: when the connection ends every pending call is
// cancelled, the session waits for their waiters to return, and only then
// closes the connection and reports the session closed.
type Session struct {
	id     string
	remote string
	gw     *Gateway
	conn   *websocket.Conn // nil for single HTTP calls
	quota  *Quota

	// submitted numbers decoded requests; reader goroutine only.
	submitted int64

	mu      sync.Mutex
	pending map[string]context.CancelFunc
	closed  bool

	wmu     sync.Mutex
	waiters sync.WaitGroup
}

func newSession(gw *Gateway, conn *websocket.Conn, id, remote string) *Session {
	return &Session{
		id:      id,
		remote:  remote,
		gw:      gw,
		conn:    conn,
		quota:   NewQuota(gw.maxInFlight),
		pending: make(map[string]context.CancelFunc),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// InFlight returns the number of calls awaiting a response.
func (s *Session) InFlight() int {
	return s.quota.Current()
}

// call is a request that passed decoding. Either err is set or pending
// holds the dispatched work.
type call struct {
	req     *Request
	seq     int64
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	pending dispatch.Pending
	err     error
	started time.Time
}

// run reads messages until the connection fails or ctx ends.
func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer s.cleanup(cancel)

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				s.gw.logger.Debug("session read failed", "session", s.id, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		wait := s.handle(ctx, data)
		s.waiters.Add(1)
		go func() {
			defer s.waiters.Done()
			if out := wait(); out != nil {
				s.write(out)
			}
		}()
	}
}

func (s *Session) cleanup(cancel context.CancelFunc) {
	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()

	cancel()
	s.waiters.Wait()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.conn.Close()
	s.gw.recorder.CloseSession(s.id)
	s.gw.forget(s)
	s.gw.logger.Info("session closed", "session", s.id, "remote", s.remote, "abandoned", n)
}

// handle begins every call in data in order and returns a function that
// waits for them and encodes the reply. The reply is nil when nothing must
// be sent back.
func (s *Session) handle(ctx context.Context, data []byte) func() []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return s.handleBatch(ctx, trimmed)
	}

	c, resp := s.begin(ctx, trimmed)
	return func() []byte {
		if c != nil {
			resp = s.finish(c)
		}
		return encode(resp)
	}
}

func (s *Session) handleBatch(ctx context.Context, data []byte) func() []byte {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		resp := protocolError(nil, CodeParseError, "parse error")
		return func() []byte { return encode(resp) }
	}
	if len(raws) == 0 {
		resp := protocolError(nil, CodeInvalidRequest, "empty batch")
		return func() []byte { return encode(resp) }
	}

	calls := make([]*call, len(raws))
	early := make([]*Response, len(raws))
	for i, raw := range raws {
		calls[i], early[i] = s.begin(ctx, raw)
	}
	return func() []byte {
		var out []*Response
		for i, c := range calls {
			resp := early[i]
			if c != nil {
				resp = s.finish(c)
			}
			if resp != nil {
				out = append(out, resp)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return encode(out)
	}
}

// begin decodes one request and dispatches it without waiting. A nil call
// means the request was answered during decoding.
func (s *Session) begin(ctx context.Context, raw json.RawMessage) (*call, *Response) {
	req, resp := decodeRequest(raw)
	if resp != nil {
		s.gw.logger.Debug("rejected request", "session", s.id, "code", resp.Error.Code, "message", resp.Error.Message)
		return nil, resp
	}

	s.submitted++
	c := &call{req: req, seq: s.submitted, started: time.Now()}
	if err := s.quota.Check(s.id); err != nil {
		c.err = &control.Error{Kind: control.KindUnavailable, Message: "too many calls in flight", Err: err}
		return c, nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	if !req.IsNotification() {
		c.key = string(req.ID)
		if !s.track(c.key, c.cancel) {
			c.cancel()
			s.quota.Done()
			return nil, protocolError(req.ID, CodeInvalidRequest, "request id is already in flight")
		}
	}

	c.pending, c.err = s.gw.table.Begin(req.Method, req.Params)
	return c, nil
}

// finish waits for a call and builds its response. Notifications yield nil.
func (s *Session) finish(c *call) *Response {
	var result any
	err := c.err
	if c.cancel != nil {
		if err == nil {
			result, err = c.pending.Wait(c.ctx)
		}
		c.cancel()
		s.untrack(c.key)
		s.quota.Done()
	}

	s.gw.observe(s, c, err)
	if c.req.IsNotification() {
		return nil
	}
	if err != nil {
		return errorResponse(c.req.ID, err)
	}
	return resultResponse(c.req.ID, result)
}

func (s *Session) track(key string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.pending[key]; dup {
		return false
	}
	s.pending[key] = cancel
	return true
}

func (s *Session) untrack(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// Pending returns the ids of calls still awaiting a response.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for k := range s.pending {
		ids = append(ids, k)
	}
	return ids
}

// write sends one message. Writes are serialized; after the session has
// closed they are dropped.
func (s *Session) write(data []byte) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			s.gw.logger.Debug("session write failed", "session", s.id, "error", err)
		}
		s.conn.Close()
	}
}

// encode marshals a response or batch. It returns nil for a nil response.
func encode(v any) []byte {
	if r, ok := v.(*Response); ok && r == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		// Responses hold only raw messages and plain fields.
		panic("rpc: encode response: " + err.Error())
	}
	return data
}

func (s *Session) record(c *call, err error) {
	if !s.gw.table.Has(c.req.Method) || !s.gw.table.Mutates(c.req.Method) {
		return
	}
	rec := store.Call{
		SessionID:  s.id,
		SessionSeq: c.seq,
		RequestID:  string(c.req.ID),
		Method:     c.req.Method,
		Params:     c.req.Params,
		Outcome:    store.OutcomeOK,
	}
	if err != nil {
		rec.Outcome = string(control.KindOf(err))
		rec.Message = messageOf(err)
	}
	s.gw.recorder.Record(rec)
}
