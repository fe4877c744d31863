package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by calls on a client whose connection has ended.
var ErrClosed = errors.New("rpc: connection closed")

// Client is a JSON-RPC client over one WebSocket connection. It is safe
// for concurrent use; responses are matched to calls by id.
type Client struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	next    int64
	pending map[int64]chan *Response
	err     error
	done    chan struct{}
}

// Dial connects to a gateway at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call invokes method with params and decodes the result into out. params
// may be nil, a json.RawMessage, or any value encoding to a JSON object.
// out may be nil to discard the result. Application errors are returned as
// *ErrorObject, which unwraps to the control error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	raw, err := encodeParams(params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.next++
	id := c.next
	ch := make(chan *Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	idRaw, _ := json.Marshal(id)
	if err := c.send(&Request{JSONRPC: Version, ID: idRaw, Method: method, Params: raw}); err != nil {
		c.drop(id)
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.drop(id)
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}
}

// Notify sends a notification. The server never answers it.
func (c *Client) Notify(method string, params any) error {
	raw, err := encodeParams(params)
	if err != nil {
		return err
	}
	return c.send(&Request{JSONRPC: Version, Method: method, Params: raw})
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.wmu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) send(req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrClosed, req.Method, err)
	}
	return nil
}

func (c *Client) drop(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			c.pending = nil
			c.mu.Unlock()
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		var id int64
		if err := json.Unmarshal(resp.ID, &id); err != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		return data, nil
	}
}
