package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/dispatch"
)

// Version is the only protocol version accepted.
const Version = "2.0"

// Protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
)

// Application error codes, one per control.Kind.
const (
	CodeInvalidParams = -32602
	CodeInternal      = -32603
	CodeNotFound      = -32001
	CodeUnavailable   = -32003
)

// Request is a JSON-RPC 2.0 request. A request without an id is a
// notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set; a nil result is encoded as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a response.
type ErrorObject struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the control error kind of application errors.
type ErrorData struct {
	Kind control.Kind `json:"kind"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap exposes application errors as *control.Error so that
// control.KindOf works on the client side. Protocol errors unwrap to nil.
func (e *ErrorObject) Unwrap() error {
	if e.Data == nil {
		return nil
	}
	return &control.Error{Kind: e.Data.Kind, Message: e.Message}
}

var nullID = json.RawMessage("null")

func protocolError(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
}

func errorResponse(id json.RawMessage, err error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: errorObject(err)}
}

func resultResponse(id json.RawMessage, v any) *Response {
	if v == nil {
		return &Response{JSONRPC: Version, ID: id, Result: nullID}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errorResponse(id, control.Internal("failed to encode result", err))
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}
}

// errorObject maps a dispatch error to its wire form.
func errorObject(err error) *ErrorObject {
	if isMethodNotFound(err) {
		return &ErrorObject{Code: CodeMethodNotFound, Message: err.Error()}
	}
	kind := control.KindOf(err)
	return &ErrorObject{
		Code:    CodeOf(kind),
		Message: messageOf(err),
		Data:    &ErrorData{Kind: kind},
	}
}

// CodeOf returns the wire code of an application error kind.
func CodeOf(kind control.Kind) int {
	switch kind {
	case control.KindNotFound:
		return CodeNotFound
	case control.KindInvalidArgument:
		return CodeInvalidParams
	case control.KindUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func messageOf(err error) string {
	var ce *control.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.Err != nil {
		return ce.Message + ": " + ce.Err.Error()
	}
	return ce.Message
}

// decodeRequest parses one request. On failure it returns the protocol
// error response to send, correlated to the request id when one could be
// read.
func decodeRequest(raw json.RawMessage) (*Request, *Response) {
	if !json.Valid(raw) {
		return nil, protocolError(nil, CodeParseError, "parse error")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, protocolError(nil, CodeInvalidRequest, "request must be an object")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, protocolError(salvageID(trimmed), CodeInvalidRequest, "invalid request: "+err.Error())
	}
	if !validID(req.ID) {
		return nil, protocolError(nil, CodeInvalidRequest, "id must be a string, a number or null")
	}
	if req.JSONRPC != Version {
		return nil, protocolError(req.ID, CodeInvalidRequest, fmt.Sprintf("jsonrpc must be %q", Version))
	}
	if req.Method == "" {
		return nil, protocolError(req.ID, CodeInvalidRequest, "method is required")
	}
	return &req, nil
}

// salvageID reads just the id member of a request that failed to decode.
func salvageID(raw []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || !validID(probe.ID) {
		return nil
	}
	return probe.ID
}

func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

func isMethodNotFound(err error) bool {
	return errors.Is(err, dispatch.ErrMethodNotFound)
}
