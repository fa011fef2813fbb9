package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
)

// Version is the only protocol version accepted in the "jsonrpc" field.
const Version = "2.0"

// Request is an inbound call. A request without an ID is a notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  Params          `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no ID.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response carries either a result or an error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Error is the error object of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Notification is a push-style envelope with no ID.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewNotification builds a notification with positional params.
func NewNotification(method string, params ...any) *Notification {
	if params == nil {
		params = []any{}
	}
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// NewRequest builds a request. A nil id produces a notification-style request.
func NewRequest(id any, method string, params ...any) (*Request, error) {
	req := &Request{JSONRPC: Version, Method: method}
	if id != nil {
		raw, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("marshal request id: %w", err)
		}
		req.ID = raw
	}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal request params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewResult builds a successful response for the request id.
func NewResult(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response for the request id (nil for unknown ids).
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// ErrorFrom converts any error into the wire error object.
// Structured errors keep their message and map their type to a JSON-RPC code; plain
// errors raised by handlers surface their own message under the generic server code.
func ErrorFrom(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return &Error{Code: structured.RPCCode(), Message: structured.Message}
	}
	return &Error{Code: apperrors.CodeServerError, Message: err.Error()}
}

// Decode parses a single inbound frame.
//
// A frame that is not a JSON object yields a parse error and a nil request. A JSON object
// that is not a valid request yields an invalid-request error together with the partially
// decoded request, so the caller can still echo its id.
func Decode(frame []byte) (*Request, *apperrors.Error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, apperrors.ParseError("Parse error", err)
		}
		return nil, apperrors.InvalidRequestError("Invalid Request: expected a JSON object")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, apperrors.ParseError("Parse error", err)
		}
		return nil, apperrors.InvalidRequestError("Invalid Request: " + err.Error())
	}

	if req.JSONRPC != Version {
		return &req, apperrors.InvalidRequestError(fmt.Sprintf("Invalid Request: unsupported jsonrpc version %q", req.JSONRPC)).
			WithField("method", req.Method)
	}
	if req.Method == "" {
		return &req, apperrors.InvalidRequestError("Invalid Request: missing method")
	}
	return &req, nil
}
