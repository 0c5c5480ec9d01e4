// Package rpc implements the control server's external interface: a
// JSON-RPC 2.0 request/response protocol carried over stdin/stdout, one
// newline-delimited JSON document per message (spec.md §6 explicitly treats
// the exact framing as an external concern; this package picks the simplest
// framing that satisfies "a tool call's result is serialized as JSON text").
//
// Grounded in the teacher's main.go for the overall shape of a single
// long-lived CLI process reading a loop and logging through the standard
// "log" package (internal/chromeprofiles and main.go both log this way);
// there is no stdio-framing library in the example pack to adopt instead.
package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
)

// Request is one inbound JSON-RPC message. Notifications (no ID) are valid:
// "initialized" arrives this way per spec.md §6.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one outbound JSON-RPC message.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. It implements the error interface so a
// Handler can return one directly.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Handler processes one method call's params and returns a JSON-serializable
// result or an error. Returning a plain error wraps it as CodeInternalError;
// returning an *Error preserves its code.
type Handler func(params json.RawMessage) (interface{}, error)

// Server reads newline-delimited JSON-RPC requests from r and writes
// responses to w. Notifications never produce a response. Exactly one
// request is dispatched at a time per spec.md §5's single-threaded
// cooperative scheduler — handlers that need concurrency start their own
// goroutines and must not block the read loop past their own deadline.
type Server struct {
	in  *bufio.Scanner
	out io.Writer

	mu       sync.Mutex
	handlers map[string]Handler

	notify func(method string, params interface{})
}

// New creates a Server. Input lines larger than bufio's default buffer (tool
// call arguments, base64 bodies) are accommodated by growing the scanner's
// buffer up to maxLine.
func New(r io.Reader, w io.Writer) *Server {
	scanner := bufio.NewScanner(r)
	const maxLine = 16 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	s := &Server{in: scanner, out: w, handlers: make(map[string]Handler)}
	return s
}

// Register installs a handler for a method name.
func (s *Server) Register(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Notify emits a server-initiated notification, e.g.
// "notifications/tools/list_changed" when advanced_tools_enabled toggles.
func (s *Server) Notify(method string, params interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(params)
	if err != nil {
		log.Printf("rpc: marshalling notification params for %s: %v", method, err)
		return
	}
	s.writeLocked(Request{JSONRPC: "2.0", Method: method, Params: raw})
}

// Serve runs the read/dispatch loop until the input stream is exhausted or
// returns an error (treated as the spec's "truly fatal stdio loss").
func (s *Server) Serve() error {
	for s.in.Scan() {
		line := s.in.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(nil, nil, &Error{Code: CodeParseError, Message: err.Error()})
			continue
		}
		s.dispatch(req)
	}
	return s.in.Err()
}

func (s *Server) dispatch(req Request) {
	s.mu.Lock()
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		if req.ID != nil {
			s.reply(req.ID, nil, &Error{Code: CodeMethodNotFound, Message: "unknown method: " + req.Method})
		}
		return
	}

	result, err := h(req.Params)
	if req.ID == nil {
		// Notification: handler runs for effect only, no response is sent
		// even if it errored.
		if err != nil {
			log.Printf("rpc: notification handler %s: %v", req.Method, err)
		}
		return
	}

	if err != nil {
		if rpcErr, ok := err.(*Error); ok {
			s.reply(req.ID, nil, rpcErr)
		} else {
			s.reply(req.ID, nil, &Error{Code: CodeInternalError, Message: err.Error()})
		}
		return
	}
	s.reply(req.ID, result, nil)
}

func (s *Server) reply(id json.RawMessage, result interface{}, rpcErr *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(Response{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr})
}

func (s *Server) writeLocked(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("rpc: marshalling response: %v", err)
		return
	}
	if _, err := fmt.Fprintf(s.out, "%s\n", b); err != nil {
		log.Printf("rpc: writing response: %v", err)
	}
}
