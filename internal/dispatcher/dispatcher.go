// Package dispatcher implements the Tool Dispatcher (C9): the choke point
// every inbound tool call passes through. It looks up the handler, bypasses
// C6's ensure_connected for a small allow-list, validates arguments against
// the tool's declared schema, races the handler against a per-call deadline,
// and guarantees every call returns a structured result — nothing escapes
// as a panic or an unhandled error (spec.md §4.9's "propagation policy:
// nothing escapes the dispatcher").
//
// Grounded in the teacher's main.go command-line dispatch (one flag-driven
// action per run) generalized into a persistent table-driven dispatcher,
// and in internal/errors' ToolResult/ToToolError conversion added for this
// server's structured failure contract.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	cerrors "chromecontrol/internal/errors"
)

// Handler is a tool's implementation. args has already been validated and
// defaulted against the tool's Schema. The returned value becomes the Data
// of the call's cerrors.ToolResult (serialized as "data"): a
// map[string]interface{} is used as-is, any other non-nil value is wrapped
// as {"value": v}.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is one catalog entry (spec.md §4.9 and §6 "list tools" method).
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Timeout     time.Duration
	Advanced    bool // hidden unless advanced_tools_enabled
	Handler     Handler
}

// bypassAllowList is the fixed set of tools the spec exempts from
// ensure_connected: they either manage the connection itself or report on
// server state without needing one.
var bypassAllowList = map[string]bool{
	"status":              true,
	"show_advanced_tools": true,
	"hide_advanced_tools": true,
	"close_browser":       true,
	"launch_with_profile": true,
}

// Dispatcher owns the tool catalog and the connected/disconnected gate.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	advancedEnabled bool
	onVisibility    func()

	ensureConnected func(ctx context.Context) error
}

// New creates a Dispatcher. ensureConnected is called before any tool not on
// the bypass allow-list; it should wrap orchestrator.Orchestrator.EnsureConnected
// and discard its *Connection result (tool handlers fetch the connection
// themselves from the same orchestrator instance).
func New(ensureConnected func(ctx context.Context) error) *Dispatcher {
	return &Dispatcher{
		tools:           make(map[string]*Tool),
		ensureConnected: ensureConnected,
	}
}

// Register adds a tool to the catalog. Registering a name twice replaces
// the previous entry.
func (d *Dispatcher) Register(t *Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[t.Name] = t
}

// OnVisibilityChange installs the callback the dispatcher invokes after
// advanced_tools_enabled flips, used to emit the spec's tool-list-changed
// notification over the RPC transport without this package importing rpc.
func (d *Dispatcher) OnVisibilityChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onVisibility = fn
}

// SetAdvancedEnabled implements show_advanced_tools / hide_advanced_tools.
func (d *Dispatcher) SetAdvancedEnabled(enabled bool) {
	d.mu.Lock()
	changed := d.advancedEnabled != enabled
	d.advancedEnabled = enabled
	cb := d.onVisibility
	d.mu.Unlock()
	if changed && cb != nil {
		cb()
	}
}

// ToolSummary is one entry of the tools/list response.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"schema"`
}

// List returns the currently visible catalog: every non-advanced tool, plus
// advanced tools when advanced_tools_enabled is set.
func (d *Dispatcher) List() []ToolSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ToolSummary, 0, len(d.tools))
	for _, t := range d.tools {
		if t.Advanced && !d.advancedEnabled {
			continue
		}
		out = append(out, ToolSummary{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}
	return out
}

const defaultTimeout = 30 * time.Second

// Call implements the dispatcher's full contract for one invocation. It has
// no error return: every failure, including an unknown tool name, is
// encoded in the returned cerrors.ToolResult.
func (d *Dispatcher) Call(ctx context.Context, name string, rawArgs map[string]interface{}, timeoutOverrideMs int) cerrors.ToolResult {
	d.mu.RLock()
	t, ok := d.tools[name]
	d.mu.RUnlock()

	if !ok {
		return cerrors.ToolResult{Success: false, Tool: name, Error: "unknown tool: " + name}
	}

	if !bypassAllowList[name] {
		if err := d.ensureConnected(ctx); err != nil {
			return cerrors.ToToolError(name, err)
		}
	}

	args, err := t.Schema.Validate(rawArgs)
	if err != nil {
		return cerrors.ToToolError(name, err)
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeoutOverrideMs > 0 {
		timeout = time.Duration(timeoutOverrideMs) * time.Millisecond
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{err: cerrors.New(cerrors.HandlerRaised, fmt.Sprintf("tool handler panicked: %v", r))}
			}
		}()
		res, err := t.Handler(callCtx, args)
		resultCh <- outcome{result: res, err: err}
	}()

	select {
	case o := <-resultCh:
		if o.err != nil {
			return cerrors.ToToolError(name, o.err)
		}
		return successResult(name, o.result)
	case <-callCtx.Done():
		return cerrors.ToToolError(name, cerrors.New(cerrors.TimeoutError, "tool call exceeded its deadline"))
	}
}

func successResult(tool string, data interface{}) cerrors.ToolResult {
	res := cerrors.ToolResult{Success: true, Tool: tool}
	if m, ok := data.(map[string]interface{}); ok {
		res.Data = m
	} else if data != nil {
		res.Data = map[string]interface{}{"value": data}
	}
	return res
}
