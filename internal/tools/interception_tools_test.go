package tools

import (
	"context"
	"testing"

	"chromecontrol/internal/interception"
	"chromecontrol/internal/orchestrator"
)

func TestFilterPendingSplitsByStage(t *testing.T) {
	entries := []interception.Observed{
		{RequestID: "r1", Stage: "request"},
		{RequestID: "r2", Stage: "response"},
		{RequestID: "r3", Stage: "request"},
	}

	requests := filterPending(entries, false)
	if len(requests) != 2 || requests[0].RequestID != "r1" || requests[1].RequestID != "r3" {
		t.Errorf("expected request-stage entries r1 and r3, got %+v", requests)
	}

	responses := filterPending(entries, true)
	if len(responses) != 1 || responses[0].RequestID != "r2" {
		t.Errorf("expected response-stage entry r2, got %+v", responses)
	}
}

func TestFilterPendingEmptyInput(t *testing.T) {
	if out := filterPending(nil, false); len(out) != 0 {
		t.Errorf("expected empty slice for nil input, got %+v", out)
	}
}

func newUnconnectedRegistry() *Registry {
	reg := newTestRegistry()
	reg.Orchestrator = orchestrator.New("localhost", 9222)
	return reg
}

func TestDisableInterceptionFailsWithoutConnection(t *testing.T) {
	reg := newUnconnectedRegistry()
	registerInterceptionTools(reg)

	res := reg.Dispatcher.Call(context.Background(), "disable_interception", map[string]interface{}{"target_id": "t1"}, 0)
	if res.Success {
		t.Fatal("expected failure with no active connection")
	}
}

func TestListInterceptedRequestsFailsWithoutConnection(t *testing.T) {
	reg := newUnconnectedRegistry()
	registerInterceptionTools(reg)

	res := reg.Dispatcher.Call(context.Background(), "list_intercepted_requests", map[string]interface{}{"target_id": "t1"}, 0)
	if res.Success {
		t.Fatal("expected failure with no active connection")
	}
}

func TestListInterceptedResponsesFailsWithoutConnection(t *testing.T) {
	reg := newUnconnectedRegistry()
	registerInterceptionTools(reg)

	res := reg.Dispatcher.Call(context.Background(), "list_intercepted_responses", map[string]interface{}{"target_id": "t1"}, 0)
	if res.Success {
		t.Fatal("expected failure with no active connection")
	}
}

func TestResumeInterceptedRequestFailsWithoutConnection(t *testing.T) {
	reg := newUnconnectedRegistry()
	registerInterceptionTools(reg)

	res := reg.Dispatcher.Call(context.Background(), "resume_intercepted_request", map[string]interface{}{
		"target_id": "t1", "request_id": "req-1",
	}, 0)
	if res.Success {
		t.Fatal("expected failure with no active connection")
	}
}
