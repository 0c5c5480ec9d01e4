package tools

import (
	"context"
	"testing"

	"chromecontrol/internal/dispatcher"
)

func newTestRegistry() *Registry {
	d := dispatcher.New(func(ctx context.Context) error { return nil })
	return &Registry{Dispatcher: d}
}

func TestDescribeToolsRendersCatalog(t *testing.T) {
	reg := newTestRegistry()
	registerDocsTools(reg)

	res := reg.Dispatcher.Call(context.Background(), "describe_tools", nil, 0)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Data["tool_count"] == nil {
		t.Error("expected tool_count in result data")
	}
	catalog, _ := res.Data["catalog"].(string)
	if catalog == "" {
		t.Error("expected non-empty rendered catalog")
	}
}

func TestJQFilterAppliesExpression(t *testing.T) {
	reg := newTestRegistry()
	registerDocsTools(reg)

	args := map[string]interface{}{
		"expr":  ".foo",
		"input": map[string]interface{}{"foo": "bar"},
	}
	res := reg.Dispatcher.Call(context.Background(), "jq_filter", args, 0)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	results, ok := res.Data["results"].([]interface{})
	if !ok || len(results) != 1 || results[0] != "bar" {
		t.Errorf("expected [\"bar\"], got %+v", res.Data["results"])
	}
}

func TestJQFilterRejectsInvalidExpression(t *testing.T) {
	reg := newTestRegistry()
	registerDocsTools(reg)

	args := map[string]interface{}{
		"expr":  "not a valid jq (((",
		"input": map[string]interface{}{},
	}
	res := reg.Dispatcher.Call(context.Background(), "jq_filter", args, 0)
	if res.Success {
		t.Fatal("expected failure for an invalid jq expression")
	}
}
