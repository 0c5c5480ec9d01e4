package interception

import (
	"context"
	"regexp"
	"testing"

	"github.com/chromedp/cdproto/fetch"

	"chromecontrol/internal/cdp"
)

func mustRule(id string, pattern string, action Action) Rule {
	return Rule{ID: id, Pattern: regexp.MustCompile(pattern), Action: action}
}

func TestContextMatchAppliesPrecedence(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("observe-all", ".*", ActionObserve))
	c.AddRule(mustRule("modify-api", "/api/", ActionModify))
	c.AddRule(mustRule("mock-login", "/api/login", ActionMock))

	r, ok := c.match("https://example.com/api/login")
	if !ok {
		t.Fatal("expected a match")
	}
	if r.ID != "mock-login" {
		t.Errorf("expected mock to win over modify and observe, got %s", r.ID)
	}
}

func TestContextMatchFailAndBlockOutrankModify(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("modify-api", "/api/", ActionModify))
	c.AddRule(mustRule("fail-api", "/api/", ActionFail))

	r, ok := c.match("https://example.com/api/data")
	if !ok {
		t.Fatal("expected a match")
	}
	if r.ID != "fail-api" {
		t.Errorf("expected fail to outrank modify, got %s", r.ID)
	}
}

func TestContextMatchNoRulesMatch(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("only-api", "/api/", ActionObserve))

	if _, ok := c.match("https://example.com/static/app.js"); ok {
		t.Fatal("expected no match for a URL outside every rule's pattern")
	}
}

func TestContextMatchFirstRegisteredWinsTies(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("first", ".*", ActionObserve))
	c.AddRule(mustRule("second", ".*", ActionObserve))

	r, ok := c.match("https://example.com/")
	if !ok {
		t.Fatal("expected a match")
	}
	if r.ID != "first" {
		t.Errorf("expected the first-registered rule to win a precedence tie, got %s", r.ID)
	}
}

func TestContextRemoveRule(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("a", ".*", ActionObserve))
	c.AddRule(mustRule("b", ".*", ActionBlock))

	c.RemoveRule("b")

	rules := c.Rules()
	if len(rules) != 1 || rules[0].ID != "a" {
		t.Errorf("expected only rule 'a' to remain, got %+v", rules)
	}
}

func TestContextRemoveRuleUnknownIDIsNoop(t *testing.T) {
	c := &Context{}
	c.AddRule(mustRule("a", ".*", ActionObserve))
	c.RemoveRule("does-not-exist")

	if len(c.Rules()) != 1 {
		t.Errorf("expected removing an unknown rule id to be a no-op")
	}
}

func TestRuleRankOrdering(t *testing.T) {
	mock := Rule{Action: ActionMock}
	block := Rule{Action: ActionBlock}
	fail := Rule{Action: ActionFail}
	modify := Rule{Action: ActionModify}
	delay := Rule{Action: ActionDelay}
	observe := Rule{Action: ActionObserve}

	if !(mock.rank() < block.rank() && block.rank() == fail.rank() && fail.rank() < modify.rank() &&
		modify.rank() < delay.rank() && delay.rank() < observe.rank()) {
		t.Errorf("expected precedence mock > block == fail > modify > delay > observe, got mock=%d block=%d fail=%d modify=%d delay=%d observe=%d",
			mock.rank(), block.rank(), fail.rank(), modify.rank(), delay.rank(), observe.rank())
	}
}

func TestEngineActiveFalseForUnknownTarget(t *testing.T) {
	e := NewEngine(cdp.NewManager(context.Background()), nil)
	if e.Active("no-such-target") {
		t.Error("expected a target with no enabled Context to report inactive")
	}
}

func TestAddRuleRejectsConflictingModifyAndMock(t *testing.T) {
	c := &Context{}
	if err := c.AddRule(mustRule("modify-login", "/api/login", ActionModify)); err != nil {
		t.Fatalf("unexpected error registering first rule: %v", err)
	}
	err := c.AddRule(mustRule("mock-login", "/api/login", ActionMock))
	if err != ErrModeConflict {
		t.Errorf("expected ErrModeConflict, got %v", err)
	}
	if len(c.Rules()) != 1 {
		t.Errorf("expected the conflicting rule to be rejected, got %+v", c.Rules())
	}
}

func TestAddRuleAllowsSameActionOnSamePattern(t *testing.T) {
	c := &Context{}
	if err := c.AddRule(mustRule("modify-a", "/api/login", ActionModify)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddRule(mustRule("modify-b", "/api/login", ActionModify)); err != nil {
		t.Errorf("expected two modify rules on the same pattern to coexist, got %v", err)
	}
}

func TestAddRuleAllowsModifyAndMockOnDifferentPatterns(t *testing.T) {
	c := &Context{}
	if err := c.AddRule(mustRule("modify-login", "/api/login", ActionModify)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddRule(mustRule("mock-logout", "/api/logout", ActionMock)); err != nil {
		t.Errorf("expected modify and mock on different patterns to coexist, got %v", err)
	}
}

func TestAddRuleIgnoresObserveAndBlockForConflictCheck(t *testing.T) {
	c := &Context{}
	if err := c.AddRule(mustRule("modify-login", "/api/login", ActionModify)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddRule(mustRule("observe-login", "/api/login", ActionObserve)); err != nil {
		t.Errorf("expected observe to never conflict, got %v", err)
	}
	if err := c.AddRule(mustRule("block-login", "/api/login", ActionBlock)); err != nil {
		t.Errorf("expected block to never conflict, got %v", err)
	}
}

func TestContextPendingAndResume(t *testing.T) {
	c := &Context{pending: make(map[fetch.RequestID]*pendingRequest)}

	resumeCh := make(chan struct{})
	c.pending["req-1"] = &pendingRequest{obs: Observed{RequestID: "req-1", URL: "https://example.com/api"}, resume: resumeCh}

	pending := c.Pending()
	if len(pending) != 1 || pending[0].RequestID != "req-1" {
		t.Fatalf("expected one pending request with id req-1, got %+v", pending)
	}

	if !c.Resume("req-1") {
		t.Error("expected Resume to succeed for a parked request")
	}
	select {
	case <-resumeCh:
	default:
		t.Error("expected Resume to close the resume channel")
	}

	if c.Resume("req-1") {
		t.Error("expected a second Resume on the same request to report false")
	}
	if c.Resume("no-such-request") {
		t.Error("expected Resume on an unknown request id to report false")
	}
}

func TestContextSetAutoContinueToggles(t *testing.T) {
	c := &Context{}
	c.SetAutoContinue(true)
	if !c.autoContinue {
		t.Error("expected SetAutoContinue(true) to set autoContinue")
	}
	c.SetAutoContinue(false)
	if c.autoContinue {
		t.Error("expected SetAutoContinue(false) to clear autoContinue")
	}
}
