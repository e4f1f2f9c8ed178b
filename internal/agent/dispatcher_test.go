package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/n0tssss/MCPLink-sub000/internal/testutil"
)

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newTestDispatcher(t *testing.T, tools ...*testutil.MockTool) (*Dispatcher, *testutil.ToolSet) {
	t.Helper()
	set := testutil.NewToolSet(tools...)
	specs, err := set.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return NewDispatcher(set, specs, stepClock(5*time.Millisecond)), set
}

func TestDispatcherSuccess(t *testing.T) {
	d, set := newTestDispatcher(t, testutil.NewMockTool("search", "42"))
	res := d.Execute(context.Background(), ToolCallRequest{ID: "c1", Name: "search", Arguments: map[string]any{}})
	if res.IsError || res.Result != "42" || res.ID != "c1" || res.Name != "search" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.DurationMs != 5 {
		t.Errorf("DurationMs = %d, want 5", res.DurationMs)
	}
	if len(set.Calls()) != 1 {
		t.Errorf("tool called %d times, want 1", len(set.Calls()))
	}
}

func TestDispatcherToolError(t *testing.T) {
	failing := testutil.NewMockToolWithSchema("fetch", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("network down")
	})
	d, _ := newTestDispatcher(t, failing)
	res := d.Execute(context.Background(), ToolCallRequest{ID: "c1", Name: "fetch"})
	if !res.IsError || res.Result != "network down" {
		t.Fatalf("got %+v, want isError with message", res)
	}
}

func TestDispatcherRecoversPanic(t *testing.T) {
	bad := testutil.NewMockToolWithSchema("bad", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		panic("kaboom")
	})
	d, _ := newTestDispatcher(t, bad)
	res := d.Execute(context.Background(), ToolCallRequest{ID: "c1", Name: "bad"})
	if !res.IsError || !strings.Contains(res.Result.(string), "kaboom") {
		t.Fatalf("got %+v", res)
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d, set := newTestDispatcher(t, testutil.NewMockTool("read_file", "x"), testutil.NewMockTool("write_file", "x"))

	res := d.Execute(context.Background(), ToolCallRequest{ID: "c1", Name: "read_fil"})
	if !res.IsError {
		t.Fatal("expected error result")
	}
	msg := res.Result.(string)
	if !strings.Contains(msg, ErrUnknownTool.Error()) || !strings.Contains(msg, `did you mean "read_file"`) {
		t.Errorf("message = %q", msg)
	}

	res = d.Execute(context.Background(), ToolCallRequest{ID: "c2", Name: "zzz"})
	if msg := res.Result.(string); !strings.Contains(msg, "Available tools: read_file, write_file") {
		t.Errorf("message = %q", msg)
	}
	if len(set.Calls()) != 0 {
		t.Error("provider should not be called for unknown tools")
	}
}

func TestDispatcherValidatesArguments(t *testing.T) {
	tool := testutil.NewMockToolWithSchema("search", "", searchSchema(), func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	})
	d, set := newTestDispatcher(t, tool)

	res := d.Execute(context.Background(), ToolCallRequest{ID: "c1", Name: "search", Arguments: map[string]any{"limit": float64(2)}})
	if !res.IsError || !strings.Contains(res.Result.(string), "invalid arguments for search") {
		t.Fatalf("got %+v", res)
	}
	if len(set.Calls()) != 0 {
		t.Error("invalid call reached the provider")
	}

	res = d.Execute(context.Background(), ToolCallRequest{ID: "c2", Name: "search", Arguments: map[string]any{"query": "go"}})
	if res.IsError {
		t.Fatalf("valid call failed: %+v", res)
	}
}
