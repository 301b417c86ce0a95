package agent

import (
	"context"
	"strings"
	"testing"
)

type stubTool struct {
	spec   ToolSpec
	invoke func(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

func (t *stubTool) Spec() ToolSpec { return t.spec }

func (t *stubTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	if t.invoke == nil {
		return ToolResponse{Payload: map[string]any{"success": true}}, nil
	}
	return t.invoke(ctx, req)
}

func namedTool(name string) *stubTool {
	return &stubTool{spec: ToolSpec{Name: name, Description: name + " tool"}}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r, err := NewRegistry(namedTool("query_database"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, _, ok := r.Lookup("Query_Database"); !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
	if _, _, ok := r.Lookup("  query_database  "); !ok {
		t.Fatal("expected trimmed lookup to succeed")
	}
	if _, _, ok := r.Lookup("unknown"); ok {
		t.Fatal("expected unknown lookup to fail")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r, err := NewRegistry(namedTool("detect_anomalies"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	err = r.Register(namedTool("Detect_Anomalies"))
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	if _, err := NewRegistry(namedTool("  ")); err == nil {
		t.Fatal("expected empty-name error")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("expected nil-tool error")
	}
}

func TestRegistrySpecsKeepRegistrationOrder(t *testing.T) {
	r, err := NewRegistry(namedTool("query_database"), namedTool("analyze_account_balance"), namedTool("detect_anomalies"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := r.Specs()
	want := []string{"query_database", "analyze_account_balance", "detect_anomalies"}
	if len(specs) != len(want) {
		t.Fatalf("got %d specs, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("specs[%d] = %q, want %q", i, specs[i].Name, name)
		}
	}
}
