package claude

import (
	"testing"

	"github.com/user/forkd/internal/types"
)

func TestParseEventAssistantToolUses(t *testing.T) {
	line := []byte(`{"type":"assistant","session_id":"sess-1","message":{"role":"assistant","content":[{"type":"text","text":"let me check"},{"type":"tool_use","id":"toolu_01","name":"Read"},{"type":"tool_use","id":"toolu_02","name":"Grep"}]}}`)

	event, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Role != types.RoleAssistant {
		t.Errorf("expected assistant role, got %s", event.Role)
	}
	if event.SessionID != "sess-1" {
		t.Errorf("expected session sess-1, got %s", event.SessionID)
	}
	if len(event.ToolUseIDs) != 2 || event.ToolUseIDs[0] != "toolu_01" || event.ToolUseIDs[1] != "toolu_02" {
		t.Errorf("unexpected tool use ids %v", event.ToolUseIDs)
	}
	if event.ID == "" {
		t.Error("expected an assigned event ID")
	}
	if string(event.Payload) != string(line) {
		t.Error("payload must preserve the raw line")
	}
}

func TestParseEventToolResult(t *testing.T) {
	line := []byte(`{"type":"user","session_id":"sess-1","parent_tool_use_id":"toolu_01","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"file contents"}]}}`)

	event, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Role != types.RoleToolResult {
		t.Errorf("expected tool-result role, got %s", event.Role)
	}
	if event.ParentToolUseID != "toolu_01" {
		t.Errorf("expected parent toolu_01, got %s", event.ParentToolUseID)
	}
}

func TestParseEventPlainUserMessage(t *testing.T) {
	line := []byte(`{"type":"user","session_id":"sess-1","message":{"role":"user","content":[{"type":"text","text":"hello"}]}}`)

	event, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Role != types.RoleUser {
		t.Errorf("expected user role, got %s", event.Role)
	}
}

func TestParseEventResultMetrics(t *testing.T) {
	line := []byte(`{"type":"result","subtype":"success","session_id":"sess-1","result":"all tests pass","total_cost_usd":0.0731,"duration_ms":48213,"num_turns":12,"is_error":false}`)

	event, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Role != types.RoleSystem {
		t.Errorf("expected system role, got %s", event.Role)
	}
	if event.CostUSD == nil || *event.CostUSD != 0.0731 {
		t.Errorf("cost not extracted: %v", event.CostUSD)
	}
	if event.DurationMS == nil || *event.DurationMS != 48213 {
		t.Errorf("duration not extracted: %v", event.DurationMS)
	}
	if event.NumTurns == nil || *event.NumTurns != 12 {
		t.Errorf("num turns not extracted: %v", event.NumTurns)
	}

	text, ok := ResultText(event)
	if !ok || text != "all tests pass" {
		t.Errorf("result text = %q ok=%v", text, ok)
	}
	if IsErrorResult(event) {
		t.Error("success result flagged as error")
	}
}

func TestParseEventErrorResult(t *testing.T) {
	line := []byte(`{"type":"result","subtype":"error_max_turns","session_id":"sess-1","result":"","is_error":true}`)

	event, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !IsErrorResult(event) {
		t.Error("error result not detected")
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON line")
	}
	if _, err := ParseEvent([]byte(`{"session_id":"x"}`)); err == nil {
		t.Error("expected error for line without type")
	}
}
