package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEventJSONOmitsEmptyOptionalFields(t *testing.T) {
	event := Event{
		ID:      "e1",
		ForkID:  "f1",
		Role:    RoleUser,
		Payload: json.RawMessage(`{}`),
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, absent := range []string{"parent_tool_use_id", "tool_use_ids", "cost_usd", "session_id"} {
		if strings.Contains(string(data), absent) {
			t.Errorf("expected %q omitted from %s", absent, data)
		}
	}
}
