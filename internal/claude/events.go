// Package claude launches detached claude CLI workers and parses their
// stream-json output into events.
package claude

import (
	"encoding/json"
	"fmt"

	"github.com/user/forkd/internal/types"
)

// streamLine is the subset of a stream-json line the event graph cares
// about. Everything else stays in the raw payload.
type streamLine struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id"`
	ParentToolUseID string `json:"parent_tool_use_id"`
	Message         struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string `json:"type"`
			ID        string `json:"id"`
			ToolUseID string `json:"tool_use_id"`
		} `json:"content"`
	} `json:"message"`
	Result     string   `json:"result"`
	TotalCost  *float64 `json:"total_cost_usd"`
	DurationMS *int64   `json:"duration_ms"`
	NumTurns   *int64   `json:"num_turns"`
	IsError    bool     `json:"is_error"`
	Subtype    string   `json:"subtype"`
}

// ParseEvent converts one worker output line into an event. The event gets
// a fresh time-ordered ID at parse time, so IDs reflect emission order.
// The raw line is preserved verbatim as the payload.
func ParseEvent(line []byte) (*types.Event, error) {
	var parsed streamLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		return nil, fmt.Errorf("parse worker line: %w", err)
	}
	if parsed.Type == "" {
		return nil, fmt.Errorf("worker line has no type")
	}

	event := &types.Event{
		ID:              types.NewEventID(),
		SessionID:       types.SessionID(parsed.SessionID),
		ParentToolUseID: types.ToolUseID(parsed.ParentToolUseID),
		Payload:         json.RawMessage(append([]byte(nil), line...)),
		CostUSD:         parsed.TotalCost,
		DurationMS:      parsed.DurationMS,
		NumTurns:        parsed.NumTurns,
	}

	switch parsed.Type {
	case "assistant":
		event.Role = types.RoleAssistant
		for _, block := range parsed.Message.Content {
			if block.Type == "tool_use" && block.ID != "" {
				event.ToolUseIDs = append(event.ToolUseIDs, types.ToolUseID(block.ID))
			}
		}
	case "user":
		event.Role = types.RoleUser
		for _, block := range parsed.Message.Content {
			if block.Type == "tool_result" {
				event.Role = types.RoleToolResult
				break
			}
		}
	case "system", "result":
		event.Role = types.RoleSystem
	default:
		event.Role = types.RoleSystem
	}
	return event, nil
}

// ResultText returns the final result string from a terminal "result"
// line, and whether the event is one.
func ResultText(event *types.Event) (string, bool) {
	if event == nil || event.Role != types.RoleSystem {
		return "", false
	}
	var parsed streamLine
	if err := json.Unmarshal(event.Payload, &parsed); err != nil {
		return "", false
	}
	if parsed.Type != "result" {
		return "", false
	}
	return parsed.Result, true
}

// IsErrorResult reports whether a terminal result line declared failure.
func IsErrorResult(event *types.Event) bool {
	if event == nil {
		return false
	}
	var parsed streamLine
	if err := json.Unmarshal(event.Payload, &parsed); err != nil {
		return false
	}
	return parsed.Type == "result" && parsed.IsError
}
