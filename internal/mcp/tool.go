// Package mcp holds the tool plumbing shared by every provider: descriptor
// and executor contracts, the name registry, and result/argument helpers.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ToolDescriptor is the MCP tools/list item shape.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolExecutor is implemented by every tool provider.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error)
}

// ErrToolNotFound indicates the provider does not own the requested tool.
var ErrToolNotFound = fmt.Errorf("tool not found")

// BuildToolSuccessResult builds a standard MCP tool success result object.
func BuildToolSuccessResult(text string, structured any) map[string]any {
	result := map[string]any{}
	if structured != nil {
		result["structuredContent"] = structured
	}
	if strings.TrimSpace(text) == "" {
		text = stringifyStructuredContent(structured)
	}
	if strings.TrimSpace(text) == "" {
		text = "ok"
	}
	result["content"] = []map[string]any{
		{
			"type": "text",
			"text": text,
		},
	}
	return result
}

// BuildToolErrorResult builds a standard MCP tool error result object.
// Tool failures are data for the calling agent, not protocol errors.
func BuildToolErrorResult(message string) map[string]any {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "tool execution failed"
	}
	return map[string]any{
		"isError": true,
		"content": []map[string]any{
			{
				"type": "text",
				"text": msg,
			},
		},
	}
}

func stringifyStructuredContent(v any) string {
	if v == nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	default:
		payload, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(payload)
	}
}

func StringArg(arguments map[string]any, key string) string {
	if arguments == nil {
		return ""
	}
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return ""
	}
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", raw))
	}
}

// StringSliceArg reads an array-of-strings argument.
func StringSliceArg(arguments map[string]any, key string) []string {
	if arguments == nil {
		return nil
	}
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func IntArg(arguments map[string]any, key string) (int, bool, error) {
	if arguments == nil {
		return 0, false, nil
	}
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch value := raw.(type) {
	case int:
		return value, true, nil
	case int32:
		return int(value), true, nil
	case int64:
		return int(value), true, nil
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, true, fmt.Errorf("%s must be a valid number", key)
		}
		return int(value), true, nil
	case json.Number:
		i, err := value.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return int(i), true, nil
	default:
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
}

// BoundedIntArg reads an integer argument clamped into [min, max], using
// fallback when absent.
func BoundedIntArg(arguments map[string]any, key string, fallback, min, max int) (int, error) {
	v, ok, err := IntArg(arguments, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v, nil
}

func BoolArg(arguments map[string]any, key string) (bool, bool, error) {
	if arguments == nil {
		return false, false, nil
	}
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return false, true, fmt.Errorf("%s must be a boolean", key)
	}
	return value, true, nil
}
