// Package tools implements the MCP tool handlers.
//
// Each tool is a struct with dependencies injected via its constructor,
// a Definition() returning the mcp.Tool schema, and a Handle() processing
// the call. Tools validate argument shape, forward to the service layer,
// and serialize results as JSON text. Service errors map to the stable
// taxonomy; Degraded surfaces as a warning line in a successful result.
package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// base carries what every tool needs: the default project namespace.
// Tools accept an optional "project" argument overriding it.
type base struct {
	defaultProject string
}

func (b base) project(req mcp.CallToolRequest) string {
	return req.GetString("project", b.defaultProject)
}

// projectOption is the shared schema fragment for the project argument.
func projectOption() mcp.ToolOption {
	return mcp.WithString("project",
		mcp.Description("Project id (defaults to the server's configured project)"),
	)
}

// resultJSON marshals a value into a successful tool result. Every result
// is a JSON document, so it round-trips through parse/serialize.
func resultJSON(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(cwerr.Wrap(cwerr.Internal, err, "serializing result"))
	}
	return mcp.NewToolResultText(string(data))
}

// resultJSONDegraded is resultJSON plus a warning line: the primary write
// succeeded but a derived store fell behind.
func resultJSONDegraded(v any, warning string) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(cwerr.Wrap(cwerr.Internal, err, "serializing result"))
	}
	return mcp.NewToolResultText(string(data) + "\n\nWARNING (degraded): " + warning)
}

// errResult translates a service error into a structured tool error.
func errResult(err error) *mcp.CallToolResult {
	payload := map[string]any{
		"code":    cwerr.JSONRPCCode(err),
		"kind":    string(cwerr.KindOf(err)),
		"message": err.Error(),
	}
	if data := cwerr.DataOf(err); data != nil {
		payload["data"] = data
	}
	text, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(text))
}

// intArg extracts an integer argument (JSON numbers arrive as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// stringSliceArg extracts a []string argument.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// requireString fetches a mandatory string argument.
func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", cwerr.E(cwerr.InvalidArguments, "'%s' is required", key)
	}
	return v, nil
}

// stringItems is the JSON-schema fragment for arrays of strings.
func stringItems() map[string]any {
	return map[string]any{"type": "string"}
}
