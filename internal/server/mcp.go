package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverName is the implementation name reported in the MCP handshake.
const serverName = "changedetection-mcp-server"

// NewMCPServer builds an MCP server exposing the full tool catalog, with
// every call routed through d. Run it with a transport, e.g.:
//
//	srv := server.NewMCPServer(d)
//	err := srv.Run(ctx, &mcp.StdioTransport{})
func NewMCPServer(d *Dispatcher) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: Version}, nil)

	for _, def := range toolCatalog() {
		name := def.name
		srv.AddTool(
			&mcp.Tool{
				Name:        def.name,
				Description: def.description,
				InputSchema: def.schema,
			},
			func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				text := d.Dispatch(ctx, name, decodeArgs(req.Params.Arguments))
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: text}},
				}, nil
			},
		)
	}

	return srv
}

// decodeArgs converts the wire-format argument value into the dispatcher's
// key-value bag via a JSON round trip, mirroring how the SDK itself
// normalises schema values. Malformed or absent arguments yield an empty
// bag; the dispatcher's required-argument check reports the missing keys.
func decodeArgs(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	args := map[string]any{}
	if err := json.Unmarshal(data, &args); err != nil {
		return map[string]any{}
	}
	return args
}
