package server

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// uuidPattern is the JSON-Schema pattern advertised for watch identifiers.
// The dispatcher re-validates independently; the schema is metadata for tool
// callers.
const uuidPattern = "^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$"

// toolDef describes one entry of the static tool catalog: its MCP-facing
// schema plus the argument keys the dispatcher requires before execution.
type toolDef struct {
	name         string
	description  string
	requiredArgs []string
	schema       *jsonschema.Schema
}

// watchIDSchema is the shared input contract for tools addressing a single
// watch.
func watchIDSchema(action string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"watch_id": {
				Type:        "string",
				Description: "The UUID of the watch to " + action,
				Pattern:     uuidPattern,
			},
		},
		Required: []string{"watch_id"},
	}
}

// emptySchema is the input contract for parameter-less tools.
func emptySchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
}

// toolCatalog returns the fixed set of tools exposed over MCP, in the order
// they are advertised.
func toolCatalog() []toolDef {
	return []toolDef{
		{
			name:        "list_watches",
			description: "List all website watches configured in changedetection.io",
			schema:      emptySchema(),
		},
		{
			name:         "get_watch",
			description:  "Get detailed information about a specific watch",
			requiredArgs: []string{"watch_id"},
			schema:       watchIDSchema("retrieve"),
		},
		{
			name:         "create_watch",
			description:  "Create a new watch to monitor a website for changes",
			requiredArgs: []string{"url"},
			schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"url": {
						Type:        "string",
						Description: "The URL to monitor (must be http:// or https://)",
						Format:      "uri",
					},
					"tag": {
						Type:        "string",
						Description: "Optional tag to categorize the watch (max 100 chars)",
					},
				},
				Required: []string{"url"},
			},
		},
		{
			name:         "delete_watch",
			description:  "Delete a watch and stop monitoring",
			requiredArgs: []string{"watch_id"},
			schema:       watchIDSchema("delete"),
		},
		{
			name:         "trigger_check",
			description:  "Manually trigger a change detection check",
			requiredArgs: []string{"watch_id"},
			schema:       watchIDSchema("check"),
		},
		{
			name:         "get_history",
			description:  "Get the history of detected changes",
			requiredArgs: []string{"watch_id"},
			schema:       watchIDSchema("inspect"),
		},
		{
			name:        "system_info",
			description: "Get system information about the changedetection.io instance",
			schema:      emptySchema(),
		},
		{
			name:        "get_metrics",
			description: "Get server metrics and statistics",
			schema:      emptySchema(),
		},
	}
}
