package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alivecode/aliot-go/client"
)

// Object is the part of a client the tools drive; *client.Client implements
// it.
type Object interface {
	Status() client.Status
	UpdateDoc(fields map[string]any) error
	Broadcast(data any) error
	SendAction(targetID string, actionID int, value any) error
	SendRoute(routePath string, data any) error
	GetDoc(ctx context.Context, field string) (any, error)
}

// Tools translates MCP tool calls into the object's outbound events.
type Tools struct {
	object Object
}

func NewTools(obj Object) *Tools {
	return &Tools{object: obj}
}

// Register adds every tool to s.
func (t *Tools) Register(s *MCPServer) {
	t.registerStatusTools(s)
	t.registerDocumentTools(s)
	t.registerMessagingTools(s)
}

func (t *Tools) registerStatusTools(s *MCPServer) {
	statusTool := mcp.NewTool("object_status",
		mcp.WithDescription("Get the connection state, registered actions and send count of the object"),
	)
	s.AddTool(statusTool, t.handleObjectStatus)
}

func (t *Tools) registerDocumentTools(s *MCPServer) {
	updateDocTool := mcp.NewTool("update_doc",
		mcp.WithDescription("Write fields into the project document"),
		mcp.WithObject("fields",
			mcp.Required(),
			mcp.Description("Document fields keyed by path, e.g. {\"/document/temp\": 21}"),
		),
	)
	s.AddTool(updateDocTool, t.handleUpdateDoc)

	getDocTool := mcp.NewTool("get_doc",
		mcp.WithDescription("Read the project document, or a single field of it"),
		mcp.WithString("field",
			mcp.Description("Field path; the whole document is returned when empty"),
		),
	)
	s.AddTool(getDocTool, t.handleGetDoc)
}

func (t *Tools) registerMessagingTools(s *MCPServer) {
	broadcastTool := mcp.NewTool("send_broadcast",
		mcp.WithDescription("Broadcast data to the other objects of the project"),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Broadcast payload"),
		),
	)
	s.AddTool(broadcastTool, t.handleSendBroadcast)

	sendActionTool := mcp.NewTool("send_action",
		mcp.WithDescription("Ask another object to run one of its actions"),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Identifier of the target object"),
		),
		mcp.WithNumber("action_id",
			mcp.Required(),
			mcp.Description("Action identifier on the target object"),
		),
		mcp.WithString("value",
			mcp.Description("Value handed to the action"),
		),
	)
	s.AddTool(sendActionTool, t.handleSendAction)

	sendRouteTool := mcp.NewTool("send_route",
		mcp.WithDescription("Trigger a route of the project"),
		mcp.WithString("route_path",
			mcp.Required(),
			mcp.Description("Route path, e.g. /alarm"),
		),
		mcp.WithObject("data",
			mcp.Description("Route payload"),
		),
	)
	s.AddTool(sendRouteTool, t.handleSendRoute)
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.GetRawArguments().(map[string]any)
	return args
}

func textResult(v any) (*mcp.CallToolResult, error) {
	resultBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

func (t *Tools) handleObjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(t.object.Status())
}

func (t *Tools) handleUpdateDoc(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, ok := arguments(request)["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return mcp.NewToolResultError("fields is required and must be a non-empty object"), nil
	}
	if err := t.object.UpdateDoc(fields); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update document: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Updated %d document field(s)", len(fields))), nil
}

func (t *Tools) handleGetDoc(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field := request.GetString("field", "")
	doc, err := t.object.GetDoc(ctx, field)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read document: %v", err)), nil
	}
	return textResult(doc)
}

func (t *Tools) handleSendBroadcast(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, ok := arguments(request)["data"]
	if !ok {
		return mcp.NewToolResultError("data is required"), nil
	}
	if err := t.object.Broadcast(data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to broadcast: %v", err)), nil
	}
	return mcp.NewToolResultText("Broadcast sent"), nil
}

func (t *Tools) handleSendAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetID, err := request.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError("target_id is required and must be a string"), nil
	}
	if _, ok := arguments(request)["action_id"]; !ok {
		return mcp.NewToolResultError("action_id is required"), nil
	}
	actionID := int(request.GetFloat("action_id", 0))
	value := request.GetString("value", "")

	if err := t.object.SendAction(targetID, actionID, value); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send action: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Action %d sent to %s", actionID, targetID)), nil
}

func (t *Tools) handleSendRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routePath, err := request.RequireString("route_path")
	if err != nil {
		return mcp.NewToolResultError("route_path is required and must be a string"), nil
	}
	data := arguments(request)["data"]

	if err := t.object.SendRoute(routePath, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send route: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Route %s triggered", routePath)), nil
}
