package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/typerush/typerush-go/game/client"
	"github.com/typerush/typerush-go/game/race"
)

// membership is one live room membership plus the server errors it has
// collected since the last room_state call.
type membership struct {
	rc *client.RoomClient

	mu      sync.Mutex
	notices []string
}

func (m *membership) notify(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, message)
}

func (m *membership) drainNotices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	notices := m.notices
	m.notices = nil
	return notices
}

// Client is the MCP surface over the race client. It holds one membership
// per joined room, keyed by invite code.
type Client struct {
	serverURL string
	mcpServer *server.MCPServer

	mu          sync.Mutex
	memberships map[string]*membership
}

// NewClient creates an MCP client targeting a TypeRush server URL.
func NewClient(serverURL string) *Client {
	c := &Client{
		serverURL:   serverURL,
		memberships: make(map[string]*membership),
	}

	c.initMCPServer()
	return c
}

// GetMCPServer returns the underlying MCP server for stdio or HTTP serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"TypeRush",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`TypeRush - MCP Interface

Multiplayer typing race client. Join a room, wait for the host to start,
then transcribe the shared paragraph with type_text. Scores come from the
server as the percentage of the paragraph typed correctly.

AVAILABLE TOOLS:
- create_room: Generate a fresh invite code (does not join)
- join_room: Join a room by invite code with a display name
- room_state: Current phase, paragraph, your progress, and standings
- start_race: Start the race (only works while you are the host)
- type_text: Submit your full typed buffer (resend the whole text so far)
- leaderboard: Score-ordered standings
- leave_room: Leave a room
- list_rooms: List rooms this process has joined

NOTE: type_text carries the full buffer, not a delta. To make progress,
send everything you have typed so far, matching the paragraph exactly.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Generate a fresh invite code for a new room. The room itself is created when the first participant joins.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join a room by invite code with a display name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of the room to join",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Display name shown on the leaderboard",
				},
			},
			Required: []string{"room_id", "name"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get the current phase, paragraph, typed progress, and standings for a joined room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of a joined room",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_race",
		Description: "Request a race start. Only succeeds while you hold the host role and no race is running.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of a joined room",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleStartRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "type_text",
		Description: "Submit your full typed buffer for the active race (the whole text typed so far, not a delta)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of a joined room",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Everything typed so far, matching the paragraph from its beginning",
				},
			},
			Required: []string{"room_id", "text"},
		},
	}, c.handleTypeText)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Get the score-ordered standings for a joined room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of a joined room",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_room",
		Description: "Leave a joined room and close its connection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Invite code of a joined room",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleLeaveRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List rooms this process has joined",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)
}

func (c *Client) member(roomID string) (*membership, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.memberships[roomID]
	return m, ok
}

// Tool handlers

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := uuid.NewString()
	result := fmt.Sprintf("Invite code: %s\nShare it, then join with join_room.", code)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	name, _ := args["name"].(string)

	m := &membership{}
	rc := client.New(c.serverURL)
	rc.Notifier = client.NotifierFunc(m.notify)
	m.rc = rc

	// Reserve the invite code before dialing so a concurrent join_room for
	// the same code fails fast instead of leaking a second connection.
	c.mu.Lock()
	if _, ok := c.memberships[roomID]; ok {
		c.mu.Unlock()
		return mcp.NewToolResultError(fmt.Sprintf("already joined room %s", roomID)), nil
	}
	c.memberships[roomID] = m
	c.mu.Unlock()

	if err := rc.Join(ctx, roomID, name); err != nil {
		c.mu.Lock()
		delete(c.memberships, roomID)
		c.mu.Unlock()
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined room %s as %q.\nUse room_state to watch for the race start.", roomID, name)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)

	m, ok := c.member(roomID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not joined to room %s", roomID)), nil
	}

	result := formatSnapshot(roomID, m.rc.Snapshot())
	if notices := m.drainNotices(); len(notices) > 0 {
		result += "\nServer messages:\n"
		for _, n := range notices {
			result += fmt.Sprintf("  - %s\n", n)
		}
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStartRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)

	m, ok := c.member(roomID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not joined to room %s", roomID)), nil
	}

	if err := m.rc.Start(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Start requested. The race begins when the server broadcasts game-started; check room_state."), nil
}

func (c *Client) handleTypeText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	text, _ := args["text"].(string)

	m, ok := c.member(roomID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not joined to room %s", roomID)), nil
	}

	if !m.rc.Type(text) {
		return mcp.NewToolResultError("typing is only accepted while a race is in progress"), nil
	}

	snap := m.rc.Snapshot()
	result := fmt.Sprintf("Buffer accepted (%d/%d characters).", len(snap.Input), len(snap.Paragraph))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)

	m, ok := c.member(roomID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not joined to room %s", roomID)), nil
	}

	snap := m.rc.Snapshot()
	return mcp.NewToolResultText(formatLeaderboard(snap)), nil
}

func (c *Client) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)

	c.mu.Lock()
	m, ok := c.memberships[roomID]
	delete(c.memberships, roomID)
	c.mu.Unlock()

	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not joined to room %s", roomID)), nil
	}

	if err := m.rc.Close(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Left room %s.", roomID)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.memberships))
	for id := range c.memberships {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return mcp.NewToolResultText("No rooms joined."), nil
	}

	result := fmt.Sprintf("Joined rooms (%d):\n", len(ids))
	for _, id := range ids {
		result += fmt.Sprintf("- %s\n", id)
	}
	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatSnapshot(roomID string, snap client.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", roomID)
	fmt.Fprintf(&b, "Phase: %s\n", snap.Phase)

	switch {
	case snap.SelfID == "":
		b.WriteString("Connection: handshake pending\n")
	case snap.SelfID == snap.Host:
		b.WriteString("You are the host.\n")
	case snap.Host != "":
		fmt.Fprintf(&b, "Host: %s\n", snap.Host)
	}

	if snap.Phase != race.PhaseNotStarted && snap.Paragraph != "" {
		fmt.Fprintf(&b, "Paragraph: %s\n", snap.Paragraph)
	}
	if snap.Phase == race.PhaseInProgress {
		fmt.Fprintf(&b, "Typed so far: %q (%d/%d characters)\n",
			snap.Input, len(snap.Input), len(snap.Paragraph))
	}

	b.WriteString("\n")
	b.WriteString(formatLeaderboard(snap))
	return b.String()
}

func formatLeaderboard(snap client.Snapshot) string {
	if len(snap.Leaderboard) == 0 {
		return "Leaderboard: empty\n"
	}

	var b strings.Builder
	b.WriteString("Leaderboard:\n")
	for i, p := range snap.Leaderboard {
		marker := ""
		if p.ID == snap.SelfID {
			marker = " (you)"
		}
		fmt.Fprintf(&b, "  #%d %s%s: %.1f\n", i+1, p.Name, marker, p.Score)
	}
	return b.String()
}
