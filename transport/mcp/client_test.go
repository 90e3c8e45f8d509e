package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/typerush/typerush-go/server"
)

func callRequest(args map[string]interface{}) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcpgo.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewClientInitializesServer(t *testing.T) {
	c := NewClient("ws://localhost:8080/ws")
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.GetMCPServer() == nil {
		t.Error("GetMCPServer returned nil")
	}
}

func TestCreateRoomReturnsInviteCode(t *testing.T) {
	c := NewClient("ws://localhost:8080/ws")

	result, err := c.handleCreateRoom(context.Background(), callRequest(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("create_room failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("create_room returned error: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.HasPrefix(text, "Invite code: ") {
		t.Fatalf("Unexpected create_room output: %q", text)
	}
	code := strings.SplitN(strings.TrimPrefix(text, "Invite code: "), "\n", 2)[0]
	if _, err := uuid.Parse(code); err != nil {
		t.Errorf("Invite code %q is not a UUID: %v", code, err)
	}
}

func TestToolsRequireMembership(t *testing.T) {
	c := NewClient("ws://localhost:8080/ws")
	args := map[string]interface{}{"room_id": "ghost", "text": "hello"}

	handlers := map[string]func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error){
		"room_state":  c.handleRoomState,
		"start_race":  c.handleStartRace,
		"type_text":   c.handleTypeText,
		"leaderboard": c.handleLeaderboard,
		"leave_room":  c.handleLeaveRoom,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			result, err := handler(context.Background(), callRequest(args))
			if err != nil {
				t.Fatalf("%s failed: %v", name, err)
			}
			if !result.IsError {
				t.Fatalf("%s on an un-joined room should error, got %q", name, resultText(t, result))
			}
			if text := resultText(t, result); !strings.Contains(text, "not joined") {
				t.Errorf("Unexpected rejection message %q", text)
			}
		})
	}
}

func TestListRoomsEmpty(t *testing.T) {
	c := NewClient("ws://localhost:8080/ws")

	result, err := c.handleListRooms(context.Background(), callRequest(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("list_rooms failed: %v", err)
	}
	if text := resultText(t, result); text != "No rooms joined." {
		t.Errorf("Expected empty listing, got %q", text)
	}
}

func TestJoinRoomUnreachableServer(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")

	result, err := c.handleJoinRoom(context.Background(), callRequest(map[string]interface{}{
		"room_id": "room-1",
		"name":    "agent",
	}))
	if err != nil {
		t.Fatalf("join_room failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("join_room against an unreachable server should error")
	}
}

func TestJoinRoomReservesCodeWhileDialing(t *testing.T) {
	gate := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the upgrade so the first join_room stays mid-dial.
		<-gate
	}))
	defer func() {
		close(gate)
		ts.Close()
	}()

	c := NewClient("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws")
	args := map[string]interface{}{"room_id": "contended", "name": "agent"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan *mcpgo.CallToolResult, 1)
	go func() {
		result, err := c.handleJoinRoom(ctx, callRequest(args))
		if err != nil {
			t.Errorf("join_room failed: %v", err)
			return
		}
		first <- result
	}()

	// Give the first call time to reserve the code and block on the dial.
	time.Sleep(50 * time.Millisecond)

	result, err := c.handleJoinRoom(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("second join_room failed: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "already joined") {
		t.Fatalf("concurrent join for a reserved code should be refused, got %q", resultText(t, result))
	}

	// Abort the first dial; its failure must release the reservation.
	cancel()
	select {
	case result := <-first:
		if !result.IsError {
			t.Fatalf("aborted join_room should error, got %q", resultText(t, result))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("first join_room never returned after cancellation")
	}

	if text, isErr := callTool(t, c.handleListRooms, map[string]interface{}{}); isErr || text != "No rooms joined." {
		t.Errorf("failed join should leave no membership behind, got %q", text)
	}
}

// callTool is a convenience for the lifecycle test below.
func callTool(t *testing.T, handler func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()

	result, err := handler(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("tool call failed: %v", err)
	}
	return resultText(t, result), result.IsError
}

// waitForState polls room_state until the formatted output matches.
func waitForState(t *testing.T, c *Client, roomID, want string) string {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		text, isErr := callTool(t, c.handleRoomState, map[string]interface{}{"room_id": roomID})
		if !isErr && strings.Contains(text, want) {
			return text
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q, last state:\n%s", want, text)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRaceThroughTools(t *testing.T) {
	source, err := server.NewParagraphSource("")
	if err != nil {
		t.Fatalf("NewParagraphSource failed: %v", err)
	}
	ts := httptest.NewServer(server.NewServer(source))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	c := NewClient(wsURL)
	roomID := "mcp-room"

	text, isErr := callTool(t, c.handleJoinRoom, map[string]interface{}{
		"room_id": roomID,
		"name":    "agent",
	})
	if isErr {
		t.Fatalf("join_room failed: %s", text)
	}

	// Double join is refused locally.
	if text, isErr := callTool(t, c.handleJoinRoom, map[string]interface{}{
		"room_id": roomID,
		"name":    "agent",
	}); !isErr || !strings.Contains(text, "already joined") {
		t.Errorf("Expected already-joined rejection, got %q", text)
	}

	waitForState(t, c, roomID, "You are the host.")

	// Typing before the race is refused.
	if text, isErr := callTool(t, c.handleTypeText, map[string]interface{}{
		"room_id": roomID,
		"text":    "too early",
	}); !isErr {
		t.Errorf("type_text before the race should error, got %q", text)
	}

	if text, isErr := callTool(t, c.handleStartRace, map[string]interface{}{"room_id": roomID}); isErr {
		t.Fatalf("start_race failed: %s", text)
	}

	state := waitForState(t, c, roomID, "Phase: in-progress")
	var paragraph string
	for _, line := range strings.Split(state, "\n") {
		if strings.HasPrefix(line, "Paragraph: ") {
			paragraph = strings.TrimPrefix(line, "Paragraph: ")
			break
		}
	}
	if paragraph == "" {
		t.Fatalf("room_state did not expose the paragraph:\n%s", state)
	}

	if text, isErr := callTool(t, c.handleTypeText, map[string]interface{}{
		"room_id": roomID,
		"text":    paragraph,
	}); isErr {
		t.Fatalf("type_text failed: %s", text)
	}

	waitForState(t, c, roomID, "Phase: finished")

	board, isErr := callTool(t, c.handleLeaderboard, map[string]interface{}{"room_id": roomID})
	if isErr {
		t.Fatalf("leaderboard failed: %s", board)
	}
	if !strings.Contains(board, "agent (you)") || !strings.Contains(board, "100.0") {
		t.Errorf("Unexpected leaderboard:\n%s", board)
	}

	if text, isErr := callTool(t, c.handleListRooms, map[string]interface{}{}); isErr || !strings.Contains(text, roomID) {
		t.Errorf("list_rooms should name the joined room, got %q", text)
	}

	if text, isErr := callTool(t, c.handleLeaveRoom, map[string]interface{}{"room_id": roomID}); isErr {
		t.Fatalf("leave_room failed: %s", text)
	}
	if text, isErr := callTool(t, c.handleListRooms, map[string]interface{}{}); isErr || text != "No rooms joined." {
		t.Errorf("Expected empty listing after leave, got %q", text)
	}
}
