package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/review"
	"github.com/ironsheep/annotation-corrector/internal/session"
)

const (
	centerLine = "0 0.500000 0.500000 0.200000 0.200000"
	cornerLine = "1 0.100000 0.100000 0.100000 0.100000"
)

// newTestImage creates a 100x100 image filled with a single color.
func newTestImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// newTestServer returns a server over a two image queue. The first image has
// a matching prediction and an extra corner prediction; the second has only
// a label.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	queue := []*review.ImageSession{
		review.NewImageSession("a.png", filepath.Join(dir, "a.txt"), newTestImage(color.White),
			[]detection.Detection{{Line: centerLine, Confidence: 0.9}, {Line: cornerLine, Confidence: 0.4}},
			[]string{centerLine}),
		review.NewImageSession("b.png", filepath.Join(dir, "b.txt"), newTestImage(color.Black),
			nil,
			[]string{cornerLine}),
	}
	return New(session.NewController(queue, []string{"cat", "dog"}), "test")
}

func TestNew(t *testing.T) {
	s := newTestServer(t)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.ctrl == nil {
		t.Fatal("New() did not keep the controller")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "annotation-corrector" || info["version"] != "test" {
		t.Errorf("serverInfo: got %v", info)
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_Notification(t *testing.T) {
	s := newTestServer(t)
	if resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Errorf("expected no response, got %+v", resp)
	}
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "unknown/method"})

	if resp == nil || resp.Error == nil {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error.Code: got %d, want -32601", resp.Error.Code)
	}
}

func TestHandleMessage_ParseError(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleMessage([]byte("{not json"))

	if resp == nil || resp.Error == nil {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if resp.Error.Code != -32700 {
		t.Errorf("Error.Code: got %d, want -32700", resp.Error.Code)
	}
}

func TestServe(t *testing.T) {
	s := newTestServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"review_navigate","arguments":{"delta":1}}}`,
	}, "\n")

	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}

	var resp MCPResponse
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != float64(2) || resp.Error != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
	if s.ctrl.Index() != 1 {
		t.Errorf("Index: got %d, want 1", s.ctrl.Index())
	}
}

func TestWebSocketHandler(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.WebSocketHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	req := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"review_status"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var resp MCPResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if resp.ID != float64(7) || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	status := decodeToolResult[statusResult](t, &resp)
	if status.Total != 2 || status.ImagePath != "a.png" {
		t.Errorf("status: got %+v", status)
	}
}

func TestWebSocketHandler_Origin(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.WebSocketHandler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{"no origin", "", true},
		{"same host", ts.URL, true},
		{"other site", "http://example.com", false},
		{"same hostname other port", "http://127.0.0.1:1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("dial failed: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected cross-origin dial to be rejected")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("expected 403 response, got %v", resp)
			}
		})
	}
}
