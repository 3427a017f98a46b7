package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/annotation-corrector/internal/history"
	"github.com/ironsheep/annotation-corrector/internal/session"
)

// HistoryReader lists journaled saves.
type HistoryReader interface {
	Recent(limit int) ([]history.Entry, error)
}

// Server handles MCP protocol communication for one review session.
type Server struct {
	// mu serialises requests from every transport and connection.
	mu      sync.Mutex
	ctrl    *session.Controller
	history HistoryReader
	version string
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server driving ctrl.
func New(ctrl *session.Controller, version string) *Server {
	return &Server{
		ctrl:    ctrl,
		version: version,
	}
}

// SetHistory enables the review_history tool.
func (s *Server) SetHistory(h HistoryReader) {
	s.history = h
}

// Run serves requests from stdin, writing responses to stdout, until stdin
// closes.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleMessage(line)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scanner error")
	}

	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts clients that send no Origin header and browser pages
// served from the listening host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// WebSocketHandler serves the protocol over WebSocket: each text message is
// one request and each response is sent as one text message.
func (s *Server) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Error("websocket upgrade failed")
			return
		}
		defer conn.Close()

		log.WithField("remote", r.RemoteAddr).Info("client connected")

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithField("remote", r.RemoteAddr).Info("client disconnected")
				} else {
					log.WithError(err).WithField("remote", r.RemoteAddr).Warn("client disconnected with error")
				}
				return
			}

			resp := s.handleMessage(msg)
			if resp == nil {
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				log.WithError(err).Error("failed to write response")
				return
			}
		}
	}
}

// ListenAndServe serves WebSocket clients on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.WebSocketHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening for review clients")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "websocket server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "websocket server shutdown")
	}
}

// handleMessage decodes and dispatches one request under the server lock.
func (s *Server) handleMessage(data []byte) *MCPResponse {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.WithError(err).Warn("failed to parse request")
		return s.errorResponse(nil, -32700, "Parse error", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleRequest(&req)
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "annotation-corrector",
				"version": s.version,
			},
		},
	}
}
