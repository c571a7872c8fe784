// Package webserver serves the chat panel to a browser. Questions and replies travel over
// a websocket as small JSON commands.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kevensen/gollama-clippy/internal/credentials"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
)

// Websocket commands
const (
	CommandAsk          = "ask"          // browser -> server: question text
	CommandKey          = "key"          // browser -> server: answer to promptKey
	CommandCancelKey    = "cancelKey"    // browser -> server: decline promptKey
	CommandShowResponse = "showResponse" // server -> browser: reply text
	CommandToast        = "toast"        // server -> browser: transient notice
	CommandPromptKey    = "promptKey"    // server -> browser: ask for an API key
	CommandCleared      = "cleared"      // server -> browser: conversation reset
)

// Message is the websocket payload in both directions
type Message struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Client is the part of the orchestrator the web panel drives
type Client interface {
	Send(ctx context.Context, content string, target orchestrator.DisplayTarget, override *mode.Mode) orchestrator.Result
	Clear()
}

// WebServer hosts the browser panel
type WebServer struct {
	port    int
	client  Client
	prompts <-chan credentials.Request

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	pending *credentials.Request

	logger *logging.Logger
}

// New creates a web server. prompts may be nil when no key prompt can occur.
func New(port int, client Client, prompts <-chan credentials.Request) *WebServer {
	return &WebServer{
		port:    port,
		client:  client,
		prompts: prompts,
		conns:   make(map[*websocket.Conn]struct{}),
		logger:  logging.WithComponent("webserver"),
	}
}

// Handler returns the router
func (ws *WebServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(ws.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/", ws.handleHome)
	r.Get("/ws", ws.handleWebSocket)
	r.Post("/api/clear", ws.handleClear)
	return r
}

func (ws *WebServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		ws.logger.Debug("HTTP request",
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// Start serves until ctx is canceled
func (ws *WebServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(ws.port),
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go ws.forwardPrompts(ctx)

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("Web panel listening", "addr", srv.Addr)
		fmt.Printf("Open your browser to http://localhost:%d\n", ws.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws.closeAll()
	return srv.Shutdown(shutdownCtx)
}

// forwardPrompts relays key prompts to every connected browser. The first answer wins.
func (ws *WebServer) forwardPrompts(ctx context.Context) {
	if ws.prompts == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-ws.prompts:
			if !ok {
				return
			}
			ws.mu.Lock()
			ws.pending = &req
			n := len(ws.conns)
			ws.mu.Unlock()

			if n == 0 {
				// Nobody can answer
				ws.answer("", false)
				continue
			}
			ws.broadcast(ctx, Message{Command: CommandPromptKey, Text: req.Message})
		}
	}
}

func (ws *WebServer) answer(secret string, ok bool) bool {
	ws.mu.Lock()
	req := ws.pending
	ws.pending = nil
	ws.mu.Unlock()

	if req == nil {
		return false
	}
	req.Respond(secret, ok)
	return true
}

// Show implements orchestrator.Display for requests that did not come from a browser
func (ws *WebServer) Show(ctx context.Context, target orchestrator.DisplayTarget, text string) {
	command := CommandShowResponse
	if target == orchestrator.TargetToast {
		command = CommandToast
	}
	ws.broadcast(ctx, Message{Command: command, Text: text})
}

func (ws *WebServer) broadcast(ctx context.Context, msg Message) {
	ws.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(ws.conns))
	for c := range ws.conns {
		conns = append(conns, c)
	}
	ws.mu.Unlock()

	for _, c := range conns {
		if err := ws.write(ctx, c, msg); err != nil {
			ws.logger.Debug("Broadcast failed", "command", msg.Command, "error", err)
		}
	}
}

func (ws *WebServer) write(ctx context.Context, c *websocket.Conn, msg Message) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, c, msg)
}

func (ws *WebServer) register(c *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conns[c] = struct{}{}
}

func (ws *WebServer) unregister(c *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.conns, c)
}

func (ws *WebServer) closeAll() {
	ws.mu.Lock()
	conns := ws.conns
	ws.conns = make(map[*websocket.Conn]struct{})
	ws.mu.Unlock()

	for c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	ws.answer("", false)
}

func (ws *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(panelHTML))
}

func (ws *WebServer) handleClear(w http.ResponseWriter, r *http.Request) {
	ws.client.Clear()
	ws.broadcast(r.Context(), Message{Command: CommandCleared})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		ws.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ws.register(conn)
	defer ws.unregister(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requestID := chiMiddleware.GetReqID(r.Context())
	ws.logger.Info("Browser connected", "request_id", requestID)

	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				ws.logger.Warn("WebSocket read error", "request_id", requestID, "error", err)
			}
			return
		}

		switch msg.Command {
		case CommandAsk:
			if msg.Text == "" {
				continue
			}
			inflight.Add(1)
			// Asks run off the read loop so a key answer can still be read
			go func(text string) {
				defer inflight.Done()
				ws.handleAsk(ctx, conn, text)
			}(msg.Text)
		case CommandKey:
			ws.answer(msg.Text, true)
		case CommandCancelKey:
			ws.answer("", false)
		default:
			ws.logger.Debug("Unknown websocket command", "command", msg.Command)
		}
	}
}

func (ws *WebServer) handleAsk(ctx context.Context, conn *websocket.Conn, text string) {
	result := ws.client.Send(ctx, text, orchestrator.TargetCaller, mode.Ptr(mode.Chat))

	reply := Message{Command: CommandShowResponse, Text: result.Text}
	if result.Outcome != orchestrator.Replied {
		reply.Command = CommandToast
	}
	if err := ws.write(ctx, conn, reply); err != nil {
		ws.logger.Debug("Failed to write reply", "request_id", result.RequestID, "error", err)
	}
}
