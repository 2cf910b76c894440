package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ytqdgo/internal/download"
)

const (
	broadcastBuffer = 256
	writeTimeout    = 10 * time.Second
	readTimeout     = 60 * time.Second
)

// Hub pushes queue events to every connected browser. It satisfies the
// controller's Notifier; sends never block the caller.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type ProgressUpdate struct {
	Type          string `json:"type"`
	ItemID        string `json:"itemId"`
	Progress      int    `json:"progress"`
	DownloadSpeed string `json:"downloadSpeed"`
	Status        string `json:"status"`
}

type StatusUpdate struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type FinishedUpdate struct {
	Type    string `json:"type"`
	ItemID  string `json:"itemId"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func NewProgressUpdate(p download.Progress) *ProgressUpdate {
	return &ProgressUpdate{
		Type:          "progress",
		ItemID:        p.ItemId,
		Progress:      p.Percent,
		DownloadSpeed: p.Speed,
		Status:        p.Status,
	}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run writes queued messages to clients until ctx is done, then closes them.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// StartTicker nudges clients to refresh every interval.
func (h *Hub) StartTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.BroadcastUpdate()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) BroadcastUpdate() {
	h.send([]byte(`{"type": "update"}`))
}

func (h *Hub) BroadcastProgress(update *ProgressUpdate) {
	h.sendJSON(update)
}

func (h *Hub) QueueChanged(int) {
	h.BroadcastUpdate()
}

func (h *Hub) Progress(p download.Progress) {
	h.BroadcastProgress(NewProgressUpdate(p))
}

func (h *Hub) Status(message string) {
	h.sendJSON(&StatusUpdate{Type: "status", Message: message})
}

func (h *Hub) Finished(r download.Report) {
	h.sendJSON(&FinishedUpdate{
		Type:    "finished",
		ItemID:  r.ItemId,
		Success: r.Success,
		Message: r.Message,
		Path:    r.OutputPath,
	})
}

func (h *Hub) sendJSON(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal websocket message", "error", err)
		return
	}
	h.send(msg)
}

func (h *Hub) send(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("Websocket buffer full, dropping message")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) WsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	h.logger.Info("Client connected", "remote_addr", r.RemoteAddr)
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("Client disconnected", "remote_addr", r.RemoteAddr)
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WS read error", "error", err)
			}
			break
		}
	}
}
