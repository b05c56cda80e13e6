package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/IamTheCarl/psu/driver"
	"github.com/IamTheCarl/psu/logger"
	"github.com/IamTheCarl/psu/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebResponse is sent for every state change of a request.
type WebResponse struct {
	Status  string      `json:"status"` // "processing", "success", "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Opener starts a session with the configured supply.
type Opener func(ctx context.Context) (driver.PowerSupply, error)

// Handler runs remote requests against one supply, one at a time. Each
// request opens its own session and closes it before answering.
type Handler struct {
	Open    Opener
	Timeout time.Duration

	mu sync.Mutex // one session per supply at a time
}

func NewHandler(open Opener) *Handler {
	return &Handler{Open: open, Timeout: 10 * time.Second}
}

// Routes serves the WebSocket at /ws and Prometheus metrics at /metrics.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.Handle("/metrics", monitoring.Handler())
	return mux
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	*websocket.Conn
	wmu sync.Mutex
}

func (c *conn) send(status, message string, data interface{}) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.WriteJSON(WebResponse{Status: status, Message: message, Data: data}); err != nil {
		logger.L().WithError(err).Debug("websocket write")
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().WithError(err).Warn("websocket upgrade")
		return
	}
	c := &conn{Conn: ws}
	defer c.Close()

	log := logger.L().WithField("remote", r.RemoteAddr)
	log.Info("client connected")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("client disconnected")
			return
		}

		var req driver.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send("error", "Invalid JSON", nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handleRequest(r.Context(), c, log, req)
		}()
	}
}

func (h *Handler) handleRequest(ctx context.Context, c *conn, log *logrus.Entry, req driver.Request) {
	if err := req.Validate(); err != nil {
		c.send("error", err.Error(), nil)
		return
	}

	if !h.mu.TryLock() {
		c.send("error", "Power supply is busy", nil)
		return
	}
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	c.send("processing", "Opening power supply session...", nil)

	ps, err := h.Open(ctx)
	if err != nil {
		log.WithError(err).Error("opening power supply")
		c.send("error", err.Error(), nil)
		return
	}

	err = driver.Execute(ctx, ps, req)

	var status *driver.StatusInfo
	if sr, ok := ps.(driver.StatusReporter); ok {
		st := sr.Status()
		status = &st
	}

	if err != nil {
		log.WithError(err).WithField("command", req.Action).Error("request failed")
		c.send("error", err.Error(), status)
		return
	}

	log.WithField("command", req.Action).Info("request done")
	c.send("success", "Done", status)
}
