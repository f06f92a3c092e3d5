package stream

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/httputil"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

const writeTimeout = 30 * time.Second

type sensorMessage struct {
	Type string `json:"type"`
	*sensor.Snapshot
}

// ServeHTTP serves the SSE sensor stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.cfg.TrustProxy)
	if limit := h.limiter.acquire(ip); limit != "" {
		metrics.StreamEvent("rejected")
		h.logger.Warn("stream limit exceeded", "remote_ip", ip, "limit", limit, "current_count", h.limiter.count(ip))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.StreamOpened()
	start := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClosed()
		h.logger.Info("stream disconnected", "remote_ip", ip, "duration_seconds", int(time.Since(start).Seconds()))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := &client{w: w, rc: http.NewResponseController(w), logger: h.logger}

	// The server's WriteTimeout would cut long-lived streams; each write
	// sets its own deadline instead.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered reconnect delay so a restart does not bring every client
	// back at once.
	if err := c.send(fmt.Sprintf("retry: %d\n\n", 3000+rand.Intn(4000))); err != nil {
		h.logger.Warn("stream not flushable", "remote_ip", ip, "error", err)
		return
	}

	updates, latest, unsubscribe := h.subscribe()
	defer unsubscribe()

	if latest != nil {
		if err := c.sendSnapshot(latest); err != nil {
			metrics.StreamEvent("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
	}

	keepalive := time.NewTicker(h.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-updates:
			if err := c.sendSnapshot(snap); err != nil {
				metrics.StreamEvent("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(h.cfg.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.send(":\n\n"); err != nil {
				metrics.StreamEvent("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
