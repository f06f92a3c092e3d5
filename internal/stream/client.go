package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

// client writes to one SSE connection.
type client struct {
	w      io.Writer
	rc     *http.ResponseController
	logger *slog.Logger
}

func (c *client) sendSnapshot(snap *sensor.Snapshot) error {
	data, err := json.Marshal(sensorMessage{Type: "sensor", Snapshot: snap})
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.send(fmt.Sprintf("event: sensor\ndata: %s\n\n", data))
}

// send writes one raw SSE frame and flushes it.
func (c *client) send(frame string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	if _, err := io.WriteString(c.w, frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return c.rc.Flush()
}
