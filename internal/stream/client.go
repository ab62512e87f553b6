package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
)

// writeDeadline bounds each individual SSE write.
const writeDeadline = 30 * time.Second

// client writes events to one SSE connection and counts what it sent.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	buf          bytes.Buffer
	messagesSent int64
	bytesSent    int64
}

// sendEvent writes v as one event: an optional "id:" line followed by a
// single "data:" line of JSON.
func (c *client) sendEvent(id string, v any) error {
	c.buf.Reset()
	if id != "" {
		fmt.Fprintf(&c.buf, "id: %s\n", id)
	}
	c.buf.WriteString("data: ")
	if err := json.NewEncoder(&c.buf).Encode(v); err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	// Encode ends the JSON with '\n'; one more terminates the event.
	c.buf.WriteByte('\n')

	n, err := c.write(c.buf.Bytes())
	if err != nil {
		return err
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendJSON sends v as an event without an id.
func (c *client) sendJSON(v any) error { return c.sendEvent("", v) }

// sendKeepalive sends an SSE comment line to keep the connection alive.
func (c *client) sendKeepalive() error {
	n, err := c.write([]byte(":\n\n"))
	if err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendRetry sets the client's reconnection delay.
func (c *client) sendRetry(d time.Duration) error {
	n, err := c.write(fmt.Appendf(nil, "retry: %d\n\n", d.Milliseconds()))
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}

// write sends p under a fresh write deadline and flushes it.
func (c *client) write(p []byte) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := c.w.Write(p)
	c.bytesSent += int64(n)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	return n, nil
}
