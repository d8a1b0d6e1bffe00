package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"petnotify/internal/realtime"
	logx "petnotify/pkg/logx"
)

// handleStream subscribes the caller to their own topic and relays frames
// as Server-Sent Events until the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	user := caller(c)
	topic := realtime.Topic(user)
	ch, cancel := s.deps.Hub.Subscribe(topic)
	defer cancel()

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"topic": topic})
	c.Writer.Flush()

	s.log.Debug("realtime session opened", logx.Int64("user_id", int64(user)))
	defer s.log.Debug("realtime session closed", logx.Int64("user_id", int64(user)))

	hb := time.NewTicker(s.cfg.Heartbeat)
	defer hb.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(m.Event, string(m.Data))
			c.Writer.Flush()
		case <-hb.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
