package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/common"
	"github.com/suPer8Hu/medirec/internal/models"
	"github.com/suPer8Hu/medirec/internal/session"
)

type sessionView struct {
	State   string          `json:"state"`
	Loading bool            `json:"loading"`
	UserID  string          `json:"user_id,omitempty"`
	Email   string          `json:"email,omitempty"`
	Profile *models.Profile `json:"profile"`
}

func viewOf(s session.Snapshot) sessionView {
	v := sessionView{State: s.State.String(), Loading: s.IsLoading(), Profile: s.Profile}
	if s.Session != nil {
		v.UserID = s.Session.UserID
		v.Email = s.Session.Email
	}
	return v
}

func (h *Handler) GetSession(c *gin.Context) {
	common.OK(c, viewOf(h.Session.Snapshot()))
}

// SessionEvents streams every session transition as an SSE "session" event,
// starting with the current one.
func (h *Handler) SessionEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	updates, stop := h.Session.Watch()
	defer stop()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				writeJSON("close", gin.H{"type": "close"})
				return
			}
			writeJSON("session", viewOf(snap))
		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})
		case <-ctx.Done():
			return
		}
	}
}
