package webhook

import (
	"io"
	"net/http"

	"dialplane/internal/calls"
	"dialplane/internal/event"
	"dialplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20 // webhook payloads are small; cap reads defensively

// Handler is the inbound edge for platform webhook deliveries.
//
// Contract with the platform: any 2xx acknowledges the delivery and stops
// retries. Unparseable payloads are therefore acknowledged (they would never
// parse on redelivery either); only infrastructure failures return 5xx so the
// platform retries.

type Handler struct {
	Verifier *Verifier
	Machine  *calls.StateMachine
}

func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Warn("webhook body read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "body read failed"})
		return
	}

	if h.Verifier != nil {
		if err := h.Verifier.Verify(c.GetHeader("Authorization"), body); err != nil {
			log.Warn("webhook verification failed", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "verification failed"})
			return
		}
	}

	e := event.Normalize(body)

	out, err := h.Machine.Handle(c.Request.Context(), e)
	if err != nil {
		// Dedup/store outages must surface as 5xx so the platform redelivers.
		log.Error("webhook processing failed", "event_id", e.ID, "event_type", e.Type, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	log.Info("webhook processed",
		"event_id", e.ID,
		"event_type", e.Type,
		"room", e.RoomName,
		"first_seen", out.FirstSeen,
		"ignored_reason", out.IgnoredReason,
		"dispatch_attempted", out.DispatchAttempted,
		"dispatch_succeeded", out.DispatchSucceeded,
	)
	c.JSON(http.StatusOK, out)
}
