package calls

import (
	"errors"
	"net/http"
	"strconv"

	"dialplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers expose read-only call records to the management plane.
// All writes go through the state machine; these endpoints never mutate.
type Handlers struct {
	Store Store
}

func (h Handlers) ListRecent(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..500"})
			return
		}
		limit = n
	}

	out, err := h.Store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("call listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetByRoom(c *gin.Context) {
	room := c.Param("room")
	call, err := h.Store.GetByRoom(c.Request.Context(), room)
	if errors.Is(err, ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("call lookup failed", "room", room, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}
