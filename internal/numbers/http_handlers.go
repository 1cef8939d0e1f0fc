package numbers

import (
	"errors"
	"net/http"

	"dialplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the number lifecycle over HTTP.
// Keep these thin: parse/validate input, call the service, return JSON.

type Handlers struct {
	Service *Service
}

func (h Handlers) Provision(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	var req ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Service.Provision(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidNumber):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrAgentUnknown):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrConflict):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "number already bound"})
		default:
			logger.FromGin(c).Error("provision failed", "err", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provisioning failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) Deprovision(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	id := c.Param("binding_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "binding_id required"})
		return
	}

	res, err := h.Service.Deprovision(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "binding not found"})
			return
		}
		logger.FromGin(c).Error("deprovision failed", "binding_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "deprovisioning failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type bindAgentRequest struct {
	AgentID string `json:"agent_id"`
}

func (h Handlers) BindAgent(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	id := c.Param("binding_id")
	var req bindAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	b, err := h.Service.BindAgent(c.Request.Context(), id, req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "binding not found"})
		case errors.Is(err, ErrAgentUnknown):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bind failed"})
		}
		return
	}
	c.JSON(http.StatusOK, b)
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h Handlers) SetEnabled(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	id := c.Param("binding_id")
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "enabled required"})
		return
	}

	b, err := h.Service.SetEnabled(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "binding not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) SetOverrides(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	id := c.Param("binding_id")
	var o BindingOverrides
	if err := c.ShouldBindJSON(&o); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	b, err := h.Service.SetOverrides(c.Request.Context(), id, o)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "binding not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) Get(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	b, err := h.Service.Get(c.Request.Context(), c.Param("binding_id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "binding not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) List(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "numbers not configured"})
		return
	}
	bs, err := h.Service.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bindings": bs})
}
