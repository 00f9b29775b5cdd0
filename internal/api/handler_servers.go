package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rack-leasing-backend/internal/model"
	"rack-leasing-backend/internal/notification"
	"rack-leasing-backend/internal/parse"
)

// loadServer resolves :server_id, answering the request itself on failure.
func (h *Handler) loadServer(c *gin.Context) (*model.Server, bool) {
	serverID, ok := idParam(c, "server_id")
	if !ok {
		return nil, false
	}
	server, err := h.store.GetServer(c.Request.Context(), serverID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return server, true
}

// GetServer handles GET /api/servers/:server_id.
func (h *Handler) GetServer(c *gin.Context) {
	server, ok := h.loadServer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, server)
}

type payRequest struct {
	// RFC3339 timestamp or a relative duration such as "30d".
	PaidUntil string `json:"paid_until" binding:"required"`
}

// PayServer handles POST /api/servers/:server_id/pay.
func (h *Handler) PayServer(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	server, ok := h.loadServer(c)
	if !ok {
		return
	}

	until, err := parse.ParseUntil(req.PaidUntil, h.lifecycle.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.lifecycle.Pay(c.Request.Context(), server, until); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}

// RefreshServer handles POST /api/servers/:server_id/refresh, running one
// status update without waiting for the sweeper.
func (h *Handler) RefreshServer(c *gin.Context) {
	server, ok := h.loadServer(c)
	if !ok {
		return
	}

	changed, err := h.lifecycle.UpdateStatus(c.Request.Context(), server)
	if err != nil {
		respondError(c, err)
		return
	}
	if changed && h.events != nil {
		h.events.Dispatch(c.Request.Context(), notification.Event{ServerID: server.ID, Status: server.Status})
	}
	c.JSON(http.StatusOK, gin.H{"server": server, "changed": changed})
}

// DeleteServer handles DELETE /api/servers/:server_id.
func (h *Handler) DeleteServer(c *gin.Context) {
	server, ok := h.loadServer(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Delete(c.Request.Context(), server); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}
