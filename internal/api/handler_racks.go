package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rack-leasing-backend/internal/model"
)

// RackResponse represents a rack together with its slot usage.
type RackResponse struct {
	ID        int64     `json:"id"`
	Slots     int       `json:"slots"`
	UsedSlots int64     `json:"used_slots"`
	FreeSlots int64     `json:"free_slots"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRackResponse(r model.Rack, used int64) RackResponse {
	free := int64(r.Slots) - used
	if free < 0 {
		free = 0
	}
	return RackResponse{
		ID:        r.ID,
		Slots:     r.Slots,
		UsedSlots: used,
		FreeSlots: free,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// GetRacks handles GET /api/racks.
func (h *Handler) GetRacks(c *gin.Context) {
	racks, err := h.store.ListRacks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	counts, err := h.store.CountServersByRack(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]RackResponse, 0, len(racks))
	for _, r := range racks {
		responses = append(responses, newRackResponse(r, counts[r.ID]))
	}
	c.JSON(http.StatusOK, responses)
}

type createRackRequest struct {
	Slots int `json:"slots" binding:"required"`
}

// CreateRack handles POST /api/racks.
func (h *Handler) CreateRack(c *gin.Context) {
	var req createRackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	rack, err := h.lifecycle.CreateRack(c.Request.Context(), req.Slots)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRackResponse(*rack, 0))
}

// rackDetailResponse is a rack with the servers it owns.
type rackDetailResponse struct {
	RackResponse
	Servers []model.Server `json:"servers"`
}

// GetRack handles GET /api/racks/:rack_id.
func (h *Handler) GetRack(c *gin.Context) {
	rackID, ok := idParam(c, "rack_id")
	if !ok {
		return
	}

	rack, err := h.store.GetRack(c.Request.Context(), rackID)
	if err != nil {
		respondError(c, err)
		return
	}
	servers, err := h.store.ListServersOwnedBy(c.Request.Context(), rackID)
	if err != nil {
		respondError(c, err)
		return
	}
	if servers == nil {
		servers = []model.Server{}
	}

	c.JSON(http.StatusOK, rackDetailResponse{
		RackResponse: newRackResponse(*rack, int64(len(servers))),
		Servers:      servers,
	})
}

// AddServer handles POST /api/racks/:rack_id/servers.
func (h *Handler) AddServer(c *gin.Context) {
	rackID, ok := idParam(c, "rack_id")
	if !ok {
		return
	}

	rack, err := h.store.GetRack(c.Request.Context(), rackID)
	if err != nil {
		respondError(c, err)
		return
	}
	server, err := h.lifecycle.AddServer(c.Request.Context(), rack)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, server)
}
