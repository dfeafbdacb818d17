package ops

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visiocall/backend/internal/calls"
	"github.com/visiocall/backend/pkg/response"
)

// Handler serves the read-only operational surface. None of these routes
// are part of the signaling protocol.
type Handler struct {
	store *calls.Store
}

// NewHandler creates an ops handler over the call table.
func NewHandler(store *calls.Store) *Handler {
	return &Handler{store: store}
}

// Health handles GET /health: process liveness plus the live-session count.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "calls": h.store.Len()})
}

// GetCall handles GET /calls/:code: existence, status and member count for
// one code. The room key is never exposed here.
func (h *Handler) GetCall(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	snap, ok := h.store.Get(code)
	if !ok {
		response.NotFound(c, "call not found")
		return
	}
	response.OK(c, gin.H{
		"code":              snap.Code,
		"status":            snap.Status,
		"participant_count": snap.ParticipantCount,
	})
}

// ListCalls handles GET /debug/calls: full enumeration of live sessions.
// Only registered when debug endpoints are enabled; exposing this without
// access control would leak every joinable code.
func (h *Handler) ListCalls(c *gin.Context) {
	list := make([]calls.Snapshot, 0)
	h.store.ForEachSnapshot(func(snap calls.Snapshot) {
		list = append(list, snap)
	})
	response.OK(c, gin.H{"calls": list})
}
