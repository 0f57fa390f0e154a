package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/logic"
)

// AdminController serves the read-only HTTP API used for operations.
type AdminController struct {
	store  logic.UserRecordStore
	events logic.LedgerEventStore
}

func NewAdminController(store logic.UserRecordStore, events logic.LedgerEventStore) *AdminController {
	return &AdminController{store: store, events: events}
}

// Healthz handles GET /healthz
func (c *AdminController) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetUser handles GET /admin/users/:id
func (c *AdminController) GetUser(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	rec, err := c.store.FindByIdentity(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, rec)
}

// ListVerified handles GET /admin/verified
func (c *AdminController) ListVerified(ctx *gin.Context) {
	recs, err := c.store.ListVerified(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, recs)
}

// Stats handles GET /admin/stats
func (c *AdminController) Stats(ctx *gin.Context) {
	count, total, err := c.store.VerifiedStats(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"verified": count, "total_merit": total})
}

// ListEvents handles GET /admin/events
func (c *AdminController) ListEvents(ctx *gin.Context) {
	limit := 100
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	events, err := c.events.ListEvents(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, events)
}
