package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/records/internal/record"
	"github.com/gogotex/records/internal/record/events"
	"github.com/gogotex/records/internal/record/service"
	"github.com/gogotex/records/internal/snapshot"
	"github.com/gogotex/records/pkg/logger"
	"github.com/gogotex/records/pkg/middleware"
)

// Handler maps the record operations onto JSON over HTTP. Routes must sit
// behind middleware.AuthMiddleware: the caller's owner identity always comes
// from the verified token.
type Handler struct {
	svc      service.Service
	hub      *events.Hub
	exporter *snapshot.Exporter
	now      func() time.Time
}

// NewHandler builds a handler. hub and exporter are optional.
func NewHandler(svc service.Service, hub *events.Hub, exporter *snapshot.Exporter) *Handler {
	return &Handler{svc: svc, hub: hub, exporter: exporter, now: time.Now}
}

type recordRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Register adds the record routes to rg.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.GET("/records", h.List)
	rg.POST("/records", h.Create)
	rg.GET("/records/:id", h.Get)
	rg.PUT("/records/:id", h.Update)
	rg.DELETE("/records/:id", h.Delete)
	rg.GET("/owners/:owner/records/:id", h.GetForOwner)
	rg.GET("/records/events", h.Events)
	rg.POST("/records/snapshot", h.Snapshot)
}

func (h *Handler) clock() uint64 {
	return uint64(h.now().Unix())
}

// owner aborts with 401 when the auth middleware did not run.
func owner(c *gin.Context) (string, bool) {
	o, ok := middleware.Owner(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return o, ok
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) Create(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), o, req.Title, req.Content, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) List(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), o)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*record.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": list})
}

func (h *Handler) Get(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), o, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetForOwner serves GetRecord with an explicit owner. Cross-owner reads are
// not supported, so any owner other than the caller is reported as absent.
func (h *Handler) GetForOwner(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if c.Param("owner") != o {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), o, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), o, id, req.Title, req.Content, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), o, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events upgrades to a websocket carrying the caller's record events.
func (h *Handler) Events(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event feed disabled"})
		return
	}
	h.hub.ServeWs(c.Writer, c.Request, o)
}

// Snapshot exports the caller's records to object storage.
func (h *Handler) Snapshot(c *gin.Context) {
	o, ok := owner(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": snapshot.ErrNoObjectStore.Error()})
		return
	}
	res, err := h.exporter.Export(c.Request.Context(), o)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoObjectStore) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}
