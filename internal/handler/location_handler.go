package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	locationDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/response"
)

// LocationHandler handles HTTP requests for autocomplete, search and resolution.
type LocationHandler struct {
	service *application.LocationService
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(service *application.LocationService) *LocationHandler {
	return &LocationHandler{service: service}
}

// RegisterRoutes registers all location routes on the given router group.
func (h *LocationHandler) RegisterRoutes(r *gin.RouterGroup) {
	locations := r.Group("/api/v1/locations")
	{
		locations.GET("/suggest", h.Suggest)
		locations.GET("/search", h.Search)
		locations.POST("/resolve", h.Resolve)
		locations.GET("/history", h.ListHistory)
		locations.DELETE("/history", h.ClearHistory)
	}
}

// Suggest handles GET /api/v1/locations/suggest.
func (h *LocationHandler) Suggest(c *gin.Context) {
	result, err := h.service.Suggest(c.Request.Context(), c.Query("q"), parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Search handles GET /api/v1/locations/search.
func (h *LocationHandler) Search(c *gin.Context) {
	result, err := h.service.Search(c.Request.Context(), c.Query("q"), parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Resolve handles POST /api/v1/locations/resolve.
func (h *LocationHandler) Resolve(c *gin.Context) {
	var sel locationDomain.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	loc, err := h.service.Resolve(c.Request.Context(), sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, loc)
}

// ListHistory handles GET /api/v1/locations/history.
func (h *LocationHandler) ListHistory(c *gin.Context) {
	entries, err := h.service.History().List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// ClearHistory handles DELETE /api/v1/locations/history.
func (h *LocationHandler) ClearHistory(c *gin.Context) {
	if err := h.service.History().Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// parseLimit reads the optional limit query parameter. Zero means the
// service default.
func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
