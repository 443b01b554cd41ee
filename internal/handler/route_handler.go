package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	routeDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-location/internal/response"
)

// RouteHandler handles HTTP requests for route and fare estimation.
type RouteHandler struct {
	service *application.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service *application.RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

// RegisterRoutes registers all route estimation routes on the given router group.
func (h *RouteHandler) RegisterRoutes(r *gin.RouterGroup) {
	routes := r.Group("/api/v1/routes")
	{
		routes.POST("/quote", h.Quote)
		routes.POST("/quotes", h.QuoteAll)
	}
}

// Quote handles POST /api/v1/routes/quote.
func (h *RouteHandler) Quote(c *gin.Context) {
	var req application.ComputeRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ComputeRoute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// QuoteAll handles POST /api/v1/routes/quotes.
func (h *RouteHandler) QuoteAll(c *gin.Context) {
	var req application.ComputeRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	departAt, err := routeDomain.ParseDepartAt(req.DepartAt)
	if err != nil {
		response.Error(c, failure.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.QuoteAll(c.Request.Context(), req.Origin, req.Destination, departAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
