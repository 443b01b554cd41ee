package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// readinessTimeout bounds the time spent on all dependency checks.
const readinessTimeout = 5 * time.Second

// Check is one dependency check used by the readiness endpoint.
type Check struct {
	Name string
	// Critical checks make the service unready when they fail.
	Critical bool
	Probe    func(ctx context.Context) error
}

// Handler serves liveness and readiness endpoints.
type Handler struct {
	service string
	checks  []Check
}

// NewHandler creates a new Handler.
func NewHandler(service string, checks ...Check) *Handler {
	return &Handler{service: service, checks: checks}
}

// RegisterRoutes registers the health routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live handles GET /health.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.service,
	})
}

// Ready handles GET /health/ready. Non-critical failures are reported as
// degraded but keep the service ready, since every lookup has an offline fallback.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Probe(ctx); err != nil {
			results[chk.Name] = err.Error()
			if chk.Critical {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			} else if status == "ok" {
				status = "degraded"
			}
			continue
		}
		results[chk.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.service,
		"checks":  results,
	})
}
