package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facerec/internal/api/handlers"
	"github.com/your-org/facerec/internal/auth"
)

type RouterConfig struct {
	APIKey string
	// Checks are probed by /readyz in order.
	Checks []handlers.Check
	Store  handlers.PeopleStore
}

// NewRouter builds the worker's ops server. It exposes health, metrics and
// read-only identity store introspection; it never accepts jobs.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())

	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Store != nil {
		v1 := r.Group("/v1")
		v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

		peopleH := handlers.NewPeopleHandler(cfg.Store)
		v1.GET("/people", peopleH.List)
		v1.GET("/stats", peopleH.Stats)
	}

	return r
}
