// Package rest wires the HTTP surface of the graph store: chi routing,
// middleware, and the resource handlers.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"rhyolite-backend/internal/service/graph"
	"rhyolite-backend/internal/service/registry"
	"rhyolite-backend/pkg/observability"
)

// HealthChecker reports whether the backing store is ready to serve.
type HealthChecker interface {
	SchemaReady(ctx context.Context) (bool, error)
}

// Router creates and configures the HTTP router.
type Router struct {
	registry *registry.Service
	graph    *graph.Service
	health   HealthChecker
	logger   *zap.Logger
	metrics  *observability.Collector

	corsAllowOrigins []string
}

// NewRouter creates a new router instance. metrics may be nil when the
// metrics endpoint is disabled.
func NewRouter(
	registrySvc *registry.Service,
	graphSvc *graph.Service,
	health HealthChecker,
	logger *zap.Logger,
	metrics *observability.Collector,
	corsAllowOrigins []string,
) *Router {
	return &Router{
		registry:         registrySvc,
		graph:            graphSvc,
		health:           health,
		logger:           logger,
		metrics:          metrics,
		corsAllowOrigins: corsAllowOrigins,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	if rt.metrics != nil {
		router.Use(rt.metrics.Middleware)
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := NewHealthHandler(rt.health, rt.logger)
	router.Get("/health", healthHandler.Check)

	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	kindHandler := NewKindHandler(rt.registry, rt.logger)
	router.Post("/kind", kindHandler.Create)
	router.Get("/kind/{name}", kindHandler.Get)
	router.Delete("/kind/{name}", kindHandler.Delete)
	router.Get("/kinds", kindHandler.List)

	router.Post("/edges-kind", kindHandler.CreateEdgeKind)
	router.Delete("/edges-kind/{from}/{to}/{relation}", kindHandler.DeleteEdgeKind)
	router.Get("/edges-kinds", kindHandler.ListEdgeKinds)
	router.Get("/edges-kinds/{from}", kindHandler.ListEdgeKinds)
	router.Get("/edges-kinds/{from}/{to}", kindHandler.ListEdgeKinds)
	router.Get("/edges-kinds/{from}/{to}/{relation}", kindHandler.GetEdgeKind)

	nodeHandler := NewNodeHandler(rt.graph, rt.logger, rt.metrics)
	router.Post("/node", nodeHandler.Create)
	router.Get("/node/{id}", nodeHandler.Get)
	router.Put("/node/{id}", nodeHandler.Update)
	router.Delete("/node/{id}", nodeHandler.Delete)
	router.Post("/nodes/search", nodeHandler.Search)

	edgeHandler := NewEdgeHandler(rt.graph, rt.logger, rt.metrics)
	router.Post("/edge", edgeHandler.Create)
	router.Delete("/edge/{from}/{to}/{relation}", edgeHandler.Delete)
	router.Get("/outgoing-edges/{id}", edgeHandler.Outgoing)
	router.Get("/incoming-edges/{id}", edgeHandler.Incoming)
	router.Get("/edges/{from}/{to}", edgeHandler.Between)

	attachmentHandler := NewAttachmentHandler(rt.graph, rt.logger)
	router.Post("/attachment", attachmentHandler.Create)
	router.Get("/attachment/{id}", attachmentHandler.Download)
	router.Delete("/attachment/{id}", attachmentHandler.Delete)
	router.Get("/attachments/{nodeID}", attachmentHandler.List)

	schemaHandler := NewSchemaHandler(rt.registry, rt.logger)
	router.Get("/schema", schemaHandler.Dump)
	router.Post("/schema", schemaHandler.Push)
	router.Post("/reset", schemaHandler.Reset)

	return router
}
