package http

import (
	_ "cidrvend/docs"
	"cidrvend/internal/api/http/identity"
	"cidrvend/internal/api/http/logger"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// @title cidrvend API
// @version 1.0
// @description Vends non-overlapping VPC CIDR blocks from a master pool
// @BasePath /
// @schemes https

type RouterConfig struct {
	// TrustDomain enables SPIFFE identity from client certificates. Leave
	// empty when identity is attached upstream (API Gateway).
	TrustDomain string

	AuditLogger logger.Logger
	Component   string
	Node        string

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

func NewApiRouter(handler *RequestHandler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.RequestID)
	if cfg.TrustDomain != "" {
		r.Use(identity.SpiffeMiddleware(cfg.TrustDomain))
	}
	if cfg.AuditLogger != nil {
		r.Use(logger.LoggerMiddleware(cfg.AuditLogger, cfg.Component, cfg.Node))
	}
	r.Use(middleware.Recoverer)

	// == swagger ==
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// == ops ==
	r.Get("/healthz", handler.Healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// == vpc ==
	r.Post("/vpc", handler.AllocateBlock)  // allocate block
	r.Patch("/vpc", handler.BindBlock)     // bind block to vpc
	r.Delete("/vpc", handler.ReleaseBlock) // release block
	r.Get("/vpc", handler.LookupBlock)     // lookup block

	return r
}
