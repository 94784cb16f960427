// Package httpapi composes the HTTP surface: middleware chain, health and
// metrics endpoints, and the authenticated family-scoped API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "famledger/internal/audit/handler"
	dangerhandler "famledger/internal/danger/handler"
	permissionhandler "famledger/internal/permission/handler"
	"famledger/pkg/platform/middleware/auth"
	"famledger/pkg/platform/middleware/metadata"
	"famledger/pkg/platform/middleware/request"
	"famledger/pkg/platform/middleware/requesttime"
)

// Dependencies carries everything the router composes.
type Dependencies struct {
	Logger   *slog.Logger
	Resolver auth.ActorResolver

	Danger      *dangerhandler.Handler
	Audit       *audithandler.Handler
	Permissions *permissionhandler.Handler
}

// NewRouter builds the full HTTP handler. Health and metrics bypass
// authentication; everything else requires a bearer token.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(deps.Resolver, deps.Logger))

		deps.Danger.Register(r)
		deps.Audit.Register(r)
		deps.Permissions.Register(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
