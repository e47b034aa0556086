package http

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/middleware"
)

// NewRouter builds the service router with request logging and user
// authentication applied to every route.
func NewRouter(users *UsersHandler, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(log))

	r.Route("/v1/users", func(r chi.Router) {
		r.Use(middleware.WithUser)
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Get("/data-protection-level", users.GetLevel)
		r.Patch("/data-protection-level", users.SetLevel)

		r.Route("/migration", func(r chi.Router) {
			r.Get("/requests", users.GetMigrationRequests)
			r.Post("/requests", users.HandleMigrationRequest)
			r.Post("/batch-requests", users.HandleBatchMigrationRequests)
			r.Post("/requests/data-protection-level/finalize", users.FinalizeMigration)
		})
	})

	return r
}
