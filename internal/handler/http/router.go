package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      string
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, payrollHandler PayrollHandler) (*chi.Mux, error) {
	r := chi.NewRouter()

	rateLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	if cfg.Logger != nil {
		r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication. EventSource cannot send headers, so the
		// token may also arrive as ?jwt=.
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired)

			r.Route("/payroll-runs", func(r chi.Router) {
				r.Get("/events", payrollHandler.Events)

				r.Group(func(r chi.Router) {
					r.Use(rateLimit)

					r.Get("/", payrollHandler.ListRuns)
					r.Post("/", payrollHandler.CreateRun)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", payrollHandler.GetRun)
						r.Put("/", payrollHandler.UpdateRun)
						r.Delete("/", payrollHandler.DeleteRun)
						r.Put("/employees", payrollHandler.UpdateEmployees)
						r.Get("/register.pdf", payrollHandler.RegisterPDF)

						r.Post("/submit", payrollHandler.SubmitForApproval)
						r.Post("/approve", payrollHandler.Approve)
						r.Post("/reject", payrollHandler.Reject)

						r.With(middleware.RequireRole(middleware.RoleOwner, middleware.RoleManager)).
							Post("/pay", payrollHandler.MarkPaid)
					})
				})
			})
		})
	})

	return r, nil
}
