package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
	"github.com/kozaktomas/face-auth/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.services.Auth)
	employeesHandler := handlers.NewEmployeesHandler(s.services.Employees, s.services.Biometrics)
	biometricsHandler := handlers.NewBiometricsHandler(s.services.Biometrics)

	// Token endpoints (no auth required)
	s.router.Post("/sign_in", authHandler.SignIn)
	s.router.Post("/refresh_tokens", authHandler.RefreshTokens)
	s.router.Post("/sign_out", authHandler.SignOut)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Everything else requires a bearer access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.services.Auth.Authority()))

			r.Get("/auth/status", authHandler.Status)

			// Employees
			r.Get("/employees", employeesHandler.List)
			r.Post("/employees", employeesHandler.Create)
			r.Get("/employees/{id}", employeesHandler.Get)
			r.Put("/employees/{id}", employeesHandler.Update)
			r.Delete("/employees/{id}", employeesHandler.Delete)

			// Biometrics
			r.Post("/employees/{id}/biometrics", biometricsHandler.Enroll)
			r.Put("/employees/{id}/biometrics", biometricsHandler.Replace)
			r.Delete("/employees/{id}/biometrics", biometricsHandler.Reset)
			r.Post("/employees/{id}/biometrics/verify", biometricsHandler.Verify)
			r.Post("/biometrics/identify", biometricsHandler.Identify)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
