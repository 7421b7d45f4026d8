/**
 * @description
 * This file sets up the HTTP router for the claims-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, panic recovery, CORS, and shop authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for chi.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// ClaimRoutes creates and returns a new router for the claims service.
func ClaimRoutes(h *ClaimHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints
	r.Post("/shops/signup", h.ShopSignupHandler)
	r.Post("/shops/login", h.ShopLoginHandler)

	// Group routes that require shop authentication.
	r.Group(func(r chi.Router) {
		r.Use(ShopAuthMiddleware(jwtSecret))

		r.Post("/recommendations/{id}/claim", h.ClaimRecommendationHandler)
		r.Get("/recommendations/search", h.SearchUnclaimedRecommendationsHandler)
		r.Get("/recommendations/{id}", h.GetRecommendationDetailHandler)

		r.Get("/shops/profile", h.GetShopProfileHandler)
		r.Put("/shops/profile", h.UpdateShopProfileHandler)
		r.Get("/shops/statistics", h.GetShopStatisticsHandler)
		r.Get("/shops/claims", h.ListClaimedRecommendationsHandler)
	})

	return r
}
