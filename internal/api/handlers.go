/**
 * @description
 * This file contains the HTTP handlers for the claims-service API endpoints.
 * Handlers parse incoming requests, call the application service, and map
 * sentinel errors onto HTTP status codes. They are the bridge between the web
 * layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrisafe/claims-service/internal/app"
	"github.com/agrisafe/claims-service/internal/domain"
	"github.com/agrisafe/claims-service/internal/store"
)

// ClaimHandlers holds the application service and auth settings the handlers use.
type ClaimHandlers struct {
	service   *app.Service
	jwtSecret string
	jwtTTL    time.Duration
}

// NewClaimHandlers creates a new instance of ClaimHandlers.
func NewClaimHandlers(service *app.Service, jwtSecret string, jwtTTL time.Duration) *ClaimHandlers {
	return &ClaimHandlers{service: service, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

// claimResponse is the body returned for a successful claim. Dates are
// formatted as YYYY-MM-DD calendar dates.
type claimResponse struct {
	Message          string    `json:"message"`
	RecommendationID int64     `json:"recommendation_id"`
	ShopID           int64     `json:"shop_id"`
	ClaimedAt        time.Time `json:"claimed_at"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	MaxTreatmentDays int       `json:"max_treatment_days"`
	Notes            string    `json:"notes"`
	WhatsappSent     bool      `json:"whatsapp_sent"`
	WhatsappMessage  string    `json:"whatsapp_message"`
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	ShopID  int64        `json:"shop_id"`
	Shop    *domain.Shop `json:"shop,omitempty"`
}

// ClaimRecommendationHandler handles POST /recommendations/{id}/claim.
func (h *ClaimHandlers) ClaimRecommendationHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := GetShopID(r.Context())
	if !ok {
		http.Error(w, "Could not get shop ID from context", http.StatusInternalServerError)
		return
	}

	recommendationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || recommendationID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=claim outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.ClaimRecommendation(r.Context(), recommendationID, shopID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=claim outcome=failed recommendation_id=%d shop_id=%d err=%v", recommendationID, shopID, err)
		switch {
		case errors.Is(err, store.ErrRecommendationNotFound):
			h.writeError(w, http.StatusNotFound, "Recommendation not found")
		case errors.Is(err, app.ErrAlreadyClaimed):
			h.writeError(w, http.StatusBadRequest, "Recommendation has already been claimed by another shop")
		case errors.Is(err, app.ErrInvalidStartDate):
			h.writeError(w, http.StatusBadRequest, "start_date must be a valid date in YYYY-MM-DD format")
		case errors.Is(err, app.ErrNoRecommendationItems), errors.Is(err, domain.ErrInvalidTreatmentPlan):
			h.writeError(w, http.StatusBadRequest, "Recommendation has no valid treatment items")
		case errors.Is(err, app.ErrClaimRateLimited):
			h.writeError(w, http.StatusTooManyRequests, "Too many claim attempts. Please try again shortly.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Failed to claim recommendation")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, claimResponse{
		Message:          "Recommendation claimed successfully",
		RecommendationID: result.RecommendationID,
		ShopID:           result.ShopID,
		ClaimedAt:        result.ClaimedAt,
		StartDate:        result.StartDate.Format(domain.DateLayout),
		EndDate:          result.EndDate.Format(domain.DateLayout),
		MaxTreatmentDays: result.MaxTreatmentDays,
		Notes:            result.Notes,
		WhatsappSent:     result.WhatsappSent,
		WhatsappMessage:  result.WhatsappMessage,
	})
}

// ShopSignupHandler handles POST /shops/signup.
func (h *ClaimHandlers) ShopSignupHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ShopSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shopID, err := h.service.RegisterShop(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMobileAlreadyRegistered):
			h.writeError(w, http.StatusConflict, "Mobile number is already registered")
		case errors.Is(err, app.ErrMissingSignupField),
			errors.Is(err, app.ErrInvalidMobileNumber),
			errors.Is(err, app.ErrWeakPassword):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=signup outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to register shop")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, authResponse{
		Message: "Shop registered successfully",
		ShopID:  shopID,
	})
}

// ShopLoginHandler handles POST /shops/login. On success it issues an HS256
// token carrying the shop ID.
func (h *ClaimHandlers) ShopLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ShopLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shop, err := h.service.AuthenticateShop(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredentials):
			h.writeError(w, http.StatusUnauthorized, "Invalid mobile number or password")
		case errors.Is(err, app.ErrShopDeactivated):
			h.writeError(w, http.StatusForbidden, "Shop account is deactivated")
		default:
			log.Printf("level=error component=api endpoint=login outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	token, err := IssueShopToken(h.jwtSecret, shop.ID, h.jwtTTL)
	if err != nil {
		log.Printf("level=error component=api endpoint=login msg=\"token issuance failed\" shop_id=%d err=%v", shop.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to issue session token")
		return
	}

	shop.PasswordHash = ""
	h.writeJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   token,
		ShopID:  shop.ID,
		Shop:    shop,
	})
}

// GetShopProfileHandler handles GET /shops/profile.
func (h *ClaimHandlers) GetShopProfileHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := GetShopID(r.Context())
	if !ok {
		http.Error(w, "Could not get shop ID from context", http.StatusInternalServerError)
		return
	}

	shop, err := h.service.GetShopProfile(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, store.ErrShopNotFound) {
			h.writeError(w, http.StatusNotFound, "Shop not found")
			return
		}
		log.Printf("level=error component=api endpoint=profile outcome=failed shop_id=%d err=%v", shopID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	h.writeJSON(w, http.StatusOK, shop)
}

// UpdateShopProfileHandler handles PUT /shops/profile.
func (h *ClaimHandlers) UpdateShopProfileHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := GetShopID(r.Context())
	if !ok {
		http.Error(w, "Could not get shop ID from context", http.StatusInternalServerError)
		return
	}

	var update domain.ShopProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateShopProfile(r.Context(), shopID, update); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidMobileNumber):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrShopNotFound):
			h.writeError(w, http.StatusNotFound, "Shop not found")
		case errors.Is(err, store.ErrMobileAlreadyRegistered):
			h.writeError(w, http.StatusConflict, "Mobile number is already registered")
		default:
			log.Printf("level=error component=api endpoint=profile_update outcome=failed shop_id=%d err=%v", shopID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

// GetShopStatisticsHandler handles GET /shops/statistics.
func (h *ClaimHandlers) GetShopStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := GetShopID(r.Context())
	if !ok {
		http.Error(w, "Could not get shop ID from context", http.StatusInternalServerError)
		return
	}

	stats, err := h.service.GetShopStatistics(r.Context(), shopID)
	if err != nil {
		log.Printf("level=error component=api endpoint=statistics outcome=failed shop_id=%d err=%v", shopID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// ListClaimedRecommendationsHandler handles GET /shops/claims.
func (h *ClaimHandlers) ListClaimedRecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := GetShopID(r.Context())
	if !ok {
		http.Error(w, "Could not get shop ID from context", http.StatusInternalServerError)
		return
	}

	opts := domain.ClaimedListOptions{
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 10),
		AnimalType: r.URL.Query().Get("animal_type"),
	}
	if from := r.URL.Query().Get("from_date"); from != "" {
		parsed, err := domain.ParseDate(from)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "from_date must be a valid date in YYYY-MM-DD format")
			return
		}
		opts.FromDate = &parsed
	}
	if to := r.URL.Query().Get("to_date"); to != "" {
		parsed, err := domain.ParseDate(to)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "to_date must be a valid date in YYYY-MM-DD format")
			return
		}
		opts.ToDate = &parsed
	}

	page, err := h.service.ListClaimedRecommendations(r.Context(), shopID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=claims_list outcome=failed shop_id=%d err=%v", shopID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load claimed recommendations")
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// GetRecommendationDetailHandler handles GET /recommendations/{id}.
func (h *ClaimHandlers) GetRecommendationDetailHandler(w http.ResponseWriter, r *http.Request) {
	recommendationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || recommendationID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	detail, err := h.service.GetRecommendationDetail(r.Context(), recommendationID)
	if err != nil {
		if errors.Is(err, store.ErrRecommendationNotFound) {
			h.writeError(w, http.StatusNotFound, "Recommendation not found")
			return
		}
		log.Printf("level=error component=api endpoint=recommendation_detail outcome=failed recommendation_id=%d err=%v", recommendationID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load recommendation")
		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

// SearchUnclaimedRecommendationsHandler handles GET /recommendations/search.
func (h *ClaimHandlers) SearchUnclaimedRecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.UnclaimedSearchOptions{
		Query:      r.URL.Query().Get("query"),
		Pincode:    r.URL.Query().Get("pincode"),
		AnimalType: r.URL.Query().Get("animal_type"),
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 10),
	}

	page, err := h.service.SearchUnclaimedRecommendations(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=unclaimed_search outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to search recommendations")
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// writeJSON is a helper for writing JSON responses.
func (h *ClaimHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *ClaimHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
