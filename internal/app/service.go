/**
 * @description
 * This file contains the core business logic for the claims-service. The `Service`
 * struct orchestrates the claim workflow, coordinating between the database
 * repository, the WhatsApp gateway client, and the message broker.
 *
 * Key features:
 * - Implements the claim use case: validate, schedule, atomically claim, notify.
 * - Mutual exclusion for the claim transition is delegated entirely to the
 *   repository's conditional update; this service never takes a lock.
 * - The claim commits and its database transaction closes before any
 *   notification I/O begins; notification outcomes are reported, never raised.
 * - Publishes a claim event to RabbitMQ for asynchronous consumers, best effort.
 *
 * @dependencies
 * - context, errors, fmt, log, regexp, time: Standard Go libraries.
 * - golang.org/x/crypto/bcrypt: Shop password hashing.
 * - github.com/google/uuid: Claim event identifiers.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisafe/claims-service/internal/domain"
	"github.com/agrisafe/claims-service/internal/store"
	"github.com/agrisafe/claims-service/pkg/rabbitmq"
)

var (
	ErrInvalidStartDate      = errors.New("start date must be a valid YYYY-MM-DD calendar date")
	ErrAlreadyClaimed        = errors.New("recommendation already claimed")
	ErrNoRecommendationItems = errors.New("recommendation has no items")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrShopDeactivated       = errors.New("shop account is deactivated")
	ErrInvalidMobileNumber   = errors.New("invalid mobile number format")
	ErrWeakPassword          = errors.New("password must be at least 6 characters long")
	ErrMissingSignupField    = errors.New("missing required signup field")
	ErrClaimRateLimited      = errors.New("too many claim attempts")
)

var mobilePattern = regexp.MustCompile(`^[+]?[1-9]\d{1,14}$`)

const maxClaimsPerPage = 50

// Notifier delivers the post-claim farmer notification. Implementations must
// never fail the caller; all outcomes are folded into (delivered, detail).
type Notifier interface {
	Send(ctx context.Context, farmerMobile, farmerName string, items []domain.RecommendationItem, startDate, endDate time.Time) (bool, string)
}

// RateLimiter bounds how often a subject may perform an action within a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for recommendation claims.
type Service struct {
	repo          store.Repository
	notifier      Notifier
	eventProducer rabbitmq.Publisher
	eventExchange string

	claimRateLimiter        RateLimiter
	claimRateLimitPerMinute int
}

// NewService creates a new claims service instance.
func NewService(repo store.Repository, notifier Notifier, producer rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		notifier:      notifier,
		eventProducer: producer,
		eventExchange: eventExchange,
	}
}

// SetClaimRateLimiter enables distributed claim rate limiting.
func (s *Service) SetClaimRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.claimRateLimiter = limiter
	s.claimRateLimitPerMinute = limitPerMinute
}

// ClaimRecommendation executes the claim workflow for one recommendation on
// behalf of an authenticated shop.
//
// The conditional update inside ClaimRecommendationWithSchedule is the
// authoritative conflict check; the earlier read is only an optimization that
// avoids scheduling work for recommendations that are visibly taken.
func (s *Service) ClaimRecommendation(ctx context.Context, recommendationID, shopID int64, req domain.ClaimRequest) (*domain.ClaimResult, error) {
	if s.claimRateLimiter != nil && s.claimRateLimitPerMinute > 0 {
		count, retryAfter, err := s.claimRateLimiter.ConsumeRateLimit(ctx, "claim", fmt.Sprintf("shop:%d", shopID), s.claimRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=app op=claim msg=\"rate limiter unavailable; allowing request\" shop_id=%d err=%v", shopID, err)
		} else if count > s.claimRateLimitPerMinute {
			log.Printf("level=warn component=app op=claim outcome=rate_limited shop_id=%d retry_after=%d", shopID, retryAfter)
			return nil, ErrClaimRateLimited
		}
	}

	startDate, err := domain.ParseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidStartDate
	}

	recommendation, err := s.repo.FindRecommendationByID(ctx, recommendationID)
	if err != nil {
		return nil, err
	}
	if recommendation.IsClaimed {
		return nil, ErrAlreadyClaimed
	}

	items, err := s.repo.FindItemsByRecommendationID(ctx, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("load recommendation items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoRecommendationItems
	}

	schedule, err := domain.ComputeTreatmentSchedule(startDate, items)
	if err != nil {
		return nil, err
	}

	// The claim flip and the item-date writes commit in a single database
	// transaction, and that transaction is fully released before any
	// notification I/O below.
	claimedAt, claimed, err := s.repo.ClaimRecommendationWithSchedule(ctx, recommendationID, shopID, req.Notes, schedule)
	if err != nil {
		return nil, fmt.Errorf("claim recommendation: %w", err)
	}
	if !claimed {
		// Lost the race to another shop between the read above and the update.
		return nil, ErrAlreadyClaimed
	}

	log.Printf("level=info component=app op=claim outcome=claimed recommendation_id=%d shop_id=%d max_treatment_days=%d",
		recommendationID, shopID, schedule.MaxTreatmentDays)

	result := &domain.ClaimResult{
		RecommendationID: recommendationID,
		ShopID:           shopID,
		ClaimedAt:        claimedAt,
		StartDate:        schedule.StartDate,
		EndDate:          schedule.EndDate,
		MaxTreatmentDays: schedule.MaxTreatmentDays,
		Notes:            req.Notes,
	}

	result.WhatsappSent, result.WhatsappMessage = s.notifyFarmer(ctx, recommendation.FarmerID, items, schedule)

	s.publishClaimEvent(ctx, recommendation, result)

	return result, nil
}

// notifyFarmer looks up the farmer and dispatches the WhatsApp summary. Every
// failure mode degrades to a reported detail string; nothing here can affect
// the already-committed claim.
func (s *Service) notifyFarmer(ctx context.Context, farmerID int64, items []domain.RecommendationItem, schedule *domain.TreatmentSchedule) (bool, string) {
	if s.notifier == nil {
		return false, "notification dispatcher not configured"
	}

	farmer, err := s.repo.FindFarmerByID(ctx, farmerID)
	if err != nil {
		log.Printf("level=warn component=app op=notify msg=\"farmer lookup failed\" farmer_id=%d err=%v", farmerID, err)
		return false, "Farmer mobile number not available"
	}
	if farmer.MobileNo == "" {
		return false, "Farmer mobile number not available"
	}

	delivered, detail := s.notifier.Send(ctx, farmer.MobileNo, farmer.Name, items, schedule.StartDate, schedule.EndDate)
	if !delivered {
		log.Printf("level=warn component=app op=notify outcome=undelivered farmer_id=%d detail=%q", farmerID, detail)
	}
	return delivered, detail
}

func (s *Service) publishClaimEvent(ctx context.Context, recommendation *domain.Recommendation, result *domain.ClaimResult) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.RecommendationClaimedEvent{
		EventID:          uuid.New(),
		RecommendationID: result.RecommendationID,
		ShopID:           result.ShopID,
		FarmerID:         recommendation.FarmerID,
		StartDate:        result.StartDate.Format(domain.DateLayout),
		EndDate:          result.EndDate.Format(domain.DateLayout),
		MaxTreatmentDays: result.MaxTreatmentDays,
		ClaimedAt:        result.ClaimedAt,
	}
	if err := s.eventProducer.PublishRecommendationClaimed(ctx, s.eventExchange, event); err != nil {
		log.Printf("level=warn component=app op=claim msg=\"claim event publish failed\" recommendation_id=%d err=%v", result.RecommendationID, err)
	}
}

// GetRecommendationDetail returns a recommendation enriched with farmer,
// doctor and claiming-shop reference data for display.
func (s *Service) GetRecommendationDetail(ctx context.Context, recommendationID int64) (*domain.RecommendationDetail, error) {
	recommendation, err := s.repo.FindRecommendationByID(ctx, recommendationID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.FindItemsByRecommendationID(ctx, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("load recommendation items: %w", err)
	}

	detail := &domain.RecommendationDetail{
		Recommendation: *recommendation,
		Items:          items,
	}

	// Reference lookups are display enrichment; a missing farmer or doctor
	// must not fail the request.
	if farmer, err := s.repo.FindFarmerByID(ctx, recommendation.FarmerID); err == nil {
		detail.Farmer = farmer
	} else if !errors.Is(err, store.ErrFarmerNotFound) {
		return nil, err
	}
	if doctor, err := s.repo.FindDoctorByID(ctx, recommendation.DoctorID); err == nil {
		detail.Doctor = doctor
	} else if !errors.Is(err, store.ErrDoctorNotFound) {
		return nil, err
	}
	if recommendation.IsClaimed && recommendation.ClaimedByShopID != nil {
		if shop, err := s.repo.FindShopByID(ctx, *recommendation.ClaimedByShopID); err == nil {
			shop.PasswordHash = ""
			detail.ClaimedShop = shop
		} else if !errors.Is(err, store.ErrShopNotFound) {
			return nil, err
		}
	}

	return detail, nil
}

// ListClaimedRecommendations returns one page of a shop's claims, enriched the
// same way as the detail view.
func (s *Service) ListClaimedRecommendations(ctx context.Context, shopID int64, opts domain.ClaimedListOptions) (*domain.ClaimedRecommendationPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 10
	}
	if opts.PerPage > maxClaimsPerPage {
		opts.PerPage = maxClaimsPerPage
	}

	recommendations, total, err := s.repo.FindClaimedByShopID(ctx, shopID, opts)
	if err != nil {
		return nil, fmt.Errorf("list claimed recommendations: %w", err)
	}

	page := &domain.ClaimedRecommendationPage{
		Recommendations: make([]domain.RecommendationDetail, 0, len(recommendations)),
		Page:            opts.Page,
		PerPage:         opts.PerPage,
		Total:           total,
		TotalPages:      (total + opts.PerPage - 1) / opts.PerPage,
	}

	for _, rec := range recommendations {
		detail, err := s.GetRecommendationDetail(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		page.Recommendations = append(page.Recommendations, *detail)
	}

	return page, nil
}

// SearchUnclaimedRecommendations returns one page of open recommendations.
func (s *Service) SearchUnclaimedRecommendations(ctx context.Context, opts domain.UnclaimedSearchOptions) (*domain.UnclaimedSearchPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 10
	}
	if opts.PerPage > maxClaimsPerPage {
		opts.PerPage = maxClaimsPerPage
	}

	results, total, err := s.repo.SearchUnclaimedRecommendations(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("search unclaimed recommendations: %w", err)
	}

	return &domain.UnclaimedSearchPage{
		Recommendations: results,
		Page:            opts.Page,
		PerPage:         opts.PerPage,
		Total:           total,
		TotalPages:      (total + opts.PerPage - 1) / opts.PerPage,
	}, nil
}

// RegisterShop validates and creates a new medical shop account.
func (s *Service) RegisterShop(ctx context.Context, req domain.ShopSignupRequest) (int64, error) {
	required := map[string]string{
		"shop_name":      req.ShopName,
		"owner_name":     req.OwnerName,
		"mobile_no":      req.MobileNo,
		"password":       req.Password,
		"license_number": req.LicenseNumber,
		"pincode":        req.Pincode,
		"address":        req.Address,
		"city":           req.City,
		"state":          req.State,
	}
	for field, value := range required {
		if value == "" {
			return 0, fmt.Errorf("%w: %s", ErrMissingSignupField, field)
		}
	}
	if !mobilePattern.MatchString(req.MobileNo) {
		return 0, ErrInvalidMobileNumber
	}
	if len(req.Password) < 6 {
		return 0, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	shopID, err := s.repo.CreateShop(ctx, &domain.Shop{
		ShopName:      req.ShopName,
		OwnerName:     req.OwnerName,
		MobileNo:      req.MobileNo,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		Pincode:       req.Pincode,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		PasswordHash:  string(hash),
		IsVerified:    false,
		IsActive:      true,
	})
	if err != nil {
		return 0, err
	}

	log.Printf("level=info component=app op=signup outcome=created shop_id=%d", shopID)
	return shopID, nil
}

// AuthenticateShop verifies a shop's credentials and returns the shop record.
func (s *Service) AuthenticateShop(ctx context.Context, req domain.ShopLoginRequest) (*domain.Shop, error) {
	if req.MobileNo == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	shop, err := s.repo.FindShopByMobile(ctx, req.MobileNo)
	if err != nil {
		if errors.Is(err, store.ErrShopNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(shop.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !shop.IsActive {
		return nil, ErrShopDeactivated
	}

	return shop, nil
}

// GetShopProfile returns a shop's profile with the credential hash elided.
func (s *Service) GetShopProfile(ctx context.Context, shopID int64) (*domain.Shop, error) {
	shop, err := s.repo.FindShopByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	shop.PasswordHash = ""
	return shop, nil
}

// UpdateShopProfile applies a partial profile update.
func (s *Service) UpdateShopProfile(ctx context.Context, shopID int64, update domain.ShopProfileUpdate) error {
	if update.MobileNo != nil && !mobilePattern.MatchString(*update.MobileNo) {
		return ErrInvalidMobileNumber
	}
	updated, err := s.repo.UpdateShopProfile(ctx, shopID, update)
	if err != nil {
		return err
	}
	if !updated {
		return store.ErrShopNotFound
	}
	return nil
}

// GetShopStatistics returns claim counters for the shop dashboard.
func (s *Service) GetShopStatistics(ctx context.Context, shopID int64) (*domain.ShopStatistics, error) {
	return s.repo.GetShopStatistics(ctx, shopID)
}
