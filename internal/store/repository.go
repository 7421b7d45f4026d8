/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the claims-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/agrisafe/claims-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Shop methods
	FindShopByMobile(ctx context.Context, mobileNo string) (*domain.Shop, error)
	FindShopByID(ctx context.Context, shopID int64) (*domain.Shop, error)
	CreateShop(ctx context.Context, shop *domain.Shop) (int64, error)
	UpdateShopProfile(ctx context.Context, shopID int64, update domain.ShopProfileUpdate) (bool, error)

	// Read-only reference lookups, used for notification content and display
	// enrichment only; never consulted by the claim transition itself.
	FindFarmerByID(ctx context.Context, farmerID int64) (*domain.Farmer, error)
	FindDoctorByID(ctx context.Context, doctorID int64) (*domain.Doctor, error)

	// Recommendation methods
	FindRecommendationByID(ctx context.Context, recommendationID int64) (*domain.Recommendation, error)
	FindItemsByRecommendationID(ctx context.Context, recommendationID int64) ([]domain.RecommendationItem, error)

	// ClaimRecommendation flips the claim state with a single conditional
	// UPDATE guarded by `is_claimed = FALSE`. It returns true iff the row
	// changed; false means another shop already holds the claim. This is the
	// sole concurrency-safety mechanism for the transition.
	ClaimRecommendation(ctx context.Context, recommendationID, shopID int64, notes string) (bool, error)
	UpdateItemDates(ctx context.Context, itemID int64, startDate, endDate time.Time) (bool, error)

	// ClaimRecommendationWithSchedule performs the claim flip and the per-item
	// date persistence in one database transaction, so a claimed recommendation
	// can never be observed with missing treatment windows. The conditional
	// guard semantics of ClaimRecommendation apply unchanged.
	ClaimRecommendationWithSchedule(ctx context.Context, recommendationID, shopID int64, notes string, schedule *domain.TreatmentSchedule) (claimedAt time.Time, claimed bool, err error)

	// Listing, statistics and search
	FindClaimedByShopID(ctx context.Context, shopID int64, opts domain.ClaimedListOptions) ([]domain.Recommendation, int, error)
	GetShopStatistics(ctx context.Context, shopID int64) (*domain.ShopStatistics, error)
	SearchUnclaimedRecommendations(ctx context.Context, opts domain.UnclaimedSearchOptions) ([]domain.UnclaimedRecommendation, int, error)
}
