/**
 * @description
 * Read-model views composed for the API layer: recommendations enriched with
 * their farmer, doctor and claiming-shop reference data. These are assembled
 * by the application service from individual repository lookups and are never
 * persisted.
 */

package domain

// RecommendationDetail is a recommendation with its items and reference
// entities resolved for display. ClaimedShop is nil while unclaimed.
type RecommendationDetail struct {
	Recommendation Recommendation       `json:"recommendation"`
	Farmer         *Farmer              `json:"farmer,omitempty"`
	Doctor         *Doctor              `json:"doctor,omitempty"`
	ClaimedShop    *Shop                `json:"claimed_by_shop,omitempty"`
	Items          []RecommendationItem `json:"items"`
}

// ClaimedRecommendationPage is one page of a shop's claimed recommendations.
type ClaimedRecommendationPage struct {
	Recommendations []RecommendationDetail `json:"recommendations"`
	Page            int                    `json:"page"`
	PerPage         int                    `json:"per_page"`
	Total           int                    `json:"total"`
	TotalPages      int                    `json:"pages"`
}

// UnclaimedSearchPage is one page of the unclaimed-recommendation search.
type UnclaimedSearchPage struct {
	Recommendations []UnclaimedRecommendation `json:"recommendations"`
	Page            int                       `json:"page"`
	PerPage         int                       `json:"per_page"`
	Total           int                       `json:"total"`
	TotalPages      int                       `json:"pages"`
}
