/**
 * @description
 * This file defines the core domain models for the claims-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - A recommendation transitions exactly once from unclaimed to claimed; the
 *   nullable claim fields (`ClaimedByShopID`, `ClaimedAt`, `ClaimNotes`) are all
 *   nil while `IsClaimed` is false and all set once it is true.
 */

package domain

import "time"

// Recommendation is a doctor-issued antibiotic treatment order for a farmer's
// animal, claimable by exactly one medical shop. Maps to the
// `medicine_recommendations` table.
type Recommendation struct {
	ID              int64      `json:"id"`
	FarmerID        int64      `json:"farmer_id"`
	DoctorID        int64      `json:"doctor_id"`
	IsClaimed       bool       `json:"is_claimed"`
	ClaimedByShopID *int64     `json:"claimed_by_shop_id,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	ClaimNotes      *string    `json:"claim_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecommendationItem is one medicine line within a recommendation. Start and end
// dates are set only after the owning recommendation has been claimed; they are
// either both nil or both set. Maps to the `recommendation_items` table.
type RecommendationItem struct {
	ID                     int64      `json:"id"`
	RecommendationID       int64      `json:"recommendation_id"`
	AntibioticName         string     `json:"antibiotic_name"`
	AnimalType             string     `json:"animal_type"`
	Weight                 float64    `json:"weight"`
	Age                    float64    `json:"age"`
	Disease                string     `json:"disease"`
	SingleDoseMl           float64    `json:"single_dose_ml"`
	DailyFrequency         int        `json:"daily_frequency"`
	TreatmentDays          int        `json:"treatment_days"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	TotalTreatmentDosageMl float64    `json:"total_treatment_dosage_ml"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TotalDailyDosageMl is derived, never stored: single dose times daily frequency.
func (i RecommendationItem) TotalDailyDosageMl() float64 {
	return i.SingleDoseMl * float64(i.DailyFrequency)
}

// Shop represents a registered medical shop (pharmacy). Maps to the
// `medical_shops` table. Mobile numbers are unique.
type Shop struct {
	ID            int64     `json:"id"`
	ShopName      string    `json:"shop_name"`
	OwnerName     string    `json:"owner_name"`
	MobileNo      string    `json:"mobile_no"`
	Email         *string   `json:"email,omitempty"`
	LicenseNumber string    `json:"license_number"`
	Pincode       string    `json:"pincode"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	PasswordHash  string    `json:"-"`
	IsVerified    bool      `json:"is_verified"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Farmer is a read-only reference entity, consulted for notification content
// and display enrichment only.
type Farmer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MobileNo string `json:"mobile_no"`
	Area     string `json:"area"`
	Pincode  string `json:"pincode"`
	DoctorID int64  `json:"doctor_id"`
}

// Doctor is a read-only reference entity used for display enrichment.
type Doctor struct {
	ID           int64   `json:"id"`
	HospitalName string  `json:"hospital_name"`
	DoctorName   string  `json:"doctor_name"`
	MobileNo     string  `json:"mobile_no"`
	Pincode      string  `json:"pincode"`
	Address      string  `json:"address"`
	MapLink      *string `json:"map_link,omitempty"`
}

// ClaimRequest is the DTO for an incoming claim API request.
type ClaimRequest struct {
	StartDate string `json:"start_date"`
	Notes     string `json:"notes"`
}

// ClaimResult describes the outcome of a successful claim. The claim commit and
// the notification outcome are reported independently: WhatsappSent may be false
// while the claim itself is durable.
type ClaimResult struct {
	RecommendationID int64     `json:"recommendation_id"`
	ShopID           int64     `json:"shop_id"`
	ClaimedAt        time.Time `json:"claimed_at"`
	StartDate        time.Time `json:"-"`
	EndDate          time.Time `json:"-"`
	MaxTreatmentDays int       `json:"max_treatment_days"`
	Notes            string    `json:"notes"`
	WhatsappSent     bool      `json:"whatsapp_sent"`
	WhatsappMessage  string    `json:"whatsapp_message"`
}

// ShopSignupRequest is the DTO for registering a new medical shop.
type ShopSignupRequest struct {
	ShopName      string  `json:"shop_name"`
	OwnerName     string  `json:"owner_name"`
	MobileNo      string  `json:"mobile_no"`
	Email         *string `json:"email"`
	Password      string  `json:"password"`
	LicenseNumber string  `json:"license_number"`
	Pincode       string  `json:"pincode"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
}

// ShopLoginRequest is the DTO for shop authentication.
type ShopLoginRequest struct {
	MobileNo string `json:"mobile_no"`
	Password string `json:"password"`
}

// ShopProfileUpdate carries the optional fields of a partial profile update.
// Nil fields are left untouched.
type ShopProfileUpdate struct {
	ShopName      *string `json:"shop_name"`
	OwnerName     *string `json:"owner_name"`
	MobileNo      *string `json:"phone_number"`
	Email         *string `json:"email"`
	LicenseNumber *string `json:"license_number"`
	City          *string `json:"district"`
	Address       *string `json:"address"`
}

// ShopStatistics summarizes a shop's claim activity.
type ShopStatistics struct {
	TotalClaims     int `json:"total_claims"`
	TodaysClaims    int `json:"todays_claims"`
	ThisWeekClaims  int `json:"this_week_claims"`
	ThisMonthClaims int `json:"this_month_claims"`
}

// ClaimedListOptions are the pagination and filter options for a shop's
// claimed-recommendations listing.
type ClaimedListOptions struct {
	Page       int
	PerPage    int
	FromDate   *time.Time
	ToDate     *time.Time
	AnimalType string
}

// UnclaimedSearchOptions are the filter options for searching open
// recommendations.
type UnclaimedSearchOptions struct {
	Query      string
	Pincode    string
	AnimalType string
	Page       int
	PerPage    int
}

// UnclaimedRecommendation is one row of the unclaimed-search result, with the
// farmer and doctor reference data the search joins in.
type UnclaimedRecommendation struct {
	ID            int64     `json:"id"`
	FarmerID      int64     `json:"farmer_id"`
	DoctorID      int64     `json:"doctor_id"`
	CreatedAt     time.Time `json:"created_at"`
	FarmerName    string    `json:"farmer_name"`
	FarmerMobile  string    `json:"farmer_mobile"`
	FarmerArea    string    `json:"farmer_area"`
	FarmerPincode string    `json:"farmer_pincode"`
	DoctorName    string    `json:"doctor_name"`
	HospitalName  string    `json:"hospital_name"`
	DoctorMobile  string    `json:"doctor_mobile"`
	DoctorPincode string    `json:"doctor_pincode"`
}
