/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to medical shops, farmers, doctors, recommendations and their items.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrisafe/claims-service/internal/domain"
)

var (
	ErrShopNotFound             = errors.New("shop not found")
	ErrFarmerNotFound           = errors.New("farmer not found")
	ErrDoctorNotFound           = errors.New("doctor not found")
	ErrRecommendationNotFound   = errors.New("recommendation not found")
	ErrMobileAlreadyRegistered  = errors.New("mobile number already registered")
	ErrRecommendationItemAbsent = errors.New("recommendation item not found")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shopColumns = `id, shop_name, owner_name, mobile_no, email, license_number,
	pincode, address, city, state, password_hash, is_verified, is_active,
	created_at, updated_at`

func scanShop(row pgx.Row) (*domain.Shop, error) {
	var shop domain.Shop
	err := row.Scan(
		&shop.ID,
		&shop.ShopName,
		&shop.OwnerName,
		&shop.MobileNo,
		&shop.Email,
		&shop.LicenseNumber,
		&shop.Pincode,
		&shop.Address,
		&shop.City,
		&shop.State,
		&shop.PasswordHash,
		&shop.IsVerified,
		&shop.IsActive,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

// FindShopByMobile retrieves a medical shop by its unique mobile number.
func (r *PostgresRepository) FindShopByMobile(ctx context.Context, mobileNo string) (*domain.Shop, error) {
	query := fmt.Sprintf(`SELECT %s FROM medical_shops WHERE mobile_no = $1`, shopColumns)
	return scanShop(r.db.QueryRow(ctx, query, mobileNo))
}

// FindShopByID retrieves a medical shop by its ID.
func (r *PostgresRepository) FindShopByID(ctx context.Context, shopID int64) (*domain.Shop, error) {
	query := fmt.Sprintf(`SELECT %s FROM medical_shops WHERE id = $1`, shopColumns)
	return scanShop(r.db.QueryRow(ctx, query, shopID))
}

// CreateShop inserts a new medical shop and returns its generated ID.
func (r *PostgresRepository) CreateShop(ctx context.Context, shop *domain.Shop) (int64, error) {
	query := `
		INSERT INTO medical_shops (
			shop_name, owner_name, mobile_no, email, license_number, pincode,
			address, city, state, password_hash, is_verified, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		shop.ShopName,
		shop.OwnerName,
		shop.MobileNo,
		shop.Email,
		shop.LicenseNumber,
		shop.Pincode,
		shop.Address,
		shop.City,
		shop.State,
		shop.PasswordHash,
		shop.IsVerified,
		shop.IsActive,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrMobileAlreadyRegistered
		}
		return 0, err
	}
	return id, nil
}

// UpdateShopProfile applies a partial profile update. Nil fields are skipped;
// an update with nothing to change is a no-op success.
func (r *PostgresRepository) UpdateShopProfile(ctx context.Context, shopID int64, update domain.ShopProfileUpdate) (bool, error) {
	setClauses := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	appendSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	appendSet("shop_name", update.ShopName)
	appendSet("owner_name", update.OwnerName)
	appendSet("mobile_no", update.MobileNo)
	appendSet("email", update.Email)
	appendSet("license_number", update.LicenseNumber)
	appendSet("city", update.City)
	appendSet("address", update.Address)

	if len(setClauses) == 0 {
		return true, nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, shopID)
	query := fmt.Sprintf(
		`UPDATE medical_shops SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "),
		len(args),
	)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrMobileAlreadyRegistered
		}
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// FindFarmerByID retrieves a farmer reference record.
func (r *PostgresRepository) FindFarmerByID(ctx context.Context, farmerID int64) (*domain.Farmer, error) {
	var farmer domain.Farmer
	query := `
		SELECT id, name, mobile_no, COALESCE(area, ''), COALESCE(pincode, ''), doctor_id
		FROM farmers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, farmerID).Scan(
		&farmer.ID,
		&farmer.Name,
		&farmer.MobileNo,
		&farmer.Area,
		&farmer.Pincode,
		&farmer.DoctorID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrFarmerNotFound
		}
		return nil, err
	}
	return &farmer, nil
}

// FindDoctorByID retrieves a doctor reference record.
func (r *PostgresRepository) FindDoctorByID(ctx context.Context, doctorID int64) (*domain.Doctor, error) {
	var doctor domain.Doctor
	query := `
		SELECT id, hospital_name, doctor_name, mobile_no, COALESCE(pincode, ''),
		       COALESCE(address, ''), map_link
		FROM doctors
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, doctorID).Scan(
		&doctor.ID,
		&doctor.HospitalName,
		&doctor.DoctorName,
		&doctor.MobileNo,
		&doctor.Pincode,
		&doctor.Address,
		&doctor.MapLink,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &doctor, nil
}

const recommendationColumns = `id, farmer_id, doctor_id, is_claimed, claimed_by_shop_id,
	claimed_at, claim_notes, created_at, updated_at`

func scanRecommendation(row pgx.Row) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	err := row.Scan(
		&rec.ID,
		&rec.FarmerID,
		&rec.DoctorID,
		&rec.IsClaimed,
		&rec.ClaimedByShopID,
		&rec.ClaimedAt,
		&rec.ClaimNotes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindRecommendationByID retrieves a recommendation by its ID.
func (r *PostgresRepository) FindRecommendationByID(ctx context.Context, recommendationID int64) (*domain.Recommendation, error) {
	query := fmt.Sprintf(`SELECT %s FROM medicine_recommendations WHERE id = $1`, recommendationColumns)
	return scanRecommendation(r.db.QueryRow(ctx, query, recommendationID))
}

// FindItemsByRecommendationID retrieves all line items of a recommendation,
// ordered by item id ascending for stable, reproducible display.
func (r *PostgresRepository) FindItemsByRecommendationID(ctx context.Context, recommendationID int64) ([]domain.RecommendationItem, error) {
	query := `
		SELECT id, recommendation_id, COALESCE(antibiotic_name, ''), COALESCE(animal_type, ''),
		       COALESCE(weight, 0), COALESCE(age, 0), COALESCE(disease, ''),
		       COALESCE(single_dose_ml, 0), COALESCE(daily_frequency, 1),
		       COALESCE(treatment_days, 0), start_date, end_date,
		       COALESCE(total_treatment_dosage_ml, 0), created_at, updated_at
		FROM recommendation_items
		WHERE recommendation_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.RecommendationItem
	for rows.Next() {
		var item domain.RecommendationItem
		if err := rows.Scan(
			&item.ID,
			&item.RecommendationID,
			&item.AntibioticName,
			&item.AnimalType,
			&item.Weight,
			&item.Age,
			&item.Disease,
			&item.SingleDoseMl,
			&item.DailyFrequency,
			&item.TreatmentDays,
			&item.StartDate,
			&item.EndDate,
			&item.TotalTreatmentDosageMl,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const claimQuery = `
	UPDATE medicine_recommendations
	SET is_claimed = TRUE,
	    claimed_by_shop_id = $2,
	    claimed_at = NOW(),
	    claim_notes = $3,
	    updated_at = NOW()
	WHERE id = $1 AND is_claimed = FALSE
`

// ClaimRecommendation atomically flips a recommendation to claimed. The
// `is_claimed = FALSE` guard in the WHERE clause makes the database serialize
// concurrent claimants: at most one caller observes a changed row, without any
// application-level lock. Returning false is not an error; it means the claim
// was lost to another shop.
func (r *PostgresRepository) ClaimRecommendation(ctx context.Context, recommendationID, shopID int64, notes string) (bool, error) {
	result, err := r.db.Exec(ctx, claimQuery, recommendationID, shopID, notes)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// UpdateItemDates persists a computed treatment window for one item.
func (r *PostgresRepository) UpdateItemDates(ctx context.Context, itemID int64, startDate, endDate time.Time) (bool, error) {
	query := `
		UPDATE recommendation_items
		SET start_date = $2, end_date = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, itemID, startDate, endDate)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// ClaimRecommendationWithSchedule runs the conditional claim flip and the
// per-item date writes in one transaction. Either the recommendation ends up
// claimed with every item's treatment window persisted, or nothing changes.
func (r *PostgresRepository) ClaimRecommendationWithSchedule(
	ctx context.Context,
	recommendationID, shopID int64,
	notes string,
	schedule *domain.TreatmentSchedule,
) (time.Time, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var claimedAt time.Time
	err = tx.QueryRow(ctx, claimQuery+" RETURNING claimed_at", recommendationID, shopID, notes).Scan(&claimedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Guard did not match: already claimed. Not an error.
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("claim recommendation %d: %w", recommendationID, err)
	}

	for _, item := range schedule.Items {
		result, err := tx.Exec(ctx, `
			UPDATE recommendation_items
			SET start_date = $2, end_date = $3, updated_at = NOW()
			WHERE id = $1 AND recommendation_id = $4
		`, item.ItemID, item.StartDate, item.EndDate, recommendationID)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("persist item %d dates: %w", item.ItemID, err)
		}
		if result.RowsAffected() == 0 {
			return time.Time{}, false, fmt.Errorf("persist item %d dates: %w", item.ItemID, ErrRecommendationItemAbsent)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, false, fmt.Errorf("commit claim transaction: %w", err)
	}
	return claimedAt, true, nil
}

// FindClaimedByShopID lists a shop's claimed recommendations, newest claim
// first, with optional claimed-at range and animal-type filters.
func (r *PostgresRepository) FindClaimedByShopID(ctx context.Context, shopID int64, opts domain.ClaimedListOptions) ([]domain.Recommendation, int, error) {
	where := []string{"mr.claimed_by_shop_id = $1", "mr.is_claimed = TRUE"}
	args := []interface{}{shopID}

	if opts.FromDate != nil {
		args = append(args, *opts.FromDate)
		where = append(where, fmt.Sprintf("mr.claimed_at >= $%d", len(args)))
	}
	if opts.ToDate != nil {
		args = append(args, *opts.ToDate)
		where = append(where, fmt.Sprintf("mr.claimed_at < $%d", len(args)))
	}
	if opts.AnimalType != "" {
		args = append(args, opts.AnimalType)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM recommendation_items ri
			WHERE ri.recommendation_id = mr.id AND ri.animal_type = $%d
		)`, len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM medicine_recommendations mr WHERE %s`, whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 10
	}
	args = append(args, perPage, (page-1)*perPage)
	dataQuery := fmt.Sprintf(`
		SELECT mr.id, mr.farmer_id, mr.doctor_id, mr.is_claimed, mr.claimed_by_shop_id,
		       mr.claimed_at, mr.claim_notes, mr.created_at, mr.updated_at
		FROM medicine_recommendations mr
		WHERE %s
		ORDER BY mr.claimed_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recommendations []domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(
			&rec.ID,
			&rec.FarmerID,
			&rec.DoctorID,
			&rec.IsClaimed,
			&rec.ClaimedByShopID,
			&rec.ClaimedAt,
			&rec.ClaimNotes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		recommendations = append(recommendations, rec)
	}
	return recommendations, total, rows.Err()
}

// GetShopStatistics computes claim counts for the shop dashboard: lifetime,
// today, the ISO week and the calendar month, all server-side.
func (r *PostgresRepository) GetShopStatistics(ctx context.Context, shopID int64) (*domain.ShopStatistics, error) {
	var stats domain.ShopStatistics
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE claimed_at::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE date_trunc('week', claimed_at) = date_trunc('week', NOW())),
			COUNT(*) FILTER (WHERE date_trunc('month', claimed_at) = date_trunc('month', NOW()))
		FROM medicine_recommendations
		WHERE claimed_by_shop_id = $1 AND is_claimed = TRUE
	`
	err := r.db.QueryRow(ctx, query, shopID).Scan(
		&stats.TotalClaims,
		&stats.TodaysClaims,
		&stats.ThisWeekClaims,
		&stats.ThisMonthClaims,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// SearchUnclaimedRecommendations finds open recommendations with farmer and
// doctor reference data joined in. A numeric query matches the recommendation
// id exactly; any other query matches farmer name or area.
func (r *PostgresRepository) SearchUnclaimedRecommendations(ctx context.Context, opts domain.UnclaimedSearchOptions) ([]domain.UnclaimedRecommendation, int, error) {
	where := []string{"mr.is_claimed = FALSE"}
	var args []interface{}

	if query := strings.TrimSpace(opts.Query); query != "" {
		if id, err := strconv.ParseInt(query, 10, 64); err == nil {
			args = append(args, id)
			where = append(where, fmt.Sprintf("mr.id = $%d", len(args)))
		} else {
			args = append(args, "%"+query+"%")
			where = append(where, fmt.Sprintf("(f.name ILIKE $%d OR f.area ILIKE $%d)", len(args), len(args)))
		}
	}
	if opts.Pincode != "" {
		args = append(args, opts.Pincode)
		where = append(where, fmt.Sprintf("(f.pincode = $%d OR d.pincode = $%d)", len(args), len(args)))
	}
	if opts.AnimalType != "" {
		args = append(args, opts.AnimalType)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM recommendation_items ri
			WHERE ri.recommendation_id = mr.id AND ri.animal_type = $%d
		)`, len(args)))
	}

	baseQuery := fmt.Sprintf(`
		FROM medicine_recommendations mr
		LEFT JOIN farmers f ON mr.farmer_id = f.id
		LEFT JOIN doctors d ON mr.doctor_id = d.id
		WHERE %s
	`, strings.Join(where, " AND "))

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 10
	}
	args = append(args, perPage, (page-1)*perPage)
	dataQuery := fmt.Sprintf(`
		SELECT mr.id, mr.farmer_id, mr.doctor_id, mr.created_at,
		       COALESCE(f.name, ''), COALESCE(f.mobile_no, ''),
		       COALESCE(f.area, ''), COALESCE(f.pincode, ''),
		       COALESCE(d.doctor_name, ''), COALESCE(d.hospital_name, ''),
		       COALESCE(d.mobile_no, ''), COALESCE(d.pincode, '')
		%s
		ORDER BY mr.created_at DESC
		LIMIT $%d OFFSET $%d
	`, baseQuery, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []domain.UnclaimedRecommendation
	for rows.Next() {
		var rec domain.UnclaimedRecommendation
		if err := rows.Scan(
			&rec.ID,
			&rec.FarmerID,
			&rec.DoctorID,
			&rec.CreatedAt,
			&rec.FarmerName,
			&rec.FarmerMobile,
			&rec.FarmerArea,
			&rec.FarmerPincode,
			&rec.DoctorName,
			&rec.HospitalName,
			&rec.DoctorMobile,
			&rec.DoctorPincode,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, rec)
	}
	return results, total, rows.Err()
}
