/**
 * @description
 * Pure treatment-schedule arithmetic. Given a chosen start date and the line
 * items of a recommendation, this derives each item's inclusive treatment
 * window and the recommendation-level window used for the claim summary and
 * the farmer notification.
 *
 * @notes
 * - Dates here are calendar dates, not instants: they are normalized to UTC
 *   midnight and the arithmetic never consults a timezone or clock, so
 *   identical inputs always yield identical outputs.
 * - Day counting is inclusive: a 1-day treatment starts and ends on the same
 *   day, so end = start + (treatmentDays - 1) days.
 */

package domain

import (
	"errors"
	"time"
)

// ErrInvalidTreatmentPlan signals an item whose treatment duration is missing
// or below one day, which makes the schedule uncomputable.
var ErrInvalidTreatmentPlan = errors.New("recommendation item has an invalid treatment duration")

// DateLayout is the wire format for calendar dates on the API boundary.
const DateLayout = "2006-01-02"

// ItemSchedule is one item's computed treatment window.
type ItemSchedule struct {
	ItemID    int64
	StartDate time.Time
	EndDate   time.Time
}

// TreatmentSchedule is the full schedule derived for a recommendation: one
// window per item plus the aggregate window spanning the longest treatment.
type TreatmentSchedule struct {
	StartDate        time.Time
	EndDate          time.Time
	MaxTreatmentDays int
	Items            []ItemSchedule
}

// ParseDate parses a YYYY-MM-DD calendar date into its canonical UTC-midnight
// representation.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(parsed), nil
}

// NormalizeDate strips any time-of-day and timezone component, keeping only
// the calendar date at UTC midnight.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeTreatmentSchedule derives per-item end dates and the aggregate
// recommendation window from the chosen start date. Every item must carry a
// treatment duration of at least one day; otherwise ErrInvalidTreatmentPlan is
// returned and no partial schedule is produced.
func ComputeTreatmentSchedule(startDate time.Time, items []RecommendationItem) (*TreatmentSchedule, error) {
	if len(items) == 0 {
		return nil, errors.New("no recommendation items to schedule")
	}

	start := NormalizeDate(startDate)
	schedule := &TreatmentSchedule{
		StartDate: start,
		Items:     make([]ItemSchedule, 0, len(items)),
	}

	for _, item := range items {
		if item.TreatmentDays < 1 {
			return nil, ErrInvalidTreatmentPlan
		}
		schedule.Items = append(schedule.Items, ItemSchedule{
			ItemID:    item.ID,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, item.TreatmentDays-1),
		})
		if item.TreatmentDays > schedule.MaxTreatmentDays {
			schedule.MaxTreatmentDays = item.TreatmentDays
		}
	}

	schedule.EndDate = start.AddDate(0, 0, schedule.MaxTreatmentDays-1)
	return schedule, nil
}
