// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the dashboard and for conditional responses (ETag generation) in the
// HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
)

// BookingCounts is the per-status breakdown shown on the dashboard. Revenue
// sums amounts over paid and completed bookings.
type BookingCounts struct {
	Total     int64 `json:"total"`
	New       int64 `json:"new"`
	Contacted int64 `json:"contacted"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Paid      int64 `json:"paid"`
	Revenue   int64 `json:"revenue"`
}

// CountBookingsByStatus aggregates BookingCounts in a single pass.
func CountBookingsByStatus(ctx context.Context, db *gorm.DB) (BookingCounts, error) {
	var rows []struct {
		Status  string
		N       int64
		Revenue int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Select("status, COUNT(*) AS n, COALESCE(SUM(amount), 0) AS revenue").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return BookingCounts{}, err
	}

	var out BookingCounts
	for _, r := range rows {
		out.Total += r.N
		switch domain.BookingStatus(r.Status) {
		case domain.StatusNew:
			out.New = r.N
		case domain.StatusContacted:
			out.Contacted = r.N
		case domain.StatusCompleted:
			out.Completed = r.N
			out.Revenue += r.Revenue
		case domain.StatusCancelled:
			out.Cancelled = r.N
		case domain.StatusPaid:
			out.Paid = r.N
			out.Revenue += r.Revenue
		}
	}
	return out, nil
}

// BookingsStats returns the number of bookings matching f and the maximum
// UpdatedAt among them. When nothing matches, maxUpdatedAt is nil.
func BookingsStats(ctx context.Context, db *gorm.DB, f BookingFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Booking{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
