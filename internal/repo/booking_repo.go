// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Booking
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a booking is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - Targeted updates that affect no rows return ErrNotFound.
//   - Other DB errors are propagated unchanged.
//
// The paid transition is a compare-and-swap: MarkBookingPaid only updates a
// row whose status is not "paid" and whose paid_at is still NULL, and reports
// whether it won. Callers notify only when it did.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// BookingFilter narrows ListBookingsPage and CountBookings.
type BookingFilter struct {
	Status domain.BookingStatus // exact match when non-empty
	Query  string               // substring over name, phone, code and service
}

func (f BookingFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("lower(name) LIKE ? OR phone LIKE ? OR lower(booking_code) LIKE ? OR lower(service_name) LIKE ?",
			like, like, like, like)
	}
	return q
}

// CreateBooking inserts b. Status defaults to "new" and CreatedAt to now (UTC)
// when unset. On success b carries the store-assigned ID.
func CreateBooking(ctx context.Context, db *gorm.DB, b *domain.Booking) error {
	if b.Status == "" {
		b.Status = domain.StatusNew
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(b).Error
}

// GetBooking fetches a booking by its surrogate id, or ErrNotFound.
func GetBooking(ctx context.Context, db *gorm.DB, id uint) (*domain.Booking, error) {
	var b domain.Booking
	if err := db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// FindBookingsByCode returns every booking whose code equals code after
// trimming and case folding, oldest first. Codes are not unique, so the
// result may hold more than one row.
func FindBookingsByCode(ctx context.Context, db *gorm.DB, code string) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("lower(trim(booking_code)) = ?", strings.ToLower(strings.TrimSpace(code))).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// FindUnpaidByCode is FindBookingsByCode restricted to rows that have never
// been marked paid.
func FindUnpaidByCode(ctx context.Context, db *gorm.DB, code string) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("lower(trim(booking_code)) = ?", strings.ToLower(strings.TrimSpace(code))).
		Where("status <> ? AND paid_at IS NULL", domain.StatusPaid).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListBookingsPage returns a page of bookings, newest first.
func ListBookingsPage(ctx context.Context, db *gorm.DB, f BookingFilter, offset, limit int) ([]domain.Booking, error) {
	var out []domain.Booking
	err := f.apply(db.WithContext(ctx).Model(&domain.Booking{})).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountBookings returns the number of bookings matching f.
func CountBookings(ctx context.Context, db *gorm.DB, f BookingFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Booking{})).Count(&total).Error
	return total, err
}

// UpdateBookingStatus sets the status of booking id. It returns ErrNotFound
// when no row was affected.
func UpdateBookingStatus(ctx context.Context, db *gorm.DB, id uint, status domain.BookingStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkBookingPaid performs the conditional paid transition for booking id and
// reports whether this call applied it. A concurrent or repeated call for the
// same booking gets false and must not notify.
func MarkBookingPaid(ctx context.Context, db *gorm.DB, id uint, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND status <> ? AND paid_at IS NULL", id, domain.StatusPaid).
		Updates(map[string]any{
			"status":     domain.StatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkNotified stamps notified_at on booking id.
func MarkNotified(ctx context.Context, db *gorm.DB, id uint, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		UpdateColumn("notified_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSweepCandidates returns unpaid bookings with a positive amount created
// at or after since, capped at limit. Bookings never swept come first, oldest
// first, then the ones swept longest ago.
func ListSweepCandidates(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("status IN ? AND paid_at IS NULL AND amount > 0 AND created_at >= ?",
			[]domain.BookingStatus{domain.StatusNew, domain.StatusContacted}, since).
		Order("swept_at IS NOT NULL, swept_at asc, created_at asc, id asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkSwept stamps swept_at on the given bookings.
func MarkSwept(ctx context.Context, db *gorm.DB, ids []uint, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id IN ?", ids).
		UpdateColumn("swept_at", now).Error
}
