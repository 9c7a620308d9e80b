package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/luvia-backend/internal/domain"
)

// CustomerSummary is a customer row with aggregates over their bookings.
type CustomerSummary struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	BookingCount int64     `json:"booking_count"`
	TotalSpent   int64     `json:"total_spent"`
}

// UpsertCustomer inserts a customer keyed by phone or, when the phone already
// exists, overwrites the name. Last write wins.
func UpsertCustomer(ctx context.Context, db *gorm.DB, name, phone string) error {
	now := time.Now().UTC()
	c := &domain.Customer{
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(c).Error
}

// GetCustomerByPhone returns the customer with phone, or ErrNotFound.
func GetCustomerByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).First(&c, "phone = ?", strings.TrimSpace(phone)).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns customers, most recently active first, with their
// booking count and the sum of amounts over paid or completed bookings.
func ListCustomers(ctx context.Context, db *gorm.DB, offset, limit int) ([]CustomerSummary, error) {
	var out []CustomerSummary
	err := db.WithContext(ctx).
		Table("customers AS c").
		Select(`c.id, c.name, c.phone, c.created_at, c.updated_at,
			COUNT(b.id) AS booking_count,
			COALESCE(SUM(CASE WHEN b.status IN ('paid','completed') THEN b.amount ELSE 0 END), 0) AS total_spent`).
		Joins("LEFT JOIN bookings AS b ON b.phone = c.phone").
		Group("c.id").
		Order("c.updated_at desc").
		Order("c.id desc").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// CountCustomers returns the number of customers.
func CountCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Customer{}).Count(&total).Error
	return total, err
}
