// Package domain defines the persistence models for bookings, customers, the
// service catalog, and site settings. These types are mapped with GORM and
// form the core data layer of the booking backend.
package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusNew       BookingStatus = "new"
	StatusContacted BookingStatus = "contacted"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusPaid      BookingStatus = "paid"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusCompleted, StatusCancelled, StatusPaid:
		return true
	}
	return false
}

// ParseBookingStatus normalizes raw (trim + lowercase) and validates it.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	s := BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Booking is a customer's request for a service package. The service and
// package fields are a snapshot of what the customer saw at submission time and
// are deliberately not foreign-keyed to the live catalog.
//
// Fields:
//   - BookingCode: human-readable join key against the external ledger; indexed
//     but not unique.
//   - Amount: integer VND derived from PackagePrice at creation.
//   - Status: new|contacted|completed|cancelled|paid (DB constraint).
//   - PaidAt: set once by the paid transition; guards against re-transition.
//   - NotifiedAt: set after the operator notification was delivered.
type Booking struct {
	ID            uint          `json:"id"             gorm:"primaryKey;autoIncrement"`
	BookingCode   string        `json:"booking_code"   gorm:"type:varchar(32);not null;index:idx_booking_code"`
	CustomerName  string        `json:"customer_name"  gorm:"column:name;type:varchar(255);not null"`
	CustomerPhone string        `json:"customer_phone" gorm:"column:phone;type:varchar(32);not null;index"`
	Note          string        `json:"note"           gorm:"type:text"`
	ServiceID     string        `json:"service_id"     gorm:"type:varchar(128)"`
	ServiceName   string        `json:"service_name"   gorm:"type:varchar(255)"`
	PackageName   string        `json:"package_name"   gorm:"type:varchar(255)"`
	PackagePrice  string        `json:"package_price"  gorm:"type:varchar(64)"`
	Amount        int64         `json:"amount"         gorm:"not null;default:0"`
	Status        BookingStatus `json:"status"         gorm:"type:varchar(16);not null;default:'new';index;check:status IN ('new','contacted','completed','cancelled','paid')"`
	CreatedAt     time.Time     `json:"created_at"     gorm:"index"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	NotifiedAt    *time.Time    `json:"notified_at,omitempty"`
	SweptAt       *time.Time    `json:"-"              gorm:"index"` // last reconcile sweep
}

// TableName returns the database table name for Booking.
func (Booking) TableName() string { return "bookings" }

// Customer is keyed by phone number. Every booking upserts its customer and
// the most recent name wins.
type Customer struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone"      gorm:"type:varchar(32);not null;uniqueIndex:ux_customer_phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Service is a catalog entry. Content holds the free-form page body (packages,
// features, FAQs) as JSON so the site can evolve it without migrations.
type Service struct {
	ID          string         `json:"id"          gorm:"type:varchar(128);primaryKey"`
	CategoryID  string         `json:"category_id" gorm:"type:varchar(64);index"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Image       string         `json:"image"       gorm:"type:varchar(512)"`
	Content     datatypes.JSON `json:"content"     swaggertype:"object"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Setting is a named JSON document such as "site_info".
type Setting struct {
	Key       string         `json:"key"        gorm:"type:varchar(64);primaryKey"`
	Value     datatypes.JSON `json:"value"      swaggertype:"object"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }
