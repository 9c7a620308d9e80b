// Package services – BookingService
//
// BookingService owns booking intake and the admin-side lifecycle. Create
// validates the request, resolves the payable amount from the displayed
// package price, generates a booking code when the client sent none, and
// commits the booking together with the customer upsert (and the optional
// idempotency record) in one transaction. After commit the booking is relayed
// to the automation webhook in the background.
//
// Admin status edits are restricted to new/contacted/completed/cancelled;
// "paid" belongs to ReconcileService.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/repo"
)

// IdempotencyScopeCreateBooking scopes Idempotency-Key values for POST /bookings.
const IdempotencyScopeCreateBooking = "bookings.create"

// Relay publishes a committed booking to downstream automation.
type Relay interface {
	Dispatch(ctx context.Context, b domain.Booking, timeout time.Duration)
}

// CreateBookingInput is the client's booking request.
type CreateBookingInput struct {
	BookingCode   string
	CustomerName  string
	CustomerPhone string
	Note          string
	ServiceID     string
	ServiceName   string
	PackageName   string
	PackagePrice  string
}

// BookingService provides booking intake and admin operations.
type BookingService struct {
	DB             *gorm.DB
	Relay          Relay // optional
	RelayTimeout   time.Duration
	CodePrefix     string
	PlaceholderFee int64
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

// NewBookingService returns a BookingService with defaults.
func NewBookingService(db *gorm.DB, relay Relay) *BookingService {
	return &BookingService{
		DB:             db,
		Relay:          relay,
		RelayTimeout:   30 * time.Second,
		CodePrefix:     DefaultCodePrefix,
		PlaceholderFee: DefaultPlaceholderFee,
		IdempotencyTTL: 24 * time.Hour,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create stores a new booking. With a non-empty idemKey a previous booking
// created under the same key is returned instead, with replayed=true.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput, idemKey string) (b *domain.Booking, replayed bool, err error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.Bool("idempotency.key_present", idemKey != "")))
	defer span.End()

	name := strings.TrimSpace(in.CustomerName)
	phone := strings.TrimSpace(in.CustomerPhone)
	if name == "" || phone == "" {
		return nil, false, ErrInvalidBooking
	}

	if idemKey != "" {
		if prev, ok := s.replay(ctx, idemKey); ok {
			return prev, true, nil
		}
	}

	code := NormalizeCode(in.BookingCode)
	if code == "" {
		if code, err = NewBookingCode(s.CodePrefix); err != nil {
			return nil, false, err
		}
	}

	b = &domain.Booking{
		BookingCode:   code,
		CustomerName:  name,
		CustomerPhone: phone,
		Note:          strings.TrimSpace(in.Note),
		ServiceID:     strings.TrimSpace(in.ServiceID),
		ServiceName:   strings.TrimSpace(in.ServiceName),
		PackageName:   strings.TrimSpace(in.PackageName),
		PackagePrice:  strings.TrimSpace(in.PackagePrice),
		Amount:        ResolveAmount(in.PackagePrice, s.PlaceholderFee),
		Status:        domain.StatusNew,
		CreatedAt:     s.now(),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateBooking(ctx, tx, b); err != nil {
			return err
		}
		if err := repo.UpsertCustomer(ctx, tx, name, phone); err != nil {
			return err
		}
		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, IdempotencyScopeCreateBooking, idemKey, b.ID, http.StatusCreated, s.IdempotencyTTL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent request with the same key won the race.
		if errors.Is(err, repo.ErrDuplicate) && idemKey != "" {
			if prev, ok := s.replay(ctx, idemKey); ok {
				return prev, true, nil
			}
		}
		return nil, false, err
	}
	span.SetAttributes(attribute.String("booking.code", b.BookingCode), attribute.Int64("booking.amount", b.Amount))

	if s.Relay != nil {
		s.Relay.Dispatch(ctx, *b, s.RelayTimeout)
	}
	return b, false, nil
}

func (s *BookingService) replay(ctx context.Context, key string) (*domain.Booking, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, IdempotencyScopeCreateBooking, key, s.now())
	if err != nil || rec == nil {
		return nil, false
	}
	b, err := repo.GetBooking(ctx, s.DB, rec.BookingID)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id uint) (*domain.Booking, error) {
	b, err := repo.GetBooking(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListPage returns a page of bookings, newest first, and the total count.
func (s *BookingService) ListPage(ctx context.Context, f repo.BookingFilter, page, pageSize int) ([]domain.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	total, err := repo.CountBookings(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Booking{}, 0, nil
	}
	items, err := repo.ListBookingsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the count and latest update time for the filtered listing,
// used for ETags.
func (s *BookingService) Stats(ctx context.Context, f repo.BookingFilter) (int64, *time.Time, error) {
	return repo.BookingsStats(ctx, s.DB, f)
}

// UpdateStatus applies an admin status change.
func (s *BookingService) UpdateStatus(ctx context.Context, id uint, raw string) error {
	st, ok := domain.ParseBookingStatus(raw)
	if !ok {
		return ErrInvalidStatus
	}
	if st == domain.StatusPaid {
		return ErrStatusReserved
	}
	err := repo.UpdateBookingStatus(ctx, s.DB, id, st)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrBookingNotFound
	}
	return err
}
