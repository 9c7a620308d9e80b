package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/luvia-backend/internal/domain"
)

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, "bookings.create", "   ", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		Scope:     "bookings.create",
		Key:       "k1",
		BookingID: 1,
		Status:    201,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetIdempotency(context.Background(), db, "bookings.create", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "bookings.create", "missing", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_ThenGet_ThenDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "bookings.create", "k1", 42, 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.BookingID != 42 || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "bookings.create", "k1", time.Now().UTC())
	if err != nil || got.BookingID != 42 {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}

	if _, err := CreateIdempotency(ctx, db, "bookings.create", "k1", 43, 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different scope is independent.
	if _, err := CreateIdempotency(ctx, db, "other", "k1", 44, 201, time.Hour); err != nil {
		t.Fatalf("other scope: %v", err)
	}
}

func TestDeleteExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "s", "live", 1, 201, time.Hour); err != nil {
		t.Fatalf("seed live: %v", err)
	}
	if err := db.Create(&domain.Idempotency{ID: "old", Scope: "s", Key: "old", BookingID: 2, Status: 201, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}).Error; err != nil {
		t.Fatalf("seed old: %v", err)
	}
	n, err := DeleteExpiredIdempotency(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredIdempotency = %d, %v; want 1", n, err)
	}
}

func TestCreateIdempotency_ReplacesExpiredKey(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &domain.Idempotency{ID: "stale", Scope: "bookings.create", Key: "k1", BookingID: 1, Status: 201, CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := CreateIdempotency(ctx, db, "bookings.create", "k1", 2, 201, time.Hour)
	if err != nil {
		t.Fatalf("expired key should be reusable: %v", err)
	}
	var n int64
	db.Model(&domain.Idempotency{}).Where("scope = ? AND key = ?", "bookings.create", "k1").Count(&n)
	if n != 1 || rec.BookingID != 2 {
		t.Fatalf("rows = %d rec = %+v", n, rec)
	}
}
