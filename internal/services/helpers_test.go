package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/ledger"
	"github.com/tbourn/luvia-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection serializes writers the way a single SQLite file would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, code string, status domain.BookingStatus, amount int64) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		BookingCode:   code,
		CustomerName:  "Nguyễn Văn A",
		CustomerPhone: "0901" + code,
		ServiceName:   "Đón sân bay",
		PackagePrice:  "300.000đ",
		Amount:        amount,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.CreateBooking(context.Background(), db, b); err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
	return b
}

func reload(t *testing.T, db *gorm.DB, id uint) *domain.Booking {
	t.Helper()
	b, err := repo.GetBooking(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload %d: %v", id, err)
	}
	return b
}

// fakeLedger returns a fixed result, optionally after a delay, and counts calls.
type fakeLedger struct {
	mu     sync.Mutex
	result ledger.Result
	delay  time.Duration
	calls  int32
}

func (f *fakeLedger) set(r ledger.Result) {
	f.mu.Lock()
	f.result = r
	f.mu.Unlock()
}

func (f *fakeLedger) Lookup(ctx context.Context, code string) ledger.Result {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func paidResult(status string) ledger.Result {
	return ledger.Result{Outcome: ledger.OutcomeFoundPaid, Status: status, Table: "Bookings"}
}

// countingNotifier records messages and can be told to fail.
type countingNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *countingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// recordingRelay captures dispatched bookings.
type recordingRelay struct {
	mu   sync.Mutex
	sent []domain.Booking
}

func (r *recordingRelay) Dispatch(_ context.Context, b domain.Booking, _ time.Duration) {
	r.mu.Lock()
	r.sent = append(r.sent, b)
	r.mu.Unlock()
}
