package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Booking{}).TableName():     "bookings",
		(Customer{}).TableName():    "customers",
		(Service{}).TableName():     "services",
		(Setting{}).TableName():     "settings",
		(Idempotency{}).TableName(): "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	cases := []struct {
		in   string
		want BookingStatus
		ok   bool
	}{
		{"new", StatusNew, true},
		{"  Contacted ", StatusContacted, true},
		{"COMPLETED", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"paid", StatusPaid, true},
		{"canceled", "canceled", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseBookingStatus(tc.in)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ParseBookingStatus(%q) = (%q,%v); want (%q,%v)", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestMigrations_Indexes_AndConstraints(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Booking{}, &Customer{}, &Service{}, &Setting{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&Booking{}, &Customer{}, &Service{}, &Setting{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Booking{}, "idx_booking_code") {
		t.Fatalf("expected index idx_booking_code on bookings")
	}
	if !m.HasIndex(&Customer{}, "ux_customer_phone") {
		t.Fatalf("expected unique index ux_customer_phone on customers")
	}

	// Status defaults to "new" when omitted at the SQL level.
	if err := db.Exec(`INSERT INTO bookings (booking_code, name, phone, amount, created_at, updated_at) VALUES (?,?,?,?,?,?)`,
		"BK00001", "An", "0900", 0, time.Now(), time.Now()).Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	var b Booking
	if err := db.First(&b, "booking_code = ?", "BK00001").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if b.Status != StatusNew || b.CustomerName != "An" || b.CustomerPhone != "0900" {
		t.Fatalf("unexpected booking: %+v", b)
	}

	// Check constraint rejects unknown statuses.
	bad := &Booking{BookingCode: "BK2", CustomerName: "x", CustomerPhone: "1", Status: "refunded"}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK constraint violation for status")
	}

	// Booking codes are not unique.
	for i := 0; i < 2; i++ {
		dup := &Booking{BookingCode: "BK3", CustomerName: "x", CustomerPhone: "1", Status: StatusNew}
		if err := db.Create(dup).Error; err != nil {
			t.Fatalf("duplicate code insert %d: %v", i, err)
		}
	}

	// Phone is unique on customers.
	if err := db.Create(&Customer{Name: "a", Phone: "0901"}).Error; err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	if err := db.Create(&Customer{Name: "b", Phone: "0901"}).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on customers.phone")
	}

	// JSON columns round-trip.
	svc := &Service{ID: "villa", Title: "Villa", Content: datatypes.JSON(`{"packages":[{"name":"A","price":"1.000.000đ"}]}`)}
	if err := db.Create(svc).Error; err != nil {
		t.Fatalf("insert service: %v", err)
	}
	var gotSvc Service
	if err := db.First(&gotSvc, "id = ?", "villa").Error; err != nil {
		t.Fatalf("readback service: %v", err)
	}
	if len(gotSvc.Content) == 0 {
		t.Fatalf("expected JSON content to persist")
	}
}
