package repo

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/luvia-backend/internal/domain"
)

func TestOpenSQLite_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "luvia.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestOpenSQLite_ParentIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	db, err := OpenSQLite(filepath.Join(blocker, "luvia.db"))
	if err == nil || db != nil {
		t.Fatalf("db=%v err=%v", db, err)
	}
	if !strings.Contains(err.Error(), "sqlite dir") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "luvia.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if got := sqlDB.Stats().MaxOpenConnections; got != 10 {
		t.Fatalf("max open = %d", got)
	}

	ctx := context.Background()
	c1, err := sqlDB.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c1.Close()
	c2, err := sqlDB.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	for i, conn := range []*sql.Conn{c1, c2} {
		var (
			journal string
			sync    int
			fk      int
			busy    int
		)
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal); err != nil {
			t.Fatalf("conn %d journal_mode: %v", i, err)
		}
		_ = conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync)
		_ = conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk)
		_ = conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy)
		if strings.ToLower(journal) != "wal" || sync != 1 || fk != 1 || busy != 5000 {
			t.Fatalf("conn %d: journal=%s sync=%d fk=%d busy=%d", i, journal, sync, fk, busy)
		}
	}
}

func TestAutoMigrateAndInstrument(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "luvia.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, m := range []any{&domain.Booking{}, &domain.Customer{}, &domain.Service{}, &domain.Setting{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("no table for %T", m)
		}
	}
	if err := Instrument(db); err != nil {
		t.Fatalf("instrument: %v", err)
	}

	now := time.Now().UTC()
	b := &domain.Booking{BookingCode: "BK00001", CustomerName: "Trần Thị B", CustomerPhone: "0912345678", Status: domain.StatusNew, CreatedAt: now}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got domain.Booking
	if err := db.WithContext(context.Background()).First(&got, b.ID).Error; err != nil || got.CustomerName != "Trần Thị B" {
		t.Fatalf("readback: %v %+v", err, got)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
