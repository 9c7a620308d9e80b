// Package services – customers, settings and stats
//
// These services back the operator dashboard. They are thin: validation and
// pagination defaults here, queries in repo.
package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/repo"
)

// CustomerService lists customers with booking aggregates.
type CustomerService struct {
	DB *gorm.DB
}

// ListPage returns a page of customers and the total count.
func (s *CustomerService) ListPage(ctx context.Context, page, pageSize int) ([]repo.CustomerSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountCustomers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []repo.CustomerSummary{}, 0, nil
	}
	items, err := repo.ListCustomers(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// SettingsService stores named JSON documents such as "site_info".
type SettingsService struct {
	DB *gorm.DB
}

// All returns every setting as key → JSON value.
func (s *SettingsService) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := repo.ListSettings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.Key] = json.RawMessage(r.Value)
	}
	return out, nil
}

// Put upserts key with value, which must be valid JSON.
func (s *SettingsService) Put(ctx context.Context, key string, value json.RawMessage) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 64 || len(value) == 0 || !json.Valid(value) {
		return ErrInvalidSetting
	}
	return repo.UpsertSetting(ctx, s.DB, &domain.Setting{Key: key, Value: datatypes.JSON(value)})
}

// StatsService reports dashboard counters.
type StatsService struct {
	DB *gorm.DB
}

// Counts returns booking counts per status and revenue.
func (s *StatsService) Counts(ctx context.Context) (repo.BookingCounts, error) {
	return repo.CountBookingsByStatus(ctx, s.DB)
}
