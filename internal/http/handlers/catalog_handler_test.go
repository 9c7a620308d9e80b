package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/services"
)

func catalogRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(d)
	r := gin.New()
	r.GET("/services", h.ListServices)
	r.GET("/services/search", h.SearchServices)
	r.GET("/services/:id", h.GetService)
	r.PUT("/services/:id", h.UpdateService)
	r.GET("/settings", h.GetSettings)
	r.POST("/settings", h.PutSetting)
	r.GET("/customers", h.ListCustomers)
	r.GET("/stats", h.Stats)
	return r
}

func TestListServices_ListAndSearch(t *testing.T) {
	var gotQ string
	var gotK int
	r := catalogRouter(Deps{Catalog: stubCatalog{
		list: func(context.Context) ([]domain.Service, error) {
			return []domain.Service{{ID: "a"}, {ID: "b"}}, nil
		},
		search: func(_ context.Context, q string, k int) ([]domain.Service, error) {
			gotQ, gotK = q, k
			return []domain.Service{{ID: "a"}}, nil
		},
	}})

	w := do(r, http.MethodGet, "/services", nil, nil)
	var out ServicesResponse
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &out) != nil || len(out.Services) != 2 {
		t.Fatalf("list -> %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/services/search?q=+s%C3%A2n+bay+&k=500", nil, nil)
	if w.Code != http.StatusOK || gotQ != "sân bay" || gotK != 50 {
		t.Fatalf("search -> %d q=%q k=%d", w.Code, gotQ, gotK)
	}
	do(r, http.MethodGet, "/services/search?q=x&k=3", nil, nil)
	if gotK != 3 {
		t.Fatalf("k = %d", gotK)
	}
	if w := do(r, http.MethodGet, "/services/search?q=+", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("blank q -> %d", w.Code)
	}
}

func TestGetAndUpdateService(t *testing.T) {
	var gotIn services.UpdateServiceInput
	r := catalogRouter(Deps{Catalog: stubCatalog{
		get: func(_ context.Context, id string) (*domain.Service, error) {
			if id == "visa" {
				return &domain.Service{ID: "visa", Title: "Gia hạn visa"}, nil
			}
			return nil, services.ErrServiceNotFound
		},
		update: func(_ context.Context, id string, in services.UpdateServiceInput) (*domain.Service, error) {
			gotIn = in
			switch {
			case id != "visa":
				return nil, services.ErrServiceNotFound
			case in.Title == "":
				return nil, services.ErrInvalidService
			case in.Title == "boom":
				return nil, errors.New("db")
			}
			return &domain.Service{ID: id, Title: in.Title}, nil
		},
	}})

	if w := do(r, http.MethodGet, "/services/visa", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/services/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing -> %d", w.Code)
	}

	cases := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"ok", "visa", `{"title":"Visa","content":{"faq":[]}}`, http.StatusOK},
		{"bad json", "visa", `{`, http.StatusBadRequest},
		{"invalid", "visa", `{"title":""}`, http.StatusBadRequest},
		{"missing", "nope", `{"title":"x"}`, http.StatusNotFound},
		{"internal", "visa", `{"title":"boom"}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(r, http.MethodPut, "/services/"+tc.id, jsonBody(tc.body), nil); w.Code != tc.want {
				t.Fatalf("-> %d %s", w.Code, w.Body.String())
			}
		})
	}
	if gotIn.Title != "boom" {
		t.Fatalf("last input = %+v", gotIn)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	store := map[string]json.RawMessage{}
	r := catalogRouter(Deps{Settings: stubSettings{
		all: func(context.Context) (map[string]json.RawMessage, error) { return store, nil },
		put: func(_ context.Context, k string, v json.RawMessage) error {
			if k == "" {
				return services.ErrInvalidSetting
			}
			store[k] = v
			return nil
		},
	}})

	if w := do(r, http.MethodPost, "/settings", jsonBody(`{"key":"site_info","value":{"hotline":"1900"}}`), nil); w.Code != http.StatusNoContent {
		t.Fatalf("put -> %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/settings", jsonBody(`{"key":"","value":{}}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("put invalid -> %d", w.Code)
	}
	w := do(r, http.MethodGet, "/settings", nil, nil)
	var out map[string]map[string]string
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &out) != nil || out["site_info"]["hotline"] != "1900" {
		t.Fatalf("get -> %d %s", w.Code, w.Body.String())
	}
}

func TestCustomersAndStatsEndpoints(t *testing.T) {
	var page, size int
	r := catalogRouter(Deps{
		Customers: stubCustomers{listPage: func(_ context.Context, p, ps int) ([]repo.CustomerSummary, int64, error) {
			page, size = p, ps
			return []repo.CustomerSummary{{Phone: "1", BookingCount: 2, TotalSpent: 200000}}, 1, nil
		}},
		Stats: stubStats{counts: func(context.Context) (repo.BookingCounts, error) {
			return repo.BookingCounts{Total: 3, Paid: 1, Revenue: 200000}, nil
		}},
	})

	w := do(r, http.MethodGet, "/customers?page=2&page_size=5", nil, nil)
	var cust ListCustomersResponse
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &cust) != nil || page != 2 || size != 5 {
		t.Fatalf("customers -> %d %s", w.Code, w.Body.String())
	}
	if cust.Customers[0].TotalSpent != 200000 || cust.Pagination.Total != 1 {
		t.Fatalf("customers body: %+v", cust)
	}

	w = do(r, http.MethodGet, "/stats", nil, nil)
	var st StatsResponse
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &st) != nil || st.Counts.Revenue != 200000 {
		t.Fatalf("stats -> %d %s", w.Code, w.Body.String())
	}

	r = catalogRouter(Deps{Stats: stubStats{counts: func(context.Context) (repo.BookingCounts, error) {
		return repo.BookingCounts{}, errors.New("db")
	}}})
	if w := do(r, http.MethodGet, "/stats", nil, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("stats failure -> %d", w.Code)
	}
}
