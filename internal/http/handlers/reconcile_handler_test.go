package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/ledger"
	"github.com/tbourn/luvia-backend/internal/services"
)

func checkRouter(fn func(context.Context, string) (services.CheckResult, error)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Reconcile: stubReconcile{check: fn}})
	r := gin.New()
	r.GET("/check-booking/:code", h.CheckBooking)
	return r
}

func TestCheckBooking_Outcomes(t *testing.T) {
	cases := []struct {
		name string
		res  services.CheckResult
		want string
	}{
		{"paid", services.CheckResult{Outcome: ledger.OutcomeFoundPaid, Status: "Đã thanh toán", IsPaid: true},
			`{"status":"Đã thanh toán","isPaid":true}`},
		{"unpaid", services.CheckResult{Outcome: ledger.OutcomeFoundUnpaid, Status: "Chờ thanh toán"},
			`{"status":"Chờ thanh toán","isPaid":false}`},
		{"not found", services.CheckResult{Outcome: ledger.OutcomeNotFound},
			`{"status":"not_found","isPaid":false}`},
		{"config missing", services.CheckResult{Outcome: ledger.OutcomeConfigMissing},
			`{"isPaid":false,"error":"Configuration missing"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			r := checkRouter(func(_ context.Context, code string) (services.CheckResult, error) {
				seen = code
				return tc.res, nil
			})
			w := do(r, http.MethodGet, "/check-booking/CB7777", nil, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("-> %d %s", w.Code, w.Body.String())
			}
			if seen != "CB7777" {
				t.Fatalf("code passed = %q", seen)
			}
			var got, want map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &got)
			_ = json.Unmarshal([]byte(tc.want), &want)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("body = %s; want %s", w.Body.String(), tc.want)
			}
			if w.Header().Get("Cache-Control") != "no-store" {
				t.Fatalf("missing Cache-Control")
			}
		})
	}
}

func TestCheckBooking_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"empty", services.ErrEmptyCode, http.StatusBadRequest, ErrCodeBadRequest},
		{"ledger", fmt.Errorf("%w: timeout", services.ErrLedgerUnavailable), http.StatusServiceUnavailable, ErrCodeLedgerUnavailable},
		{"db", errors.New("locked"), http.StatusInternalServerError, ErrCodeCheckFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := checkRouter(func(context.Context, string) (services.CheckResult, error) {
				return services.CheckResult{}, tc.err
			})
			w := do(r, http.MethodGet, "/check-booking/%20", nil, nil)
			if w.Code != tc.want || decodeErr(t, w).Code != tc.code {
				t.Fatalf("-> %d %s", w.Code, w.Body.String())
			}
		})
	}
}
