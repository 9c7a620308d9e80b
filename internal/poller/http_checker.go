package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// configMissingMessage is the error text the API uses for an unconfigured ledger.
const configMissingMessage = "Configuration missing"

// HTTPChecker checks a booking through the public API endpoint
// GET {BaseURL}/check-booking/{code}.
type HTTPChecker struct {
	BaseURL string
	Client  *http.Client
}

type checkResponse struct {
	Status string `json:"status"`
	IsPaid bool   `json:"isPaid"`
	Error  string `json:"error"`
}

// Check performs one request. Any non-200 answer is a transient error.
func (h HTTPChecker) Check(ctx context.Context, code string) (Observation, error) {
	hc := h.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	u := strings.TrimRight(h.BaseURL, "/") + "/check-booking/" + url.PathEscape(strings.TrimSpace(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Observation{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Observation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return Observation{}, fmt.Errorf("poller: check-booking http %d", resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Observation{}, fmt.Errorf("poller: decode: %w", err)
	}
	return Observation{
		Status:        out.Status,
		IsPaid:        out.IsPaid,
		ConfigMissing: out.Error == configMissingMessage,
	}, nil
}
