// Package ledger looks up booking payments in the external ledger, an
// Airtable base maintained by the operators.
//
// The table that holds the payments is not reliably known: it has been
// renamed and recreated over time. Lookup therefore walks an ordered list of
// candidate tables, treating "no such table" as a miss and moving on, and
// scans every field of every returned record for the booking code since the
// column naming is not under our control.
//
// Outcomes:
//   - configuration_missing: no access token or base id; no request is made.
//   - found_paid / found_unpaid: a record matched; the status decides which.
//   - not_found: no candidate held a matching record.
//   - error: a candidate answered with a non-success status that is not a
//     missing table, or a transport failure occurred and nothing matched.
//
// The package only reads. Mutating local bookings is the caller's job.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL    = "https://api.airtable.com"
	defaultMaxRecords = 100
	defaultTimeout    = 8 * time.Second
	maxBodyBytes      = 4 << 20
)

var tracer = otel.Tracer("github.com/tbourn/luvia-backend/internal/ledger")

// Config describes where the ledger lives and how to reach it.
//
// Candidate tables are tried in the order DefaultTable, TableOverride,
// FallbackTable, LegacyTableID; empty entries and duplicates are skipped.
type Config struct {
	BaseURL       string
	BaseID        string
	Token         string
	DefaultTable  string
	TableOverride string
	FallbackTable string
	LegacyTableID string
	MaxRecords    int
	Timeout       time.Duration // per request
	HTTPClient    *http.Client
}

// Client performs ledger lookups. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client with defaults applied to cfg.
func New(cfg Config) *Client {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.BaseID = strings.TrimSpace(cfg.BaseID)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRecords <= 0 || cfg.MaxRecords > defaultMaxRecords {
		cfg.MaxRecords = defaultMaxRecords
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
}

// Configured reports whether both the token and the base id are present.
func (c *Client) Configured() bool {
	return c.cfg.Token != "" && c.cfg.BaseID != ""
}

// Candidates returns the de-duplicated candidate tables in lookup order.
func (c *Client) Candidates() []string {
	return dedupe(c.cfg.DefaultTable, c.cfg.TableOverride, c.cfg.FallbackTable, c.cfg.LegacyTableID)
}

func dedupe(in ...string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Lookup searches the candidate tables for a record carrying code.
//
// The scan stops at the first table holding a match; within a table the first
// matching record in response order wins. A missing table advances to the
// next candidate. A transport failure or timeout is remembered and the scan
// continues; if nothing matches afterwards the outcome is error rather than
// not_found. Any other non-success response aborts the lookup.
func (c *Client) Lookup(ctx context.Context, code string) (res Result) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ledger.Lookup")
	defer func() {
		span.SetAttributes(
			attribute.String("ledger.outcome", string(res.Outcome)),
			attribute.String("ledger.table", res.Table),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		observe(res.Outcome, time.Since(start))
	}()

	if !c.Configured() {
		log.Warn().Msg("ledger credentials missing; skipping lookup")
		return Result{Outcome: OutcomeConfigMissing}
	}
	want := normalize(code)
	if want == "" {
		return Result{Outcome: OutcomeNotFound}
	}

	var transient error
	for _, table := range c.Candidates() {
		records, err := c.fetch(ctx, table)
		switch {
		case errors.Is(err, ErrTableNotFound):
			log.Debug().Str("table", table).Msg("ledger table not found; trying next candidate")
			continue
		case err != nil:
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return Result{Outcome: OutcomeError, Table: table, Err: err}
			}
			if ctx.Err() != nil {
				return Result{Outcome: OutcomeError, Table: table, Err: err}
			}
			log.Warn().Err(err).Str("table", table).Msg("ledger request failed; trying next candidate")
			transient = err
			continue
		}

		rec := findRecord(records, want)
		if rec == nil {
			continue
		}
		status := statusOf(*rec)
		out := OutcomeFoundUnpaid
		if IsPaidStatus(status) {
			out = OutcomeFoundPaid
		}
		log.Debug().Str("table", table).Str("record_id", rec.ID).Str("status", status).Msg("ledger record matched")
		return Result{Outcome: out, Status: status, Table: table, Record: rec}
	}

	if transient != nil {
		return Result{Outcome: OutcomeError, Err: transient}
	}
	return Result{Outcome: OutcomeNotFound}
}

type listResponse struct {
	Records []Record `json:"records"`
}

type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// fetch reads up to MaxRecords rows of table.
func (c *Client) fetch(ctx context.Context, table string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/v0/%s/%s?maxRecords=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.BaseID), url.PathEscape(table), strconv.Itoa(c.cfg.MaxRecords))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode, body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out listResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("ledger: decode %q: %w", table, err)
	}
	return out.Records, nil
}

// classify turns a non-success response into ErrTableNotFound or *APIError.
// The error member is either a bare string ("NOT_FOUND") or an object with
// type and message.
func classify(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	var typ, msg string
	if len(eb.Error) > 0 {
		var s string
		if err := json.Unmarshal(eb.Error, &s); err == nil {
			typ = s
		} else {
			var obj struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(eb.Error, &obj); err == nil {
				typ, msg = obj.Type, obj.Message
			}
		}
	}

	upper := strings.ToUpper(typ)
	// Covers NOT_FOUND, TABLE_NOT_FOUND and INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND.
	if status == http.StatusNotFound || strings.Contains(upper, "NOT_FOUND") {
		return ErrTableNotFound
	}
	return &APIError{StatusCode: status, Type: typ, Message: msg}
}
