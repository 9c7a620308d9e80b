package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// statusFields are the column names the operators have used for the payment
// state, tried in order.
var statusFields = []string{"Status", "status", "Trạng thái"}

// paidStatuses holds the lowercased, NFC-normalized values that mean "paid".
var paidStatuses = map[string]struct{}{
	"paid":          {},
	"done":          {},
	"đã thanh toán": {},
	"hoàn thành":    {},
}

// normalize trims, NFC-composes, and lowercases s. Vietnamese text typed on
// some keyboards arrives decomposed, so composition runs before comparison.
func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// IsPaidStatus reports whether raw is one of the recognized paid synonyms.
func IsPaidStatus(raw string) bool {
	_, ok := paidStatuses[normalize(raw)]
	return ok
}

// stringify renders a decoded JSON value the way it is shown in the ledger UI.
// Numbers keep their literal text because the decoder runs with UseNumber.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// matches reports whether any field value of rec equals code after trimming
// and case folding. code must already be normalized.
func matches(rec Record, code string) bool {
	for _, v := range rec.Fields {
		if normalize(stringify(v)) == code {
			return true
		}
	}
	return false
}

// findRecord returns the first record in response order that matches code.
func findRecord(records []Record, code string) *Record {
	for i := range records {
		if matches(records[i], code) {
			return &records[i]
		}
	}
	return nil
}

// statusOf reads the raw status of rec from the first alias that holds a
// non-empty value.
func statusOf(rec Record) string {
	for _, f := range statusFields {
		if v, ok := rec.Fields[f]; ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
