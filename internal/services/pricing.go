package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbourn/luvia-backend/internal/search"
)

// DefaultPlaceholderFee is charged for packages priced as "contact us".
const DefaultPlaceholderFee int64 = 50000

var freeKeywords = []string{"mien phi", "free"}

// An amount is either thousands-grouped ("1.500.000", "2,000,000") or a bare
// run of digits.
var amountRE = regexp.MustCompile(`[0-9]{1,3}(?:[.,][0-9]{3})+|[0-9]+`)

// ResolveAmount turns a displayed package price into an integer VND amount.
//
//   - blank → 0 (free request, no payment step)
//   - "Miễn phí"/"free" in any case or accenting → 0
//   - a number → the first one, separators dropped ("1.500.000đ" → 1500000);
//     units after "/" are ignored ("15.000 VNĐ/m2" → 15000)
//   - anything else ("Liên hệ") → placeholder
func ResolveAmount(price string, placeholder int64) int64 {
	p := strings.TrimSpace(price)
	if p == "" {
		return 0
	}
	folded := search.Fold(p)
	for _, kw := range freeKeywords {
		if strings.Contains(folded, kw) {
			return 0
		}
	}

	if unit := strings.IndexByte(p, '/'); unit >= 0 {
		p = p[:unit]
	}
	if m := amountRE.FindString(p); m != "" {
		if n, err := strconv.ParseInt(strings.NewReplacer(".", "", ",", "").Replace(m), 10, 64); err == nil {
			return n
		}
	}
	return placeholder
}
