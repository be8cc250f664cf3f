package enrich

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/width"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// ValidationError reports a candidate value that failed format rules
// and must be dropped instead of written back.
type ValidationError struct {
	Field  model.ContactField
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("enrich: %s %q rejected: %s", e.Field, e.Value, e.Reason)
}

// areaCodeRule gives the allowed total digit count (area code included)
// for a Korean area-code prefix.
type areaCodeRule struct {
	min int
	max int
}

// Korean numbering plan: Seoul "02" allows 9-10 total digits, other
// geographic area codes 10-11, mobile and VoIP prefixes exactly 11.
var (
	mobilePrefixes = map[string]areaCodeRule{
		"010": {11, 11},
		"011": {11, 11},
		"016": {11, 11},
		"017": {11, 11},
		"018": {11, 11},
		"019": {11, 11},
		"070": {11, 11}, // VoIP
	}
	regionPrefixes = map[string]areaCodeRule{
		"031": {10, 11}, "032": {10, 11}, "033": {10, 11},
		"041": {10, 11}, "042": {10, 11}, "043": {10, 11}, "044": {10, 11},
		"051": {10, 11}, "052": {10, 11}, "053": {10, 11},
		"054": {10, 11}, "055": {10, 11},
		"061": {10, 11}, "062": {10, 11}, "063": {10, 11}, "064": {10, 11},
	}
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// phoneDigits folds full-width characters (common on Korean sites),
// converts an international +82 form to its domestic 0-prefixed form,
// and strips everything but digits.
func phoneDigits(raw string) string {
	folded := width.Narrow.String(strings.TrimSpace(raw))

	if strings.Contains(folded, "+82") {
		if num, err := phonenumbers.Parse(folded, "KR"); err == nil {
			folded = "0" + strconv.FormatUint(num.GetNationalNumber(), 10)
		}
	}

	var b strings.Builder
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitAreaCode returns the area-code prefix and its length rule, or
// ok=false when the digits start with no recognized prefix.
func splitAreaCode(digits string) (string, areaCodeRule, bool) {
	if strings.HasPrefix(digits, "02") {
		return "02", areaCodeRule{9, 10}, true
	}
	if len(digits) >= 3 {
		p := digits[:3]
		if rule, ok := mobilePrefixes[p]; ok {
			return p, rule, true
		}
		if rule, ok := regionPrefixes[p]; ok {
			return p, rule, true
		}
	}
	return "", areaCodeRule{}, false
}

// formatDashes renders a validated digit string in the conventional
// domestic dashed form, e.g. 0212345678 -> 02-1234-5678.
func formatDashes(prefix, digits string) string {
	rest := digits[len(prefix):]
	if len(rest) <= 4 {
		return prefix + "-" + rest
	}
	return prefix + "-" + rest[:len(rest)-4] + "-" + rest[len(rest)-4:]
}

// Phone validates a candidate phone (or fax) number against the Korean
// area-code/length table and returns it in canonical dashed form.
func Phone(field model.ContactField, raw string) (string, error) {
	digits := phoneDigits(raw)
	if digits == "" {
		return "", &ValidationError{Field: field, Value: raw, Reason: "no digits"}
	}
	prefix, rule, ok := splitAreaCode(digits)
	if !ok {
		return "", &ValidationError{Field: field, Value: raw, Reason: "unknown area code"}
	}
	if len(digits) < rule.min || len(digits) > rule.max {
		return "", &ValidationError{
			Field: field, Value: raw,
			Reason: fmt.Sprintf("length %d outside %d-%d for area code %s", len(digits), rule.min, rule.max, prefix),
		}
	}
	return formatDashes(prefix, digits), nil
}

// Email validates a candidate email address.
func Email(raw string) (string, error) {
	addr := width.Narrow.String(strings.TrimSpace(raw))
	if !emailPattern.MatchString(addr) {
		return "", &ValidationError{Field: model.FieldEmail, Value: raw, Reason: "not a valid address"}
	}
	return strings.ToLower(addr), nil
}

// Homepage validates a candidate homepage URL: absolute http(s) with a
// host. Scheme-less values like "example.or.kr" are rejected, not
// repaired; URL repair belongs to the discovery step.
func Homepage(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	u, err := url.Parse(s)
	if err != nil {
		return "", &ValidationError{Field: model.FieldHomepage, Value: raw, Reason: "unparseable"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: model.FieldHomepage, Value: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return "", &ValidationError{Field: model.FieldHomepage, Value: raw, Reason: "missing host"}
	}
	return u.String(), nil
}

// Address accepts any non-empty address after trimming; the legacy
// system stored addresses verbatim.
func Address(raw string) (string, error) {
	s := strings.TrimSpace(width.Narrow.String(raw))
	if s == "" {
		return "", &ValidationError{Field: model.FieldAddress, Value: raw, Reason: "empty"}
	}
	return s, nil
}

// ValidateField dispatches a candidate value to the validator for its
// field. Unknown fields are rejected.
func ValidateField(field model.ContactField, raw string) (string, error) {
	switch field {
	case model.FieldPhone, model.FieldFax:
		return Phone(field, raw)
	case model.FieldEmail:
		return Email(raw)
	case model.FieldHomepage:
		return Homepage(raw)
	case model.FieldAddress:
		return Address(raw)
	}
	return "", &ValidationError{Field: field, Value: raw, Reason: "unknown field"}
}
