package validation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plain fixed-point notation only: no exponents, NaN or thousands separators.
var decimalRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// MaxIntegerDigits is the widest integer part a stored numeric(20,4) column can hold.
const MaxIntegerDigits = 16

// DecimalString accepts either a JSON string or a JSON number and keeps its literal text,
// so "10.50" and 10.50 parse identically without passing through float64.
type DecimalString string

func (d *DecimalString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DecimalString(s)
		return nil
	}
	*d = DecimalString(b)
	return nil
}

// ParseDecimal parses s as a plain decimal literal with at most MaxIntegerDigits integer digits.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	d, ok := parsePlain(s)
	if !ok || IntegerDigits(d) > MaxIntegerDigits {
		return decimal.Zero, false
	}
	return d, true
}

func parsePlain(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !decimalRe.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IntegerDigits counts the digits left of the decimal point; zero has none.
func IntegerDigits(d decimal.Decimal) int {
	i := d.Abs().Truncate(0)
	if i.IsZero() {
		return 0
	}
	return len(i.String())
}

// Fields collects validation messages keyed by request field.
type Fields map[string]string

// Err returns an InvalidInput error when any field failed, nil otherwise.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Invalid(map[string]string(f))
}

// UUID parses a required identifier.
func (f Fields) UUID(field, raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		f[field] = field + " is required"
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		f[field] = "Invalid " + field + " format (must be a valid UUID)"
		return uuid.Nil
	}
	return id
}

// PositiveDecimal parses a required decimal that must be > 0.
func (f Fields) PositiveDecimal(field, raw string) decimal.Decimal {
	d, ok := f.decimal(field, raw)
	if ok && !d.IsPositive() {
		f[field] = field + " must be positive"
	}
	return d
}

// NonNegativeDecimal parses a required decimal that must be >= 0.
func (f Fields) NonNegativeDecimal(field, raw string) decimal.Decimal {
	d, ok := f.decimal(field, raw)
	if ok && d.IsNegative() {
		f[field] = field + " cannot be negative"
	}
	return d
}

// OptionalNonNegativeDecimal is NonNegativeDecimal with blank meaning zero.
func (f Fields) OptionalNonNegativeDecimal(field, raw string) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero
	}
	return f.NonNegativeDecimal(field, raw)
}

// OptionalDecimal parses a decimal that may be blank (null). Negative values are rejected
// unless allowNegative is set.
func (f Fields) OptionalDecimal(field, raw string, allowNegative bool) decimal.NullDecimal {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}
	}
	d, ok := f.decimal(field, raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	if !allowNegative && d.IsNegative() {
		f[field] = field + " cannot be negative"
	}
	return decimal.NewNullDecimal(d)
}

// Within rejects a known value whose integer part is wider than intDigits.
func (f Fields) Within(field string, d decimal.NullDecimal, intDigits int) {
	if _, failed := f[field]; failed || !d.Valid {
		return
	}
	if IntegerDigits(d.Decimal) > intDigits {
		f[field] = field + " is out of range"
	}
}

// OptionalTime parses an RFC 3339 timestamp or a plain 2006-01-02 date (midnight UTC).
// Blank yields nil.
func (f Fields) OptionalTime(field, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	f[field] = "Invalid " + field + " format (use RFC 3339 or YYYY-MM-DD)"
	return nil
}

// Required rejects blank strings.
func (f Fields) Required(field, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		f[field] = field + " is required"
	}
	return raw
}

func (f Fields) decimal(field, raw string) (decimal.Decimal, bool) {
	if strings.TrimSpace(raw) == "" {
		f[field] = field + " is required"
		return decimal.Zero, false
	}
	d, ok := parsePlain(raw)
	if !ok {
		f[field] = "Invalid " + field + " format"
		return decimal.Zero, false
	}
	if IntegerDigits(d) > MaxIntegerDigits {
		f[field] = field + " is out of range"
		return decimal.Zero, false
	}
	return d, true
}

// PathUUID parses an identifier taken from the URL. A malformed id cannot name an existing
// row, so it is reported as NotFound.
func PathUUID(raw, field, notFoundMsg string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.NotFoundField(field, notFoundMsg)
	}
	return id, nil
}
