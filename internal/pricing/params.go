package pricing

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Params is the loosely typed parameter bag sent with a quote request.
// JSON decoding yields float64/string/bool values, so every accessor
// tolerates the common encodings.
type Params map[string]interface{}

// String returns the first non-blank string value among keys.
func (p Params) String(def string, keys ...string) string {
	for _, key := range keys {
		if raw, ok := p[key]; ok && raw != nil {
			if s := strings.TrimSpace(toString(raw)); s != "" {
				return s
			}
		}
	}
	return def
}

// Int returns the first integer value among keys.
func (p Params) Int(def int, keys ...string) int {
	for _, key := range keys {
		raw, ok := p[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return def
}

// Decimal returns the first decimal value among keys, or false when none parse.
func (p Params) Decimal(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		raw, ok := p[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case int64:
			return decimal.NewFromInt(v), true
		case json.Number:
			if d, err := decimal.NewFromString(v.String()); err == nil {
				return d, true
			}
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
				return d, true
			}
		case decimal.Decimal:
			return v, true
		}
	}
	return decimal.Zero, false
}

// Date returns the first ISO date value among keys.
func (p Params) Date(def time.Time, keys ...string) time.Time {
	for _, key := range keys {
		if s := p.String("", key); s != "" {
			if d, err := time.Parse("2006-01-02", s); err == nil {
				return d
			}
		}
	}
	return def
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
