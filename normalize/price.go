package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency markers seen across the supported marketplaces. Order matters:
// multi-char codes must be tried before their single-char prefixes.
var currencyMarkers = []struct {
	marker   string
	currency string
}{
	{"US$", "USD"},
	{"USD", "USD"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"INR", "INR"},
	{"₹", "INR"},
	{"RMB", "CNY"},
	{"CNY", "CNY"},
	{"元", "CNY"},
	{"¥", "CNY"},
	{"EUR", "EUR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
}

var priceNumberRe = regexp.MustCompile(`([0-9]+(?:[,0-9]*[0-9])?(?:\.[0-9]+)?)(?:\s*[-~–]\s*([0-9]+(?:[,0-9]*[0-9])?(?:\.[0-9]+)?))?`)

// ExtractPrice finds the first currency-adjacent number in a raw display
// string. Ranges like "US$12.50-15.80" yield both bounds, a single amount
// yields min == max. Returns nils and empty currency when nothing matches.
func ExtractPrice(raw string) (min *float64, max *float64, currency string) {
	if raw == "" {
		return nil, nil, ""
	}
	for _, cm := range currencyMarkers {
		idx := strings.Index(raw, cm.marker)
		if idx < 0 {
			continue
		}
		rest := raw[idx+len(cm.marker):]
		loc := priceNumberRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		// The number must sit right after the marker, allowing whitespace
		if strings.TrimSpace(rest[:loc[0]]) != "" {
			continue
		}
		m := priceNumberRe.FindStringSubmatch(rest[loc[0]:])
		lo, ok := parseAmount(m[1])
		if !ok {
			continue
		}
		hi := lo
		if m[2] != "" {
			if v, ok := parseAmount(m[2]); ok {
				hi = v
			}
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		return &lo, &hi, cm.currency
	}
	return nil, nil, ""
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
