package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Explicit minimum-order markers, strongest evidence first
var moqMarkerRe = regexp.MustCompile(`(?i)(?:MOQ|Min\.?\s*Order(?:\s*Quantity)?|Minimum\s*Order(?:\s*Quantity)?|≥|>=)\s*:?\s*([0-9][0-9,]*)`)

// Non-English equivalents (zh: qidingliang, pinliang shorthand)
var moqForeignRe = regexp.MustCompile(`(?:最小起订量|起订量|起订)\s*:?\s*([0-9][0-9,]*)`)

// A bare count followed by a unit token only counts as a MOQ when no
// currency marker sits directly in front of the number, otherwise it is
// almost certainly a price
var moqUnitRe = regexp.MustCompile(`(?i)(^|[^0-9.,])([0-9][0-9,]*)\s*(pieces?|pcs?|sets?|bags?|lots?|units?|pairs?|boxes|cartons?|rolls?|tons?|kgs?)\b`)

var currencyBeforeRe = regexp.MustCompile(`(?i)(?:US\$|\$|₹|Rs\.?|INR|USD|€|£|¥|元|RMB)\s*$`)

// ExtractMoq parses a minimum-order-quantity out of a raw text fragment.
// Attempts are chained explicitly: marker, foreign marker, bare number+unit.
// Returns nil when none of them match; the caller decides whether a missing
// MOQ is acceptable for its platform.
func ExtractMoq(raw string) *int {
	if raw == "" {
		return nil
	}
	if m := moqMarkerRe.FindStringSubmatch(raw); m != nil {
		return parseCount(m[1])
	}
	if m := moqForeignRe.FindStringSubmatch(raw); m != nil {
		return parseCount(m[1])
	}
	if m := moqUnitRe.FindStringSubmatchIndex(raw); m != nil {
		prefix := raw[:m[4]]
		if !currencyBeforeRe.MatchString(prefix) {
			return parseCount(raw[m[4]:m[5]])
		}
	}
	return nil
}

func parseCount(s string) *int {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
