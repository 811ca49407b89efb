package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/poiesic/catalogit/core"
)

// ParsePrice keeps only digits and decimal points and parses the remainder.
// Absent or unparseable prices are nil, never zero.
func ParsePrice(raw string) *float64 {
	if IsNullSentinel(raw) {
		return nil
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseRating parses a decimal rating and clamps it to [0, core.MaxRating].
// Unparseable and non-finite values are nil.
func ParseRating(raw string) *float64 {
	if IsNullSentinel(raw) {
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	v = math.Max(0, math.Min(core.MaxRating, v))
	return &v
}

// ParseReviewCount strips thousands separators and expands K and M suffixes.
// Anything unparseable or negative counts as zero.
func ParseReviewCount(raw string) int64 {
	if IsNullSentinel(raw) {
		return 0
	}

	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}

	// the epsilon absorbs binary representation error such as 1.2*1000
	count := math.Floor(v*multiplier + 1e-9)
	if count > math.MaxInt64 {
		return 0
	}
	return int64(count)
}

// ParseCategories splits a category cell into at most core.MaxCategories
// trimmed, non-empty tokens. Bracketed list literals split on commas; other
// values also split on the hierarchy separators | and >.
func ParseCategories(raw string) []string {
	out := make([]string, 0, core.MaxCategories)
	if IsNullSentinel(raw) {
		return out
	}

	s := strings.TrimSpace(raw)
	var parts []string
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.Trim(s, "[]")
		s = strings.NewReplacer(`'`, "", `"`, "").Replace(s)
		parts = strings.Split(s, ",")
	} else {
		parts = strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == '|' || r == '>'
		})
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if IsNullSentinel(part) {
			continue
		}
		out = append(out, part)
		if len(out) == core.MaxCategories {
			break
		}
	}
	return out
}
