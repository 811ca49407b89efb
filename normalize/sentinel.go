package normalize

import "strings"

// nullSentinels are the textual spellings of a missing value found in exported
// catalogs, mirroring the NA strings recognized by common dataframe tooling.
var nullSentinels = map[string]struct{}{
	"nan":      {},
	"NaN":      {},
	"-nan":     {},
	"-NaN":     {},
	"NA":       {},
	"N/A":      {},
	"n/a":      {},
	"<NA>":     {},
	"NULL":     {},
	"null":     {},
	"None":     {},
	"#N/A":     {},
	"#NA":      {},
	"#N/A N/A": {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"1.#IND":   {},
	"1.#QNAN":  {},
}

// IsNullSentinel reports whether a raw value means "no value". Blank strings
// and the NA spellings above count as null. Every coercion goes through here.
func IsNullSentinel(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	_, ok := nullSentinels[trimmed]
	return ok
}
