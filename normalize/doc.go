// Package normalize maps raw catalog rows onto validated core.CatalogRecords.
//
// Field resolution is data driven: a Schema lists, per record field, an
// ordered chain of (column, validator) candidates and the first candidate
// whose column is present and valid wins. Numeric and list coercions share a
// single null-sentinel predicate, IsNullSentinel.
//
// Every row yields an Outcome that is either accepted or dropped with a
// DropReason. A bad row never aborts a pass; NormalizeAll only fails on
// cancellation.
package normalize
