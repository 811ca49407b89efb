package normalize

import "errors"

var (
	// ErrRowParse marks a failure confined to a single input row. It is
	// recorded on the dropped Outcome and never returned from NormalizeAll.
	ErrRowParse = errors.New("row parse failed")

	// ErrUnknownField is returned when a column override names no record field.
	ErrUnknownField = errors.New("unknown record field")

	// ErrEmptyColumnChain is returned when a column override lists no columns.
	ErrEmptyColumnChain = errors.New("column chain cannot be empty")

	// ErrInvalidMinTitleLength is returned for a negative minimum title length.
	ErrInvalidMinTitleLength = errors.New("minimum title length cannot be negative")
)
