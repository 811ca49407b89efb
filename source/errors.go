package source

import "errors"

var (
	// ErrUnsupportedScheme is returned for a location no fetcher can serve.
	ErrUnsupportedScheme = errors.New("unsupported source scheme")

	// ErrInvalidLocation is returned for a location that cannot be parsed.
	ErrInvalidLocation = errors.New("invalid source location")

	// ErrFetch wraps network and object storage failures.
	ErrFetch = errors.New("fetching source failed")

	// ErrRead wraps failures while reading or decompressing a downloaded file.
	ErrRead = errors.New("reading source failed")

	// ErrMissingHeader is returned when the file has no header row.
	ErrMissingHeader = errors.New("source has no header row")

	// ErrTooManyMalformed is returned when too many consecutive lines fail to parse.
	ErrTooManyMalformed = errors.New("too many consecutive malformed lines")
)
