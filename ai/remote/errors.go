package remote

import "errors"

// ErrServiceStatus indicates the embedding service answered with an unexpected HTTP status.
var ErrServiceStatus = errors.New("embedding service returned an error status")
