package source

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Supported location schemes.
const (
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeS3    = "s3"
	SchemeMinio = "minio"
)

// Location is a parsed source address.
type Location struct {
	Raw    string
	Scheme string
	// Bucket and Key are set for object storage schemes.
	Bucket string
	Key    string
	// Path is the local file path for the file scheme.
	Path string
}

// Name is the base file name of the location, used to pick a decompressor.
func (l Location) Name() string {
	switch l.Scheme {
	case SchemeFile:
		return filepath.Base(l.Path)
	case SchemeS3, SchemeMinio:
		return path.Base(l.Key)
	default:
		u, err := url.Parse(l.Raw)
		if err != nil {
			return ""
		}
		return path.Base(u.Path)
	}
}

// ParseLocation parses a source location. Bare paths are local files.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrInvalidLocation)
	}

	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return Location{Raw: raw, Scheme: SchemeFile, Path: raw}, nil
	}

	scheme = strings.ToLower(scheme)
	loc := Location{Raw: raw, Scheme: scheme}
	switch scheme {
	case SchemeFile:
		if rest == "" {
			return Location{}, fmt.Errorf("%w: %q has no path", ErrInvalidLocation, raw)
		}
		loc.Path = rest
	case SchemeHTTP, SchemeHTTPS:
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, raw)
		}
	case SchemeS3, SchemeMinio:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q must be %s://bucket/key", ErrInvalidLocation, raw, scheme)
		}
		loc.Bucket = bucket
		loc.Key = key
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return loc, nil
}
