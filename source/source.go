// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/poiesic/catalogit/core"
)

// DefaultMaxRecords caps the rows read from one catalog file.
const DefaultMaxRecords = 50000

// Download is a catalog file available on local disk.
type Download struct {
	Location Location
	Path     string
	Digest   string
	Size     int64
	temp     bool
}

// Remove deletes the local copy if it was downloaded to a temp file.
func (d *Download) Remove() error {
	if d == nil || !d.temp {
		return nil
	}
	return os.Remove(d.Path)
}

// Source downloads catalog files and reads them into raw rows.
type Source struct {
	fetchers       map[string]Fetcher
	downloadDir    string
	maxRecords     int
	maxConsecutive int
	logger         *slog.Logger
}

// Option configures a Source.
type Option func(*Source) error

// WithHTTPClient sets the client used for http and https locations.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) error {
		if client == nil {
			return fmt.Errorf("%w: nil http client", ErrInvalidLocation)
		}
		f := &httpFetcher{client: client}
		s.fetchers[SchemeHTTP] = f
		s.fetchers[SchemeHTTPS] = f
		return nil
	}
}

// WithS3Client enables s3:// locations.
func WithS3Client(client S3Client) Option {
	return func(s *Source) error {
		s.fetchers[SchemeS3] = &s3Fetcher{client: client}
		return nil
	}
}

// WithObjectGetter enables minio:// locations.
func WithObjectGetter(getter ObjectGetter) Option {
	return func(s *Source) error {
		s.fetchers[SchemeMinio] = &minioFetcher{getter: getter}
		return nil
	}
}

// WithFetcher registers a fetcher for an arbitrary scheme.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(s *Source) error {
		s.fetchers[scheme] = f
		return nil
	}
}

// WithDownloadDir sets where remote files are staged. Empty means os.TempDir.
func WithDownloadDir(dir string) Option {
	return func(s *Source) error {
		s.downloadDir = dir
		return nil
	}
}

// WithMaxRecords caps the data rows read per file. Zero means no cap.
func WithMaxRecords(n int) Option {
	return func(s *Source) error {
		if n < 0 {
			return fmt.Errorf("max records cannot be negative: %d", n)
		}
		s.maxRecords = n
		return nil
	}
}

// WithMaxConsecutiveMalformed sets the malformed line tolerance.
func WithMaxConsecutiveMalformed(n int) Option {
	return func(s *Source) error {
		s.maxConsecutive = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) error {
		if logger != nil {
			s.logger = logger.With("component", "source")
		}
		return nil
	}
}

// New creates a Source serving local files and http(s) by default.
func New(opts ...Option) (*Source, error) {
	httpF := &httpFetcher{client: &http.Client{Timeout: 10 * time.Minute}}
	s := &Source{
		fetchers: map[string]Fetcher{
			SchemeFile:  fileFetcher{},
			SchemeHTTP:  httpF,
			SchemeHTTPS: httpF,
		},
		maxRecords:     DefaultMaxRecords,
		maxConsecutive: DefaultMaxConsecutiveMalformed,
		logger:         slog.Default().With("component", "source"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Download makes the file at raw available locally and fingerprints it.
// Local files are read in place; everything else is copied to a temp file
// that the caller releases with Download.Remove.
func (s *Source) Download(ctx context.Context, raw string) (*Download, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	fetcher, ok := s.fetchers[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s (not configured)", ErrUnsupportedScheme, loc.Scheme)
	}

	start := time.Now()
	digest := core.NewDigest()

	if loc.Scheme == SchemeFile {
		info, err := os.Stat(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if err := fetcher.Fetch(ctx, loc, digest); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return &Download{
			Location: loc,
			Path:     loc.Path,
			Digest:   core.FormatSum(digest.Sum(nil)),
			Size:     info.Size(),
		}, nil
	}

	if s.downloadDir != "" {
		if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating download dir: %w", ErrFetch, err)
		}
	}
	name := loc.Name()
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	f, err := os.CreateTemp(s.downloadDir, "catalog-*-"+name)
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %w", ErrFetch, err)
	}

	counter := &countingWriter{}
	fetchErr := fetcher.Fetch(ctx, loc, io.MultiWriter(f, digest, counter))
	closeErr := f.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}
	if fetchErr != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("%w: %w", ErrFetch, fetchErr)
	}

	s.logger.Info("downloaded catalog", "location", loc.Raw, "bytes", counter.n, "elapsed", time.Since(start))
	return &Download{
		Location: loc,
		Path:     f.Name(),
		Digest:   core.FormatSum(digest.Sum(nil)),
		Size:     counter.n,
		temp:     true,
	}, nil
}

// ReadRows decompresses and parses a downloaded file.
func (s *Source) ReadRows(ctx context.Context, d *Download) (*ReadResult, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	codec := DetectCompression(d.Location.Name())
	r, err := Decompress(codec, f)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s stream: %w", ErrRead, codec, err)
	}
	defer r.Close()

	result, err := ReadCSV(ctx, r, s.maxRecords, s.maxConsecutive)
	if err != nil {
		return nil, err
	}

	if result.Malformed > 0 {
		s.logger.Warn("skipped malformed lines", "count", result.Malformed)
	}
	if result.Truncated {
		s.logger.Warn("record cap reached, remaining rows ignored", "max_records", s.maxRecords)
	}
	s.logger.Info("read catalog rows", "rows", len(result.Rows), "columns", len(result.Header))
	return result, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
