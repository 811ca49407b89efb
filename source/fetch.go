package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Fetcher copies the object at loc into w.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location, w io.Writer) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, loc Location, w io.Writer) error

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, loc Location, w io.Writer) error {
	return f(ctx, loc, w)
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, loc Location, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Raw, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", loc.Raw, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return nil
}

type fileFetcher struct{}

func (fileFetcher) Fetch(ctx context.Context, loc Location, w io.Writer) error {
	f, err := os.Open(loc.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
