package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ErrUnexpectedStatus is returned when the feed answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

// Source yields the raw JSON feed.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// HTTPSource fetches the feed with a single GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return resp.Body, nil
}

func (s HTTPSource) String() string { return s.URL }

// FileSource reads the feed from a local JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	return f, nil
}

func (s FileSource) String() string { return "file://" + s.Path }

// NewSource prefers a local file over the URL when both are set.
func NewSource(file, url string) Source {
	if file != "" {
		return FileSource{Path: file}
	}
	return HTTPSource{URL: url}
}
