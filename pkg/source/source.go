// Package source loads invoice documents from local files, stdin, HTTP and object storage.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	auditerrors "lawaudit/pkg/errors"
	"lawaudit/pkg/platform"
)

// DefaultMaxBytes caps documents when no limit is given
const DefaultMaxBytes int64 = 10 << 20

// Document is a loaded invoice
type Document struct {
	URI  string `json:"uri"`
	Text string `json:"-"`
}

// Location is a parsed source URI
type Location struct {
	Scheme string // "-", "file", "http", "https", "s3", "gs"
	Bucket string // host part for object stores
	Path   string // file path or object key
	Raw    string
}

// Fetcher reads the raw bytes behind a location, returning at most limit+1 bytes
type Fetcher interface {
	Fetch(ctx context.Context, loc Location, limit int64) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, loc Location, limit int64) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, loc Location, limit int64) ([]byte, error) {
	return f(ctx, loc, limit)
}

// ParseLocation splits a source URI. "-" is stdin and anything without a scheme is a local path.
func ParseLocation(uri string) (Location, error) {
	if uri == "-" {
		return Location{Scheme: "-", Raw: uri}, nil
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Path: uri, Raw: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("failed to parse source %q: %w", uri, err)
	}

	loc := Location{Scheme: strings.ToLower(u.Scheme), Raw: uri}
	switch loc.Scheme {
	case "file":
		loc.Path = u.Host + u.Path
	case "s3", "gs":
		loc.Bucket = u.Host
		loc.Path = strings.TrimPrefix(u.Path, "/")
		if loc.Bucket == "" || loc.Path == "" {
			return Location{}, fmt.Errorf("source %q must name a bucket and an object", uri)
		}
	default:
		loc.Path = u.Path
	}
	return loc, nil
}

// Loader dispatches source URIs to fetchers by scheme
type Loader struct {
	mu       sync.Mutex
	fetchers map[string]Fetcher
	maxBytes int64
}

// Option configures a Loader
type Option func(*Loader)

// WithFetcher registers or replaces the fetcher for a scheme
func WithFetcher(scheme string, f Fetcher) Option {
	return func(l *Loader) { l.fetchers[scheme] = f }
}

// WithMaxBytes sets the document size cap
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewLoader creates a loader for stdin, local files, HTTP(S), S3 and GCS.
// Cloud clients are created on first use so credentials are only needed when a cloud URI is loaded.
func NewLoader(opts ...Option) *Loader {
	web := &httpFetcher{client: platform.NewHTTPClient(
		platform.GetEnvInt("LAWAUDIT_HTTP_RETRIES", 2),
		platform.GetEnvDuration("LAWAUDIT_HTTP_TIMEOUT", 30*time.Second),
	)}

	l := &Loader{
		fetchers: map[string]Fetcher{
			"-":     stdinFetcher{},
			"file":  fileFetcher{},
			"http":  web,
			"https": web,
			"s3":    &s3Fetcher{},
			"gs":    &gcsFetcher{},
		},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the document at uri
func (l *Loader) Load(ctx context.Context, uri string) (Document, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return Document{}, auditerrors.NewSourceUnreadableError(uri, err)
	}

	l.mu.Lock()
	f, ok := l.fetchers[loc.Scheme]
	l.mu.Unlock()
	if !ok {
		return Document{}, auditerrors.NewUnsupportedSourceError(uri, loc.Scheme)
	}

	data, err := f.Fetch(ctx, loc, l.maxBytes)
	if err != nil {
		return Document{}, auditerrors.NewSourceUnreadableError(uri, err)
	}
	if int64(len(data)) > l.maxBytes {
		return Document{}, auditerrors.NewInputTooLargeError(uri, l.maxBytes)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return Document{}, auditerrors.NewEmptyInputError(uri)
	}
	return Document{URI: uri, Text: text}, nil
}

// Load reads uri with a default loader capped at maxBytes
func Load(ctx context.Context, uri string, maxBytes int64) (Document, error) {
	return NewLoader(WithMaxBytes(maxBytes)).Load(ctx, uri)
}
