// Package source resolves dataset locations and parses them into tables.
//
// A location is either an http(s) URL, fetched directly, or a key in the
// configured blob store. Locations ending in .gz are decompressed, a leading
// byte-order mark is dropped, and the delimiter is chosen from the file
// extension unless the dataset has an explicit override.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/pgzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"targetprep/internal/blob"
	"targetprep/internal/table"
)

// ErrUnavailable reports a dataset that could not be fetched, decoded or parsed.
type ErrUnavailable struct {
	Dataset  string
	Location string
	Err      error
}

func (e ErrUnavailable) Error() string {
	return fmt.Sprintf("source %s (%s) unavailable: %v", e.Dataset, e.Location, e.Err)
}

func (e ErrUnavailable) Unwrap() error { return e.Err }

// Loader reads datasets from URLs or a blob store.
type Loader struct {
	store      blob.Store
	client     *http.Client
	delimiters map[string]rune
}

// NewLoader returns a Loader. A nil client uses http.DefaultClient; delimiters
// maps dataset keys to explicit field separators.
func NewLoader(store blob.Store, client *http.Client, delimiters map[string]rune) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{store: store, client: client, delimiters: delimiters}
}

// Load reads the dataset at location into a table named after the dataset.
func (l *Loader) Load(ctx context.Context, dataset, location string) (*table.Table, error) {
	rc, err := l.open(ctx, location)
	if err != nil {
		return nil, ErrUnavailable{Dataset: dataset, Location: location, Err: err}
	}
	defer func() { _ = rc.Close() }()

	r, closeFn, err := decode(rc, location)
	if err != nil {
		return nil, ErrUnavailable{Dataset: dataset, Location: location, Err: err}
	}
	defer closeFn()

	delim, ok := l.delimiters[dataset]
	if !ok {
		delim = Delimiter(location)
	}
	t, err := table.Read(r, dataset, delim)
	if err != nil {
		return nil, ErrUnavailable{Dataset: dataset, Location: location, Err: err}
	}
	return t, nil
}

// Check reports whether location is reachable without reading it.
func (l *Loader) Check(ctx context.Context, location string) error {
	if IsURL(location) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
		if err != nil {
			return err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("HEAD %s: %s", location, resp.Status)
		}
		return nil
	}
	_, err := l.store.Head(ctx, location)
	return err
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsURL(location) {
		_, rc, err := l.store.Get(ctx, location)
		return rc, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", location, resp.Status)
	}
	return resp.Body, nil
}

func decode(r io.Reader, location string) (io.Reader, func(), error) {
	closeFn := func() {}
	if strings.HasSuffix(baseName(location), ".gz") {
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		r = zr
		closeFn = func() { _ = zr.Close() }
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), closeFn, nil
}

// IsURL reports whether location should be fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Delimiter picks the field separator from the file name: comma for .csv,
// tab for everything else (.tsv, .txt, .tab ...). A .gz suffix is ignored.
func Delimiter(location string) rune {
	name := strings.TrimSuffix(baseName(location), ".gz")
	if strings.EqualFold(path.Ext(name), ".csv") {
		return ','
	}
	return '\t'
}

func baseName(location string) string {
	if IsURL(location) {
		if u, err := url.Parse(location); err == nil {
			return path.Base(u.Path)
		}
	}
	return path.Base(location)
}
