// Package file implements the local filesystem data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rowcore/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

// Local opens a file from local disk and decodes it to UTF-8.
type Local struct {
	path string
	dec  transform.Transformer
}

// NewLocal returns a Local bound to path. encoding is a WHATWG or IANA
// charset name; empty means UTF-8. A leading byte order mark is always
// stripped, and a UTF-16 BOM overrides encoding.
func NewLocal(path, encoding string) (*Local, error) {
	var fallback transform.Transformer = transform.Nop
	if e := strings.TrimSpace(encoding); e != "" {
		enc, err := htmlindex.Get(e)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", encoding, err)
		}
		fallback = enc.NewDecoder()
	}
	return &Local{path: path, dec: unicode.BOMOverride(fallback)}, nil
}

// Path is the file this source reads.
func (l *Local) Path() string { return l.path }

// Open returns the decoded content. A context that is already done is
// reported before the filesystem is touched; errors keep os.ErrNotExist
// reachable through errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return &decodedFile{Reader: transform.NewReader(f, l.dec), f: f}, nil
}

type decodedFile struct {
	io.Reader
	f *os.File
}

func (d *decodedFile) Close() error { return d.f.Close() }
