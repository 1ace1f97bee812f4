// Package datasource defines where raw input bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a stream of decoded UTF-8 text.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
