// Package fetcher opens source datasets from the local filesystem, HTTP(S)
// or FTP, and streams CSV and JSON records out of them.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download returns the resource body. The caller closes it.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Opener resolves a source string to a reader by scheme: http and https go
// through HTTP, ftp through FTP, file:// and bare paths are opened locally.
type Opener struct {
	HTTP Fetcher
	FTP  Fetcher
}

// Open returns a reader over source. The caller closes it.
func (o Opener) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		return openFile(source)
	}

	switch u.Scheme {
	case "http", "https":
		if o.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", source)
		}
		return o.HTTP.Download(ctx, source)
	case "ftp":
		if o.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", source)
		}
		return o.FTP.Download(ctx, source)
	case "file":
		return openFile(u.Path)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
