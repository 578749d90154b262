// Package fetcher downloads and parses business directory data from HTTP,
// FTP, CSV, JSON, and XLSX sources.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns a fetcher appropriate for the URL's scheme. Directory
// listings come from arbitrary configured endpoints, so the scheme is not
// known until runtime.
func ForURL(rawURL string, httpFetcher *HTTPFetcher, ftpFetcher *FTPFetcher) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return httpFetcher, nil
	case "ftp":
		return ftpFetcher, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
