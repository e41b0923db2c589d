package client

import (
	"context"
	"io"
	"net/http"
)

type Client struct {
	*http.Client
	// AmazonSite overrides the site base URL, used by tests. Leave empty
	// for the real site.
	AmazonSite string
	Logger     logger
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

func newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

// Amazon serves degraded or blocking responses to clients that do not look
// like a browser, so every request carries a desktop browser UA and an
// explicit language preference.
func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
