package urlcheck

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const userAgent = "visual-measurement/1.0 (+image-probe)"

// ProbeResult is what the reachability probe learns about a location
// without reading its body.
type ProbeResult struct {
	StatusCode  int
	ContentType string
}

// Prober checks whether a location answers and what it claims to serve.
type Prober interface {
	Probe(ctx context.Context, url string) (ProbeResult, error)
}

// RestyProber sends a HEAD request, falling back to a single-byte ranged GET
// for servers that do not implement HEAD.
type RestyProber struct {
	client *resty.Client
}

// NewRestyProber creates a prober that follows up to maxRedirects redirects.
func NewRestyProber(maxRedirects int) *RestyProber {
	client := resty.New().
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "image/*")
	return &RestyProber{client: client}
}

func (p *RestyProber) Probe(ctx context.Context, url string) (ProbeResult, error) {
	resp, err := p.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return ProbeResult{}, err
	}

	if resp.StatusCode() == http.StatusMethodNotAllowed || resp.StatusCode() == http.StatusNotImplemented {
		resp, err = p.client.R().
			SetContext(ctx).
			SetHeader("Range", "bytes=0-0").
			SetDoNotParseResponse(true).
			Get(url)
		if err != nil {
			return ProbeResult{}, err
		}
		if body := resp.RawBody(); body != nil {
			body.Close()
		}
	}

	return ProbeResult{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}
