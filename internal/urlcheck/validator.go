package urlcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds the whole validation of one location.
	DefaultTimeout = 3 * time.Second
	// DefaultMaxRedirects is how many redirects the probe follows.
	DefaultMaxRedirects = 5
)

// Resolver resolves host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Validator classifies image locations as usable or not. Checks run in a
// fixed order and stop at the first failure: syntax, completeness, name
// resolution, reachability, status, content type.
type Validator struct {
	resolver                Resolver
	prober                  Prober
	timeout                 time.Duration
	heuristics              Heuristics
	allowMissingContentType bool
	concurrency             int
}

// NewValidator creates a Validator with production defaults.
func NewValidator() *Validator {
	return &Validator{
		resolver:    net.DefaultResolver,
		prober:      NewRestyProber(DefaultMaxRedirects),
		timeout:     DefaultTimeout,
		heuristics:  DefaultHeuristics(),
		concurrency: 1,
	}
}

// WithTimeout sets the per-location timeout.
func (v *Validator) WithTimeout(timeout time.Duration) *Validator {
	v.timeout = timeout
	return v
}

// WithResolver replaces the DNS resolver.
func (v *Validator) WithResolver(r Resolver) *Validator {
	v.resolver = r
	return v
}

// WithProber replaces the reachability probe.
func (v *Validator) WithProber(p Prober) *Validator {
	v.prober = p
	return v
}

// WithHeuristics replaces the completeness rules.
func (v *Validator) WithHeuristics(h Heuristics) *Validator {
	v.heuristics = h
	return v
}

// WithConcurrency sets how many locations ValidateAll checks at once.
func (v *Validator) WithConcurrency(n int) *Validator {
	if n < 1 {
		n = 1
	}
	v.concurrency = n
	return v
}

// AllowMissingContentType accepts responses that carry no Content-Type.
func (v *Validator) AllowMissingContentType(allow bool) *Validator {
	v.allowMissingContentType = allow
	return v
}

func invalid(raw string, reason measurement.FailureReason, format string, a ...any) measurement.ValidationOutcome {
	return measurement.ValidationOutcome{
		URL:     raw,
		Valid:   false,
		Reason:  reason,
		Message: fmt.Sprintf(format, a...),
	}
}

// Validate checks a single location. It never returns an error; every
// failure is expressed as an outcome.
func (v *Validator) Validate(ctx context.Context, raw string) measurement.ValidationOutcome {
	u, err := checkSyntax(raw)
	if err != nil {
		return invalid(raw, measurement.FailureInvalidFormat, "%v", err)
	}
	if err := v.heuristics.check(raw, u); err != nil {
		return invalid(raw, measurement.FailureInvalidFormat, "%v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := v.resolver.LookupHost(ctx, host); err != nil {
			if cancelled(ctx) {
				return invalid(raw, measurement.FailureTimeout, "check cancelled before %s resolved", host)
			}
			if isTimeout(ctx, err) {
				return invalid(raw, measurement.FailureTimeout, "resolving %s timed out after %s", host, v.timeout)
			}
			return invalid(raw, measurement.FailureDNSError, "cannot resolve %s: %v", host, err)
		}
	}

	res, err := v.prober.Probe(ctx, u.String())
	if err != nil {
		var dnsErr *net.DNSError
		switch {
		case cancelled(ctx):
			return invalid(raw, measurement.FailureTimeout, "check cancelled before %s answered", host)
		case isTimeout(ctx, err):
			return invalid(raw, measurement.FailureTimeout, "no response within %s", v.timeout)
		case errors.As(err, &dnsErr):
			return invalid(raw, measurement.FailureDNSError, "cannot resolve %s: %v", dnsErr.Name, err)
		default:
			return invalid(raw, measurement.FailureServerError, "connection failed: %v", err)
		}
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return invalid(raw, measurement.FailureNotFound, "server answered %d", res.StatusCode)
	default:
		return invalid(raw, measurement.FailureServerError, "server answered %d", res.StatusCode)
	}

	contentType := strings.ToLower(strings.TrimSpace(res.ContentType))
	if contentType == "" {
		if !v.allowMissingContentType {
			return invalid(raw, measurement.FailureNotAnImage, "response has no content type")
		}
	} else if !strings.HasPrefix(contentType, "image/") {
		return invalid(raw, measurement.FailureNotAnImage, "content type %q is not an image", res.ContentType)
	}

	return measurement.ValidationOutcome{URL: raw, Valid: true}
}

// ValidateAll checks every location and returns the outcomes in input order.
func (v *Validator) ValidateAll(ctx context.Context, urls []string) []measurement.ValidationOutcome {
	outcomes := make([]measurement.ValidationOutcome, len(urls))

	if v.concurrency <= 1 {
		for i, u := range urls {
			outcomes[i] = v.Validate(ctx, u)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(v.concurrency)
		for i, u := range urls {
			g.Go(func() error {
				outcomes[i] = v.Validate(ctx, u)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, o := range outcomes {
		if !o.Valid {
			log.Info().
				Str("url", o.URL).
				Str("reason", string(o.Reason)).
				Str("detail", o.Message).
				Msg("image url rejected")
		}
	}
	return outcomes
}

// cancelled reports whether the caller gave up, as opposed to the
// per-location deadline expiring.
func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
