// Package apicarto resolves coordinates to French cadastre parcels via the
// IGN API Carto parcel endpoint.
package apicarto

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/cadastre-cli/internal/model"
)

// DefaultBaseURL is the public API Carto parcel endpoint.
const DefaultBaseURL = "https://apicarto.ign.fr/api/cadastre/parcelle"

// Client looks up the parcel containing a point.
type Client interface {
	// LookupParcel returns the parcel at (lat, lon). A nil parcel with a nil
	// error means the service knows no parcel at that point. Any error is a
	// transport-level failure.
	LookupParcel(ctx context.Context, lat, lon float64) (*model.Parcel, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the parcel endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second limit. A non-positive value
// disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new parcel lookup Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
