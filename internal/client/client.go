package client

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

var errUnexpectedStatus = errors.New("unexpected status")

// Options configures a NeighborClient
type Options struct {
	Endpoint       string
	UserAgent      string
	RequestTimeout time.Duration

	// RetryAttempts is the number of extra attempts after a transport
	// failure. Zero disables retries.
	RetryAttempts int
	// RetryDelay is the first backoff interval. Zero retries immediately.
	RetryDelay time.Duration
}

// NeighborClient performs neighbor lookups against the remote service.
// Each worker owns one; the collector and last-response state are not safe
// for concurrent use.
type NeighborClient struct {
	endpoint  string
	retries   int
	delay     time.Duration
	collector *colly.Collector

	// last response, written by the collector callback during Visit
	body   []byte
	status int
}

// NewNeighborClient creates a client with its own colly collector
func NewNeighborClient(opts Options) *NeighborClient {
	c := &NeighborClient{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		retries:  opts.RetryAttempts,
		delay:    opts.RetryDelay,
	}

	c.collector = colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	if opts.RequestTimeout > 0 {
		c.collector.SetRequestTimeout(opts.RequestTimeout)
	}

	c.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		logrus.Debugf("Sending request to: %s", r.URL)
	})

	c.collector.OnResponse(func(r *colly.Response) {
		c.body = r.Body
		c.status = r.StatusCode
	})

	return c
}

// URL returns the lookup URL for label.
// Labels made only of dots ("." and "..") stay as dot segments. The collector
// resolves them like any URL, so they reach the endpoint itself or its parent;
// percent-encoding does not help since "%2e" is also read as a dot segment.
func (c *NeighborClient) URL(label string) string {
	return c.endpoint + "/" + url.PathEscape(label)
}

// Fetch returns the neighbor labels of label.
// Failures are returned as *FetchError; only transport failures are retried.
// ctx is checked before every attempt; a request already in flight runs until
// it completes or hits the request timeout.
func (c *NeighborClient) Fetch(ctx context.Context, label string) ([]string, error) {
	if c.retries <= 0 {
		return c.fetchOnce(ctx, label)
	}

	op := func() ([]string, error) {
		neighbors, err := c.fetchOnce(ctx, label)
		if err != nil && (KindOf(err) != KindTransport || ctx.Err() != nil) {
			return nil, backoff.Permanent(err)
		}
		return neighbors, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.delay

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logrus.Debugf("Retrying %q in %v: %v", label, next, err)
		}),
	)
}

func (c *NeighborClient) fetchOnce(ctx context.Context, label string) ([]string, error) {
	c.body, c.status = nil, 0

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Kind: KindTransport, Label: label, Err: err}
	}

	if err := c.collector.Visit(c.URL(label)); err != nil {
		return nil, &FetchError{Kind: KindTransport, Label: label, Err: err}
	}

	neighbors, err := ParseNeighbors(c.body)
	switch {
	case errors.Is(err, ErrServiceReported):
		return nil, &FetchError{Kind: KindService, Label: label, Status: c.status, Err: err}
	case c.status >= 300:
		return nil, &FetchError{Kind: KindTransport, Label: label, Status: c.status, Err: errUnexpectedStatus}
	case err != nil:
		return nil, &FetchError{Kind: KindDecode, Label: label, Status: c.status, Err: err}
	}

	logrus.Debugf("Response for %q: %d neighbors", label, len(neighbors))
	return neighbors, nil
}
