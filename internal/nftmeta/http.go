package nftmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nftescrow/tradenode/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second

	// The breaker opens once more than maxFailingRequests requests were seen
	// in the current window and at least failureRatio of them failed.
	maxFailingRequests = 10
	failureRatio       = 0.6
	breakerOpenTimeout = 30 * time.Second
)

var ErrUnavailable = errors.New("metadata provider unavailable")

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Options struct {
	BaseUrl string
	Client  Doer
	ApiKey  string
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond int
}

func (o Options) withDefaults(baseUrl string) Options {
	if o.BaseUrl == "" {
		o.BaseUrl = baseUrl
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: defaultTimeout}
	}
	return o
}

// StatusError is a non-200 answer from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// transport is the shared request path of every provider: pacing, circuit
// breaking, metrics and JSON decoding.
type transport struct {
	name    string
	client  Doer
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newTransport(name string, opts Options) *transport {
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}
	return &transport{
		name:    name,
		client:  opts.Client,
		limiter: limiter,
		breaker: newBreaker(name),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > maxFailingRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Metadata provider breaker changed state",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// get fetches rawUrl and decodes the JSON body into v. Client errors (4xx)
// are returned to the caller without counting against the breaker.
func (t *transport) get(ctx context.Context, rawUrl string, header http.Header, v interface{}) error {
	var clientErr error
	_, err := t.breaker.Execute(func() (interface{}, error) {
		t.limiter.Take()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawUrl, nil)
		if err != nil {
			return nil, err
		}
		for k, values := range header {
			for _, value := range values {
				req.Header.Add(k, value)
			}
		}
		err = doHTTP(t.client, req, v)
		var status *StatusError
		if errors.As(err, &status) && status.Code >= 400 && status.Code < 500 && status.Code != http.StatusTooManyRequests {
			clientErr = err
			return nil, nil
		}
		return nil, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MetadataRequests.WithLabelValues(t.name, "rejected").Inc()
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, t.name, err)
	case err != nil:
		metrics.MetadataRequests.WithLabelValues(t.name, "error").Inc()
		return fmt.Errorf("%s: %w", t.name, err)
	case clientErr != nil:
		metrics.MetadataRequests.WithLabelValues(t.name, "client_error").Inc()
		return fmt.Errorf("%s: %w", t.name, clientErr)
	}
	metrics.MetadataRequests.WithLabelValues(t.name, "ok").Inc()
	return nil
}

func doHTTP(client Doer, req *http.Request, v interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// joinUrl appends path to base, keeping any query already on base.
func joinUrl(base, path string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u.Path = singleSlash(u.Path, rel.Path)
	q := u.Query()
	for k, values := range query {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func singleSlash(a, b string) string {
	switch {
	case a == "":
		return b
	case len(a) > 0 && a[len(a)-1] == '/' && len(b) > 0 && b[0] == '/':
		return a + b[1:]
	case len(a) > 0 && a[len(a)-1] != '/' && len(b) > 0 && b[0] != '/':
		return a + "/" + b
	}
	return a + b
}
