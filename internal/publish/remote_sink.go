package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RemoteSink POSTs each published record to a configured HTTP endpoint.
//
// One attempt per publish tick: a failed delivery is superseded by the next
// tick's fresh record, so there is no intra-tick retry. A circuit breaker
// guards against persistently dead endpoints; while the breaker is open,
// Deliver fails fast without a network round trip, which also keeps the
// failure log rate bounded.
type RemoteSink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewRemoteSink creates a sink POSTing to url with the given request
// timeout.
func NewRemoteSink(url string, timeout time.Duration) *RemoteSink {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "remote-sink",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &RemoteSink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// NewRemoteSinkWithClient creates a sink with a caller-supplied HTTP client
// and breaker. This constructor exists for testing.
func NewRemoteSinkWithClient(url string, client *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response]) *RemoteSink {
	return &RemoteSink{url: url, client: client, breaker: breaker}
}

// Name identifies the sink in logs and metrics.
func (s *RemoteSink) Name() string { return "remote" }

// Deliver POSTs the record body as text/plain. Non-2xx statuses are errors
// and count toward the breaker.
func (s *RemoteSink) Deliver(ctx context.Context, body string) error {
	resp, err := s.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("remote sink: build request: %w", err)
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("remote sink: post: %w", err)
		}
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resp, fmt.Errorf("remote sink: endpoint returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	_ = resp
	return err
}
