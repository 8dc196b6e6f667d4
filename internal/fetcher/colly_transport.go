package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls collector behavior.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
}

// CollyTransport performs single HTTP GETs through a Colly collector.
type CollyTransport struct {
	cfg           CollyConfig
	baseCollector *colly.Collector
}

// NewCollyTransport builds a CollyTransport with connection pooling.
func NewCollyTransport(cfg CollyConfig) *CollyTransport {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &CollyTransport{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Get executes a single HTTP GET. On an HTTP-level error the response body
// is still returned so callers can inspect it.
func (t *CollyTransport) Get(ctx context.Context, url string) (int, []byte, error) {
	collector := t.baseCollector.Clone()
	if t.cfg.UserAgent != "" {
		collector.UserAgent = t.cfg.UserAgent
	}
	timeout := t.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		status   int
		body     []byte
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range t.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			status = r.StatusCode
			body = append([]byte(nil), r.Body...)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return 0, nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return status, body, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return status, body, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return status, body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
