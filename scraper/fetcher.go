package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-wines/config"
	"github.com/aluiziolira/go-scrape-wines/models"
	"github.com/gocolly/colly/v2"
)

const (
	errorBodySnippet  = 500
	decodeBodySnippet = 1000
)

// PageFetcher issues exactly one search request per call.
type PageFetcher interface {
	Fetch(ctx context.Context, page int) FetchResult
}

// FetchResult is either a decoded response or a failure, never both.
type FetchResult struct {
	Page     int
	Response *models.SearchResponse
	Failure  *FetchError
}

// OK reports whether the fetch produced a response.
func (r FetchResult) OK() bool {
	return r.Failure == nil && r.Response != nil
}

// Fetcher posts search requests to the resources endpoint through colly.
// It never retries; a failed call is reported once and left to the caller.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	headers   http.Header
	metrics   *Metrics
}

// NewFetcher builds a fetcher for cfg.Endpoint using cfg.Headers.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("endpoint must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	headers := cfg.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	if headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		headers:   headers,
		metrics:   metrics,
	}, nil
}

// Fetch requests one page and classifies any failure.
func (f *Fetcher) Fetch(ctx context.Context, page int) FetchResult {
	result := FetchResult{Page: page}
	if ctx != nil && ctx.Err() != nil {
		result.Failure = &FetchError{Kind: classifyError(ctx.Err(), 0), Page: page, Err: ctx.Err()}
		return result
	}

	body, err := buildRequestBody(f.cfg, page)
	if err != nil {
		result.Failure = &FetchError{Kind: FailureTransport, Page: page, Err: err}
		f.record(result.Failure)
		return result
	}

	var (
		status   int
		respBody []byte
	)
	c := f.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		respBody = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
			respBody = r.Body
		}
	})

	slog.Info("fetching page", slog.Int("page", page))
	start := time.Now()
	err = c.Request(http.MethodPost, f.cfg.Endpoint, bytes.NewReader(body), colly.NewContext(), f.headers.Clone())
	f.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		result.Failure = &FetchError{
			Kind:       classifyError(err, status),
			Page:       page,
			StatusCode: status,
			Err:        err,
		}
		f.record(result.Failure)
		if status != 0 {
			slog.Debug("error response body",
				slog.Int("page", page),
				slog.String("body", snippet(respBody, errorBodySnippet)),
			)
		}
		return result
	}

	var decoded models.SearchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		result.Failure = &FetchError{
			Kind:       FailureDecode,
			Page:       page,
			StatusCode: status,
			Err:        err,
		}
		f.record(result.Failure)
		slog.Debug("undecodable response body",
			slog.Int("page", page),
			slog.String("body", snippet(respBody, decodeBodySnippet)),
		)
		return result
	}

	f.metrics.IncRequest("success")
	slog.Info("page request succeeded", slog.Int("page", page), slog.Int("status", status))
	result.Response = &decoded
	return result
}

func (f *Fetcher) record(fe *FetchError) {
	category := errorTypeLabel(fe)
	f.metrics.IncRequest("failure")
	f.metrics.IncError(category)

	attrs := []any{
		slog.Int("page", fe.Page),
		slog.String("category", category),
		slog.Any("error", fe.Err),
	}
	if fe.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", fe.StatusCode))
	}
	slog.Error("page request failed", attrs...)
	if hint := fe.Hint(); hint != "" {
		slog.Warn(hint, slog.Int("page", fe.Page))
	}
}

func snippet(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
