package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-wines/config"
	"github.com/aluiziolira/go-scrape-wines/models"
	"github.com/jarcoal/httpmock"
)

const testEndpoint = "http://example.test/groceries/en-IE/resources"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoint = testEndpoint
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	cfg.Headers.Set("Cookie", "session=abc")
	cfg.Headers.Set("X-Csrf-Token", "token-123")
	return cfg
}

func newMockedFetcher(t *testing.T, cfg *config.Config) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.collector.WithTransport(transport)
	return f, transport
}

func TestFetcherSendsPayloadAndHeaders(t *testing.T) {
	cfg := testConfig()
	f, transport := newMockedFetcher(t, cfg)

	var (
		gotBody    resourcesRequest
		gotHeaders http.Header
	)
	transport.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			return nil, err
		}
		gotHeaders = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, `{"search":`+buildSearchJSON(2, 1, 50, 24)+`}`), nil
	})

	result := f.Fetch(context.Background(), 2)
	if !result.OK() {
		t.Fatalf("fetch failed: %v", result.Failure)
	}

	if len(gotBody.Resources) != 1 {
		t.Fatalf("resources = %d, want 1", len(gotBody.Resources))
	}
	resource := gotBody.Resources[0]
	if resource.Type != "search" || resource.Hash != cfg.ResourceHash {
		t.Fatalf("resource = %+v", resource)
	}
	if resource.Params.Query.Page != "2" || resource.Params.Query.Query != "wine" || resource.Params.Query.Department != "Wine" {
		t.Fatalf("query = %+v", resource.Params.Query)
	}
	if gotBody.SharedParams != resource.Params {
		t.Fatalf("shared params %+v do not mirror %+v", gotBody.SharedParams, resource.Params)
	}
	if gotBody.RequiresAuthentication {
		t.Fatalf("requiresAuthentication should be false")
	}
	if gotHeaders.Get("Cookie") != "session=abc" || gotHeaders.Get("X-Csrf-Token") != "token-123" {
		t.Fatalf("credentials not forwarded: %v", gotHeaders)
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get("User-Agent") == "" {
		t.Fatalf("user agent missing")
	}
}

func TestFetcherFailureClassification(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		expected  FailureKind
		status    int
	}{
		{name: "forbidden", responder: httpmock.NewStringResponder(http.StatusForbidden, "denied"), expected: FailureForbidden, status: 403},
		{name: "rate limited", responder: httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"), expected: FailureRateLimited, status: 429},
		{name: "server error", responder: httpmock.NewStringResponder(http.StatusInternalServerError, "boom"), expected: FailureHTTPOther, status: 500},
		{name: "timeout", responder: httpmock.NewErrorResponder(&net.DNSError{IsTimeout: true}), expected: FailureTimeout},
		{name: "connection", responder: httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}), expected: FailureTransport},
		{name: "decode", responder: httpmock.NewStringResponder(http.StatusOK, "<html>not json</html>"), expected: FailureDecode, status: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, transport := newMockedFetcher(t, testConfig())
			transport.RegisterResponder(http.MethodPost, testEndpoint, tt.responder)

			result := f.Fetch(context.Background(), 1)
			if result.OK() || result.Response != nil {
				t.Fatalf("expected failure, got response")
			}
			if result.Failure.Kind != tt.expected {
				t.Fatalf("kind = %s, want %s (err=%v)", result.Failure.Kind, tt.expected, result.Failure.Err)
			}
			if result.Failure.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", result.Failure.StatusCode, tt.status)
			}
			if got := errorTypeLabel(result.Failure); got != tt.expected.String() {
				t.Fatalf("label = %q, want %q", got, tt.expected.String())
			}
			if n := transport.GetTotalCallCount(); n != 1 {
				t.Fatalf("calls = %d, want exactly one (no retries)", n)
			}
		})
	}
}

func TestFetcherCanceledContext(t *testing.T) {
	f, transport := newMockedFetcher(t, testConfig())
	transport.RegisterResponder(http.MethodPost, testEndpoint, httpmock.NewStringResponder(http.StatusOK, `{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := f.Fetch(ctx, 1)
	if result.OK() {
		t.Fatalf("expected failure for cancelled context")
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatalf("no request should be issued after cancellation")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   FailureKind
	}{
		{name: "context timeout", err: context.DeadlineExceeded, expected: FailureTimeout},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: FailureTimeout},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: FailureTransport},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.test"}, expected: FailureTransport},
		{name: "forbidden", err: errors.New("Forbidden"), statusCode: http.StatusForbidden, expected: FailureForbidden},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, expected: FailureRateLimited},
		{name: "not found", statusCode: http.StatusNotFound, expected: FailureHTTPOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err, tt.statusCode); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %s, want %s", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestFetchErrorHint(t *testing.T) {
	if (&FetchError{Kind: FailureForbidden}).Hint() == "" {
		t.Fatalf("forbidden should carry a hint")
	}
	if (&FetchError{Kind: FailureRateLimited}).Hint() == "" {
		t.Fatalf("rate limited should carry a hint")
	}
	if (&FetchError{Kind: FailureDecode}).Hint() != "" {
		t.Fatalf("decode should not carry a hint")
	}
}

// pagedResponder answers each request according to the page in its body.
func pagedResponder(t *testing.T, pages map[int]string) (httpmock.Responder, *[]int) {
	var (
		mu    sync.Mutex
		calls []int
	)
	return func(req *http.Request) (*http.Response, error) {
		var body resourcesRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		page, err := strconv.Atoi(body.SharedParams.Query.Page)
		if err != nil {
			t.Errorf("page param: %v", err)
		}
		mu.Lock()
		calls = append(calls, page)
		mu.Unlock()
		search, ok := pages[page]
		if !ok {
			return httpmock.NewStringResponse(http.StatusNotFound, "missing"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, fmt.Sprintf(`{"search":%s}`, search)), nil
	}, &calls
}

func TestScraper_Integration(t *testing.T) {
	cfg := testConfig()
	f, transport := newMockedFetcher(t, cfg)
	responder, calls := pagedResponder(t, map[int]string{
		1: buildSearchJSON(1, 24, 50, 24),
		2: buildSearchJSON(2, 24, 50, 24),
		3: buildSearchJSON(3, 2, 50, 24),
	})
	transport.RegisterResponder(http.MethodPost, testEndpoint, responder)

	s, err := NewScraper(cfg, f, WithMetrics(f.metrics))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	result := s.Run(context.Background())

	if len(result.Items) != 50 {
		t.Fatalf("items = %d, want 50", len(result.Items))
	}
	if result.StopReason != models.StopLastPage {
		t.Fatalf("stop reason = %s", result.StopReason)
	}
	if len(*calls) != 3 {
		t.Fatalf("calls = %v, want pages 1..3", *calls)
	}
	if result.RunID == "" {
		t.Fatalf("run id should be set")
	}
}

func TestScraper_IntegrationFailureMidCrawl(t *testing.T) {
	cfg := testConfig()
	f, transport := newMockedFetcher(t, cfg)
	responder, calls := pagedResponder(t, map[int]string{
		1: buildSearchJSON(1, 24, 100, 24),
	})
	transport.RegisterResponder(http.MethodPost, testEndpoint, responder)

	s, err := NewScraper(cfg, f)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	result := s.Run(context.Background())

	if len(result.Items) != 24 {
		t.Fatalf("items = %d, want 24", len(result.Items))
	}
	if len(*calls) != 2 {
		t.Fatalf("calls = %v, want [1 2]", *calls)
	}
	if result.StopReason != models.StopFetchFailed {
		t.Fatalf("stop reason = %s, want fetch_failed", result.StopReason)
	}
}
