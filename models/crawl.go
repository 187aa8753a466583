package models

import "time"

// StopReason records why a crawl ended.
type StopReason int

const (
	// StopNone means the crawl should keep going.
	StopNone StopReason = iota
	// StopFetchFailed means a page request failed.
	StopFetchFailed
	// StopMalformed means a response could not be navigated.
	StopMalformed
	// StopEmptyPage means a page came back without items.
	StopEmptyPage
	// StopLastPage means the last page reported by the endpoint was fetched.
	StopLastPage
	// StopMaxPages means the configured page limit was reached.
	StopMaxPages
	// StopCanceled means the caller cancelled the crawl.
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopFetchFailed:
		return "fetch_failed"
	case StopMalformed:
		return "malformed_response"
	case StopEmptyPage:
		return "empty_page"
	case StopLastPage:
		return "last_page"
	case StopMaxPages:
		return "max_pages"
	case StopCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CrawlResult holds the overall result of one crawl.
type CrawlResult struct {
	RunID        string
	Items        []RawItem
	StartTime    time.Time
	EndTime      time.Time
	StartPage    int
	LastPage     int // last page attempted
	TotalPages   int // as computed from the last good response
	PageCount    int // pages that contributed items
	RequestCount int
	StopReason   StopReason
	Err          error
}
