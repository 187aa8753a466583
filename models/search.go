// Package models defines data structures for the scraper.
package models

import "encoding/json"

// RawItem is one product entry exactly as the search endpoint returned it.
// It is carried through the crawl untouched and only decoded when formatted.
type RawItem = json.RawMessage

// SearchResponse is the top level of a resources endpoint reply. The
// search container is kept raw so a missing or mistyped container can be
// told apart from a malformed body.
type SearchResponse struct {
	Search json.RawMessage `json:"search"`
}

// SearchContainer is the "search" resource of a reply.
type SearchContainer struct {
	Data *SearchData `json:"data"`
}

// SearchData wraps the result set.
type SearchData struct {
	Results *SearchResults `json:"results"`
}

// SearchResults holds one page of products and its pagination metadata.
type SearchResults struct {
	ProductItems    []RawItem        `json:"productItems"`
	PageInformation *PageInformation `json:"pageInformation"`
}

// PageInformation is the pagination metadata embedded in every page.
type PageInformation struct {
	TotalCount *int `json:"totalCount"`
	PageSize   *int `json:"pageSize"`
}

// PageData is what the controller needs from one response.
type PageData struct {
	Items []RawItem
	Info  PageInformation
	// ContainerMissing reports that the search container was absent or
	// not an object; Items is empty in that case.
	ContainerMissing bool
}
