// Package parser turns search endpoint replies into pagination state and
// normalized wine records.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-wines/models"
)

// ErrMalformedResponse is returned when a reply cannot be navigated.
var ErrMalformedResponse = errors.New("malformed search response")

// ExtractPage navigates search -> data.results and returns the page's items
// and pagination metadata. An absent or non-object search container yields an
// empty page; anything else that fails to decode is ErrMalformedResponse.
func ExtractPage(resp *models.SearchResponse) (models.PageData, error) {
	if resp == nil {
		return models.PageData{}, fmt.Errorf("%w: nil response", ErrMalformedResponse)
	}

	raw := bytes.TrimSpace(resp.Search)
	if len(raw) == 0 || raw[0] != '{' {
		return models.PageData{ContainerMissing: true}, nil
	}

	var container models.SearchContainer
	if err := json.Unmarshal(raw, &container); err != nil {
		return models.PageData{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var page models.PageData
	if container.Data == nil || container.Data.Results == nil {
		return page, nil
	}
	results := container.Data.Results
	page.Items = results.ProductItems
	if results.PageInformation != nil {
		page.Info = *results.PageInformation
	}
	return page, nil
}

// TotalPages computes ceil(totalCount/pageSize). A missing or non-positive
// page size pins the total to the current page so the crawl ends there.
func TotalPages(info models.PageInformation, currentPage int) int {
	if info.PageSize == nil || *info.PageSize <= 0 {
		return currentPage
	}
	total := 0
	if info.TotalCount != nil && *info.TotalCount > 0 {
		total = *info.TotalCount
	}
	size := *info.PageSize
	return (total + size - 1) / size
}
