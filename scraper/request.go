package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aluiziolira/go-scrape-wines/config"
)

type searchQuery struct {
	Query      string `json:"query"`
	ICID       string `json:"icid,omitempty"`
	Department string `json:"department,omitempty"`
	ViewAll    string `json:"viewAll,omitempty"`
	Page       string `json:"page"`
}

type searchParams struct {
	Query searchQuery `json:"query"`
}

type searchResource struct {
	Type   string       `json:"type"`
	Params searchParams `json:"params"`
	Hash   string       `json:"hash"`
}

type resourcesRequest struct {
	RequiresAuthentication bool             `json:"requiresAuthentication"`
	Resources              []searchResource `json:"resources"`
	SharedParams           searchParams     `json:"sharedParams"`
}

// buildRequestBody renders the resources payload for one page. The endpoint
// expects the page number as a string, mirrored in sharedParams.
func buildRequestBody(cfg *config.Config, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be at least 1, got %d", page)
	}
	params := searchParams{Query: searchQuery{
		Query:      cfg.Search.Query,
		ICID:       cfg.Search.ICID,
		Department: cfg.Search.Department,
		ViewAll:    cfg.Search.ViewAll,
		Page:       strconv.Itoa(page),
	}}
	body := resourcesRequest{
		Resources: []searchResource{{
			Type:   "search",
			Params: params,
			Hash:   cfg.ResourceHash,
		}},
		SharedParams: params,
	}
	return json.Marshal(body)
}
