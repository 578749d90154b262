package serpapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

// YelpResponse is the response from a Yelp search.
type YelpResponse struct {
	OrganicResults []YelpResult `json:"organic_results"`
}

// YelpResult represents one business from Yelp organic results.
type YelpResult struct {
	Title        string     `json:"title"`
	Phone        string     `json:"phone"`
	Address      FlexString `json:"address"`
	Neighborhood string     `json:"neighborhoods"`
	Website      string     `json:"website"`
	Link         string     `json:"link"`
	Rating       float64    `json:"rating"`
	Reviews      int        `json:"reviews"`
	Price        string     `json:"price"`
	Snippet      string     `json:"snippet"`
	Categories   []Category `json:"categories"`
}

// Category is a Yelp business category.
type Category struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// FlexString decodes a JSON value that Yelp serves as either a string or an
// array of strings. Array values are joined with ", ".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*f = FlexString(strings.Join(parts, ", "))
	return nil
}

// YelpSearch runs a Yelp listing search for businesses matching the query in
// the given location.
func (c *httpClient) YelpSearch(ctx context.Context, query, location string) (*YelpResponse, error) {
	params := url.Values{
		"engine":    {"yelp"},
		"find_desc": {query},
		"find_loc":  {location},
	}

	var result YelpResponse
	if err := c.search(ctx, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
