package serpapi

import (
	"context"
	"fmt"
	"net/url"
)

// MapsResponse is the response from a Google Maps search.
type MapsResponse struct {
	LocalResults []MapsResult `json:"local_results"`
}

// MapsResult represents one business from Google Maps local results.
type MapsResult struct {
	Title          string         `json:"title"`
	Address        string         `json:"address"`
	Phone          string         `json:"phone"`
	Website        string         `json:"website"`
	Rating         float64        `json:"rating"`
	Reviews        int            `json:"reviews"`
	Type           string         `json:"type"`
	GPSCoordinates GPSCoordinates `json:"gps_coordinates"`
}

// GPSCoordinates holds a business's position.
type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MapsSearch runs a Google Maps local search for businesses matching the
// query in the given location.
func (c *httpClient) MapsSearch(ctx context.Context, query, location string) (*MapsResponse, error) {
	params := url.Values{
		"engine": {"google_maps"},
		"type":   {"search"},
		"q":      {fmt.Sprintf("%s in %s", query, location)},
	}

	var result MapsResponse
	if err := c.search(ctx, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
