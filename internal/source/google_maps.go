package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/pkg/serpapi"
)

// maxMapsResults caps how many local results one query contributes.
const maxMapsResults = 20

// GoogleMapsSource discovers businesses through SerpAPI Google Maps local
// results.
type GoogleMapsSource struct {
	client   serpapi.Client
	location string
}

// NewGoogleMaps creates a Google Maps source. location scopes every query
// ("Hawaii" if empty).
func NewGoogleMaps(client serpapi.Client, location string) *GoogleMapsSource {
	if location == "" {
		location = "Hawaii"
	}
	return &GoogleMapsSource{client: client, location: location}
}

// Name implements Source.
func (s *GoogleMapsSource) Name() string { return "google_maps" }

// Search implements Source.
func (s *GoogleMapsSource) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	resp, err := s.client.MapsSearch(ctx, query, s.location)
	if err != nil {
		return nil, err
	}

	results := resp.LocalResults
	if len(results) > maxMapsResults {
		results = results[:maxMapsResults]
	}

	candidates := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		if r.Title == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name:     r.Title,
			Website:  r.Website,
			Phone:    r.Phone,
			Industry: r.Type,
			Location: r.Address,
			Source:   s.Name(),
		})
	}

	zap.L().Debug("google maps search complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}
