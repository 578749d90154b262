package source

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/pkg/serpapi"
)

// maxYelpResults caps how many organic results one query contributes.
const maxYelpResults = 25

// YelpSource discovers businesses through SerpAPI Yelp listings.
type YelpSource struct {
	client   serpapi.Client
	location string
}

// NewYelp creates a Yelp source. location is the find_loc fallback when a
// query carries no leading town ("Hawaii" if empty).
func NewYelp(client serpapi.Client, location string) *YelpSource {
	if location == "" {
		location = "Hawaii"
	}
	return &YelpSource{client: client, location: location}
}

// Name implements Source.
func (s *YelpSource) Name() string { return "yelp" }

// Search implements Source.
func (s *YelpSource) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	loc, desc := s.splitQuery(query)

	resp, err := s.client.YelpSearch(ctx, desc, loc)
	if err != nil {
		return nil, err
	}

	results := resp.OrganicResults
	if len(results) > maxYelpResults {
		results = results[:maxYelpResults]
	}

	candidates := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		if r.Title == "" {
			continue
		}

		location := string(r.Address)
		if location == "" {
			location = r.Neighborhood
		}
		if location == "" {
			location = s.location
		}

		var industry string
		if len(r.Categories) > 0 {
			industry = r.Categories[0].Title
		}

		candidates = append(candidates, model.Candidate{
			Name:     r.Title,
			Website:  r.Website,
			Phone:    r.Phone,
			Industry: industry,
			Location: location,
			Source:   s.Name(),
		})
	}

	zap.L().Debug("yelp search complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// splitQuery separates a query into Yelp's find_loc and find_desc. Planner
// base queries lead with a town and state ("Kihei HI snorkel tours"), which
// maps onto find_loc; any other shape searches statewide with the full query
// as the description.
func (s *YelpSource) splitQuery(query string) (loc, desc string) {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		if tok != "HI" {
			continue
		}
		if i >= 1 && i <= 2 && i < len(tokens)-1 {
			return strings.Join(tokens[:i], " ") + ", HI", strings.Join(tokens[i+1:], " ")
		}
		break
	}
	return s.location, query
}
