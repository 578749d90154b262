package source

import (
	"context"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/pkg/serpapi"
)

// stubSource implements Source for registry tests.
type stubSource struct {
	name       string
	candidates []model.Candidate
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(_ context.Context, _ string) ([]model.Candidate, error) {
	return s.candidates, s.err
}

// fakeSerpClient implements serpapi.Client with canned responses.
type fakeSerpClient struct {
	mapsFn func(ctx context.Context, query, location string) (*serpapi.MapsResponse, error)
	yelpFn func(ctx context.Context, query, location string) (*serpapi.YelpResponse, error)
}

func (f *fakeSerpClient) MapsSearch(ctx context.Context, query, location string) (*serpapi.MapsResponse, error) {
	return f.mapsFn(ctx, query, location)
}

func (f *fakeSerpClient) YelpSearch(ctx context.Context, query, location string) (*serpapi.YelpResponse, error) {
	return f.yelpFn(ctx, query, location)
}
