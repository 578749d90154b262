//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenilani/leadscout/internal/icp"
	"github.com/lenilani/leadscout/internal/model"
)

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)

	fileFlag := importCmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
}

func TestLeadsFromCandidates(t *testing.T) {
	profile := icp.Default()

	candidates := []model.Candidate{
		{
			Name:     "Kailua Kayak Tours",
			Website:  "https://www.kailuakayak.com/",
			Phone:    "(808) 555-0101",
			Industry: "tourism",
			Location: "Kailua, HI",
			Source:   "directory",
		},
		{
			Name: "Hilo Farm Supply",
		},
	}

	leads := leadsFromCandidates(candidates, profile)
	require.Len(t, leads, 2)

	first := leads[0]
	assert.Equal(t, "Kailua Kayak Tours", first.CompanyName)
	assert.Equal(t, "kailua kayak tours", first.NameKey)
	assert.Equal(t, "kailuakayak.com", first.WebsiteKey)
	assert.Equal(t, "8085550101", first.PhoneKey)
	assert.Equal(t, model.LeadStatusNew, first.Status)
	assert.Equal(t, "import", first.Source, "file provenance wins over any source column")
	assert.False(t, first.CreatedAt.IsZero())

	// Website and phone each earn digital-presence points on top of base.
	assert.GreaterOrEqual(t, first.Score, 60.0)
	assert.Len(t, first.ScoreBreakdown, 7)

	// Sparse rows still import: base score only, no website or phone keys.
	second := leads[1]
	assert.Equal(t, "hilo farm supply", second.NameKey)
	assert.Empty(t, second.WebsiteKey)
	assert.Empty(t, second.PhoneKey)
	assert.Equal(t, 50.0, second.Score)
}
