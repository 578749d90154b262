package icp

import (
	"math"
	"strings"

	"github.com/lenilani/leadscout/internal/model"
)

// Scoring weights and caps on top of the base score.
const (
	baseScore   = 50.0
	industryCap = 25.0
	locationCap = 15.0
	sizeCap     = 25.0
	painWeight  = 3.0
	painCap     = 15.0
	techWeight  = 2.0
	techCap     = 10.0
	presencePts = 5.0
)

// Factor names, in breakdown order.
const (
	FactorBase     = "base"
	FactorIndustry = "industry_match"
	FactorLocation = "location_match"
	FactorSize     = "company_size"
	FactorPain     = "pain_points"
	FactorTech     = "tech_signals"
	FactorPresence = "digital_presence"
)

// Score rates a candidate against the profile. The breakdown always lists
// the seven factors in the same order and sums to the raw total; the
// returned score is that total clamped to [0,100]. Missing optional fields
// contribute zero, never an error.
func (p *Profile) Score(c *model.Candidate) (float64, []model.ScoreFactor) {
	industry := matchWeighted(p.industryOrder, c.Industry, industryCap)
	location := matchWeighted(p.locationOrder, c.Location, locationCap)
	size := p.scoreSize(c.EmployeeCount)
	pain := matchTags(c.PainPoints, p.PainPoints, painWeight, painCap)
	tech := matchTags(c.TechStack, p.TechSignals, techWeight, techCap)
	presence := scorePresence(c)

	breakdown := []model.ScoreFactor{
		{Factor: FactorBase, Points: baseScore},
		{Factor: FactorIndustry, Points: industry},
		{Factor: FactorLocation, Points: location},
		{Factor: FactorSize, Points: size},
		{Factor: FactorPain, Points: pain},
		{Factor: FactorTech, Points: tech},
		{Factor: FactorPresence, Points: presence},
	}

	total := baseScore + industry + location + size + pain + tech + presence
	return math.Min(math.Max(total, 0), 100), breakdown
}

// Admits reports whether a score clears the profile threshold.
func (p *Profile) Admits(score float64) bool {
	return score >= p.Threshold
}

// matchWeighted returns the weight of the first table key contained in the
// candidate value. The table is pre-sorted, so ties resolve the same way
// on every invocation.
func matchWeighted(order []weightedKey, value string, limit float64) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return 0
	}
	for _, wk := range order {
		if strings.Contains(v, wk.key) {
			return math.Min(wk.weight, limit)
		}
	}
	return 0
}

func (p *Profile) scoreSize(employees int) float64 {
	if employees <= 0 {
		return 0
	}
	for _, b := range p.SizeBands {
		if employees <= b.MaxEmployees {
			return math.Min(b.Points, sizeCap)
		}
	}
	return math.Min(p.SizeOverflow, sizeCap)
}

// matchTags counts candidate tags containing any profile keyword. Each tag
// counts once no matter how many keywords it contains.
func matchTags(tags, keywords []string, weight, limit float64) float64 {
	matches := 0
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, kw := range keywords {
			if strings.Contains(t, strings.ToLower(kw)) {
				matches++
				break
			}
		}
	}
	return math.Min(float64(matches)*weight, limit)
}

func scorePresence(c *model.Candidate) float64 {
	var pts float64
	if c.Website != "" {
		pts += presencePts
	}
	if c.Email != "" || c.Phone != "" {
		pts += presencePts
	}
	return pts
}
