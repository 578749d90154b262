package rotation

import "strings"

// The query space is the pre-enumerated product of these tables. Queries
// are built as "{location} {keyword}" with "{modifier} {keyword} {location}"
// as the fallback shape once the base form has been burned recently.

var locations = []string{
	"Honolulu HI",
	"Waikiki HI",
	"Pearl City HI",
	"Kaneohe HI",
	"Kailua HI",
	"Kapolei HI",
	"Aiea HI",
	"Mililani HI",
	"Kahului HI",
	"Lahaina HI",
	"Kihei HI",
	"Wailea HI",
	"Hilo HI",
	"Kona HI",
	"Waimea HI",
	"Lihue HI",
	"Kapaa HI",
	"Princeville HI",
}

type industryGroup struct {
	name     string
	keywords []string
}

// Slice, not map: planning order must be stable across passes.
var industryGroups = []industryGroup{
	{name: "hospitality", keywords: []string{"hotel", "resort", "bed and breakfast", "vacation rental"}},
	{name: "tourism", keywords: []string{"tour operator", "activity company", "snorkel tours", "luau"}},
	{name: "restaurant", keywords: []string{"restaurant", "cafe", "food truck", "catering"}},
	{name: "retail", keywords: []string{"boutique", "gift shop", "surf shop", "local market"}},
	{name: "healthcare", keywords: []string{"clinic", "dental office", "physical therapy", "veterinary"}},
	{name: "professional services", keywords: []string{"accounting firm", "law office", "real estate agency", "insurance agency"}},
	{name: "wellness", keywords: []string{"spa", "massage therapy", "yoga studio", "fitness center"}},
	{name: "construction", keywords: []string{"general contractor", "roofing company", "landscaping", "solar installer"}},
	{name: "education", keywords: []string{"private school", "tutoring center", "preschool"}},
}

var modifiers = []string{
	"family owned",
	"local",
	"small business",
	"independent",
	"best",
	"established",
	"top rated",
	"licensed",
	"affordable",
	"trusted",
}

// islandKeywords expands an island-level location filter to the towns the
// location table knows on that island.
var islandKeywords = map[string][]string{
	"oahu":       {"oahu", "honolulu", "waikiki", "pearl city", "kaneohe", "kailua", "kapolei", "aiea", "mililani"},
	"maui":       {"maui", "kahului", "lahaina", "kihei", "wailea"},
	"big island": {"big island", "hilo", "kona", "waimea"},
	"kauai":      {"kauai", "lihue", "kapaa", "princeville"},
}

// restrictIndustries narrows the industry groups to those matching the
// filter. An unrecognized filter becomes its own single-keyword group, so
// a caller searching for "food trucks" still gets queries.
func restrictIndustries(filter string) []industryGroup {
	if filter == "" {
		return industryGroups
	}
	f := strings.ToLower(strings.TrimSpace(filter))
	var matched []industryGroup
	for _, g := range industryGroups {
		if strings.Contains(g.name, f) || strings.Contains(f, g.name) {
			matched = append(matched, g)
		}
	}
	if len(matched) == 0 {
		matched = []industryGroup{{name: f, keywords: []string{f}}}
	}
	return matched
}

// restrictLocations narrows the location table to entries matching the
// filter. Island names expand to their towns; anything else matches by
// substring, and an unrecognized filter is used verbatim.
func restrictLocations(filter string) []string {
	if filter == "" {
		return locations
	}
	f := strings.ToLower(strings.TrimSpace(filter))

	if kws, ok := islandKeywords[f]; ok {
		var matched []string
		for _, loc := range locations {
			ll := strings.ToLower(loc)
			for _, kw := range kws {
				if strings.Contains(ll, kw) {
					matched = append(matched, loc)
					break
				}
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}

	var matched []string
	for _, loc := range locations {
		if strings.Contains(strings.ToLower(loc), f) {
			matched = append(matched, loc)
		}
	}
	if len(matched) == 0 {
		matched = []string{filter}
	}
	return matched
}
