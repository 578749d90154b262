// Package normalize derives comparable identity keys from raw company
// records. Keys are the dedup currency: two records that normalize to the
// same non-empty key are the same business.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lenilani/leadscout/internal/model"
)

// Keys holds the three normalized identity variants for one company.
// An empty variant means the underlying attribute was absent or unusable;
// empty variants must never participate in set-membership checks.
type Keys struct {
	Name    string
	Website string
	Phone   string
}

// legalSuffixes are trailing corporate designators stripped from name keys.
var legalSuffixes = map[string]bool{
	"inc":  true,
	"llc":  true,
	"corp": true,
	"co":   true,
	"ltd":  true,
}

// markFold decomposes and strips combining marks so kahakō vowels compare
// equal to their plain forms (Kāʻanapali vs Kaanapali).
var markFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldMarks(s string) string {
	out, _, err := transform.String(markFold, s)
	if err != nil {
		return s
	}
	return out
}

// apostrophe-like runes removed from name keys, including the Hawaiian
// ʻokina, which is a letter rather than a combining mark.
func dropApostrophes(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', 'ʻ', 'ʼ', '‘', '’':
			return -1
		}
		return r
	}, s)
}

// NameKey lowers, trims, folds diacritics, strips trailing legal suffixes,
// and collapses whitespace. A name that is nothing but a suffix keeps it.
func NameKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = foldMarks(s)
	s = dropApostrophes(s)
	s = strings.ReplaceAll(s, ",", " ")

	fields := strings.Fields(s)
	for len(fields) > 1 {
		last := strings.Trim(fields[len(fields)-1], ".")
		if !legalSuffixes[last] {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// WebsiteKey strips the scheme and a leading www., lowers, and drops one
// trailing slash. The path is kept so distinct listings on a shared host
// stay distinct.
func WebsiteKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	return s
}

// PhoneKey keeps digits only and returns the last 10, which folds the
// +1 country code into the same key. Fewer than 10 digits is unusable.
func PhoneKey(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}

// ForCandidate derives all three key variants from a candidate.
func ForCandidate(c model.Candidate) Keys {
	return Keys{
		Name:    NameKey(c.Name),
		Website: WebsiteKey(c.Website),
		Phone:   PhoneKey(c.Phone),
	}
}

// ForLead derives all three key variants from a stored lead's raw fields.
func ForLead(l model.Lead) Keys {
	return Keys{
		Name:    NameKey(l.CompanyName),
		Website: WebsiteKey(l.Website),
		Phone:   PhoneKey(l.ContactPhone),
	}
}

// Values returns the namespaced membership values for the non-empty
// variants. Namespacing keeps the three variants from colliding with each
// other inside the union seen/filtered sets.
func (k Keys) Values() []string {
	vals := make([]string, 0, 3)
	if k.Name != "" {
		vals = append(vals, "name:"+k.Name)
	}
	if k.Website != "" {
		vals = append(vals, "site:"+k.Website)
	}
	if k.Phone != "" {
		vals = append(vals, "phone:"+k.Phone)
	}
	return vals
}
