package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldASCII = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		runes.Remove(runes.Predicate(func(r rune) bool { return unicode.IsControl(r) && !unicode.IsSpace(r) })),
	)
	reSpaces      = regexp.MustCompile(`\s+`)
	reStateSuffix = regexp.MustCompile(`\s*-\s*[a-z]{2}$`)
)

// DefaultCityPrefixes are the administrative phrases stripped from the
// front of a city name before gazetteer lookup.
var DefaultCityPrefixes = []string{"departamento", "municipio", "cidade", "municipality", "city", "department"}

var defaultRefiner = NewCityRefiner(DefaultCityPrefixes)

// Normalize folds a display string into a lookup key: accents and any
// non-ASCII rune are dropped, letters are lowercased and whitespace is
// collapsed. The result is stable under repeated application.
func Normalize(input string) string {
	s, _, err := transform.String(foldASCII, input)
	if err != nil {
		return ""
	}
	s = strings.ToLower(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeCity is Normalize followed by the default city refinement.
func NormalizeCity(input string) string {
	return defaultRefiner.Refine(input)
}

type CityRefiner struct {
	prefix *regexp.Regexp
}

func NewCityRefiner(prefixes []string) *CityRefiner {
	seen := map[string]struct{}{}
	alts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		key := Normalize(p)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		alts = append(alts, regexp.QuoteMeta(key))
	}
	r := &CityRefiner{}
	if len(alts) > 0 {
		r.prefix = regexp.MustCompile(`^(?:` + strings.Join(alts, "|") + `)\s+(?:de|of)\s+`)
	}
	return r
}

// Refine normalizes a city and strips the trailing "- UF" state suffix
// and a leading administrative prefix.
func (r *CityRefiner) Refine(input string) string {
	s := Normalize(input)
	s = reStateSuffix.ReplaceAllString(s, "")
	if r != nil && r.prefix != nil {
		s = r.prefix.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
