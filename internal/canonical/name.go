package canonical

import (
	"errors"
	"strings"
)

// ErrImplausibleName is returned for names too short or consisting solely
// of corporate suffixes.
var ErrImplausibleName = errors.New("implausible business name")

// corporateSuffixes are tokens that carry no identity on their own.
var corporateSuffixes = map[string]bool{
	"llc":          true,
	"l.l.c":        true,
	"inc":          true,
	"incorporated": true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"company":      true,
	"ltd":          true,
	"limited":      true,
	"llp":          true,
	"lp":           true,
	"pllc":         true,
	"pc":           true,
	"plc":          true,
	"the":          true,
	"and":          true,
	"&":            true,
}

// CleanName collapses whitespace in a business name and rejects strings
// that are shorter than two characters or made up entirely of corporate
// suffixes and filler.
func CleanName(raw string) (string, error) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if len(cleaned) < 2 {
		return "", ErrImplausibleName
	}

	substantive := false
	for _, word := range strings.Fields(cleaned) {
		token := strings.ToLower(strings.Trim(word, ".,()"))
		if token == "" {
			continue
		}
		if !corporateSuffixes[token] {
			substantive = true
			break
		}
	}
	if !substantive {
		return "", ErrImplausibleName
	}

	return cleaned, nil
}
