package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Lists holds the five configuration sets the filter is driven by.
// Entries are matched case-insensitively; the loader lowercases them once.
type Lists struct {
	// Allowlist is the set of admissible category tags.
	Allowlist map[string]bool
	// Blocklist is the set of disqualifying category tags.
	Blocklist map[string]bool
	// AntiKeywords are whole words that disqualify a business name.
	AntiKeywords []string
	// PositiveHints are substrings that mark service-provider language.
	PositiveHints []string
	// DenyDomains are registrable domains that cannot be a business site.
	DenyDomains map[string]bool
}

// LoadLists reads the five list files. Each file is plain text, one entry
// per line; blank lines and lines starting with '#' are skipped.
func LoadLists(allowPath, blockPath, antiPath, hintsPath, denyPath string) (*Lists, error) {
	allow, err := loadSet(allowPath)
	if err != nil {
		return nil, fmt.Errorf("allowlist: %w", err)
	}
	block, err := loadSet(blockPath)
	if err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	anti, err := loadSlice(antiPath)
	if err != nil {
		return nil, fmt.Errorf("anti-keywords: %w", err)
	}
	hints, err := loadSlice(hintsPath)
	if err != nil {
		return nil, fmt.Errorf("positive hints: %w", err)
	}
	deny, err := loadSet(denyPath)
	if err != nil {
		return nil, fmt.Errorf("deny domains: %w", err)
	}

	return &Lists{
		Allowlist:     allow,
		Blocklist:     block,
		AntiKeywords:  anti,
		PositiveHints: hints,
		DenyDomains:   deny,
	}, nil
}

func loadSet(path string) (map[string]bool, error) {
	entries, err := loadSlice(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[e] = true
	}
	return set, nil
}

func loadSlice(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("read %s: %w", path, scanErr)
	}
	return entries, nil
}
