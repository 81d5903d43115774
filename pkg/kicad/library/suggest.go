package library

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// suggestionCap bounds footprint suggestion results.
const suggestionCap = 100

// FootprintSuggestion is one footprint matching a symbol's filters.
type FootprintSuggestion struct {
	Name    string
	Library string
	LibID   string
}

// SuggestFootprints matches a symbol's ki_fp_filters patterns against all
// footprint libraries. Filters use shell-style wildcards, e.g.
// "R_*" or "Resistor_SMD:R_0603*".
func (r *Resolver) SuggestFootprints(def *Definition) ([]FootprintSuggestion, error) {
	if len(def.FpFilters) == 0 {
		return nil, nil
	}

	globs := make([]glob.Glob, 0, len(def.FpFilters))
	for _, pattern := range def.FpFilters {
		g, err := glob.Compile(pattern)
		if err != nil {
			// Broken filter patterns in libraries are common; skip them.
			continue
		}
		globs = append(globs, g)
	}

	libs := FindFootprintLibraries()
	if r.registry != nil {
		libs = append(libs, r.registry.FootprintLibraries("")...)
	}

	var matched []FootprintSuggestion
	seen := map[string]bool{}

	for _, libDir := range libs {
		libName := strings.TrimSuffix(filepath.Base(libDir), ".pretty")

		files, err := filepath.Glob(filepath.Join(libDir, "*.kicad_mod"))
		if err != nil {
			continue
		}

		for _, file := range files {
			name := stem(file)
			if seen[name] {
				continue
			}
			for _, g := range globs {
				if g.Match(name) {
					matched = append(matched, FootprintSuggestion{
						Name:    name,
						Library: libName,
						LibID:   libName + ":" + name,
					})
					seen[name] = true
					break
				}
			}
			if len(matched) >= suggestionCap {
				return matched, nil
			}
		}
	}

	return matched, nil
}
