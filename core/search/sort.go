package search

import "strings"

// CompiledSort is the lowered form of a SortCriteria string.
type CompiledSort struct {
	OrderBy string // "" when the input had no recognized terms
	Joins   []string
}

// CompileSort parses a CSV of "[+|-]property" terms (default "+") into a
// canonical ORDER BY clause via mapper. Unknown properties are silently
// dropped (spec §4.F "Sort compiler"). A property that maps to multiple
// columns (e.g. upnp:originalTrackNumber) expands into multiple ordered
// terms sharing the same direction.
func CompileSort(criteria string, mapper ColumnMapper) *CompiledSort {
	joins := map[string]bool{}
	var terms []string

	for _, raw := range strings.Split(criteria, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		dir := "ASC"
		property := raw
		switch raw[0] {
		case '-':
			dir = "DESC"
			property = raw[1:]
		case '+':
			property = raw[1:]
		}
		property = strings.TrimSpace(property)
		if property == "" {
			continue
		}

		mapping, ok := mapper.Map(property)
		if !ok {
			continue
		}
		if mapping.Join != "" {
			joins[mapping.Join] = true
		}
		terms = append(terms, mapping.Column+" "+dir)
		if mapping.Multi && mapping.Also != "" {
			terms = append(terms, mapping.Also+" "+dir)
		}
	}

	if len(terms) == 0 {
		return &CompiledSort{}
	}
	return &CompiledSort{OrderBy: strings.Join(terms, ", "), Joins: sortedKeys(joins)}
}
