// Package catalog keeps the global catalog and pharmacy stock free of
// near-identical entries and offers existing catalog entries while a new name
// is being typed.
package catalog

import (
	"medeasy/rx/domain"
	"medeasy/rx/internal/matching"
)

// FindDuplicate reports whether candidate names the same product as any of
// existing under the strict policy.
func FindDuplicate(candidate string, existing []string) bool {
	_, ok := firstDuplicate(candidate, existing)
	return ok
}

func firstDuplicate(candidate string, existing []string) (int, bool) {
	if matching.Normalize(candidate) == "" {
		return -1, false
	}
	for i, name := range existing {
		if matching.IsDuplicate(candidate, name) {
			return i, true
		}
	}
	return -1, false
}

// SuggestCatalogMatch returns up to limit catalog entries similar to typed,
// best first.
func SuggestCatalogMatch(typed string, entries []domain.CatalogEntry, limit int) []domain.CatalogEntry {
	if limit <= 0 || len(entries) == 0 {
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CanonicalName
	}
	ranked := matching.Default().Rank(typed, names, matching.Ranked, limit)
	out := make([]domain.CatalogEntry, 0, len(ranked))
	for _, m := range ranked {
		out = append(out, entries[m.Index])
	}
	return out
}

// ScreenResult is the verdict for one row of a bulk import.
type ScreenResult struct {
	Name      string `json:"name"`
	Duplicate bool   `json:"duplicate"`
	// MatchedName is the existing name, or earlier row, this one duplicates.
	MatchedName string `json:"matched_name,omitempty"`
	// InBatch is set when the match is an earlier row of the same import.
	InBatch bool `json:"in_batch,omitempty"`
	// Blank marks rows whose name has nothing to compare.
	Blank bool `json:"blank,omitempty"`
}

// Screen flags every candidate that duplicates an existing name or an earlier
// accepted candidate. Nothing is dropped; callers decide what to commit.
func Screen(candidates, existing []string) []ScreenResult {
	results := make([]ScreenResult, len(candidates))
	var accepted []string
	for i, name := range candidates {
		res := ScreenResult{Name: name}
		switch {
		case matching.Normalize(name) == "":
			res.Blank = true
		default:
			if idx, ok := firstDuplicate(name, existing); ok {
				res.Duplicate = true
				res.MatchedName = existing[idx]
			} else if idx, ok := firstDuplicate(name, accepted); ok {
				res.Duplicate = true
				res.InBatch = true
				res.MatchedName = accepted[idx]
			} else {
				accepted = append(accepted, name)
			}
		}
		results[i] = res
	}
	return results
}

// Accepted returns the indexes of rows that are neither duplicates nor blank.
func Accepted(results []ScreenResult) []int {
	var idx []int
	for i, r := range results {
		if !r.Duplicate && !r.Blank {
			idx = append(idx, i)
		}
	}
	return idx
}
