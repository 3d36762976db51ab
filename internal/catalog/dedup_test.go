package catalog

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
)

func TestFindDuplicate(t *testing.T) {
	existing := []string{"Dipirona Sódica 1g", "Amoxicilina 500 mg", "Omeprazol 20mg"}
	for _, tc := range []struct {
		candidate string
		want      bool
	}{
		{"AMOXICILINA 500MG", true},
		{"dipirona sodica", true},
		{"Omeprazol 40mg", false},
		{"Losartana 50mg", false},
		{"", false},
	} {
		if got := FindDuplicate(tc.candidate, existing); got != tc.want {
			t.Fatalf("FindDuplicate(%q) = %v, want %v", tc.candidate, got, tc.want)
		}
	}
	if !FindDuplicate("®", []string{"Dipirona", "®"}) {
		t.Fatal("a symbol-only name should duplicate itself")
	}
	if FindDuplicate("  ", []string{"  "}) {
		t.Fatal("blank names never duplicate")
	}
	if FindDuplicate("Amoxicilina", nil) {
		t.Fatal("nothing can duplicate an empty list")
	}
}

func entry(id, name string) domain.CatalogEntry {
	return domain.CatalogEntry{ID: id, CanonicalName: name, ReferencePrice: decimal.NewFromInt(10)}
}

func TestSuggestCatalogMatch(t *testing.T) {
	entries := []domain.CatalogEntry{
		entry("1", "Omeprazol 20mg"),
		entry("2", "Dipirona Sódica Comprimido"),
		entry("3", "Dipirona Sódica Gotas"),
		entry("4", "Dipirona"),
		entry("5", "Losartana Potássica 50mg"),
	}

	got := SuggestCatalogMatch("dipirona sodica gotas", entries, 2)
	ids := []string{}
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	// exact (1.0), then containment of "dipirona" (0.8)
	if want := []string{"3", "4"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}

	if got := SuggestCatalogMatch("Ibuprofeno", entries, 5); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
	if got := SuggestCatalogMatch("Dipirona", entries, 0); got != nil {
		t.Fatalf("limit 0 must return nothing, got %+v", got)
	}
}

func TestScreenFlagsExistingAndInBatchDuplicates(t *testing.T) {
	existing := []string{"Amoxicilina 500 mg"}
	candidates := []string{
		"AMOXICILINA 500MG",
		"Dipirona 1g",
		"  ",
		"DIPIRONA 1G",
		"Omeprazol 20mg",
	}
	results := Screen(candidates, existing)

	if !results[0].Duplicate || results[0].InBatch || results[0].MatchedName != "Amoxicilina 500 mg" {
		t.Fatalf("row 0 should duplicate existing stock: %+v", results[0])
	}
	if results[1].Duplicate || results[1].Blank {
		t.Fatalf("row 1 should be accepted: %+v", results[1])
	}
	if !results[2].Blank {
		t.Fatalf("row 2 should be blank: %+v", results[2])
	}
	if !results[3].Duplicate || !results[3].InBatch || results[3].MatchedName != "Dipirona 1g" {
		t.Fatalf("row 3 should duplicate row 1: %+v", results[3])
	}
	if got, want := Accepted(results), []int{1, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("accepted rows %v, want %v", got, want)
	}
}
