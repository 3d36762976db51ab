package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"medeasy/rx/domain"
)

type memCatalog struct {
	names   []string
	created []domain.CatalogEntry
}

func (m *memCatalog) Names(context.Context) ([]string, error) { return m.names, nil }

func (m *memCatalog) CreateMany(_ context.Context, entries []domain.CatalogEntry) ([]domain.CatalogEntry, error) {
	m.created = append(m.created, entries...)
	for _, e := range entries {
		m.names = append(m.names, e.CanonicalName)
	}
	return entries, nil
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCatalogSkipsDuplicatesAndBadRows(t *testing.T) {
	path := writeCSV(t, `name,category,reference_price
Paracetamol 500mg,Analgesico,4.50
PARACETAMOL 500 MG,Analgesico,4.60
Amoxicilina 500mg,Antibiotico,abc
Omeprazol 20mg,Antiacido,
,Vazio,1
Dipirona 1g,Analgesico,3.10
`)
	store := &memCatalog{names: []string{"Dipirona 1 g"}}

	n, err := LoadCatalog(context.Background(), store, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", n, store.created)
	}
	if store.created[0].CanonicalName != "Paracetamol 500mg" || store.created[0].ReferencePrice.String() != "4.5" {
		t.Fatalf("unexpected first row %+v", store.created[0])
	}
	if store.created[1].CanonicalName != "Omeprazol 20mg" || !store.created[1].ReferencePrice.IsZero() {
		t.Fatalf("unexpected second row %+v", store.created[1])
	}

	// Loading again adds nothing.
	if n, err := LoadCatalog(context.Background(), store, path); err != nil || n != 0 {
		t.Fatalf("reload: %d %v", n, err)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(context.Background(), &memCatalog{}, filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
