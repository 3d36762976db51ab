package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
	"medeasy/rx/internal/catalog"
)

// CatalogStore is the slice of the catalog repository the loader writes to.
type CatalogStore interface {
	Names(ctx context.Context) ([]string, error)
	CreateMany(ctx context.Context, entries []domain.CatalogEntry) ([]domain.CatalogEntry, error)
}

// LoadCatalog ingests name,category,reference_price rows into the catalog.
// Rows that duplicate an existing entry or an earlier row are skipped, so the
// same file can be loaded on every start.
func LoadCatalog(ctx context.Context, store CatalogStore, csvPath string) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("unable to open catalog %s: %w", csvPath, err)
	}
	defer file.Close()

	entries, err := readCatalog(file)
	if err != nil {
		return 0, err
	}
	existing, err := store.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to read catalog names: %w", err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CanonicalName
	}
	results := catalog.Screen(names, existing)
	var accepted []domain.CatalogEntry
	for _, i := range catalog.Accepted(results) {
		accepted = append(accepted, entries[i])
	}
	created, err := store.CreateMany(ctx, accepted)
	if err != nil {
		return 0, fmt.Errorf("unable to seed catalog: %w", err)
	}
	log.Printf("seeded catalog with %d rows, skipped %d", len(created), len(entries)-len(created))
	return len(created), nil
}

func readCatalog(r io.Reader) ([]domain.CatalogEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read catalog header: %w", err)
	}

	var entries []domain.CatalogEntry
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row %d: %v", line, err)
			continue
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		entry := domain.CatalogEntry{CanonicalName: strings.TrimSpace(record[0])}
		if len(record) > 1 {
			entry.Category = strings.TrimSpace(record[1])
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
			if err != nil || price.IsNegative() {
				log.Printf("skipping catalog row %d: bad reference price %q", line, record[2])
				continue
			}
			entry.ReferencePrice = price
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
