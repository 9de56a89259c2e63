package main

import (
	"compress/gzip"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type size struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

type item struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Price       string   `yaml:"price"`
	Category    string   `yaml:"category"`
	Sizes       []size   `yaml:"sizes,omitempty"`
	Extras      []string `yaml:"extras,omitempty"`
	ExtraPrice  string   `yaml:"extraPrice,omitempty"`
	Available   *bool    `yaml:"available,omitempty"`
}

type document struct {
	Items []item `yaml:"items"`
}

// Writes a gzipped base catalogue and a daily override to data/catalog.
// Loading both with CATALOG_SOURCES=base.yaml.gz,specials.yaml.gz lets the
// override replace the burger price and withdraw the yassa.
func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	unavailable := false
	files := map[string]document{
		"base.yaml.gz": {Items: []item{
			{ID: "thieb", Name: "Thieboudienne", Price: "3500", Category: "plats"},
			{ID: "yassa", Name: "Yassa Poulet", Price: "3000", Category: "plats"},
			{
				ID: "burger", Name: "Burger Maison", Price: "2500", Category: "burgers",
				Sizes:  []size{{ID: "classic", Name: "Classic", Price: "2500"}, {ID: "xl", Name: "XL", Price: "3200"}},
				Extras: []string{"cheese", "bacon", "egg"}, ExtraPrice: "300",
			},
			{ID: "bissap", Name: "Bissap", Price: "500", Category: "boissons"},
		}},
		"specials.yaml.gz": {Items: []item{
			{
				ID: "burger", Name: "Burger Maison", Description: "Prix du jour", Price: "2200", Category: "burgers",
				Sizes:  []size{{ID: "classic", Name: "Classic", Price: "2200"}, {ID: "xl", Name: "XL", Price: "2900"}},
				Extras: []string{"cheese", "bacon", "egg"}, ExtraPrice: "300",
			},
			{ID: "yassa", Name: "Yassa Poulet", Price: "3000", Category: "plats", Available: &unavailable},
		}},
	}

	for filename, doc := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := createCatalogFile(filePath, doc); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d items\n", filePath, len(doc.Items))
	}

	fmt.Println("\nSample catalogue files created successfully!")
	fmt.Println("\nLoad order matters: later sources override earlier ones by id.")
}

func createCatalogFile(filePath string, doc document) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := yaml.NewEncoder(gzipWriter)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode catalogue: %w", err)
	}
	return encoder.Close()
}
