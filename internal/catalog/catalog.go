// Package catalog reads the menu catalogue from YAML files on disk or in S3.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"b-resto/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Loader reads one catalogue source.
type Loader interface {
	// Load reads the catalogue at path and returns its items in file order.
	Load(ctx context.Context, path string) ([]model.MenuItem, error)
}

type document struct {
	Items []itemDoc `yaml:"items"`
}

type itemDoc struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Price       string    `yaml:"price"`
	Category    string    `yaml:"category"`
	Image       string    `yaml:"image"`
	Sizes       []sizeDoc `yaml:"sizes"`
	Extras      []string  `yaml:"extras"`
	ExtraPrice  string    `yaml:"extraPrice"`
	Available   *bool     `yaml:"available"`
}

type sizeDoc struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// Decode parses a YAML catalogue. Prices are decimal strings; an item
// without an explicit available flag is available.
func Decode(r io.Reader) ([]model.MenuItem, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.MenuItem{}, nil
		}
		return nil, fmt.Errorf("invalid catalogue: %w", err)
	}

	items := make([]model.MenuItem, 0, len(doc.Items))
	for i, d := range doc.Items {
		item, err := d.toModel()
		if err != nil {
			return nil, fmt.Errorf("item %d (%q): %w", i, d.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (d itemDoc) toModel() (model.MenuItem, error) {
	id := strings.TrimSpace(d.ID)
	name := strings.TrimSpace(d.Name)
	if id == "" {
		return model.MenuItem{}, errors.New("id is required")
	}
	if name == "" {
		return model.MenuItem{}, errors.New("name is required")
	}

	price, err := parsePrice(d.Price, true)
	if err != nil {
		return model.MenuItem{}, fmt.Errorf("price: %w", err)
	}
	extraPrice, err := parsePrice(d.ExtraPrice, false)
	if err != nil {
		return model.MenuItem{}, fmt.Errorf("extraPrice: %w", err)
	}

	sizes := make([]model.SizeOption, 0, len(d.Sizes))
	for _, s := range d.Sizes {
		sp, err := parsePrice(s.Price, true)
		if err != nil {
			return model.MenuItem{}, fmt.Errorf("size %q price: %w", s.Name, err)
		}
		sid := strings.TrimSpace(s.ID)
		if sid == "" {
			sid = strings.ToLower(strings.TrimSpace(s.Name))
		}
		if sid == "" {
			return model.MenuItem{}, errors.New("size needs an id or name")
		}
		sizes = append(sizes, model.SizeOption{ID: sid, Name: strings.TrimSpace(s.Name), Price: sp})
	}

	extras := make([]string, 0, len(d.Extras))
	for _, e := range d.Extras {
		if e = strings.TrimSpace(e); e != "" {
			extras = append(extras, e)
		}
	}

	available := true
	if d.Available != nil {
		available = *d.Available
	}

	return model.MenuItem{
		ID:          id,
		Name:        name,
		Description: d.Description,
		Price:       price,
		Category:    d.Category,
		Image:       d.Image,
		Sizes:       sizes,
		Extras:      extras,
		ExtraPrice:  extraPrice,
		Available:   available,
	}, nil
}

func parsePrice(s string, required bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return decimal.Zero, errors.New("is required")
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q is negative", s)
	}
	return d, nil
}

// LoadAll loads every path concurrently and merges the results. When an id
// appears in several sources the later source wins; the first occurrence
// keeps its position.
func LoadAll(ctx context.Context, loader Loader, paths []string, logger zerolog.Logger) ([]model.MenuItem, error) {
	logger = logger.With().Str("component", "catalog").Logger()

	type loadResult struct {
		index int
		items []model.MenuItem
		err   error
	}

	resultChan := make(chan loadResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			items, err := loader.Load(ctx, path)
			resultChan <- loadResult{index: index, items: items, err: err}
		}(i, path)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(paths))
	for r := range resultChan {
		results[r.index] = r
	}

	merged := make([]model.MenuItem, 0)
	position := make(map[string]int)
	for i, r := range results {
		if r.err != nil {
			logger.Error().Err(r.err).Str("source", paths[i]).Msg("failed to load catalogue")
			return nil, fmt.Errorf("failed to load catalogue %s: %w", paths[i], r.err)
		}
		for _, item := range r.items {
			if pos, ok := position[item.ID]; ok {
				merged[pos] = item
				continue
			}
			position[item.ID] = len(merged)
			merged = append(merged, item)
		}
		logger.Info().Str("source", paths[i]).Int("items", len(r.items)).Msg("catalogue loaded")
	}

	return merged, nil
}
