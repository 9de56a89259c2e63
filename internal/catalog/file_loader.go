package catalog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"b-resto/internal/model"

	"github.com/rs/zerolog"
)

type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader reads catalogues from the local file system. Paths ending
// in .gz are decompressed.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-file-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) ([]model.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open catalogue")
		return nil, fmt.Errorf("failed to open catalogue %s: %w", path, err)
	}
	defer file.Close()

	items, err := decodeMaybeGzip(file, path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read catalogue")
		return nil, err
	}

	l.logger.Info().Str("file", path).Int("items", len(items)).Msg("catalogue file read")
	return items, nil
}

func decodeMaybeGzip(r io.Reader, name string) ([]model.MenuItem, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}

	items, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return items, nil
}
