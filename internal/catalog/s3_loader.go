package catalog

import (
	"context"
	"fmt"

	"b-resto/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectGetter is the part of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Loader struct {
	client ObjectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates a loader reading catalogue objects from bucket using
// the default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 catalogue loader initialised")

	return NewS3LoaderFromClient(s3.NewFromConfig(cfg), bucket, logger), nil
}

// NewS3LoaderFromClient wraps an existing client.
func NewS3LoaderFromClient(client ObjectGetter, bucket string, logger zerolog.Logger) Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "catalog-s3-loader").Logger(),
	}
}

// Load reads the object at key (the full key, prefix included).
func (l *s3Loader) Load(ctx context.Context, key string) ([]model.MenuItem, error) {
	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().Err(err).Str("bucket", l.bucket).Str("key", key).Msg("failed to get catalogue from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	items, err := decodeMaybeGzip(result.Body, key)
	if err != nil {
		l.logger.Error().Err(err).Str("bucket", l.bucket).Str("key", key).Msg("failed to read catalogue from S3")
		return nil, err
	}

	l.logger.Info().Str("bucket", l.bucket).Str("key", key).Int("items", len(items)).Msg("catalogue read from S3")
	return items, nil
}

type fallbackLoader struct {
	s3      Loader
	file    Loader
	prefix  string
	enabled bool
	logger  zerolog.Logger
}

// NewFallbackLoader tries S3 (prefix + path) first when enabled and falls
// back to the local file at path.
func NewFallbackLoader(s3Loader, fileLoader Loader, prefix string, enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3:      s3Loader,
		file:    fileLoader,
		prefix:  prefix,
		enabled: enabled,
		logger:  logger.With().Str("component", "catalog-fallback-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) ([]model.MenuItem, error) {
	if l.enabled && l.s3 != nil {
		key := l.prefix + path
		items, err := l.s3.Load(ctx, key)
		if err == nil {
			return items, nil
		}
		l.logger.Warn().Err(err).Str("s3_key", key).Msg("failed to load from S3, falling back to local file system")
	}

	return l.file.Load(ctx, path)
}
