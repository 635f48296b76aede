package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "entsoeflow/config"
	"entsoeflow/logger"
)

// Putter is the part of the S3 API the archive and the parquet writer use.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Bucket uploads objects under one bucket.
type Bucket struct {
	client Putter
	name   string
}

// NewS3Client configures the AWS SDK from the storage section. Static keys
// win over the default credential chain when both are set.
func NewS3Client(ctx context.Context, cfg appconfig.S3Config) (*s3.Client, error) {
	log := logger.GetLogger()

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_storage").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.WithComponent("s3_storage").WithFields(logger.Fields{
		"region":     cfg.Region,
		"bucket":     cfg.Bucket,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Debug("s3 client initialized")
	return client, nil
}

func NewBucket(client Putter, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

func (b *Bucket) Name() string {
	return b.name
}

// Put uploads data at key.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", b.name, key, err)
	}
	return nil
}

// Key joins a prefix and a relative path into an object key.
func Key(prefix string, parts ...string) string {
	all := append([]string{strings.Trim(prefix, "/")}, parts...)
	return strings.TrimPrefix(path.Join(all...), "/")
}
