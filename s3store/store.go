// Package s3store stores cover images in an S3-compatible bucket.
//
// It works against AWS S3 as well as S3-compatible services (MinIO,
// Supabase Storage) through a custom endpoint with path-style addressing.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/shelfkeep/shelfkeep"
)

const keyPrefix = "covers/"

// Config holds the connection settings for the bucket.
type Config struct {
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	// Leave empty for AWS S3 proper.
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string

	// PublicBaseURL is the URL prefix under which stored objects are
	// publicly reachable, e.g. "https://cdn.example.com/covers-bucket".
	PublicBaseURL string

	// UsePathStyle addresses the bucket as a path segment instead of a
	// subdomain. Required by most S3-compatible services.
	UsePathStyle bool
}

// Client is the subset of the S3 API the store uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements the asset store contract on an S3 bucket.
type Store struct {
	client        Client
	bucket        string
	publicBaseURL string
}

// NewAssetStore builds an S3 client from cfg and returns a Store over it.
func NewAssetStore(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewAssetStoreWithClient(client, cfg), nil
}

// NewAssetStoreWithClient wires a Store over an existing client.
func NewAssetStoreWithClient(client Client, cfg Config) *Store {
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}
}

// Store uploads content under a fresh collision-resistant key. The upload
// is conditional on the key not existing, so a stored asset can never be
// overwritten. The content is buffered because uploads are bounded to the
// configured request size limit before they reach the store.
func (s *Store) Store(ctx context.Context, bookID uuid.UUID, contentType string, content io.Reader) (shelfkeep.StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return shelfkeep.StoredAsset{}, err
	}

	body, err := io.ReadAll(content)
	if err != nil {
		return shelfkeep.StoredAsset{}, fmt.Errorf("read asset content: %w", err)
	}

	key := keyPrefix + shelfkeep.NewStorageKey(bookID, contentType)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return shelfkeep.StoredAsset{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return shelfkeep.StoredAsset{
		URL: s.publicBaseURL + "/" + key,
		Key: key,
	}, nil
}

// Delete removes the object for key. S3 reports success for keys that do
// not exist, which matches the idempotent delete contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
