package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3StoreConfig описывает подключение к S3 или S3-совместимому хранилищу.
// Если задан R2AccountID, эндпоинт и регион выставляются для Cloudflare R2.
type S3StoreConfig struct {
	BucketName      string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	R2AccountID     string
	UsePathStyle    bool
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	s3.ListObjectsV2APIClient
}

type s3Store struct {
	client     s3API
	bucketName string
}

// NewS3Store создаёт BlobStore поверх aws-sdk-go-v2.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (BlobStore, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("invalid S3 configuration: bucket name is required")
	}

	endpoint := cfg.Endpoint
	region := cfg.Region
	usePathStyle := cfg.UsePathStyle
	if cfg.R2AccountID != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errors.New("invalid Cloudflare R2 configuration: access key id and secret are required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
		region = "auto" // R2 подписывает запросы с регионом "auto"
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = usePathStyle
	})

	return newS3StoreWithClient(client, cfg.BucketName), nil
}

func newS3StoreWithClient(client s3API, bucketName string) *s3Store {
	return &s3Store{client: client, bucketName: bucketName}
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object (bucket: %s, key: %s): %w", s.bucketName, key, err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download object (bucket: %s, key: %s): %w", s.bucketName, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body (key: %s): %w", key, err)
	}
	return data, nil
}

func (s *s3Store) Match(ctx context.Context, pattern string, max int) ([]string, error) {
	if max <= 0 {
		return []string{}, nil
	}
	if pattern != "" && literalPrefix(pattern) == pattern {
		return s.matchExact(ctx, pattern)
	}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
	}
	if prefix := literalPrefix(pattern); prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	keys := make([]string, 0, max)
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() && len(keys) < max {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects (bucket: %s, pattern: %s): %w", s.bucketName, pattern, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !matchKey(pattern, key) {
				continue
			}
			keys = append(keys, key)
			if len(keys) == max {
				break
			}
		}
	}
	return keys, nil
}

// matchExact ищет ключ без glob-символов. Листинг идёт в лексикографическом
// порядке, поэтому сам ключ, если он есть, будет первым под своим префиксом.
func (s *s3Store) matchExact(ctx context.Context, key string) ([]string, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucketName),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects (bucket: %s, pattern: %s): %w", s.bucketName, key, err)
	}
	if len(out.Contents) == 0 || aws.ToString(out.Contents[0].Key) != key {
		return []string{}, nil
	}
	return []string{key}, nil
}

func (s *s3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	if err != nil {
		return fmt.Errorf("bucket %s is not reachable: %w", s.bucketName, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
