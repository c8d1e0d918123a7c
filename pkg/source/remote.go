package source

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"lawaudit/pkg/platform"
)

type httpFetcher struct {
	client *platform.HTTPClient
}

func (h *httpFetcher) Fetch(ctx context.Context, loc Location, limit int64) ([]byte, error) {
	return h.client.Get(ctx, loc.Raw, limit)
}

// s3Fetcher reads s3://bucket/key. AWS_REGION and S3_ENDPOINT (MinIO, LocalStack) are honoured.
type s3Fetcher struct {
	once   sync.Once
	client *s3.Client
	err    error
}

func (f *s3Fetcher) init(ctx context.Context) error {
	f.once.Do(func() {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(platform.GetEnv("AWS_REGION", "us-east-1")))
		if err != nil {
			f.err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		endpoint := platform.GetEnv("S3_ENDPOINT", "")
		f.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return f.err
}

func (f *s3Fetcher) Fetch(ctx context.Context, loc Location, limit int64) ([]byte, error) {
	if err := f.init(ctx); err != nil {
		return nil, err
	}

	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get failed for %s: %w", loc.Raw, err)
	}
	defer func() { _ = result.Body.Close() }()

	return readLimited(result.Body, limit)
}

// gcsFetcher reads gs://bucket/object using application default credentials
type gcsFetcher struct {
	once   sync.Once
	client *storage.Client
	err    error
}

func (f *gcsFetcher) init(ctx context.Context) error {
	f.once.Do(func() {
		client, err := storage.NewClient(ctx)
		if err != nil {
			f.err = fmt.Errorf("failed to create GCS client: %w", err)
			return
		}
		f.client = client
	})
	return f.err
}

func (f *gcsFetcher) Fetch(ctx context.Context, loc Location, limit int64) ([]byte, error) {
	if err := f.init(ctx); err != nil {
		return nil, err
	}

	r, err := f.client.Bucket(loc.Bucket).Object(loc.Path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read failed for %s: %w", loc.Raw, err)
	}
	defer func() { _ = r.Close() }()

	return readLimited(r, limit)
}
