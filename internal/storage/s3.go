package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Archive keeps the raw uploaded documents in an S3 bucket.
type Archive struct {
	client         objectAPI
	base           *s3.Client
	bucket         string
	publicEndpoint string
}

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnvString("AWS_REGION", "us-east-1")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// NewArchiveFromEnv connects to the bucket named by AWS_BUCKET. It returns
// nil, nil when no bucket is configured.
func NewArchiveFromEnv(ctx context.Context) (*Archive, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	if bucket == "" {
		return nil, nil
	}
	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	a := NewArchive(client, bucket)
	a.base = client
	a.publicEndpoint = util.GetEnv("AWS_PUBLIC_ENDPOINT")
	return a, nil
}

func NewArchive(client objectAPI, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

func (a *Archive) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return data, nil
}

func (a *Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// DownloadLink presigns a GET for key valid for 15 minutes. With
// AWS_PUBLIC_ENDPOINT set the link is signed for that host and its path
// prefix is kept.
func (a *Archive) DownloadLink(ctx context.Context, key string) (string, error) {
	if a.base == nil {
		return "", fmt.Errorf("presigning requires an s3 client")
	}

	client := a.base
	prefix := ""
	if a.publicEndpoint != "" {
		publicURL, err := url.Parse(a.publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid AWS_PUBLIC_ENDPOINT: %s", a.publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")
		client = s3.NewFromConfig(
			aws.Config{
				Region:      a.base.Options().Region,
				Credentials: a.base.Options().Credentials,
				HTTPClient:  a.base.Options().HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(publicURL.Scheme + "://" + publicURL.Host)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(client).PresignGetObject(
		ctx,
		&s3.GetObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	if prefix == "" {
		return out.URL, nil
	}

	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}
