package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

// Config holds object storage configuration.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	PublicBaseURL   string
}

// putObjectAPI is the subset of the S3 client used by the publisher.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient creates an S3 client for an S3-compatible endpoint.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("incomplete storage configuration")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ArtifactPublisher implements ArtifactPublisherPort on S3-compatible storage.
type ArtifactPublisher struct {
	client        putObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

// NewArtifactPublisher creates a new artifact publisher.
func NewArtifactPublisher(client putObjectAPI, cfg Config) *ArtifactPublisher {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" && cfg.Endpoint != "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "generations/"
	}
	return &ArtifactPublisher{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        prefix,
		publicBaseURL: base,
	}
}

// Publish uploads the artifact under the task ID and returns its public URL.
func (p *ArtifactPublisher) Publish(ctx context.Context, taskID string, artifact *model.Artifact) (string, error) {
	if artifact == nil {
		return "", errors.New("nil artifact")
	}

	key := p.prefix + taskID + extensionFor(artifact.MimeType)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(artifact.Data),
		ContentLength: aws.Int64(int64(len(artifact.Data))),
		ContentType:   aws.String(artifact.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	if p.publicBaseURL == "" {
		return "s3://" + p.bucket + "/" + key, nil
	}
	return p.publicBaseURL + "/" + key, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// Compile-time interface check
var _ outbound.ArtifactPublisherPort = (*ArtifactPublisher)(nil)
