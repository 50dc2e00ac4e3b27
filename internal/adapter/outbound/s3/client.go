package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds S3 connection settings.
type ClientConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string

	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint     string
	UsePathStyle bool
}

// NewClient creates an S3 client. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg *ClientConfig) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("incomplete S3 configuration: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("incomplete S3 configuration: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}
