package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ClientConfig selects the account and endpoint to publish to
type ClientConfig struct {
	Region    string
	Endpoint  string // Optional: S3-compatible endpoint, implies path-style addressing
	AccessKey string
	SecretKey string
}

// Clients bundles the AWS clients used for publishing.
type Clients struct {
	S3       *s3.Client
	Identity *sts.Client
	Region   string
}

// NewClients loads the default AWS credential chain, with static keys taking
// precedence when both are set.
func NewClients(ctx context.Context, cfg ClientConfig) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, errors.New("no AWS region configured: set region in stack.yaml or AWS_REGION")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Clients{
		S3:       client,
		Identity: sts.NewFromConfig(awsCfg),
		Region:   awsCfg.Region,
	}, nil
}

// AccountID returns the account of the loaded credentials.
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	out, err := c.Identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve AWS account: %w", err)
	}
	return aws.ToString(out.Account), nil
}
