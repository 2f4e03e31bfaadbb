package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Client defines the read-only AWS calls used to check that a load can run.
type Client interface {
	VerifyCredentials(ctx context.Context) (*CallerIdentity, error)
	RoleExists(ctx context.Context, roleName string) (bool, error)
	PrefixHasObjects(ctx context.Context, bucket, prefix string) (bool, error)
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
}

// CallerIdentity holds AWS STS caller identity information.
type CallerIdentity struct {
	Account string
	ARN     string
	UserID  string
}

// Credentials selects how the SDK authenticates. Static keys win over the
// shared-config profile; with neither set the default chain is used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Profile         string
	Region          string
}

// LoadConfig builds an SDK config from the given credentials.
func LoadConfig(ctx context.Context, creds Credentials) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}
	switch {
	case creds.AccessKeyID != "" && creds.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	case creds.Profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(creds.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}
