package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// RealClient implements Client using the AWS SDK v2.
type RealClient struct {
	stsClient *sts.Client
	iamClient *iam.Client
	s3Client  *s3.Client
}

// NewRealClient creates a new AWS client from the given credentials.
func NewRealClient(ctx context.Context, creds Credentials) (*RealClient, error) {
	cfg, err := LoadConfig(ctx, creds)
	if err != nil {
		return nil, err
	}
	return NewRealClientFromConfig(cfg), nil
}

// NewRealClientFromConfig wraps an already loaded SDK config.
func NewRealClientFromConfig(cfg aws.Config) *RealClient {
	return &RealClient{
		stsClient: sts.NewFromConfig(cfg),
		iamClient: iam.NewFromConfig(cfg),
		s3Client:  s3.NewFromConfig(cfg),
	}
}

// VerifyCredentials checks the current AWS credentials using STS.
func (c *RealClient) VerifyCredentials(ctx context.Context) (*CallerIdentity, error) {
	out, err := c.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("getting caller identity: %w", err)
	}

	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// RoleExists reports whether an IAM role with the given name exists.
func (c *RealClient) RoleExists(ctx context.Context, roleName string) (bool, error) {
	_, err := c.iamClient.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		var missing *iamtypes.NoSuchEntityException
		if errors.As(err, &missing) {
			return false, nil
		}
		return false, fmt.Errorf("getting role %s: %w", roleName, err)
	}
	return true, nil
}

// PrefixHasObjects reports whether at least one object lives under prefix.
func (c *RealClient) PrefixHasObjects(ctx context.Context, bucket, prefix string) (bool, error) {
	out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noBucket) {
			return false, nil
		}
		return false, fmt.Errorf("listing objects under s3://%s/%s: %w", bucket, prefix, err)
	}
	return len(out.Contents) > 0, nil
}

// ObjectExists reports whether a single object exists.
func (c *RealClient) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// HeadObject has no body, so a missing key surfaces as a bare 404 API error.
		var notFound *s3types.NotFound
		var apiErr smithy.APIError
		if errors.As(err, &notFound) || (errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound") {
			return false, nil
		}
		return false, fmt.Errorf("checking s3://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}
