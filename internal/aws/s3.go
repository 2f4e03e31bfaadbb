package aws

import (
	"fmt"
	"net/url"
	"strings"
)

// S3Location is a parsed s3://bucket/key URI.
type S3Location struct {
	Bucket string
	Key    string
}

func (l S3Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// ParseS3URI splits an s3:// URI into bucket and key. The key may be empty.
func ParseS3URI(uri string) (S3Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return S3Location{}, fmt.Errorf("parsing S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return S3Location{}, fmt.Errorf("S3 URI %q must use the s3:// scheme", uri)
	}
	if u.Host == "" {
		return S3Location{}, fmt.Errorf("S3 URI %q has no bucket", uri)
	}
	return S3Location{
		Bucket: u.Host,
		Key:    strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// RoleNameFromARN extracts the role name from an IAM role ARN, dropping any path.
func RoleNameFromARN(arn string) (string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" || parts[2] != "iam" {
		return "", fmt.Errorf("%q is not an IAM ARN", arn)
	}
	resource := parts[5]
	if !strings.HasPrefix(resource, "role/") {
		return "", fmt.Errorf("%q is not an IAM role ARN", arn)
	}
	name := resource[strings.LastIndex(resource, "/")+1:]
	if name == "" {
		return "", fmt.Errorf("%q has an empty role name", arn)
	}
	return name, nil
}
