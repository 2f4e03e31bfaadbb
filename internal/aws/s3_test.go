package aws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://udacity-dend/log_data", "udacity-dend", "log_data", false},
		{"s3://udacity-dend/log_json_path.json", "udacity-dend", "log_json_path.json", false},
		{"s3://bucket", "bucket", "", false},
		{"s3://bucket/a/b/", "bucket", "a/b/", false},
		{"https://bucket/key", "", "", true},
		{"s3:///key", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			loc, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, loc.Bucket)
			assert.Equal(t, tt.key, loc.Key)
		})
	}
}

func TestS3LocationString(t *testing.T) {
	assert.Equal(t, "s3://b/k", S3Location{Bucket: "b", Key: "k"}.String())
}

func TestRoleNameFromARN(t *testing.T) {
	name, err := RoleNameFromARN("arn:aws:iam::123456789012:role/dwhRole")
	require.NoError(t, err)
	assert.Equal(t, "dwhRole", name)

	name, err = RoleNameFromARN("arn:aws:iam::123456789012:role/service/dwhRole")
	require.NoError(t, err)
	assert.Equal(t, "dwhRole", name)

	_, err = RoleNameFromARN("arn:aws:iam::123456789012:user/bob")
	assert.Error(t, err)

	_, err = RoleNameFromARN("dwhRole")
	assert.Error(t, err)
}
