//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/pipeline"
	"github.com/sparkify/dwh/internal/validation"
)

// TestFullLoadFromS3 runs the whole pipeline against the public song and
// event logs. It needs DWH_TEST_IAM_ROLE, a role the cluster can assume to
// read them.
func TestFullLoadFromS3(t *testing.T) {
	role := envOrDefault("DWH_TEST_IAM_ROLE", "")
	if role == "" {
		t.Skip("skipping: DWH_TEST_IAM_ROLE not set")
	}
	sess := connect(t)

	cfg := &config.Config{
		IAMRole: config.IAMRoleConfig{ARN: role},
		S3: config.S3Config{
			LogData:     envOrDefault("DWH_TEST_LOG_DATA", "s3://udacity-dend/log_data"),
			LogJSONPath: envOrDefault("DWH_TEST_LOG_JSONPATH", "s3://udacity-dend/log_json_path.json"),
			SongData:    envOrDefault("DWH_TEST_SONG_DATA", "s3://udacity-dend/song_data/A/A/A"),
			Region:      envOrDefault("DWH_TEST_S3_REGION", "us-west-2"),
		},
	}
	r := pipeline.NewRunner(sess, cfg, testLogger)
	res, err := r.Run(context.Background(), pipeline.Options{Validate: true})
	require.NoError(t, err)
	assert.Equal(t, 31, res.Steps)
	require.NotNil(t, res.Validation)

	for _, c := range res.Validation.Checks {
		assert.True(t, c.Passed, "%s: %s", c.Name, c.Message)
	}
	assert.Equal(t, validation.StatusPassed, res.Validation.Status)
}

func TestPreflightAgainstAWS(t *testing.T) {
	skipIfNoAWS(t)
	ctx := context.Background()

	client, err := aws.NewRealClient(ctx, aws.Credentials{
		Profile: envOrDefault("AWS_PROFILE", ""),
		Region:  envOrDefault("AWS_REGION", "us-west-2"),
	})
	require.NoError(t, err)

	res, err := aws.RunPreflight(ctx, client, aws.PreflightInput{
		RoleARN:     envOrDefault("DWH_TEST_IAM_ROLE", "arn:aws:iam::000000000000:role/dwh-missing"),
		LogData:     "s3://udacity-dend/log_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Identity)

	byName := map[string]aws.PreflightCheck{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	assert.True(t, byName["credentials"].OK)
	assert.True(t, byName["log_data"].OK, byName["log_data"].Detail)
	assert.True(t, byName["song_data"].OK, byName["song_data"].Detail)
}
