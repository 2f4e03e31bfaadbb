package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preflightInput() PreflightInput {
	return PreflightInput{
		RoleARN:     "arn:aws:iam::123456789012:role/dwhRole",
		LogData:     "s3://udacity-dend/log_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
	}
}

func healthyClient() *MockClient {
	m := NewMockClient()
	m.Roles["dwhRole"] = true
	m.Prefixes["udacity-dend/log_data"] = true
	m.Prefixes["udacity-dend/song_data"] = true
	m.Objects["udacity-dend/log_json_path.json"] = true
	return m
}

func checkByName(t *testing.T, r *PreflightResult, name string) PreflightCheck {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return PreflightCheck{}
}

func TestRunPreflight_AllPass(t *testing.T) {
	res, err := RunPreflight(context.Background(), healthyClient(), preflightInput())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Empty(t, res.Errors())
	assert.Len(t, res.Checks, 5)
	require.NotNil(t, res.Identity)
	assert.Equal(t, "123456789012", res.Identity.Account)
}

func TestRunPreflight_MissingRole(t *testing.T) {
	client := healthyClient()
	delete(client.Roles, "dwhRole")

	res, err := RunPreflight(context.Background(), client, preflightInput())
	require.NoError(t, err)

	assert.False(t, res.OK())
	c := checkByName(t, res, "iam_role")
	assert.False(t, c.OK)
	assert.Contains(t, c.Detail, "dwhRole")
}

func TestRunPreflight_EmptyPrefix(t *testing.T) {
	client := healthyClient()
	client.Prefixes["udacity-dend/song_data"] = false

	res, err := RunPreflight(context.Background(), client, preflightInput())
	require.NoError(t, err)

	assert.False(t, checkByName(t, res, "song_data").OK)
	assert.True(t, checkByName(t, res, "log_data").OK)
	assert.Len(t, res.Errors(), 1)
}

func TestRunPreflight_CredentialError(t *testing.T) {
	client := healthyClient()
	client.IdentityErr = errors.New("expired token")

	res, err := RunPreflight(context.Background(), client, preflightInput())
	require.NoError(t, err)

	c := checkByName(t, res, "credentials")
	assert.False(t, c.OK)
	assert.Equal(t, "expired token", c.Detail)
}

func TestRunPreflight_NoJSONPath(t *testing.T) {
	in := preflightInput()
	in.LogJSONPath = ""

	res, err := RunPreflight(context.Background(), healthyClient(), in)
	require.NoError(t, err)
	assert.Len(t, res.Checks, 4)
	assert.True(t, res.OK())
}

func TestRunPreflight_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunPreflight(ctx, healthyClient(), preflightInput())
	assert.ErrorIs(t, err, context.Canceled)
}
