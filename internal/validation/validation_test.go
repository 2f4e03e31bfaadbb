package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/queries"
	"github.com/sparkify/dwh/internal/warehouse"
)

func TestValidate_AllPass(t *testing.T) {
	sess := &warehouse.MockSession{}
	v := &Validator{Session: sess}

	res, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Len(t, res.Checks, len(queries.Checks()))
	assert.Empty(t, res.Failed())
	assert.Len(t, sess.Queried, len(queries.Checks()))
}

func TestValidate_RowCountsNeverFail(t *testing.T) {
	sess := &warehouse.MockSession{Counts: map[string]int64{"FROM users": 104}}
	v := &Validator{Session: sess, Checks: []queries.Check{
		{Name: "users_row_count", Table: "users", SQL: "SELECT COUNT(*) FROM users"},
	}}

	res, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	require.Len(t, res.Checks, 1)
	assert.Equal(t, int64(104), res.Checks[0].Count)
	assert.False(t, res.Checks[0].Enforced)
}

func TestValidate_DuplicateSongsFail(t *testing.T) {
	sess := &warehouse.MockSession{Counts: map[string]int64{
		"GROUP BY song_id": 3,
	}}
	var seen []string
	v := &Validator{Session: sess, Callback: func(c CheckResult) { seen = append(seen, c.Name) }}

	res, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "songs_unique_key", failed[0].Name)
	assert.Equal(t, int64(3), failed[0].Count)
	assert.Equal(t, "3 violating row(s) in songs", failed[0].Message)
	assert.Len(t, seen, len(queries.Checks()))
}

func TestValidate_DuplicateUsersOnlyWarn(t *testing.T) {
	sess := &warehouse.MockSession{Counts: map[string]int64{
		"GROUP BY user_id": 2,
	}}
	v := &Validator{Session: sess}

	res, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Empty(t, res.Failed())

	warnings := res.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "users_unique_key", warnings[0].Name)
	assert.True(t, warnings[0].Passed)
	assert.False(t, warnings[0].Enforced)
	assert.Equal(t, "2 violating row(s) in users", warnings[0].Message)
}

func TestValidate_QueryErrorAborts(t *testing.T) {
	sess := &warehouse.MockSession{QueryErr: errors.New("relation does not exist")}
	v := &Validator{Session: sess}

	_, err := v.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "songplays_row_count")
	assert.Len(t, sess.Queried, 1)
}

func TestValidate_QueryErrorReachesCallback(t *testing.T) {
	queryErr := errors.New("relation does not exist")
	sess := &warehouse.MockSession{QueryErr: queryErr}
	var seen []CheckResult
	v := &Validator{Session: sess, Callback: func(c CheckResult) { seen = append(seen, c) }}

	_, err := v.Validate(context.Background())
	require.ErrorIs(t, err, queryErr)
	require.Len(t, seen, 1)
	assert.Equal(t, "songplays_row_count", seen[0].Name)
	assert.False(t, seen[0].Passed)
	assert.ErrorIs(t, seen[0].Err, queryErr)
}
