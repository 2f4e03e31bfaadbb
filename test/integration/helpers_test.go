//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/logging"
	"github.com/sparkify/dwh/internal/warehouse"
)

// redshiftURL is a postgres:// URL for a scratch database on a live cluster.
// The tests drop and recreate every table in it.
func redshiftURL(t *testing.T) string {
	t.Helper()
	u := os.Getenv("DWH_TEST_REDSHIFT_URL")
	if u == "" {
		t.Skip("skipping: DWH_TEST_REDSHIFT_URL not set")
	}
	return u
}

func skipIfNoAWS(t *testing.T) {
	t.Helper()
	if os.Getenv("DWH_TEST_AWS") == "" {
		t.Skip("skipping: DWH_TEST_AWS not set")
	}
}

func connect(t *testing.T) *warehouse.PgxSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := warehouse.Connect(ctx, redshiftURL(t))
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close(context.Background()) })
	return sess
}

func count(t *testing.T, sess warehouse.Session, sql string) int64 {
	t.Helper()
	n, err := sess.QueryInt(context.Background(), sql)
	require.NoError(t, err, sql)
	return n
}

var testLogger = logging.Discard()

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
