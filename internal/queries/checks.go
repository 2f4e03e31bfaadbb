package queries

import "fmt"

// Check is a data-quality query returning a single count. When MustBeZero is
// set a non-zero count fails the check; otherwise the count is informational.
// Warn downgrades a violated MustBeZero check to a warning.
type Check struct {
	Name       string
	Table      string
	SQL        string
	MustBeZero bool
	Warn       bool
}

// Checks returns row counts for the star tables followed by the integrity
// checks.
func Checks() []Check {
	var checks []Check
	for _, t := range []string{Songplays, Users, Songs, Artists, Time} {
		checks = append(checks, Check{
			Name:  t + "_row_count",
			Table: t,
			SQL:   "SELECT COUNT(*) FROM " + t,
		})
	}

	checks = append(checks,
		Check{
			Name:  "songplays_not_null",
			Table: Songplays,
			SQL: `SELECT COUNT(*) FROM songplays
WHERE user_id IS NULL OR song_id IS NULL OR artist_id IS NULL
    OR session_id IS NULL OR location IS NULL OR user_agent IS NULL`,
			MustBeZero: true,
		},
		// users keeps one row per distinct level, so a user who upgraded
		// appears twice.
		warnOnly(uniqueKey(Users, "user_id")),
		uniqueKey(Songs, "song_id"),
		uniqueKey(Artists, "artist_id"),
		Check{
			Name:  "time_subset_of_songplays",
			Table: Time,
			SQL: `SELECT COUNT(*) FROM time t
WHERE NOT EXISTS (SELECT 1 FROM songplays sp WHERE sp.start_time = t.start_time)`,
			MustBeZero: true,
		},
	)
	return checks
}

func uniqueKey(table, key string) Check {
	return Check{
		Name:  table + "_unique_key",
		Table: table,
		SQL: fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1) dup",
			key, table, key),
		MustBeZero: true,
	}
}

func warnOnly(c Check) Check {
	c.Warn = true
	return c
}
