// Package queries holds every SQL statement the warehouse runs, in the order
// it must run them.
package queries

// Table names.
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Time          = "time"
)

// Kind classifies a statement for logging, metrics and run history.
type Kind string

const (
	KindDrop   Kind = "drop"
	KindCreate Kind = "create"
	KindCopy   Kind = "copy"
	KindInsert Kind = "insert"
	KindCheck  Kind = "check"
)

// Statement is one SQL command against one table.
type Statement struct {
	Kind  Kind
	Table string
	SQL   string
}

// AllTables lists every table in creation order.
func AllTables() []string {
	return []string{StagingEvents, StagingSongs, Users, Artists, Songs, Songplays, Time}
}

// Drop returns the drop statements. Staging tables go first, then the fact
// table ahead of the dimensions it references.
func Drop() []Statement {
	order := []string{StagingEvents, StagingSongs, Songplays, Users, Songs, Artists, Time}
	stmts := make([]Statement, 0, len(order))
	for _, t := range order {
		stmts = append(stmts, Statement{Kind: KindDrop, Table: t, SQL: "DROP TABLE IF EXISTS " + t})
	}
	return stmts
}

// Create returns the create statements. Referenced dimensions are created
// before the tables that reference them.
func Create() []Statement {
	return []Statement{
		{KindCreate, StagingEvents, createStagingEvents},
		{KindCreate, StagingSongs, createStagingSongs},
		{KindCreate, Users, createUsers},
		{KindCreate, Artists, createArtists},
		{KindCreate, Songs, createSongs},
		{KindCreate, Songplays, createSongplays},
		{KindCreate, Time, createTime},
	}
}

// Insert returns the staging-to-star transforms. time is derived from
// songplays, so songplays must be loaded first.
func Insert() []Statement {
	return []Statement{
		{KindInsert, Songplays, insertSongplays},
		{KindInsert, Time, insertTime},
		{KindInsert, Users, insertUsers},
		{KindInsert, Songs, insertSongs},
		{KindInsert, Artists, insertArtists},
	}
}

const createStagingEvents = `CREATE TABLE IF NOT EXISTS staging_events (
    artist VARCHAR,
    auth VARCHAR,
    first_name VARCHAR,
    gender VARCHAR,
    item_in_session INT,
    last_name VARCHAR,
    length NUMERIC,
    level VARCHAR,
    location VARCHAR,
    method VARCHAR,
    page VARCHAR,
    registration NUMERIC,
    session_id NUMERIC,
    song VARCHAR,
    status INT,
    timestamp BIGINT,
    user_agent VARCHAR,
    user_id INT)`

const createStagingSongs = `CREATE TABLE IF NOT EXISTS staging_songs (
    num_songs INT,
    artist_id VARCHAR,
    artist_latitude NUMERIC,
    artist_longitude NUMERIC,
    artist_location VARCHAR,
    artist_name VARCHAR,
    song_id VARCHAR,
    title VARCHAR,
    duration NUMERIC,
    year INT)`

const createSongplays = `CREATE TABLE IF NOT EXISTS songplays (
    songplay_id INT IDENTITY(0,1) PRIMARY KEY,
    start_time TIMESTAMP NOT NULL,
    user_id VARCHAR NOT NULL REFERENCES users(user_id) sortkey,
    level VARCHAR NOT NULL,
    song_id VARCHAR NOT NULL REFERENCES songs(song_id),
    artist_id VARCHAR NOT NULL REFERENCES artists(artist_id) distkey,
    session_id INT NOT NULL,
    location VARCHAR NOT NULL,
    user_agent VARCHAR NOT NULL)`

const createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id INT NOT NULL PRIMARY KEY,
    first_name VARCHAR NOT NULL,
    last_name VARCHAR NOT NULL,
    gender VARCHAR NOT NULL,
    level VARCHAR NOT NULL)
DISTSTYLE all`

const createSongs = `CREATE TABLE IF NOT EXISTS songs (
    song_id VARCHAR NOT NULL PRIMARY KEY sortkey,
    title VARCHAR NOT NULL,
    artist_id VARCHAR NOT NULL REFERENCES artists(artist_id),
    year INT NOT NULL,
    duration NUMERIC NOT NULL)`

const createArtists = `CREATE TABLE IF NOT EXISTS artists (
    artist_id VARCHAR NOT NULL PRIMARY KEY sortkey,
    name VARCHAR NOT NULL,
    location VARCHAR,
    latitude NUMERIC,
    longitude NUMERIC)`

const createTime = `CREATE TABLE IF NOT EXISTS time (
    start_time TIMESTAMP NOT NULL PRIMARY KEY,
    hour INT NOT NULL,
    day INT NOT NULL,
    week INT NOT NULL,
    month TEXT NOT NULL,
    year INT NOT NULL,
    weekday TEXT NOT NULL)
DISTSTYLE all`

// Event timestamps are epoch milliseconds.
const insertSongplays = `INSERT INTO songplays (
    start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT DISTINCT TIMESTAMP 'epoch' + se.timestamp/1000 * interval '1 second' AS start_time,
    se.user_id, se.level, ss.song_id, ss.artist_id, se.session_id, se.location, se.user_agent
FROM staging_events se
JOIN staging_songs ss ON (se.artist = ss.artist_name)
WHERE se.page = 'NextSong'
    AND se.user_id IS NOT NULL
    AND se.level IS NOT NULL
    AND ss.song_id IS NOT NULL
    AND ss.artist_id IS NOT NULL
    AND se.session_id IS NOT NULL
    AND se.location IS NOT NULL
    AND se.user_agent IS NOT NULL`

const insertUsers = `INSERT INTO users (user_id, first_name, last_name, gender, level)
SELECT DISTINCT user_id, first_name, last_name, gender, level
FROM staging_events
WHERE page = 'NextSong'`

const insertSongs = `INSERT INTO songs (song_id, title, artist_id, year, duration)
SELECT DISTINCT song_id, title, artist_id, year, duration
FROM staging_songs`

const insertArtists = `INSERT INTO artists (artist_id, name, location, latitude, longitude)
SELECT DISTINCT artist_id, artist_name, artist_location, artist_latitude, artist_longitude
FROM staging_songs`

const insertTime = `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
SELECT DISTINCT start_time,
    EXTRACT(hour FROM start_time),
    EXTRACT(day FROM start_time),
    EXTRACT(week FROM start_time),
    EXTRACT(month FROM start_time),
    EXTRACT(year FROM start_time),
    EXTRACT(dayofweek FROM start_time)
FROM songplays`
