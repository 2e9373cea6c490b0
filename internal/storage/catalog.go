package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jsenna/acquire/internal/measure"
)

// RunInfo is one catalog entry.
type RunInfo struct {
	TUID    string
	Name    string
	State   string
	Started time.Time
	Ended   time.Time
	Points  int
}

// catalog is the sqlite index of finished runs. Datasets themselves
// live on disk as JSON; the catalog only exists so listing does not
// have to parse every run directory.
type catalog struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS runs (
	tuid    TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	state   TEXT NOT NULL,
	started TEXT NOT NULL,
	ended   TEXT NOT NULL,
	points  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started ON runs (started DESC);
`

func openCatalog(path string) (*catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &catalog{db: db}, nil
}

func (c *catalog) close() error {
	return c.db.Close()
}

func (c *catalog) upsert(ds *measure.Dataset) error {
	_, err := c.db.Exec(`
		INSERT INTO runs (tuid, name, state, started, ended, points)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tuid) DO UPDATE SET
			state = excluded.state,
			ended = excluded.ended,
			points = excluded.points`,
		ds.TUID, ds.Name, ds.State.String(),
		ds.Started.Format(time.RFC3339Nano),
		ds.Ended.Format(time.RFC3339Nano),
		ds.Rows())
	return err
}

func (c *catalog) list() ([]RunInfo, error) {
	rows, err := c.db.Query(`
		SELECT tuid, name, state, started, ended, points
		FROM runs ORDER BY started DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var started, ended string
		if err := rows.Scan(&info.TUID, &info.Name, &info.State, &started, &ended, &info.Points); err != nil {
			return nil, err
		}
		info.Started, _ = time.Parse(time.RFC3339Nano, started)
		info.Ended, _ = time.Parse(time.RFC3339Nano, ended)
		out = append(out, info)
	}
	return out, rows.Err()
}
