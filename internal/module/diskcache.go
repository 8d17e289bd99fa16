package module

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DiskCache persists fetched module sources across evaluator runs in a
// single SQLite file. Entries are keyed by canonical URI; the cached path
// is stored alongside so the cache directory can be inspected and pruned
// by relative location.
type DiskCache struct {
	db *sql.DB
}

const diskCacheSchema = `
CREATE TABLE IF NOT EXISTS sources (
	uri        TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	data       BLOB NOT NULL,
	written_at INTEGER NOT NULL
);`

// OpenDiskCache opens (creating if necessary) the cache database at path.
func OpenDiskCache(path string) (*DiskCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("cache:"+path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ioError("cache:"+path, err)
	}
	if _, err := db.Exec(diskCacheSchema); err != nil {
		db.Close()
		return nil, ioError("cache:"+path, err)
	}
	return &DiskCache{db: db}, nil
}

// Get returns the cached source for uri, if present.
func (c *DiskCache) Get(uri string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRow(`SELECT data FROM sources WHERE uri = ?`, uri).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ioError(uri, err)
	}
	return data, true, nil
}

// Put stores the source for uri, replacing any previous entry.
func (c *DiskCache) Put(uri, cachedPath string, data []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO sources (uri, path, data, written_at) VALUES (?, ?, ?, ?)`,
		uri, cachedPath, data, time.Now().Unix())
	if err != nil {
		return ioError(uri, err)
	}
	return nil
}

// Delete removes the entry for uri, if present.
func (c *DiskCache) Delete(uri string) error {
	if _, err := c.db.Exec(`DELETE FROM sources WHERE uri = ?`, uri); err != nil {
		return ioError(uri, err)
	}
	return nil
}

func (c *DiskCache) Close() error { return c.db.Close() }
