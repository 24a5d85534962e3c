package searcher

import (
	"path/filepath"
	"strings"

	"github.com/dshills/embedfixtures/internal/fixture"
	"github.com/dshills/embedfixtures/internal/storage"
)

// sqliteExtensions mark fixture files opened through internal/storage
var sqliteExtensions = map[string]bool{
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
}

// IsSQLiteFixture reports whether path names a SQLite fixture
func IsSQLiteFixture(path string) bool {
	return sqliteExtensions[strings.ToLower(filepath.Ext(path))]
}

// OpenFixture opens a fixture file as a DocumentSource. SQLite fixtures are
// chosen by extension; anything else is decoded as SOA or row JSON. The
// returned close function must be called when the source is no longer needed.
func OpenFixture(path string) (DocumentSource, func() error, error) {
	if IsSQLiteFixture(path) {
		store, err := storage.OpenFixture(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	set, err := fixture.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return set, func() error { return nil }, nil
}
