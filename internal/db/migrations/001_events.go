package migrations

import "fmt"

type Migration struct {
	Version  int
	Name     string
	SQLite   string
	Postgres string
}

// For returns the statement set for the named dialect.
func (m Migration) For(dialect string) (string, error) {
	switch dialect {
	case "sqlite":
		return m.SQLite, nil
	case "postgres":
		return m.Postgres, nil
	default:
		return "", fmt.Errorf("migration %d (%s): unsupported dialect %q", m.Version, m.Name, dialect)
	}
}

// occurred_at is stored in a fixed-width UTC layout on sqlite so that text
// comparison matches chronological order.
const eventsSQLiteSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    occurred_at TEXT NOT NULL,
    ip TEXT NULL,
    user_agent TEXT NULL,
    payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`

const eventsPostgresSQL = `
CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ip TEXT NULL,
    user_agent TEXT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`

func All() []Migration {
	return []Migration{
		{
			Version:  1,
			Name:     "events",
			SQLite:   eventsSQLiteSQL,
			Postgres: eventsPostgresSQL,
		},
	}
}
