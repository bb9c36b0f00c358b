package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. The SQL is kept to
// the dialect both backends share: TEXT keys, TIMESTAMP columns, and
// INTEGER-encoded booleans.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS work_items (
	id             TEXT PRIMARY KEY,
	parent_id      TEXT,
	title          TEXT NOT NULL,
	raw_text       TEXT NOT NULL DEFAULT '',
	ancestors      TEXT NOT NULL DEFAULT '',
	depth          INTEGER NOT NULL DEFAULT 0,
	position       INTEGER NOT NULL DEFAULT 0,
	kind           TEXT NOT NULL DEFAULT 'task',
	goal_timeframe TEXT NOT NULL DEFAULT '',
	recurrence     TEXT NOT NULL DEFAULT 'none',
	story_points   INTEGER,
	due_date       TIMESTAMP,
	completed_at   TIMESTAMP,
	milestone      INTEGER NOT NULL DEFAULT 0,
	on_deck        INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_work_items_parent_id ON work_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_kind ON work_items(kind);
CREATE INDEX IF NOT EXISTS idx_work_items_due_date ON work_items(due_date);
CREATE INDEX IF NOT EXISTS idx_work_items_completed_at ON work_items(completed_at);

CREATE TABLE IF NOT EXISTS contexts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS item_contexts (
	item_id    TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
	context_id TEXT NOT NULL REFERENCES contexts(id) ON DELETE CASCADE,
	PRIMARY KEY (item_id, context_id)
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	items_seen    INTEGER NOT NULL DEFAULT 0,
	items_loaded  INTEGER NOT NULL DEFAULT 0,
	items_skipped INTEGER NOT NULL DEFAULT 0,
	warnings      INTEGER NOT NULL DEFAULT 0
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE VIEW completion_events AS
SELECT id AS item_id,
       kind,
       recurrence,
       story_points,
       due_date,
       completed_at
FROM work_items
WHERE completed_at IS NOT NULL;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
