package state

type migration struct {
	version int
	sql     string
}

// migrations must stay ordered by version.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stream_state (
	stream     TEXT PRIMARY KEY,
	state      TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE stream_state ADD COLUMN format INTEGER NOT NULL DEFAULT 1;
ALTER TABLE stream_state ADD COLUMN run_id TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_stream_state_run_id ON stream_state(run_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
