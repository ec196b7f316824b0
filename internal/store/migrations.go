package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id              TEXT PRIMARY KEY,
				title           TEXT NOT NULL DEFAULT '',
				created_at      TEXT NOT NULL DEFAULT (datetime('now')),
				last_active_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_last_active ON sessions (last_active_at);

			CREATE TABLE messages (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				seq         INTEGER NOT NULL,
				meta_json   TEXT
			);

			CREATE INDEX idx_messages_session_seq ON messages (session_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create settings",
		SQL: `
			CREATE TABLE settings (
				key    TEXT PRIMARY KEY,
				value  TEXT NOT NULL
			);
		`,
	},
	{
		Version: 3,
		Name:    "create kanban boards and cards",
		SQL: `
			CREATE TABLE kanban_boards (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				statuses    TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE kanban_cards (
				id          TEXT PRIMARY KEY,
				board_id    TEXT NOT NULL REFERENCES kanban_boards(id) ON DELETE CASCADE,
				title       TEXT NOT NULL,
				status      TEXT NOT NULL,
				body_md     TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_kanban_cards_board_status ON kanban_cards (board_id, status);
		`,
	},
}
