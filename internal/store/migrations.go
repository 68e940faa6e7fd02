package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
	user_id  TEXT NOT NULL,
	guild_id TEXT NOT NULL,
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, guild_id)
);

CREATE TABLE IF NOT EXISTS instructors (
	user_id      TEXT NOT NULL,
	guild_id     TEXT NOT NULL,
	target_users TEXT NOT NULL DEFAULT '',
	added_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, guild_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id       TEXT NOT NULL,
	instructor_id  TEXT NOT NULL,
	assignee_id    TEXT NOT NULL,
	name           TEXT NOT NULL,
	due            DATETIME NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	origin_message TEXT NOT NULL DEFAULT '',
	origin_channel TEXT NOT NULL DEFAULT '',
	reminder_sent  INTEGER NOT NULL DEFAULT 0 CHECK(reminder_sent IN (0, 1)),
	thread_id      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_guild ON tasks(guild_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due);
CREATE INDEX IF NOT EXISTS idx_tasks_reminder ON tasks(reminder_sent, status, due);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
