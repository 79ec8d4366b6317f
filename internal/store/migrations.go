package store

import "strings"

// dialect identifies the SQL flavour a migration is rendered for.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations, written once with
// %TIMESTAMP% standing in for the dialect's instant type.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS teams (
	id                  BIGINT PRIMARY KEY,
	suggestions_enabled INTEGER NOT NULL DEFAULT 1,
	created_at          %TIMESTAMP% NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         BIGINT PRIMARY KEY,
	first_name TEXT NOT NULL,
	username   TEXT NOT NULL DEFAULT '',
	created_at %TIMESTAMP% NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id BIGINT NOT NULL REFERENCES teams(id),
	user_id BIGINT NOT NULL REFERENCES users(id),
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS meetings (
	id               TEXT PRIMARY KEY,
	team_id          BIGINT NOT NULL REFERENCES teams(id),
	start_at         %TIMESTAMP% NOT NULL,
	duration_minutes INTEGER NOT NULL CHECK(duration_minutes > 0),
	has_reminder     INTEGER NOT NULL DEFAULT 0,
	agenda_ref       TEXT NOT NULL DEFAULT '',
	notes_ref        TEXT NOT NULL DEFAULT '',
	created_at       %TIMESTAMP% NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_meetings_team_start ON meetings(team_id, start_at);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	team_id     BIGINT NOT NULL REFERENCES teams(id),
	name        TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'To-Do' CHECK(status IN ('To-Do', 'Doing', 'Done')),
	due_date    %TIMESTAMP%,
	assignee_id BIGINT REFERENCES users(id),
	created_at  %TIMESTAMP% NOT NULL,
	updated_at  %TIMESTAMP% NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_team_status ON tasks(team_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);

CREATE TABLE IF NOT EXISTS feedback (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	feedback_type INTEGER NOT NULL,
	updated_at    %TIMESTAMP% NOT NULL,
	UNIQUE(task_id, user_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	kind        INTEGER NOT NULL DEFAULT 0,
	meeting_id  TEXT,
	chat_id     BIGINT NOT NULL,
	fire_at     %TIMESTAMP% NOT NULL,
	text        TEXT NOT NULL,
	doc_ref     TEXT NOT NULL DEFAULT '',
	doc_caption TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notifications_fire_at ON notifications(fire_at);
CREATE INDEX IF NOT EXISTS idx_notifications_meeting_chat ON notifications(meeting_id, chat_id);
`,
	},
}

// migrationsFor renders the migration list for d.
func migrationsFor(d dialect) []migration {
	timestamp := "DATETIME"
	if d == dialectPostgres {
		timestamp = "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("%TIMESTAMP%", timestamp)

	out := make([]migration, len(migrations))
	for i, m := range migrations {
		out[i] = migration{version: m.version, sql: r.Replace(m.sql)}
	}
	return out
}
