package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// sqliteMigrations 按版本顺序执行，版本号从 1 连续递增
// received_at 以定宽 UTC 文本保存，字符串排序即时间排序
var sqliteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	subject      TEXT NOT NULL,
	sender_name  TEXT NOT NULL,
	sender_email TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	received_at  TEXT NOT NULL,
	sentiment    TEXT NOT NULL,
	urgency      TEXT NOT NULL,
	category     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'unread',
	contacts     TEXT NOT NULL DEFAULT '[]',
	requests     TEXT NOT NULL DEFAULT '[]',
	ai_draft     TEXT,
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_user_received ON emails (user_id, received_at DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
