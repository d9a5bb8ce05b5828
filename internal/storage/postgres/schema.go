package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          VARCHAR(50)  PRIMARY KEY,
		given_name  VARCHAR(200) NOT NULL,
		family_name VARCHAR(200) NOT NULL,
		username    VARCHAR(200) NOT NULL UNIQUE,
		email       VARCHAR(200) NOT NULL UNIQUE,
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          VARCHAR(36)  PRIMARY KEY,
		title       VARCHAR(255) NOT NULL,
		description VARCHAR(255),
		user_id     VARCHAR(50)  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		priority    VARCHAR(10)  NOT NULL DEFAULT 'low',
		deadline    TIMESTAMPTZ,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
		state       VARCHAR(20)  NOT NULL DEFAULT 'to_do'
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS tasks_deadline_idx ON tasks (deadline) WHERE deadline IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_hash  VARCHAR(64) PRIMARY KEY,
		expires_at  TIMESTAMPTZ NOT NULL,
		revoked_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
