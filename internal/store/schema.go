package store

// schemaVersionV1 is the original bugs table.
const schemaVersionV1 = 1

// schemaVersionV2 adds severity and reproduction steps.
const schemaVersionV2 = 2

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

const schemaVersionDDL = `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`

// schemaV1 is kept for migration tests.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS bugs (
	id TEXT PRIMARY KEY,
	app_name TEXT NOT NULL,
	app_package TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	created_at TEXT NOT NULL,
	status TEXT NOT NULL,
	last_verified TEXT,
	notes TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_bugs_status ON bugs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bugs_package ON bugs(app_package)`,
}

// migrationV1ToV2 upgrades a v1 table in place.
var migrationV1ToV2 = []string{
	`ALTER TABLE bugs ADD COLUMN severity INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE bugs ADD COLUMN steps TEXT NOT NULL DEFAULT '[]'`,
}

// schemaV2 is the fresh-install DDL.
var schemaV2 = []string{
	`CREATE TABLE IF NOT EXISTS bugs (
	id TEXT PRIMARY KEY,
	app_name TEXT NOT NULL,
	app_package TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	created_at TEXT NOT NULL,
	status TEXT NOT NULL,
	severity INTEGER NOT NULL DEFAULT 0,
	last_verified TEXT,
	notes TEXT NOT NULL DEFAULT '',
	steps TEXT NOT NULL DEFAULT '[]'
)`,
	`CREATE INDEX IF NOT EXISTS idx_bugs_status ON bugs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bugs_package ON bugs(app_package)`,
}
