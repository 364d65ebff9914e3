package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "report history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    source TEXT,
    created_at TEXT NOT NULL,
    total_citations INTEGER NOT NULL,
    verified_count INTEGER NOT NULL,
    hallucinated_count INTEGER NOT NULL,
    ambiguous_count INTEGER NOT NULL,
    trust_score INTEGER NOT NULL,
    report_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "per-citation verdicts",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS citations (
    id TEXT NOT NULL,
    report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    title TEXT,
    verdict TEXT NOT NULL CHECK(verdict IN ('VERIFIED', 'HALLUCINATED', 'AMBIGUOUS')),
    confidence INTEGER NOT NULL,
    match_source TEXT,
    doi TEXT,
    PRIMARY KEY (report_id, position)
);

CREATE INDEX IF NOT EXISTS idx_citations_verdict ON citations(verdict);
CREATE INDEX IF NOT EXISTS idx_citations_doi ON citations(doi);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
