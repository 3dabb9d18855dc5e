package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    hostname TEXT,
    ecosystem TEXT,
    dry_run BOOLEAN NOT NULL DEFAULT 0,
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS family_reports (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    label TEXT NOT NULL,
    ecosystem TEXT,
    family TEXT,
    outcome TEXT NOT NULL,
    programs TEXT,
    exit_code INTEGER,
    reason TEXT,
    duration_ms INTEGER,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_reports_family ON family_reports(family);
`
