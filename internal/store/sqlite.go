package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gwlsn/scenefinder/internal/jobs"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	model_size TEXT NOT NULL DEFAULT '',
	source_name TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_stage ON jobs(stage);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// timeFormat keeps timestamps sortable as text.
const timeFormat = time.RFC3339Nano

// SQLiteStore implements jobs.Store using SQLite. Row updates are single
// statements, so a concurrent reader sees either the pre- or the
// post-transition row, never a partial one.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// InitStore opens (or creates) the job database inside the data directory.
func InitStore(dataDir string) (*SQLiteStore, error) {
	return NewSQLiteStore(filepath.Join(dataDir, "scenefinder.db"))
}

// NewSQLiteStore creates a new SQLite-backed store.
// The database file is created if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	// Check/set schema version
	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	} else if version != schemaVersion {
		db.Close()
		return nil, fmt.Errorf("unsupported schema version %d (want %d)", version, schemaVersion)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CreateJob persists a new job row.
func (s *SQLiteStore) CreateJob(job *jobs.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, mode, language, model_size, source_name, stage, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Mode), job.Language, job.ModelSize, job.SourceName,
		string(job.Stage), job.Progress, job.Error,
		job.CreatedAt.UTC().Format(timeFormat), job.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns nil if not found.
func (s *SQLiteStore) GetJob(id string) (*jobs.Job, error) {
	row := s.db.QueryRow(`
		SELECT id, mode, language, model_size, source_name, stage, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateStage atomically sets stage, progress and error for a job.
func (s *SQLiteStore) UpdateStage(id string, stage jobs.Stage, progress int, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET stage = ?, progress = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(stage), progress, errMsg, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update stage: no row for job %s", id)
	}
	return nil
}

// DeleteJob removes a job row by ID. Returns nil if it doesn't exist.
func (s *SQLiteStore) DeleteJob(id string) error {
	if _, err := s.db.Exec("DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// ListJobs returns all jobs ordered by creation time.
func (s *SQLiteStore) ListJobs() ([]*jobs.Job, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, language, model_size, source_name, stage, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ResetStuckJobs marks every non-terminal job as failed. Pipeline runs do
// not survive the process, so a job left mid-pipeline by a crash can never
// complete; failing it keeps the stage machine honest after a restart.
func (s *SQLiteStore) ResetStuckJobs() (int, error) {
	res, err := s.db.Exec(`
		UPDATE jobs
		SET stage = CASE mode WHEN ? THEN ? ELSE ? END,
		    progress = 0,
		    error = 'interrupted by restart',
		    updated_at = ?
		WHERE stage NOT IN (?, ?, ?, ?)`,
		string(jobs.ModeScene), string(jobs.StageFailedScene), string(jobs.StageFailedAudio),
		time.Now().UTC().Format(timeFormat),
		string(jobs.StageReadyAudio), string(jobs.StageFailedAudio),
		string(jobs.StageReadyScene), string(jobs.StageFailedScene),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*jobs.Job, error) {
	var job jobs.Job
	var mode, stage, createdAt, updatedAt string

	err := row.Scan(&job.ID, &mode, &job.Language, &job.ModelSize, &job.SourceName,
		&stage, &job.Progress, &job.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	job.Mode = jobs.Mode(mode)
	job.Stage = jobs.Stage(stage)
	if t, err := time.Parse(timeFormat, createdAt); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(timeFormat, updatedAt); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}
