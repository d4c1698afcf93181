package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/storage/models"
)

type Client struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewClient(dbPath string, logger *zap.Logger) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		cohorts INTEGER NOT NULL,
		files_seen INTEGER NOT NULL,
		files_ingested INTEGER NOT NULL,
		segments_uploaded INTEGER NOT NULL,
		error_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);

	CREATE TABLE IF NOT EXISTS ingest_file_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		cohort TEXT NOT NULL,
		file_id TEXT,
		file_name TEXT,
		error TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES ingest_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_file_errors_run ON ingest_file_errors(run_id);

	CREATE TABLE IF NOT EXISTS chat_log (
		id TEXT PRIMARY KEY,
		cohort TEXT NOT NULL,
		persona TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT,
		outcome TEXT NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_log_cohort ON chat_log(cohort);
	CREATE INDEX IF NOT EXISTS idx_chat_log_created ON chat_log(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func (c *Client) InsertIngestRun(run *models.IngestRun) error {
	_, err := c.db.Exec(`
		INSERT INTO ingest_runs
		(id, started_at, finished_at, cohorts, files_seen, files_ingested, segments_uploaded, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
		run.Cohorts,
		run.FilesSeen,
		run.FilesIngested,
		run.SegmentsUploaded,
		run.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

func (c *Client) InsertIngestFileError(fe *models.IngestFileError) error {
	_, err := c.db.Exec(`
		INSERT INTO ingest_file_errors
		(run_id, cohort, file_id, file_name, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fe.RunID,
		fe.Cohort,
		fe.FileID,
		fe.FileName,
		fe.Error,
		fe.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest file error: %w", err)
	}
	return nil
}

func (c *Client) InsertChatRecord(rec *models.ChatRecord) error {
	_, err := c.db.Exec(`
		INSERT INTO chat_log
		(id, cohort, persona, question, answer, outcome, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Cohort,
		rec.Persona,
		rec.Question,
		rec.Answer,
		rec.Outcome,
		rec.LatencyMS,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}
	return nil
}

// RecentChats returns the newest chat records, most recent first.
func (c *Client) RecentChats(limit int) ([]models.ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(`
		SELECT id, cohort, persona, question, answer, outcome, latency_ms, created_at
		FROM chat_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat log: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var rec models.ChatRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Cohort, &rec.Persona, &rec.Question,
			&rec.Answer, &rec.Outcome, &rec.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		rec.CreatedAt = unixTime(createdAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}
