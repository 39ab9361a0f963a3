// Package usagelog asynchronously records per-request token usage to
// Postgres. Entirely optional: a nil *Logger is a no-op sink, so callers
// never branch on whether logging is configured.
package usagelog

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mixaill76/claude_openai_bridge/internal/security"
	"github.com/mixaill76/claude_openai_bridge/internal/worker"
)

const (
	queueSize  = 1024
	numWorkers = 2

	createTableSQL = `
CREATE TABLE IF NOT EXISTS bridge_usage_log (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	claude_model TEXT NOT NULL,
	upstream_model TEXT NOT NULL,
	session_id TEXT,
	input_tokens INT NOT NULL DEFAULT 0,
	output_tokens INT NOT NULL DEFAULT 0,
	stream BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

	insertSQL = `
INSERT INTO bridge_usage_log
	(request_id, endpoint, claude_model, upstream_model, session_id,
	 input_tokens, output_tokens, stream, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

// Record is one request's usage entry.
type Record struct {
	RequestID     string
	Endpoint      string
	ClaudeModel   string
	UpstreamModel string
	SessionID     string
	InputTokens   int
	OutputTokens  int
	Stream        bool
	Status        string
	CreatedAt     time.Time
}

// Logger writes records through a small worker pool so the request path
// never waits on the database.
type Logger struct {
	pool   *pgxpool.Pool
	queue  chan worker.Job
	cancel context.CancelFunc
	log    *slog.Logger
}

// New connects to Postgres, ensures the table exists, and starts the
// writers. Returns an error when the database is unreachable.
func New(ctx context.Context, dbURL string, log *slog.Logger) (*Logger, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	logger := &Logger{
		pool:   pool,
		queue:  make(chan worker.Job, queueSize),
		cancel: cancel,
		log:    log,
	}
	worker.SpawnPool(workerCtx, numWorkers, logger.queue, log)

	log.Info("Usage logging enabled", "db_url", security.MaskDatabaseURL(dbURL))
	return logger, nil
}

// Enqueue schedules a record for insertion. Never blocks; records are
// dropped with a warning when the queue is full.
func (l *Logger) Enqueue(record Record) {
	if l == nil {
		return
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	select {
	case l.queue <- &insertJob{pool: l.pool, record: record}:
	default:
		l.log.Warn("Usage log queue full, dropping record", "request_id", record.RequestID)
	}
}

// Close stops the writers and releases the connection pool.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.cancel()
	close(l.queue)
	l.pool.Close()
}

type insertJob struct {
	pool   *pgxpool.Pool
	record Record
}

func (j *insertJob) Execute(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := j.pool.Exec(ctx, insertSQL,
		j.record.RequestID,
		j.record.Endpoint,
		j.record.ClaudeModel,
		j.record.UpstreamModel,
		j.record.SessionID,
		j.record.InputTokens,
		j.record.OutputTokens,
		j.record.Stream,
		j.record.Status,
		j.record.CreatedAt,
	)
	return err
}
