package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"publish-queue/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrJobNotFound is returned when a job lookup matches no row
var ErrJobNotFound = errors.New("job not found")

// SQLiteRepository implements JobRepository and CredentialRepository using
// SQLite. WAL mode keeps the file safe for one writer alongside readers, so
// the API process and the dispatcher can share it.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// initSchema initializes the database schema
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		scheduled_at INTEGER,
		payload TEXT NOT NULL,
		file_path TEXT,
		result TEXT,
		error TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_scheduled_at ON jobs(scheduled_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_platform ON jobs(platform);

	CREATE TABLE IF NOT EXISTS credentials (
		platform TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := r.db.Exec(schema)
	return err
}

const jobColumns = `id, platform, action, status, scheduled_at, payload, file_path, result, error, retry_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var scheduledAt sql.NullInt64
	var filePath, result, errorMessage sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&job.ID,
		&job.Platform,
		&job.Action,
		&job.Status,
		&scheduledAt,
		&job.Payload,
		&filePath,
		&result,
		&errorMessage,
		&job.RetryCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		t := time.Unix(scheduledAt.Int64, 0)
		job.ScheduledAt = &t
	}
	job.FilePath = filePath.String
	if result.Valid {
		job.Result = &result.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)

	return &job, nil
}

// CreateJob inserts a new job and fills in its assigned ID
func (r *SQLiteRepository) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (platform, action, status, scheduled_at, payload, file_path, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	var scheduledAt interface{}
	if job.ScheduledAt != nil {
		scheduledAt = job.ScheduledAt.Unix()
	}
	var filePath interface{}
	if job.FilePath != "" {
		filePath = job.FilePath
	}

	res, err := r.db.ExecContext(ctx, query,
		job.Platform,
		job.Action,
		job.Status,
		scheduledAt,
		job.Payload,
		filePath,
		job.RetryCount,
		job.CreatedAt.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read job id: %w", err)
	}
	job.ID = id

	return nil
}

// GetJobByID retrieves a job by ID
func (r *SQLiteRepository) GetJobByID(ctx context.Context, id int64) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ReadyJobs returns pending jobs whose schedule time has passed (or was
// never set) and whose retry count is below the ceiling. Ordering is
// scheduled_at ascending with NULLs first, ties broken by insertion order.
func (r *SQLiteRepository) ReadyJobs(ctx context.Context, now time.Time, maxRetries int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = ?
		  AND (scheduled_at IS NULL OR scheduled_at <= ?)
		  AND retry_count < ?
		ORDER BY scheduled_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.StatusPending, now.Unix(), maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ready jobs: %w", err)
	}

	return jobs, nil
}

// CompleteJob marks a job completed and stores its result. Completing an
// unknown job affects zero rows and is not an error.
func (r *SQLiteRepository) CompleteJob(ctx context.Context, id int64, result string) error {
	query := `
		UPDATE jobs
		SET status = ?, result = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, models.StatusCompleted, result, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

// FailJob marks a job failed, stores the error message, and increments the
// retry count in the same statement so concurrent processes cannot race a
// read-modify-write.
func (r *SQLiteRepository) FailJob(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = ?, error = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, models.StatusFailed, errorMessage, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	return nil
}

// CancelJob marks a pending job failed with the given sentinel message,
// leaving the retry count untouched. Returns whether a row changed.
func (r *SQLiteRepository) CancelJob(ctx context.Context, id int64, errorMessage string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query, models.StatusFailed, errorMessage, time.Now().Unix(), id, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// RetryJob moves a failed job back to pending, clearing its error message.
// The retry count is deliberately not reset: a job retried past the ceiling
// stays out of the ready set. Returns whether a row changed.
func (r *SQLiteRepository) RetryJob(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE jobs
		SET status = ?, error = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query, models.StatusPending, time.Now().Unix(), id, models.StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to retry job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// ListJobs retrieves jobs matching the filter, newest created first
func (r *SQLiteRepository) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Platform != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, filter.Platform)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}

// PurgeTerminalJobsBefore deletes completed and failed jobs created before
// the cutoff. Pending jobs are never purged regardless of age.
func (r *SQLiteRepository) PurgeTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status IN (?, ?) AND created_at < ?
	`

	res, err := r.db.ExecContext(ctx, query, models.StatusCompleted, models.StatusFailed, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected, nil
}

// GetCredential retrieves the credential for a platform, or nil if none is stored
func (r *SQLiteRepository) GetCredential(ctx context.Context, platform models.Platform) (*models.Credential, error) {
	query := `
		SELECT platform, access_token, refresh_token, expires_at, updated_at
		FROM credentials
		WHERE platform = ?
	`

	var cred models.Credential
	var refreshToken sql.NullString
	var expiresAt sql.NullInt64
	var updatedAt int64

	err := r.db.QueryRowContext(ctx, query, platform).Scan(
		&cred.Platform,
		&cred.AccessToken,
		&refreshToken,
		&expiresAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		cred.ExpiresAt = &t
	}
	cred.UpdatedAt = time.Unix(updatedAt, 0)

	return &cred, nil
}

// UpsertCredential replaces the full credential record for its platform in
// one statement
func (r *SQLiteRepository) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO credentials (platform, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	cred.UpdatedAt = now

	var refreshToken interface{}
	if cred.RefreshToken != "" {
		refreshToken = cred.RefreshToken
	}
	var expiresAt interface{}
	if cred.ExpiresAt != nil {
		expiresAt = cred.ExpiresAt.Unix()
	}

	_, err := r.db.ExecContext(ctx, query, cred.Platform, cred.AccessToken, refreshToken, expiresAt, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// DeleteCredential removes the credential for a platform, reporting whether
// a row was removed
func (r *SQLiteRepository) DeleteCredential(ctx context.Context, platform models.Platform) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE platform = ?", platform)
	if err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}
