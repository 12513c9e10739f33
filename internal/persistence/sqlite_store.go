package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/jobs"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// pragmas in the DSN apply to every connection the pool opens
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.CaptionJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, payload_json, status, result_url, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.CaptionJob, 0)
	for rows.Next() {
		var item jobs.CaptionJob
		var status, payloadJSON string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&payloadJSON,
			&status,
			&item.ResultURL,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of job %s: %w", item.ID, err)
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.CaptionJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, payload_json, status, result_url, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			result_url=excluded.result_url,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		string(payload),
		string(job.Status),
		job.ResultURL,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) SaveTimeline(ctx context.Context, jobID string, tl *caption.Timeline) error {
	if tl == nil {
		return fmt.Errorf("timeline is nil")
	}
	segments, err := json.Marshal(tl.Segments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO timelines (job_id, language, dropped, segments_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			language=excluded.language,
			dropped=excluded.dropped,
			segments_json=excluded.segments_json,
			updated_at=excluded.updated_at`,
		jobID,
		tl.Language.String(),
		tl.Dropped,
		string(segments),
		time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) LoadTimeline(ctx context.Context, jobID string) (TimelineRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, language, dropped, segments_json, updated_at
		 FROM timelines
		 WHERE job_id = ?`,
		jobID,
	)
	var ret TimelineRecord
	var segmentsJSON string
	if err := row.Scan(&ret.JobID, &ret.Language, &ret.Dropped, &segmentsJSON, &ret.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TimelineRecord{}, false, nil
		}
		return TimelineRecord{}, false, err
	}
	if err := json.Unmarshal([]byte(segmentsJSON), &ret.Segments); err != nil {
		return TimelineRecord{}, false, err
	}
	return ret, true, nil
}

// DeleteOrphanTimelines removes timelines whose job no longer exists.
func (s *SQLiteStore) DeleteOrphanTimelines(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timelines WHERE job_id NOT IN (SELECT id FROM jobs)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteJobData removes all data associated with a job.
func (s *SQLiteStore) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM timelines WHERE job_id = ?`, jobID)
	return err
}
