package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/user/authlens/internal/model"
)

// RunStorage handles persistence of completed analysis runs.
type RunStorage struct {
	db *DB
}

// NewRunStorage creates a new run storage handler.
func NewRunStorage(db *DB) *RunStorage {
	return &RunStorage{db: db}
}

// NewRun summarizes a fetched result into a history record. The backend
// document is stored as received when the result carries it.
func NewRun(taskID, server string, submittedAt time.Time, res *model.AnalysisResult) (*model.Run, error) {
	if res == nil {
		res = &model.AnalysisResult{}
	}
	raw := []byte(res.Raw)
	if len(raw) == 0 || !json.Valid(raw) {
		var err error
		if raw, err = json.Marshal(res); err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
	}

	run := &model.Run{
		TaskID:       taskID,
		Server:       server,
		SuspectCount: len(res.SuspectsDetail),
		SubmittedAt:  submittedAt.UTC(),
		CompletedAt:  time.Now().UTC(),
		Result:       raw,
	}
	if res.File != nil {
		run.File = *res.File
	}
	if res.Bruteforce != nil {
		run.Bruteforce = *res.Bruteforce
	}
	if res.Stats != nil {
		if res.Stats.AcceptedTotal != nil {
			run.AcceptedTotal = *res.Stats.AcceptedTotal
		}
		if res.Stats.FailedTotal != nil {
			run.FailedTotal = *res.Stats.FailedTotal
		}
	}
	return run, nil
}

// Save stores a run. Saving a task ID twice replaces the earlier record.
func (s *RunStorage) Save(run *model.Run) error {
	query := `INSERT INTO runs (task_id, file, server, bruteforce, accepted_total,
			  failed_total, suspect_count, submitted_at, completed_at, result)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(task_id) DO UPDATE SET
			  file = excluded.file, server = excluded.server,
			  bruteforce = excluded.bruteforce, accepted_total = excluded.accepted_total,
			  failed_total = excluded.failed_total, suspect_count = excluded.suspect_count,
			  submitted_at = excluded.submitted_at, completed_at = excluded.completed_at,
			  result = excluded.result`

	return s.db.WithLock(func() error {
		if _, err := s.db.Exec(query,
			run.TaskID, run.File, run.Server, run.Bruteforce, run.AcceptedTotal,
			run.FailedTotal, run.SuspectCount, run.SubmittedAt, run.CompletedAt,
			string(run.Result)); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		err := s.db.QueryRow(`SELECT id FROM runs WHERE task_id = ?`, run.TaskID).Scan(&run.ID)
		if err != nil {
			return fmt.Errorf("failed to get run ID: %w", err)
		}
		return nil
	})
}

const runColumns = `id, task_id, file, server, bruteforce, accepted_total,
	failed_total, suspect_count, submitted_at, completed_at, result`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	var (
		run    model.Run
		result sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.TaskID, &run.File, &run.Server, &run.Bruteforce,
		&run.AcceptedTotal, &run.FailedTotal, &run.SuspectCount,
		&run.SubmittedAt, &run.CompletedAt, &result); err != nil {
		return nil, err
	}
	if result.Valid {
		run.Result = []byte(result.String)
	}
	return &run, nil
}

// GetByTaskID returns the run for a task, or nil if none was stored.
func (s *RunStorage) GetByTaskID(taskID string) (*model.Run, error) {
	var run *model.Run
	err := s.db.WithRLock(func() error {
		var err error
		run, err = scanRun(s.db.QueryRow(
			`SELECT `+runColumns+` FROM runs WHERE task_id = ?`, taskID))
		return err
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", taskID, err)
	}
	return run, nil
}

// GetLatest returns the most recently completed run, or nil.
func (s *RunStorage) GetLatest() (*model.Run, error) {
	var run *model.Run
	err := s.db.WithRLock(func() error {
		var err error
		run, err = scanRun(s.db.QueryRow(
			`SELECT ` + runColumns + ` FROM runs ORDER BY completed_at DESC, id DESC LIMIT 1`))
		return err
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first.
func (s *RunStorage) List(limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []model.Run
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(
			`SELECT `+runColumns+` FROM runs ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, *run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Count returns the number of stored runs.
func (s *RunStorage) Count() (int, error) {
	var count int
	err := s.db.WithRLock(func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Delete removes the run for a task. Deleting an unknown task is not an error.
func (s *RunStorage) Delete(taskID string) error {
	return s.db.WithLock(func() error {
		if _, err := s.db.Exec(`DELETE FROM runs WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("failed to delete run %s: %w", taskID, err)
		}
		return nil
	})
}

// DecodeResult parses the stored result document of run.
func DecodeResult(run *model.Run) (*model.AnalysisResult, error) {
	var res model.AnalysisResult
	if len(run.Result) == 0 {
		return &res, nil
	}
	if err := json.Unmarshal(run.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored result for %s: %w", run.TaskID, err)
	}
	return &res, nil
}
