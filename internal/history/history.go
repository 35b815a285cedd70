// Package history keeps a record of training runs and their epochs in
// SQLite or PostgreSQL.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Run struct {
	ID           int64      `db:"id"`
	DatasetDir   string     `db:"dataset_dir"`
	Classes      string     `db:"classes"`
	Epochs       int        `db:"epochs"`
	BatchSize    int        `db:"batch_size"`
	LearningRate float64    `db:"learning_rate"`
	Seed         int64      `db:"seed"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	FinalModel   *string    `db:"final_model"`
	FinalLoss    *float64   `db:"final_val_loss"`
	FinalAcc     *float64   `db:"final_val_accuracy"`
}

type Epoch struct {
	RunID       int64   `db:"run_id"`
	Epoch       int     `db:"epoch"`
	TrainLoss   float64 `db:"train_loss"`
	ValLoss     float64 `db:"val_loss"`
	ValAccuracy float64 `db:"val_accuracy"`
	Checkpoint  string  `db:"checkpoint"`
	DurationMS  int64   `db:"duration_ms"`
}

// Store wraps the run history database.
type Store struct {
	db *sqlx.DB
}

// Open connects with driver ("sqlite3" or "postgres") and creates the
// tables if they don't exist.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.DriverName() == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
			id ` + id + `,
			dataset_dir TEXT NOT NULL,
			classes TEXT NOT NULL,
			epochs INTEGER NOT NULL,
			batch_size INTEGER NOT NULL,
			learning_rate DOUBLE PRECISION NOT NULL,
			seed BIGINT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			final_model TEXT,
			final_val_loss DOUBLE PRECISION,
			final_val_accuracy DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS training_epochs (
			run_id BIGINT NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
			epoch INTEGER NOT NULL,
			train_loss DOUBLE PRECISION NOT NULL,
			val_loss DOUBLE PRECISION NOT NULL,
			val_accuracy DOUBLE PRECISION NOT NULL,
			checkpoint TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, epoch)
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a run and returns its ID.
func (s *Store) StartRun(ctx context.Context, run Run) (int64, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := s.db.Rebind(`
		INSERT INTO training_runs (dataset_dir, classes, epochs, batch_size, learning_rate, seed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		run.DatasetDir, run.Classes, run.Epochs, run.BatchSize, run.LearningRate, run.Seed, run.StartedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

func (s *Store) RecordEpoch(ctx context.Context, e Epoch) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO training_epochs (run_id, epoch, train_loss, val_loss, val_accuracy, checkpoint, duration_ms)
		VALUES (:run_id, :epoch, :train_loss, :val_loss, :val_accuracy, :checkpoint, :duration_ms)`, e)
	if err != nil {
		return fmt.Errorf("failed to insert epoch: %w", err)
	}
	return nil
}

// FinishRun stores the final model and its validation numbers.
func (s *Store) FinishRun(ctx context.Context, runID int64, finalModel string, valLoss, valAccuracy float64) error {
	query := s.db.Rebind(`
		UPDATE training_runs
		SET finished_at = ?, final_model = ?, final_val_loss = ?, final_val_accuracy = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), finalModel, valLoss, valAccuracy, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT * FROM training_runs WHERE id = ?`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	return &run, nil
}

// Epochs returns a run's epochs in order.
func (s *Store) Epochs(ctx context.Context, runID int64) ([]Epoch, error) {
	var epochs []Epoch
	err := s.db.SelectContext(ctx, &epochs,
		s.db.Rebind(`SELECT * FROM training_epochs WHERE run_id = ? ORDER BY epoch`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list epochs: %w", err)
	}
	return epochs, nil
}
