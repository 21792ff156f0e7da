package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"secondhand-race/internal/snapshots/db"
)

// Store keeps snapshots in a sqlite file or a remote libsql database.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func isRemote(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// OpenStore opens `dsn` and creates the schema if it is missing. Remote
// urls go through libsql, anything else is a local sqlite path.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database was not specified")
	}

	var database *sql.DB
	var err error
	if isRemote(dsn) {
		database, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
	} else {
		database, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite only tolerates one writer
		database.SetMaxOpenConns(1)
		_, err = database.ExecContext(ctx, "PRAGMA journal_mode=WAL")
		if err != nil {
			database.Close()
			return nil, err
		}
	}

	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: database, qry: db.New(database)}, nil
}

func (s *Store) Save(ctx context.Context, snapshot Snapshot) error {
	return s.qry.CreateSnapshot(ctx, db.CreateSnapshotParams{
		RunID:      snapshot.RunID,
		Sequence:   snapshot.Sequence,
		Kind:       string(snapshot.Kind),
		StatusCode: int64(snapshot.StatusCode),
		Url:        snapshot.URL,
		Body:       snapshot.Body,
		CapturedAt: snapshot.Time.UnixMilli(),
	})
}

// List returns the snapshots of a run in the order they were taken.
func (s *Store) List(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := s.qry.ListSnapshots(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, len(rows))
	for i, row := range rows {
		out[i] = Snapshot{
			RunID:      row.RunID,
			Sequence:   row.Sequence,
			Kind:       Kind(row.Kind),
			StatusCode: int(row.StatusCode),
			URL:        row.Url,
			Body:       row.Body,
			Time:       time.UnixMilli(row.CapturedAt),
		}
	}
	return out, nil
}

type Run struct {
	ID        string
	Snapshots int64
	StartedAt time.Time
}

// Runs lists every run with snapshots, latest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.qry.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = Run{
			ID:        row.RunID,
			Snapshots: row.Snapshots,
			StartedAt: time.UnixMilli(row.StartedAt),
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
