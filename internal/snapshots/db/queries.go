package db

import (
	"context"
)

type Snapshot struct {
	ID         int64
	RunID      string
	Sequence   int64
	Kind       string
	StatusCode int64
	Url        string
	Body       []byte
	CapturedAt int64
}

const createSnapshot = `-- name: CreateSnapshot :exec
insert into snapshot(run_id, sequence, kind, status_code, url, body, captured_at)
values (?, ?, ?, ?, ?, ?, ?)
`

type CreateSnapshotParams struct {
	RunID      string
	Sequence   int64
	Kind       string
	StatusCode int64
	Url        string
	Body       []byte
	CapturedAt int64
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, createSnapshot,
		arg.RunID,
		arg.Sequence,
		arg.Kind,
		arg.StatusCode,
		arg.Url,
		arg.Body,
		arg.CapturedAt,
	)
	return err
}

const listSnapshots = `-- name: ListSnapshots :many
select id, run_id, sequence, kind, status_code, url, body, captured_at from snapshot
where run_id = ?
order by sequence, id
`

func (q *Queries) ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshots, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Snapshot
	for rows.Next() {
		var i Snapshot
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Sequence,
			&i.Kind,
			&i.StatusCode,
			&i.Url,
			&i.Body,
			&i.CapturedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRuns = `-- name: ListRuns :many
select run_id, count(*) as snapshots, min(captured_at) as started_at from snapshot
group by run_id
order by started_at desc
`

type ListRunsRow struct {
	RunID     string
	Snapshots int64
	StartedAt int64
}

func (q *Queries) ListRuns(ctx context.Context) ([]ListRunsRow, error) {
	rows, err := q.db.QueryContext(ctx, listRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRunsRow
	for rows.Next() {
		var i ListRunsRow
		if err := rows.Scan(&i.RunID, &i.Snapshots, &i.StartedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
