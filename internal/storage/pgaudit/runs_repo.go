package pgaudit

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Run kinds.
const (
	KindBulkDelete = "bulk_delete"
	KindBulkStatus = "bulk_status"
	KindImport     = "import"
	KindPickup     = "pickup"
)

type OperationRun struct {
	ID        uint64    `json:"id"`
	Kind      string    `json:"kind"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Storage) RecordRun(ctx context.Context, run OperationRun) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO operation_runs (kind, total, succeeded, failed, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, run.Kind, run.Total, run.Succeeded, run.Failed, run.Detail, time.Now().UTC())
	return errors.Wrap(err, "insert operation run")
}

// ListRuns returns the latest runs, newest first. An empty kind lists all.
func (s *Storage) ListRuns(ctx context.Context, kind string, limit int) ([]OperationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
SELECT id, kind, total, succeeded, failed, detail, created_at
FROM operation_runs
WHERE ($1 = '' OR kind = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := s.db.Query(ctx, q, kind, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select operation runs")
	}
	defer rows.Close()

	out := make([]OperationRun, 0, limit)
	for rows.Next() {
		var r OperationRun
		if err := rows.Scan(&r.ID, &r.Kind, &r.Total, &r.Succeeded, &r.Failed, &r.Detail, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan operation run")
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
