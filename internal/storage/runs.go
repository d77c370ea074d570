package storage

import (
	"context"
	"encoding/json"
)

type RunRow struct {
	ID          int64  `db:"id" json:"id"`
	TraceID     string `db:"trace_id" json:"traceId"`
	TimingsJSON string `db:"timings_json" json:"timings"`
	CountsJSON  string `db:"counts_json" json:"counts"`
	DetailJSON  string `db:"detail_json" json:"detail"`
	CreatedAt   string `db:"created_at" json:"createdAt"`
}

func (d *DB) InsertRun(ctx context.Context, traceID string, timings map[string]float64, counts map[string]int, detail any) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	_, err = d.conn.ExecContext(ctx, `INSERT INTO runs (trace_id, timings_json, counts_json, detail_json) VALUES (?, ?, ?, ?)`,
		traceID, string(timingsJSON), string(countsJSON), string(detailJSON))
	return err
}

func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []RunRow
	err := d.conn.SelectContext(ctx, &out, `SELECT id, trace_id, timings_json, counts_json, detail_json, created_at FROM runs ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}
