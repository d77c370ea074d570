package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"autoquote/internal"
)

const emailColumns = `id, account_id, message_id, thread_id, from_email, from_name, subject, body, attachments,
  status, confidence, ai_extraction, flag_reason, error_message, quote_id, raw_ref, created_at, processed_at`

// InsertProcessedEmail creates the record in status pending.
func (d *DB) InsertProcessedEmail(ctx context.Context, rec internal.ProcessedEmail) (int64, error) {
	attachments := rec.Attachments
	if attachments == "" {
		attachments = "[]"
	}
	extraction := rec.AIExtraction
	if extraction == "" {
		extraction = "{}"
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO processed_emails (account_id, message_id, thread_id, from_email, from_name, subject, body,
  attachments, status, confidence, ai_extraction, raw_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.AccountID, rec.MessageID, rec.ThreadID, rec.FromAddress, rec.FromName, rec.Subject, rec.Body,
		attachments, internal.StatusPending, rec.Confidence, extraction, rec.RawRef)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("message %s: %w", rec.MessageID, ErrDuplicate)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) HasProcessedEmail(ctx context.Context, accountID int64, messageID string) (bool, error) {
	var n int
	err := d.conn.GetContext(ctx, &n, `SELECT COUNT(1) FROM processed_emails WHERE account_id = ? AND message_id = ?`, accountID, messageID)
	return n > 0, err
}

func (d *DB) GetProcessedEmail(ctx context.Context, id int64) (internal.ProcessedEmail, error) {
	var rec internal.ProcessedEmail
	err := d.conn.GetContext(ctx, &rec, `SELECT `+emailColumns+` FROM processed_emails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.ProcessedEmail{}, ErrNotFound
	}
	return rec, err
}

// UpdateEmailStatus applies a terminal status. Only pending records move; a
// record that already left pending yields ErrStatusTransition.
func (d *DB) UpdateEmailStatus(ctx context.Context, id int64, change internal.StatusChange) error {
	if !change.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusTransition, internal.StatusPending, change.Status)
	}
	var reason *string
	if change.FlagReason != nil {
		r := string(*change.FlagReason)
		reason = &r
	}
	res, err := d.conn.ExecContext(ctx, `
UPDATE processed_emails SET
  status = ?,
  confidence = COALESCE(?, confidence),
  flag_reason = ?,
  error_message = ?,
  quote_id = ?,
  processed_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = ?
`, change.Status, change.Confidence, reason, change.ErrorMessage, change.QuoteID, id, internal.StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current internal.EmailStatus
	err = d.conn.GetContext(ctx, &current, `SELECT status FROM processed_emails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrStatusTransition, current, change.Status)
}

// ListReviewQueue returns flagged and error records, newest first.
func (d *DB) ListReviewQueue(ctx context.Context, limit int) ([]internal.ProcessedEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []internal.ProcessedEmail
	err := d.conn.SelectContext(ctx, &out, `
SELECT `+emailColumns+` FROM processed_emails
WHERE status IN (?, ?)
ORDER BY created_at DESC, id DESC
LIMIT ?
`, internal.StatusFlagged, internal.StatusError, limit)
	return out, err
}

// ClearReviewQueue deletes every flagged and error record.
func (d *DB) ClearReviewQueue(ctx context.Context) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM processed_emails WHERE status IN (?, ?)`, internal.StatusFlagged, internal.StatusError)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) CountByStatus(ctx context.Context) (map[internal.EmailStatus]int, error) {
	rows, err := d.conn.QueryxContext(ctx, `SELECT status, COUNT(1) FROM processed_emails GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[internal.EmailStatus]int{}
	for rows.Next() {
		var status internal.EmailStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Stats reports dashboard counters; flagged includes error records.
func (d *DB) Stats(ctx context.Context) (internal.Stats, error) {
	var s internal.Stats
	err := d.conn.GetContext(ctx, &s, `
SELECT
  COUNT(1) AS total,
  COALESCE(SUM(CASE WHEN status = 'auto_sent' THEN 1 ELSE 0 END), 0) AS auto_sent,
  COALESCE(SUM(CASE WHEN status IN ('flagged', 'error') THEN 1 ELSE 0 END), 0) AS flagged,
  COALESCE(SUM(CASE WHEN date(created_at) = date('now') THEN 1 ELSE 0 END), 0) AS today
FROM processed_emails
`)
	return s, err
}
