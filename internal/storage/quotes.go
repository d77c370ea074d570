package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"autoquote/internal"
)

type quoteRow struct {
	internal.Quote
	UnmatchedJSON string `db:"unmatched"`
	IssuedAtRaw   string `db:"issued_at"`
	ValidUntilRaw string `db:"valid_until"`
}

const quoteColumns = `id, number, email_id, customer_email, customer_name, company, tax_id, billing_address, shipping_address,
  subtotal, local_tax_rate, central_tax_rate, local_tax, central_tax, total, total_in_words, unmatched,
  issued_at, valid_until, document_ref, status, sent_at, created_at`

// InsertQuote persists the quote header and its line items in one transaction.
// A quote inserted as sent gets its sent_at stamped.
func (d *DB) InsertQuote(ctx context.Context, q internal.Quote) error {
	unmatched, err := json.Marshal(q.Unmatched)
	if err != nil {
		return err
	}
	status := q.Status
	if status == "" {
		status = internal.QuoteGenerated
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO quotes (id, number, email_id, customer_email, customer_name, company, tax_id, billing_address, shipping_address,
  subtotal, local_tax_rate, central_tax_rate, local_tax, central_tax, total, total_in_words, unmatched,
  issued_at, valid_until, document_ref, status, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CASE WHEN ? = 'sent' THEN CURRENT_TIMESTAMP END)
`, q.ID, q.Number, q.EmailID, q.CustomerEmail, q.CustomerName, q.Company, q.TaxID, q.BillingAddress, q.ShippingAddress,
		q.Subtotal, q.LocalTaxRate, q.CentralTaxRate, q.LocalTax, q.CentralTax, q.Total, q.TotalInWords, string(unmatched),
		q.IssuedAt.UTC().Format(time.RFC3339), q.ValidUntil.UTC().Format(time.RFC3339), q.DocumentRef, status, status); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	for i, item := range q.Items {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO quote_items (quote_id, line_no, product_id, name, requested_name, hsn_code, unit, quantity, unit_price, total, specifications, similarity)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, q.ID, i+1, item.ProductID, item.Name, item.RequestedName, item.HSNCode, item.Unit, item.Quantity, item.UnitPrice, item.Total, item.Specifications, item.Similarity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetQuote(ctx context.Context, id string) (internal.Quote, error) {
	var row quoteRow
	err := d.conn.GetContext(ctx, &row, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Quote{}, ErrNotFound
	}
	if err != nil {
		return internal.Quote{}, err
	}
	q := row.toQuote()

	if err := d.conn.SelectContext(ctx, &q.Items, `
SELECT product_id, name, requested_name, hsn_code, unit, quantity, unit_price, total, specifications, similarity
FROM quote_items WHERE quote_id = ? ORDER BY line_no ASC
`, id); err != nil {
		return internal.Quote{}, err
	}
	return q, nil
}

// ListQuotes returns quote headers (without items), newest first.
func (d *DB) ListQuotes(ctx context.Context, limit int) ([]internal.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []quoteRow
	if err := d.conn.SelectContext(ctx, &rows, `SELECT `+quoteColumns+` FROM quotes ORDER BY created_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	out := make([]internal.Quote, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toQuote())
	}
	return out, nil
}

func (r quoteRow) toQuote() internal.Quote {
	q := r.Quote
	_ = json.Unmarshal([]byte(r.UnmatchedJSON), &q.Unmatched)
	if t, err := time.Parse(time.RFC3339, r.IssuedAtRaw); err == nil {
		q.IssuedAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.ValidUntilRaw); err == nil {
		q.ValidUntil = t
	}
	return q
}
