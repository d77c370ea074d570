package storage

import (
	"context"

	"autoquote/internal"
)

const productColumns = `id, name, base_price, min_price, max_price, unit, hsn_code, description, category, is_active, import_batch_id, created_at`

// InsertProducts writes a batch in one transaction and returns the new ids in input order.
func (d *DB) InsertProducts(ctx context.Context, products []internal.Product) ([]int64, error) {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
INSERT INTO products (name, base_price, min_price, max_price, unit, hsn_code, description, category, is_active, import_batch_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(products))
	for _, p := range products {
		unit := p.Unit
		if unit == "" {
			unit = "pcs"
		}
		res, err := stmt.ExecContext(ctx, p.Name, p.BasePrice, p.MinPrice, p.MaxPrice, unit, p.HSNCode, p.Description, p.Category, p.Active, p.ImportBatchID)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListActiveProducts returns active products in id order; matching tie-breaks depend on it.
func (d *DB) ListActiveProducts(ctx context.Context) ([]internal.Product, error) {
	var out []internal.Product
	err := d.conn.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products WHERE is_active = 1 ORDER BY id ASC`)
	return out, err
}

func (d *DB) ListProducts(ctx context.Context) ([]internal.Product, error) {
	var out []internal.Product
	err := d.conn.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
	return out, err
}

func (d *DB) SetProductActive(ctx context.Context, id int64, active bool) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE products SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireBatches deactivates products from every batch whose id starts with
// prefix, except keep.
func (d *DB) RetireBatches(ctx context.Context, prefix, keep string) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `
UPDATE products SET is_active = 0
WHERE is_active = 1 AND import_batch_id LIKE ? || '%' AND import_batch_id != ?
`, prefix, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
