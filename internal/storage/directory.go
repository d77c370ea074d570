package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"autoquote/internal"
)

const customerColumns = `id, email, name, company, phone, tax_id, billing_address, shipping_address, is_active, created_at`

// UpsertCustomer inserts or updates a customer keyed by lowercase email.
func (d *DB) UpsertCustomer(ctx context.Context, c internal.Customer) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO customers (email, name, company, phone, tax_id, billing_address, shipping_address, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
  name=excluded.name,
  company=excluded.company,
  phone=excluded.phone,
  tax_id=excluded.tax_id,
  billing_address=excluded.billing_address,
  shipping_address=excluded.shipping_address,
  is_active=excluded.is_active
`, email, c.Name, c.Company, c.Phone, c.TaxID, c.BillingAddress, c.ShippingAddress, c.Active)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := d.conn.GetContext(ctx, &id, `SELECT id FROM customers WHERE email = ?`, email); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) GetActiveCustomerByEmail(ctx context.Context, email string) (internal.Customer, error) {
	var c internal.Customer
	err := d.conn.GetContext(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE email = ? AND is_active = 1`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Customer{}, ErrNotFound
	}
	return c, err
}

func (d *DB) ListActiveCustomers(ctx context.Context) ([]internal.Customer, error) {
	var out []internal.Customer
	err := d.conn.SelectContext(ctx, &out, `SELECT `+customerColumns+` FROM customers WHERE is_active = 1 ORDER BY id ASC`)
	return out, err
}

func (d *DB) ListCustomers(ctx context.Context) ([]internal.Customer, error) {
	var out []internal.Customer
	err := d.conn.SelectContext(ctx, &out, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC, id DESC`)
	return out, err
}

// SetCustomerActive soft-toggles a customer; customers are never deleted implicitly.
func (d *DB) SetCustomerActive(ctx context.Context, email string, active bool) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE customers SET is_active = ? WHERE email = ?`, active, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const accountColumns = `id, email, provider, host, port, username, password, use_tls, mailbox, unread_only,
  since_date, before_date, blacklist, refresh_token, is_active, last_checked_at`

func (d *DB) UpsertMailAccount(ctx context.Context, a internal.MailAccount) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	mailbox := a.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO mail_accounts (email, provider, host, port, username, password, use_tls, mailbox, unread_only,
  since_date, before_date, blacklist, refresh_token, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
  provider=excluded.provider,
  host=excluded.host,
  port=excluded.port,
  username=excluded.username,
  password=excluded.password,
  use_tls=excluded.use_tls,
  mailbox=excluded.mailbox,
  unread_only=excluded.unread_only,
  since_date=excluded.since_date,
  before_date=excluded.before_date,
  blacklist=excluded.blacklist,
  refresh_token=excluded.refresh_token,
  is_active=excluded.is_active
`, email, a.Provider, a.Host, a.Port, a.Username, a.Password, a.UseTLS, mailbox, a.UnreadOnly,
		a.SinceDate, a.BeforeDate, a.Blacklist, a.RefreshToken, a.Active)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := d.conn.GetContext(ctx, &id, `SELECT id FROM mail_accounts WHERE email = ?`, email); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) ListActiveMailAccounts(ctx context.Context) ([]internal.MailAccount, error) {
	var out []internal.MailAccount
	err := d.conn.SelectContext(ctx, &out, `SELECT `+accountColumns+` FROM mail_accounts WHERE is_active = 1 ORDER BY id ASC`)
	return out, err
}

func (d *DB) TouchMailAccount(ctx context.Context, id int64) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE mail_accounts SET last_checked_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}
