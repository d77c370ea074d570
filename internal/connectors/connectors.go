package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoquote/internal"
)

// Session is one open connection to a mailbox.
type Session interface {
	// Fetch returns the messages matching the account's filters, oldest first.
	Fetch(ctx context.Context) ([]internal.RawMessage, error)
	// MarkSeen flags the message identified by ref so the next Fetch skips it.
	MarkSeen(ctx context.Context, ref string) error
	Close() error
}

type Mailbox interface {
	Open(ctx context.Context, account internal.MailAccount) (Session, error)
}

// MailboxFunc adapts a function to Mailbox.
type MailboxFunc func(ctx context.Context, account internal.MailAccount) (Session, error)

func (f MailboxFunc) Open(ctx context.Context, account internal.MailAccount) (Session, error) {
	return f(ctx, account)
}

const dateLayout = "2006-01-02"

// Window is the account's optional received-date range: Since is inclusive,
// Before exclusive. Zero values mean unbounded.
type Window struct {
	Since  time.Time
	Before time.Time
}

func AccountWindow(account internal.MailAccount) (Window, error) {
	var w Window
	var err error
	if account.SinceDate != nil && strings.TrimSpace(*account.SinceDate) != "" {
		if w.Since, err = time.Parse(dateLayout, strings.TrimSpace(*account.SinceDate)); err != nil {
			return Window{}, fmt.Errorf("account %s since date: %w", account.Email, err)
		}
	}
	if account.BeforeDate != nil && strings.TrimSpace(*account.BeforeDate) != "" {
		if w.Before, err = time.Parse(dateLayout, strings.TrimSpace(*account.BeforeDate)); err != nil {
			return Window{}, fmt.Errorf("account %s before date: %w", account.Email, err)
		}
	}
	return w, nil
}

func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Before.IsZero() && !t.Before(w.Before) {
		return false
	}
	return true
}
