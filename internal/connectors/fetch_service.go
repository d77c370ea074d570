package connectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"autoquote/internal"
)

// FetchService opens provider sessions and applies the account-level filters
// every provider shares: sender blacklist and received-date window. Raw
// messages are archived before they are handed on.
type FetchService struct {
	mailboxes map[string]Mailbox
	store     *MailStoreService
}

func NewFetchService(rawMailDir string, mailboxes map[string]Mailbox) *FetchService {
	s := &FetchService{mailboxes: mailboxes}
	if rawMailDir != "" {
		s.store = NewMailStoreService(rawMailDir)
	}
	return s
}

func (s *FetchService) Open(ctx context.Context, account internal.MailAccount) (Session, error) {
	provider := strings.ToLower(strings.TrimSpace(account.Provider))
	mb, ok := s.mailboxes[provider]
	if !ok {
		return nil, fmt.Errorf("account %s: unsupported provider %q", account.Email, account.Provider)
	}
	window, err := AccountWindow(account)
	if err != nil {
		return nil, err
	}
	inner, err := mb.Open(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", account.Email, err)
	}
	return &filteredSession{Session: inner, account: account, window: window, blocked: account.BlockedSenders(), store: s.store}, nil
}

type filteredSession struct {
	Session
	account internal.MailAccount
	window  Window
	blocked []string
	store   *MailStoreService
}

func (f *filteredSession) Fetch(ctx context.Context) ([]internal.RawMessage, error) {
	messages, err := f.Session.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]internal.RawMessage, 0, len(messages))
	for _, msg := range messages {
		logger := log.With().Str("account", f.account.Email).Str("message_id", msg.MessageID).Logger()
		if f.isBlocked(msg.FromAddress) {
			logger.Info().Str("sender", msg.FromAddress).Msg("skipping blacklisted sender")
			continue
		}
		if !f.window.Contains(msg.ReceivedAt) {
			logger.Debug().Time("received_at", msg.ReceivedAt).Msg("outside account date window")
			continue
		}
		if f.store != nil && len(msg.Raw) > 0 && msg.ArchivePath == "" {
			path, err := f.store.Archive(msg.Raw)
			if err != nil {
				logger.Warn().Err(err).Msg("raw message not archived")
			} else {
				msg.ArchivePath = path
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

func (f *filteredSession) isBlocked(from string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	for _, b := range f.blocked {
		if b == from {
			return true
		}
	}
	return false
}
