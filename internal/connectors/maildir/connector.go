package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/connectors"
)

const doneDir = "done"

// Connector reads .eml files dropped into a directory. Marking a message seen
// moves it to the done/ subdirectory.
type Connector struct {
	// DefaultDir is used when the account does not name a directory.
	DefaultDir string
}

func NewConnector(defaultDir string) *Connector {
	return &Connector{DefaultDir: defaultDir}
}

func (c *Connector) Open(_ context.Context, account internal.MailAccount) (connectors.Session, error) {
	dir := strings.TrimSpace(account.Mailbox)
	if dir == "" || strings.EqualFold(dir, "INBOX") {
		dir = c.DefaultDir
	}
	if dir == "" {
		return nil, fmt.Errorf("account %s: no maildrop directory", account.Email)
	}
	if err := os.MkdirAll(filepath.Join(dir, doneDir), 0o755); err != nil {
		return nil, err
	}
	return &session{dir: dir, account: account}, nil
}

type session struct {
	dir     string
	account internal.MailAccount
}

func (s *session) Fetch(ctx context.Context) ([]internal.RawMessage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !IsMessageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]internal.RawMessage, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		msg, err := connectors.ParseMessage(raw)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unparseable message")
			continue
		}
		msg.Ref = name
		if msg.MessageID == "" {
			msg.MessageID = "maildrop-" + strings.TrimSuffix(name, filepath.Ext(name))
			msg.ThreadID = msg.MessageID
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *session) MarkSeen(_ context.Context, ref string) error {
	name := filepath.Base(ref)
	if name != ref || !IsMessageFile(name) {
		return fmt.Errorf("invalid maildrop ref %q", ref)
	}
	return os.Rename(filepath.Join(s.dir, name), filepath.Join(s.dir, doneDir, name))
}

func (s *session) Close() error { return nil }

// IsMessageFile reports whether name looks like a dropped message.
func IsMessageFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".eml") && !strings.HasPrefix(name, ".")
}
