package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/connectors"
)

// Connector opens IMAP sessions for mail accounts.
type Connector struct {
	Timeout time.Duration
	// MaxMessages caps one fetch to the newest N matches.
	MaxMessages int
}

func NewConnector() *Connector {
	return &Connector{Timeout: 30 * time.Second, MaxMessages: 50}
}

func (c *Connector) Open(ctx context.Context, account internal.MailAccount) (connectors.Session, error) {
	if account.Host == "" || account.Username == "" {
		return nil, fmt.Errorf("account %s: imap host and username are required", account.Email)
	}
	window, err := connectors.AccountWindow(account)
	if err != nil {
		return nil, err
	}

	port := account.Port
	if port == 0 {
		port = 993
	}
	addr := net.JoinHostPort(account.Host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: c.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var client *imapclient.Client
	if account.UseTLS {
		client, err = imapclient.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: account.Host})
	} else {
		client, err = imapclient.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, err
	}
	client.Timeout = c.Timeout

	if err := client.Login(account.Username, account.Password); err != nil {
		_ = client.Logout()
		return nil, err
	}
	mailbox := account.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := client.Select(mailbox, false); err != nil {
		_ = client.Logout()
		return nil, err
	}

	return &session{client: client, account: account, window: window, max: c.MaxMessages}, nil
}

type session struct {
	client  *imapclient.Client
	account internal.MailAccount
	window  connectors.Window
	max     int
}

func (s *session) Fetch(ctx context.Context) ([]internal.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	if s.account.UnreadOnly {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	criteria.Since = s.window.Since
	criteria.Before = s.window.Before

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if s.max > 0 && len(uids) > s.max {
		uids = uids[len(uids)-s.max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	// peek keeps \Seen untouched until the message is handled
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(uids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- s.client.UidFetch(seqset, items, messages) }()

	out := make([]internal.RawMessage, 0, len(uids))
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}

		parsed, err := connectors.ParseMessage(raw)
		if err != nil {
			log.Warn().Err(err).Str("account", s.account.Email).Uint32("uid", msg.Uid).Msg("skipping unparseable message")
			continue
		}
		parsed.Ref = strconv.FormatUint(uint64(msg.Uid), 10)
		if parsed.MessageID == "" {
			parsed.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
			parsed.ThreadID = parsed.MessageID
		}
		if parsed.ReceivedAt.IsZero() && !msg.InternalDate.IsZero() {
			parsed.ReceivedAt = msg.InternalDate.UTC()
		}
		out = append(out, parsed)
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return refLess(out[i].Ref, out[j].Ref) })
	return out, nil
}

func (s *session) MarkSeen(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := strconv.ParseUint(ref, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid imap ref %q: %w", ref, err)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

func (s *session) Close() error {
	return s.client.Logout()
}

func refLess(a, b string) bool {
	x, _ := strconv.ParseUint(a, 10, 32)
	y, _ := strconv.ParseUint(b, 10, 32)
	return x < y
}
