package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"autoquote/internal"
	"autoquote/internal/config"
	"autoquote/internal/connectors"
	"autoquote/internal/util"
)

// Connector opens Gmail API sessions. Each account carries its own refresh
// token; the OAuth client is shared.
type Connector struct {
	oauth       *oauth2.Config
	MaxMessages int64

	// extra options, used by tests to point at a fake endpoint
	opts []option.ClientOption
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}

	return &Connector{
		oauth: &oauth2.Config{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.GmailRedirectURI,
			Scopes:       []string{gmail.GmailModifyScope},
		},
		MaxMessages: 50,
	}, nil
}

func (c *Connector) Open(ctx context.Context, account internal.MailAccount) (connectors.Session, error) {
	opts := c.opts
	if len(opts) == 0 {
		token := util.Deref(account.RefreshToken)
		if token == "" {
			return nil, fmt.Errorf("account %s: gmail refresh token is required", account.Email)
		}
		tokenSource := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: token})
		opts = []option.ClientOption{option.WithTokenSource(tokenSource)}
	}
	window, err := connectors.AccountWindow(account)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &session{service: svc, account: account, query: searchQuery(account, window), max: c.MaxMessages}, nil
}

// searchQuery builds the Gmail search for the account's filters. Gmail's
// after: is inclusive and before: exclusive, matching Window.
func searchQuery(account internal.MailAccount, w connectors.Window) string {
	parts := []string{}
	if mb := strings.TrimSpace(account.Mailbox); mb != "" && !strings.EqualFold(mb, "INBOX") {
		parts = append(parts, "label:"+mb)
	} else {
		parts = append(parts, "in:inbox")
	}
	if account.UnreadOnly {
		parts = append(parts, "is:unread")
	}
	if !w.Since.IsZero() {
		parts = append(parts, "after:"+w.Since.Format("2006/01/02"))
	}
	if !w.Before.IsZero() {
		parts = append(parts, "before:"+w.Before.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}

type session struct {
	service *gmail.Service
	account internal.MailAccount
	query   string
	max     int64
}

func (s *session) Fetch(ctx context.Context) ([]internal.RawMessage, error) {
	listResp, err := s.service.Users.Messages.List("me").Q(s.query).MaxResults(s.max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.RawMessage, 0, len(listResp.Messages))
	// the API lists newest first
	for i := len(listResp.Messages) - 1; i >= 0; i-- {
		ref := listResp.Messages[i]
		if ref.Id == "" {
			continue
		}
		rawResp, err := s.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		msg, err := connectors.ParseMessage(rawBytes)
		if err != nil {
			log.Warn().Err(err).Str("account", s.account.Email).Str("gmail_id", ref.Id).Msg("skipping unparseable message")
			continue
		}
		msg.Ref = ref.Id
		if msg.MessageID == "" {
			msg.MessageID = ref.Id
		}
		if msg.ThreadID == "" {
			msg.ThreadID = rawResp.ThreadId
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *session) MarkSeen(ctx context.Context, ref string) error {
	_, err := s.service.Users.Messages.Modify("me", ref, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func (s *session) Close() error { return nil }

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
