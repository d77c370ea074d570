package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"autoquote/internal"
	"autoquote/internal/config"
	"autoquote/internal/util"
)

// Server is where and as whom one message is submitted.
type Server struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

func (s Server) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Dispatcher sends quote replies through the receiving account's SMTP server,
// or through the configured default server when no account is given.
type Dispatcher struct {
	fallback    Server
	hostOverlay string
	portOverlay int
	breaker     *gobreaker.CircuitBreaker

	deliver func(ctx context.Context, srv Server, recipients []string, msg []byte) error
}

func NewDispatcher(cfg config.Config) *Dispatcher {
	d := &Dispatcher{
		fallback: Server{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     util.FirstNonEmpty(cfg.SMTPFrom, cfg.SMTPUser),
			FromName: cfg.CompanyName,
		},
		hostOverlay: cfg.SMTPHost,
		portOverlay: cfg.SMTPPort,
		breaker:     util.NewBreaker("smtp-dispatch"),
	}
	d.deliver = deliver
	return d
}

// ServerFor resolves the submission server for account. Without an explicit
// SMTP_HOST the account's IMAP host is reused with imap. swapped for smtp.
func (d *Dispatcher) ServerFor(account *internal.MailAccount) (Server, error) {
	if account == nil {
		if d.fallback.Host == "" || d.fallback.From == "" {
			return Server{}, errors.New("no default smtp sender configured (SMTP_HOST, SMTP_FROM)")
		}
		return d.fallback, nil
	}
	host := d.hostOverlay
	if host == "" {
		host = deriveHost(account.Host)
	}
	if host == "" {
		return Server{}, fmt.Errorf("account %s: no smtp host", account.Email)
	}
	port := d.portOverlay
	if port == 0 {
		port = 587
	}
	return Server{
		Host:     host,
		Port:     port,
		Username: util.FirstNonEmpty(account.Username, account.Email),
		Password: account.Password,
		From:     account.Email,
		FromName: d.fallback.FromName,
	}, nil
}

func deriveHost(imapHost string) string {
	host := strings.ToLower(strings.TrimSpace(imapHost))
	if rest, ok := strings.CutPrefix(host, "imap."); ok {
		return "smtp." + rest
	}
	return host
}

func (d *Dispatcher) Send(ctx context.Context, account *internal.MailAccount, mail internal.OutboundMail) error {
	srv, err := d.ServerFor(account)
	if err != nil {
		return err
	}
	msg, err := BuildMessage(srv, mail)
	if err != nil {
		return err
	}
	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.deliver(ctx, srv, []string{mail.To}, msg)
	})
	if err != nil {
		return fmt.Errorf("send to %s via %s: %w", mail.To, srv.Host, err)
	}
	log.Info().Str("to", mail.To).Str("subject", mail.Subject).Str("smtp", srv.Host).Msg("mail sent")
	return nil
}

// BuildMessage encodes mail as a MIME message from srv's sender.
func BuildMessage(srv Server, mail internal.OutboundMail) ([]byte, error) {
	if !strings.Contains(mail.To, "@") {
		return nil, fmt.Errorf("invalid recipient %q", mail.To)
	}
	domain := "localhost"
	if at := strings.LastIndex(srv.From, "@"); at >= 0 {
		domain = srv.From[at+1:]
	}

	b := enmime.Builder().
		From(srv.FromName, srv.From).
		To(mail.ToName, mail.To).
		Subject(mail.Subject).
		Header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)).
		Text([]byte(mail.Text))
	if mail.HTML != "" {
		b = b.HTML([]byte(mail.HTML))
	}
	if mail.InReplyTo != "" {
		b = b.Header("In-Reply-To", mail.InReplyTo)
		b = b.Header("References", references(mail.References, mail.InReplyTo))
	}
	for _, a := range mail.Attachments {
		b = b.AddAttachment(a.Content, a.ContentType, a.FileName)
	}

	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func references(thread, parent string) string {
	thread = strings.TrimSpace(thread)
	if thread == "" || thread == parent {
		return parent
	}
	return thread + " " + parent
}

func deliver(ctx context.Context, srv Server, recipients []string, msg []byte) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", srv.addr())
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if srv.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: srv.Host})
	}

	c, err := smtp.NewClient(conn, srv.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if srv.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: srv.Host}); err != nil {
				return err
			}
		}
	}
	if srv.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", srv.Username, srv.Password, srv.Host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(srv.From); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
