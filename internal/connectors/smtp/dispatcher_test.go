package smtp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jhillyerd/enmime"

	"autoquote/internal"
	"autoquote/internal/config"
)

// fakeSMTP accepts one session at a time and keeps what was submitted.
type fakeSMTP struct {
	mu    sync.Mutex
	from  string
	rcpts []string
	data  []byte
}

func (f *fakeSMTP) serve(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			f.handle(conn)
		}
	}()
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (f *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
	reply("220 fake ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			f.mu.Lock()
			f.from = strings.Trim(strings.TrimSpace(line)[len("MAIL FROM:"):], "<>")
			f.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			f.mu.Lock()
			f.rcpts = append(f.rcpts, strings.Trim(strings.TrimSpace(line)[len("RCPT TO:"):], "<>"))
			f.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var buf bytes.Buffer
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				buf.WriteString(l)
			}
			f.mu.Lock()
			f.data = buf.Bytes()
			f.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestSendDeliversQuoteReply(t *testing.T) {
	fake := &fakeSMTP{}
	host, port := fake.serve(t)
	d := NewDispatcher(config.Config{SMTPHost: host, SMTPPort: port, CompanyName: "Seller Traders"})

	account := &internal.MailAccount{Email: "sales@seller.test", Host: "imap.seller.test"}
	mail := internal.OutboundMail{
		To: "buyer@acme.test", ToName: "Asha Buyer", Subject: "Re: RFQ for site", Text: "Please find attached.",
		InReplyTo: "<m1@acme.test>", References: "<m1@acme.test>",
		Attachments: []internal.Attachment{{FileName: "quote-AB12CD34.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3 test")}},
	}
	if err := d.Send(context.Background(), account, mail); err != nil {
		t.Fatal(err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.from != "sales@seller.test" || len(fake.rcpts) != 1 || fake.rcpts[0] != "buyer@acme.test" {
		t.Fatalf("from=%q rcpts=%v", fake.from, fake.rcpts)
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(fake.data))
	if err != nil {
		t.Fatal(err)
	}
	if env.GetHeader("Subject") != "Re: RFQ for site" || env.GetHeader("In-Reply-To") != "<m1@acme.test>" || env.GetHeader("References") != "<m1@acme.test>" {
		t.Fatalf("headers subject=%q in-reply-to=%q references=%q", env.GetHeader("Subject"), env.GetHeader("In-Reply-To"), env.GetHeader("References"))
	}
	if !strings.Contains(env.Text, "Please find attached.") {
		t.Fatalf("text=%q", env.Text)
	}
	if len(env.Attachments) != 1 || env.Attachments[0].FileName != "quote-AB12CD34.pdf" || string(env.Attachments[0].Content) != "%PDF-1.3 test" {
		t.Fatalf("attachments=%+v", env.Attachments)
	}
}

func TestServerFor(t *testing.T) {
	d := NewDispatcher(config.Config{SMTPFrom: "quotes@seller.test", SMTPUser: "quotes", CompanyName: "Seller"})

	srv, err := d.ServerFor(&internal.MailAccount{Email: "sales@seller.test", Host: "IMAP.Mail.test", Username: "sales", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if srv.Host != "smtp.mail.test" || srv.Port != 587 || srv.Username != "sales" || srv.From != "sales@seller.test" {
		t.Fatalf("srv=%+v", srv)
	}

	if _, err := d.ServerFor(nil); err == nil {
		t.Fatal("default sender without host must fail")
	}
	if _, err := d.ServerFor(&internal.MailAccount{Email: "x@y.test"}); err == nil {
		t.Fatal("account without any host must fail")
	}
}

func TestSendWrapsDeliveryErrors(t *testing.T) {
	d := NewDispatcher(config.Config{SMTPHost: "smtp.seller.test", SMTPFrom: "quotes@seller.test"})
	d.deliver = func(context.Context, Server, []string, []byte) error { return errors.New("421 try later") }
	err := d.Send(context.Background(), nil, internal.OutboundMail{To: "buyer@acme.test", Subject: "Quote", Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "421 try later") {
		t.Fatalf("err=%v", err)
	}
	if err := d.Send(context.Background(), nil, internal.OutboundMail{To: "nobody", Subject: "Quote"}); err == nil {
		t.Fatal("invalid recipient must fail")
	}
}

func TestReferences(t *testing.T) {
	if got := references("<a@x>", "<a@x>"); got != "<a@x>" {
		t.Fatalf("got %q", got)
	}
	if got := references("<root@x>", "<b@x>"); got != "<root@x> <b@x>" {
		t.Fatalf("got %q", got)
	}
}
