package connectors

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"autoquote/internal"
)

type stubSession struct {
	messages []internal.RawMessage
	seen     []string
	closed   bool
}

func (s *stubSession) Fetch(context.Context) ([]internal.RawMessage, error) { return s.messages, nil }
func (s *stubSession) MarkSeen(_ context.Context, ref string) error {
	s.seen = append(s.seen, ref)
	return nil
}
func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

func strPtr(s string) *string { return &s }

func TestFetchServiceFilters(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 6, d, 12, 0, 0, 0, time.UTC) }
	stub := &stubSession{messages: []internal.RawMessage{
		{Ref: "1", FromAddress: "buyer@acme.test", ReceivedAt: day(2), Raw: []byte("raw one")},
		{Ref: "2", FromAddress: "Spam@Junk.test", ReceivedAt: day(2), Raw: []byte("raw two")},
		{Ref: "3", FromAddress: "buyer@acme.test", ReceivedAt: day(9)},
		{Ref: "4", FromAddress: "buyer@acme.test", ReceivedAt: time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC)},
		{Ref: "5", FromAddress: "buyer@acme.test", ReceivedAt: day(1), Raw: []byte("raw one")},
		{Ref: "6", FromAddress: "buyer@acme.test", ReceivedAt: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)},
		{Ref: "7", FromAddress: "buyer@acme.test", ReceivedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}}
	rawDir := t.TempDir()
	svc := NewFetchService(rawDir, map[string]Mailbox{
		"imap": MailboxFunc(func(context.Context, internal.MailAccount) (Session, error) { return stub, nil }),
	})

	account := internal.MailAccount{
		Email: "sales@seller.test", Provider: "IMAP", Blacklist: " spam@junk.test, ",
		SinceDate: strPtr("2025-06-01"), BeforeDate: strPtr("2025-06-09"),
	}
	sess, err := svc.Open(context.Background(), account)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sess.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Ref != "1" || got[1].Ref != "5" || got[2].Ref != "7" {
		t.Fatalf("got=%+v", got)
	}
	if got[0].ArchivePath == "" || got[0].ArchivePath != got[1].ArchivePath {
		t.Fatalf("identical raw content should share one archive file: %q %q", got[0].ArchivePath, got[1].ArchivePath)
	}
	if b, err := os.ReadFile(got[0].ArchivePath); err != nil || string(b) != "raw one" {
		t.Fatalf("archive=%q err=%v", b, err)
	}

	if err := sess.MarkSeen(context.Background(), "1"); err != nil || len(stub.seen) != 1 {
		t.Fatalf("mark seen passthrough: %v %v", err, stub.seen)
	}
	_ = sess.Close()
	if !stub.closed {
		t.Fatal("close passthrough")
	}
}

func TestWindowBounds(t *testing.T) {
	w, err := AccountWindow(internal.MailAccount{SinceDate: strPtr("2025-06-01"), BeforeDate: strPtr(" 2025-06-09 ")})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"just before since", time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC), false},
		{"at since", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"inside", time.Date(2025, 6, 5, 8, 30, 0, 0, time.UTC), true},
		{"just before before", time.Date(2025, 6, 8, 23, 59, 59, 0, time.UTC), true},
		{"at before", time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), false},
		{"unknown date", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.at); got != tt.want {
				t.Fatalf("Contains(%v)=%v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestFetchServiceOpenErrors(t *testing.T) {
	boom := errors.New("auth failed")
	svc := NewFetchService("", map[string]Mailbox{
		"imap": MailboxFunc(func(context.Context, internal.MailAccount) (Session, error) { return nil, boom }),
	})
	if _, err := svc.Open(context.Background(), internal.MailAccount{Provider: "pop3"}); err == nil {
		t.Fatal("unknown provider must fail")
	}
	if _, err := svc.Open(context.Background(), internal.MailAccount{Provider: "imap", SinceDate: strPtr("June 1")}); err == nil {
		t.Fatal("bad date must fail")
	}
	if _, err := svc.Open(context.Background(), internal.MailAccount{Provider: "imap"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}
