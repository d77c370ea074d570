package connectors

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(readFixture(t, "rfq_with_sheet.eml"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.FromAddress != "buyer@acme.test" || msg.FromName != "Asha Buyer" {
		t.Fatalf("from=%q name=%q", msg.FromAddress, msg.FromName)
	}
	if msg.MessageID != "<m1@acme.test>" || msg.ThreadID != "<m1@acme.test>" || msg.Subject != "RFQ for site" {
		t.Fatalf("msg=%+v", msg)
	}
	if !strings.Contains(msg.BodyText, "10 LED Panel 2x2") {
		t.Fatalf("body=%q", msg.BodyText)
	}
	want := time.Date(2025, 6, 2, 3, 45, 0, 0, time.UTC)
	if !msg.ReceivedAt.Equal(want) {
		t.Fatalf("received=%v", msg.ReceivedAt)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].FileName != "rfq.csv" || !strings.Contains(string(msg.Attachments[0].Content), "MCB 32A,3") {
		t.Fatalf("attachments=%+v", msg.Attachments)
	}
}

func TestParseMessageThreadsReplies(t *testing.T) {
	msg, err := ParseMessage(readFixture(t, "reply_html.eml"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.ThreadID != "<q1@seller.test>" {
		t.Fatalf("thread=%q", msg.ThreadID)
	}
	if msg.BodyText != "" || !strings.Contains(msg.BodyHTML, "<table>") {
		t.Fatalf("text=%q html=%q", msg.BodyText, msg.BodyHTML)
	}
}

func TestParseMailDate(t *testing.T) {
	for _, v := range []string{"Mon, 02 Jun 2025 09:15:00 +0530", "2 Jun 2025 09:15:00 +0530", "Monday, 02-Jun-25 09:15:00 IST"} {
		if _, err := parseMailDate(v); err != nil {
			t.Fatalf("%q: %v", v, err)
		}
	}
	if _, err := parseMailDate(""); err == nil {
		t.Fatal("empty date must fail")
	}
}
