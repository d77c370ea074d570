package pipeline

import (
	"testing"

	"autoquote/internal"
)

func rawWithHTML(html string) internal.RawMessage {
	return internal.RawMessage{Subject: "RFQ", BodyHTML: html}
}

func TestStripQuotedTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "LED Panel 2x2 - 10 nos\nMCB 32A - 4 nos", "LED Panel 2x2 - 10 nos\nMCB 32A - 4 nos"},
		{"signature", "MCB 32A - 4 nos\n-- \nRavi\nPurchase", "MCB 32A - 4 nos"},
		{"quoted reply", "Need 5 more.\r\nOn Mon, 2 Jun 2025 at 10:00, Sales <sales@example.com> wrote:\r\n> old", "Need 5 more."},
		{"mobile", "MCB 32A x 2\nSent from my iPhone", "MCB 32A x 2"},
		{"leading marker kept", "--\nMCB 32A", "--\nMCB 32A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripQuotedTail(tt.in); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestBuildExtractionInputPrefersText(t *testing.T) {
	msg := internal.RawMessage{BodyText: "  MCB 32A x 4  ", BodyHTML: "<p>ignored</p>"}
	if got := BuildExtractionInput(msg).Body; got != "MCB 32A x 4" {
		t.Fatalf("body=%q", got)
	}
}
