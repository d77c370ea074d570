package pipeline

import (
	"strings"
	"testing"
)

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body>
<div><p>Hello team,</p><p>Please quote:</p></div>
<table><tr><th>Item</th><th>Qty</th></tr><tr><td>LED Panel 2x2</td><td>10</td></tr></table>
Thanks<br>Ravi</body></html>`
	got := htmlToText(html)
	want := []string{"Hello team,", "Please quote:", "Item | Qty", "LED Panel 2x2 | 10", "Thanks", "Ravi"}
	if got != strings.Join(want, "\n") {
		t.Fatalf("got %q", got)
	}
}

func TestBuildExtractionInputFallsBackToHTML(t *testing.T) {
	in := BuildExtractionInput(rawWithHTML(`<p>MCB 32A x 4</p>`))
	if in.Body != "MCB 32A x 4" {
		t.Fatalf("body=%q", in.Body)
	}
}
