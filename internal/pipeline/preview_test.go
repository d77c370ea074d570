package pipeline

import (
	"context"
	"testing"

	"autoquote/internal"
)

func TestPreviewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.extractor.body = internal.ExtractionSuccess{Items: items("MCB 32A", 50), Confidence: 80}

	p, err := h.svc.Preview(ctx, h.snapshot(t), rfq("m9", "stranger@else.test"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Whitelisted || p.Decision.Action != ActionAutoSend {
		t.Fatalf("preview=%+v", p)
	}
	if len(p.Lines) != 1 || p.Lines[0].UnitPrice != 225 || p.Lines[0].Total != 11250 {
		t.Fatalf("lines=%+v", p.Lines)
	}
	stats, _ := h.db.Stats(ctx)
	if stats.Total != 0 || len(h.outbox.sent) != 0 {
		t.Fatal("preview must not record or send")
	}
}
